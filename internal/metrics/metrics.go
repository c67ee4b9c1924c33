// Package metrics provides Prometheus metrics for the cabview service.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	// Map metrics
	MapClicksTotal        *prometheus.CounterVec
	PlaybackCommandsTotal *prometheus.CounterVec
	IndexStations         prometheus.Gauge
	MapSessions           prometheus.Gauge

	// Text processor metrics
	TextProcessorRequestsTotal *prometheus.CounterVec

	// logger for error reporting
	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	// cancel stops the DB stats collector goroutine
	cancel context.CancelFunc

	// wg tracks the DB stats collector goroutine for graceful shutdown
	wg sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cabview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cabview_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	dbConnectionsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cabview_db_connections_open",
		Help: "Number of open database connections",
	})

	dbConnectionsInUse := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cabview_db_connections_in_use",
		Help: "Number of database connections currently in use",
	})

	dbConnectionsIdle := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cabview_db_connections_idle",
		Help: "Number of idle database connections",
	})

	dbWaitSecondsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cabview_db_wait_seconds_total",
		Help: "Total time blocked waiting for a database connection",
	})

	mapClicksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cabview_map_clicks_total",
			Help: "Map clicks by resolution outcome",
		},
		[]string{"outcome"},
	)

	playbackCommandsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cabview_playback_commands_total",
			Help: "Video load requests by delivery state",
		},
		[]string{"state"},
	)

	indexStations := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cabview_index_stations",
		Help: "Number of stations in the most recently built station index",
	})

	mapSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cabview_map_sessions",
		Help: "Number of open map sessions",
	})

	textProcessorRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cabview_text_processor_requests_total",
			Help: "Text to CSV conversions by result",
		},
		[]string{"result"},
	)

	// Register all metrics with the custom registry
	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		dbConnectionsOpen,
		dbConnectionsInUse,
		dbConnectionsIdle,
		dbWaitSecondsTotal,
		mapClicksTotal,
		playbackCommandsTotal,
		indexStations,
		mapSessions,
		textProcessorRequestsTotal,
	)

	return &Metrics{
		Registry:            registry,
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		DBConnectionsOpen:   dbConnectionsOpen,
		DBConnectionsInUse:  dbConnectionsInUse,
		DBConnectionsIdle:   dbConnectionsIdle,
		DBWaitSecondsTotal:  dbWaitSecondsTotal,

		MapClicksTotal:             mapClicksTotal,
		PlaybackCommandsTotal:      playbackCommandsTotal,
		IndexStations:              indexStations,
		MapSessions:                mapSessions,
		TextProcessorRequestsTotal: textProcessorRequestsTotal,

		logger: logger,
	}
}

// The Record and Set helpers below accept a nil receiver so that components
// can be built without metrics in tests.

// RecordClick counts one map click resolved as outcome.
func (m *Metrics) RecordClick(outcome string) {
	if m == nil {
		return
	}
	m.MapClicksTotal.WithLabelValues(outcome).Inc()
}

// RecordPlaybackCommand counts one load request by delivery state.
func (m *Metrics) RecordPlaybackCommand(state string) {
	if m == nil {
		return
	}
	m.PlaybackCommandsTotal.WithLabelValues(state).Inc()
}

// SetIndexStations records the size of a freshly built station index.
func (m *Metrics) SetIndexStations(n int) {
	if m == nil {
		return
	}
	m.IndexStations.Set(float64(n))
}

// SetMapSessions records the number of open map sessions.
func (m *Metrics) SetMapSessions(n int) {
	if m == nil {
		return
	}
	m.MapSessions.Set(float64(n))
}

// RecordTextProcessor counts one text conversion by result.
func (m *Metrics) RecordTextProcessor(result string) {
	if m == nil {
		return
	}
	m.TextProcessorRequestsTotal.WithLabelValues(result).Inc()
}

// StartDBStatsCollector starts a goroutine that periodically collects database
// connection pool statistics and updates the corresponding metrics.
// The interval specifies how often to collect stats.
// This method is idempotent - calling it multiple times has no effect after the first call.
// Call Shutdown() to stop the collector.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}

	// Prevent spawning multiple collectors
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if m.logger != nil {
					m.logger.Error("panic in DB stats collector", "error", r)
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				// Add the delta of wait duration since last check
				waitDelta := stats.WaitDuration - lastWaitDuration
				if waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// This method is safe to call multiple times.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
