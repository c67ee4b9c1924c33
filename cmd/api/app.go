package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cabview.railmap.org/internal/app"
	"cabview.railmap.org/internal/appconf"
	"cabview.railmap.org/internal/auth"
	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/mapview"
	"cabview.railmap.org/internal/metrics"
	"cabview.railmap.org/internal/refdata"
	"cabview.railmap.org/internal/resolver"
	"cabview.railmap.org/internal/restapi"
	"cabview.railmap.org/internal/store"
	"cabview.railmap.org/internal/textproc"
	"cabview.railmap.org/internal/webui"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	sweepInterval      = time.Minute
	dbStatsInterval    = 15 * time.Second
	shutdownTimeout    = 30 * time.Second
)

// ParseAPIKeys splits a comma separated list of API keys.
func ParseAPIKeys(input string) []string {
	return appconf.SplitList(input)
}

// BuildApplication opens the store, loads reference data and wires the map
// registry, text processor and token verifier.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	logger := logging.NewLogger(cfg.Env == appconf.Production, cfg.Verbose)
	slog.SetDefault(logger)
	clk := clock.RealClock{}

	st, err := store.Open(ctx, store.Config{DBPath: cfg.DBPath, Env: cfg.Env, Clock: clk})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	ref, err := loadReference(cfg)
	if err != nil {
		logging.SafeCloseWithLogging(st, logger, "store")
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	lines, stations := ref.Counts()
	logging.LogOperation(logger, "reference_data_loaded",
		slog.Int("lines", lines),
		slog.Int("stations", stations))

	m := metrics.NewWithLogger(logger)

	registry := mapview.NewRegistry(st, mapview.Options{
		ThresholdMeters: cfg.ClickThresholdMeters,
		Nearest:         resolver.Strategy(cfg.SpatialIndex),
		Clock:           clk,
		Logger:          logger,
		Recorder:        m,
	}, sessionIdleTimeout)
	registry.Reload(ctx)

	coreApp := &app.Application{
		Config:        cfg,
		Logger:        logger,
		Store:         st,
		Reference:     ref,
		Registry:      registry,
		TextProcessor: buildTextProcessor(cfg, m, logger),
		Clock:         clk,
		Metrics:       m,
	}

	if cfg.JWTSecret != "" {
		verifier, err := auth.NewVerifier(cfg.JWTSecret, clk, logger)
		if err != nil {
			coreApp.Close()
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
		coreApp.Auth = verifier
	} else {
		logger.Warn("no jwt secret configured, write endpoints will reject every request")
	}

	return coreApp, nil
}

func loadReference(cfg appconf.Config) (*refdata.Dataset, error) {
	var sets []*refdata.Dataset
	if cfg.ReferenceLinesCSV != "" || cfg.ReferenceStationsCSV != "" {
		if cfg.ReferenceLinesCSV == "" || cfg.ReferenceStationsCSV == "" {
			return nil, errors.New("reference lines and stations CSV must be given together")
		}
		d, err := refdata.LoadCSVFiles(cfg.ReferenceLinesCSV, cfg.ReferenceStationsCSV)
		if err != nil {
			return nil, err
		}
		sets = append(sets, d)
	}
	if cfg.ReferenceGTFS != "" {
		d, err := refdata.LoadGTFSFile(cfg.ReferenceGTFS)
		if err != nil {
			return nil, err
		}
		sets = append(sets, d)
	}
	return refdata.Merge(sets...), nil
}

// buildTextProcessor prefers the remote model when one is configured and
// falls back to the local chapter-list parser.
func buildTextProcessor(cfg appconf.Config, m *metrics.Metrics, logger *slog.Logger) textproc.Converter {
	local := textproc.LocalConverter{}
	if cfg.TextProcessorURL == "" && cfg.TextProcessorAPIKey == "" {
		return local
	}
	client := textproc.NewClient(textproc.Config{
		Endpoint: cfg.TextProcessorURL,
		APIKey:   cfg.TextProcessorAPIKey,
		Model:    cfg.TextProcessorModel,
		Recorder: m,
		Logger:   logger,
	})
	return textproc.Fallback{Primary: client, Secondary: local}
}

// CreateServer builds the HTTP server serving the API and web UI routes.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)
	webUI := &webui.WebUI{Application: coreApp}

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	webUI.SetWebUIRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.WithMiddleware(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv, api
}

// Run serves until ctx is cancelled, then shuts the server down and releases
// the application.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	logger := logging.WithComponent(coreApp.Logger, "server")

	coreApp.Registry.StartSweeper(sweepInterval)
	coreApp.Metrics.StartDBStatsCollector(coreApp.Store.DB(), dbStatsInterval)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", srv.Addr), slog.String("env", coreApp.Config.Env.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = err
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "server forced to shutdown", err)
		if runErr == nil {
			runErr = err
		}
	}

	api.Shutdown()
	coreApp.Close()
	logger.Info("server exited")
	return runErr
}
