package mapview

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/stationindex"
)

// DefaultIdleTimeout is how long a session may go without interaction before
// the sweeper removes it.
const DefaultIdleTimeout = 30 * time.Minute

// Registry owns the open map sessions and the shared station index they
// resolve against. Every reload builds one index and hands it to all sessions.
type Registry struct {
	source      LineSource
	opts        Options
	idleTimeout time.Duration

	// reloadMu orders reloads so an older line snapshot never replaces a
	// newer one.
	reloadMu sync.Mutex

	mu       sync.RWMutex
	index    *stationindex.Index
	sessions map[string]*Session

	sweepOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewRegistry creates a registry that loads lines from source. The index is
// empty until Reload is called.
func NewRegistry(source LineSource, opts Options, idleTimeout time.Duration) *Registry {
	opts = opts.withDefaults()
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		source:      source,
		opts:        opts,
		idleTimeout: idleTimeout,
		index:       stationindex.Empty(),
		sessions:    make(map[string]*Session),
		stop:        make(chan struct{}),
	}
}

// Reload fetches all lines, rebuilds the index and pushes it to every open
// session, which also clears their selections. It returns the station count.
func (r *Registry) Reload(ctx context.Context) int {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	lines := LoadLines(ctx, r.source, r.opts.Logger)
	return r.installLocked(lines)
}

// ReplaceLines installs lines without going through the source.
func (r *Registry) ReplaceLines(lines []railway.Line) int {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	return r.installLocked(lines)
}

// installLocked requires reloadMu.
func (r *Registry) installLocked(lines []railway.Line) int {
	idx := stationindex.Build(lines)

	r.mu.Lock()
	r.index = idx
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Reload(idx)
	}

	if r.opts.Recorder != nil {
		r.opts.Recorder.SetIndexStations(idx.Len())
	}
	r.opts.Logger.Info("station index rebuilt",
		slog.Int("lines", len(lines)),
		slog.Int("stations", idx.Len()),
		slog.Int("sessions", len(sessions)))
	return idx.Len()
}

// Index returns the current shared index.
func (r *Registry) Index() *stationindex.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

// Create opens a new session over the current index.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := NewSession(uuid.NewString(), r.index, r.opts)
	r.sessions[s.ID()] = s
	r.reportCountLocked()
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and forgets a session. It reports whether the id was known.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		r.reportCountLocked()
	}
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions summarizes every open session, oldest interaction first.
func (r *Registry) Sessions() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].LastUsed.Equal(infos[j].LastUsed) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].LastUsed.Before(infos[j].LastUsed)
	})
	return infos
}

// SweepIdle removes sessions idle for longer than the idle timeout and
// returns how many were removed.
func (r *Registry) SweepIdle() int {
	now := r.opts.Clock.Now()

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastUsed()) > r.idleTimeout {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	if len(expired) > 0 {
		r.reportCountLocked()
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		logging.LogOperation(r.opts.Logger, "idle_sessions_swept", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// StartSweeper runs SweepIdle every interval until Close. Calling it more
// than once has no effect.
func (r *Registry) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.sweepOnce.Do(func() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.SweepIdle()
				case <-r.stop:
					return
				}
			}
		}()
	})
}

// Close stops the sweeper and closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.reportCountLocked()
	r.mu.Unlock()

	r.wg.Wait()
	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) reportCountLocked() {
	if r.opts.Recorder != nil {
		r.opts.Recorder.SetMapSessions(len(r.sessions))
	}
}
