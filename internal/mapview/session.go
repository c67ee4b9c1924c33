// Package mapview ties the station index, the resolvers, the line selection
// and the playback controller together for one map view.
package mapview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/logging"
	"cabview.railmap.org/internal/playback"
	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/resolver"
	"cabview.railmap.org/internal/selection"
	"cabview.railmap.org/internal/stationindex"
)

// DefaultElementID is the DOM element the browser mounts the player in.
const DefaultElementID = "youtube-player"

var ErrUnknownLine = errors.New("line not loaded")

type Outcome string

const (
	OutcomeStation      Outcome = "station"
	OutcomeInterpolated Outcome = "interpolated"
	OutcomeNone         Outcome = "none"
)

// ClickResult describes what a map click did.
type ClickResult struct {
	Outcome      Outcome          `json:"outcome"`
	LineKey      *railway.LineKey `json:"lineKey,omitempty"`
	Station      *railway.Station `json:"station,omitempty"`
	Distance     float64          `json:"distance,omitempty"`
	VideoID      string           `json:"videoId,omitempty"`
	StartSeconds int              `json:"startSeconds"`
	Playback     string           `json:"playback,omitempty"`
}

// Recorder receives map and playback observations.
type Recorder interface {
	RecordClick(outcome string)
	RecordPlaybackCommand(state string)
	SetIndexStations(n int)
	SetMapSessions(n int)
}

type Options struct {
	ThresholdMeters float64
	Nearest         resolver.NearestFunc
	ElementID       string
	Clock           clock.Clock
	Logger          *slog.Logger
	Recorder        Recorder
}

func (o Options) withDefaults() Options {
	if !(o.ThresholdMeters > 0) {
		o.ThresholdMeters = resolver.DefaultThresholdMeters
	}
	if o.Nearest == nil {
		o.Nearest = resolver.Nearest
	}
	if o.ElementID == "" {
		o.ElementID = DefaultElementID
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	if o.Logger == nil {
		o.Logger = logging.WithComponent(slog.Default(), "mapview")
	}
	return o
}

// Session is the state behind one browser map view. Its methods are
// serialized: a click runs to completion before the next one starts.
type Session struct {
	id   string
	opts Options

	mu        sync.Mutex
	index     *stationindex.Index
	selection selection.State
	lastUsed  time.Time

	playerOnce sync.Once
	player     *playback.Controller
}

// NewSession creates a session over idx. A nil idx is an empty map.
func NewSession(id string, idx *stationindex.Index, opts Options) *Session {
	if idx == nil {
		idx = stationindex.Empty()
	}
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(slog.String("session_id", id))
	return &Session{
		id:       id,
		opts:     opts,
		index:    idx,
		lastUsed: opts.Clock.Now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

// HandleClick resolves a click. A station within the threshold on any line
// wins: its line becomes active and the video jumps to the station. Otherwise
// the click is interpolated along the active line, if there is one. The two
// paths never both apply to one click.
func (s *Session) HandleClick(ctx context.Context, click railway.Point) ClickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	result := s.resolveLocked(ctx, click)
	s.record(func(r Recorder) { r.RecordClick(string(result.Outcome)) })
	s.opts.Logger.Debug("map click",
		slog.Float64("lat", click.Lat),
		slog.Float64("lon", click.Lon),
		slog.String("outcome", string(result.Outcome)))
	return result
}

func (s *Session) resolveLocked(ctx context.Context, click railway.Point) ClickResult {
	if m, ok := s.opts.Nearest(click, s.index, s.opts.ThresholdMeters); ok {
		key := m.Line.Key()
		station := m.Station
		s.selection.Select(key)
		state := s.playbackLocked().LoadVideo(ctx, m.Line.VideoID, station.StartTime)
		return ClickResult{
			Outcome:      OutcomeStation,
			LineKey:      &key,
			Station:      &station,
			Distance:     m.Distance,
			VideoID:      m.Line.VideoID,
			StartSeconds: station.StartTime,
			Playback:     state.String(),
		}
	}

	line, ok := s.selection.Active(s.index)
	if !ok {
		return ClickResult{Outcome: OutcomeNone}
	}
	seconds, ok := resolver.Interpolate(click, line)
	if !ok {
		return ClickResult{Outcome: OutcomeNone}
	}

	key := line.Key()
	state := s.playbackLocked().LoadVideo(ctx, line.VideoID, seconds)
	return ClickResult{
		Outcome:      OutcomeInterpolated,
		LineKey:      &key,
		VideoID:      line.VideoID,
		StartSeconds: seconds,
		Playback:     state.String(),
	}
}

// SelectLine activates a line, as a click on its line marker does. Playback
// is not touched.
func (s *Session) SelectLine(key railway.LineKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if _, ok := s.index.Line(key); !ok {
		return ErrUnknownLine
	}
	s.selection.Select(key)
	return nil
}

// ClearSelection deselects the active line.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.selection.Clear()
}

// ActiveLine returns the selected line if it is still loaded.
func (s *Session) ActiveLine() (railway.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Active(s.index)
}

// Reload swaps in a freshly built index and clears the selection.
func (s *Session) Reload(idx *stationindex.Index) {
	if idx == nil {
		idx = stationindex.Empty()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
	s.selection.Clear()
}

// Index returns the index the session currently resolves against.
func (s *Session) Index() *stationindex.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Play loads a video directly, as the play button of a station popup does.
func (s *Session) Play(ctx context.Context, videoID string, startSeconds int) playback.LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.playbackLocked().LoadVideo(ctx, videoID, startSeconds)
}

// Playback returns the session's player controller, creating it on first
// use. The initial video is the first station of the first loaded line.
func (s *Session) Playback() *playback.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackLocked()
}

func (s *Session) playbackLocked() *playback.Controller {
	s.playerOnce.Do(func() {
		var videoID string
		var start int
		for st, l := range s.index.All() {
			videoID, start = l.VideoID, st.StartTime
			break
		}
		opts := []playback.Option{playback.WithLogger(s.opts.Logger)}
		if s.opts.Recorder != nil {
			opts = append(opts, playback.WithRecorder(s.opts.Recorder))
		}
		s.player = playback.New(s.opts.ElementID, videoID, start, opts...)
	})
	return s.player
}

// LastUsed is the time of the most recent user interaction.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Touch marks the session as in use.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

func (s *Session) touchLocked() {
	s.lastUsed = s.opts.Clock.Now()
}

// Close releases the player. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	player := s.player
	s.mu.Unlock()
	if player != nil {
		player.Close()
	}
}

// Info is a point-in-time summary of a session.
type Info struct {
	ID          string           `json:"id"`
	ActiveLine  *railway.LineKey `json:"activeLine,omitempty"`
	Stations    int              `json:"stations"`
	LastUsed    time.Time        `json:"lastUsed"`
	PlayerReady bool             `json:"playerReady"`
	Pending     int              `json:"pending"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	player := s.playbackLocked()
	info := Info{
		ID:          s.id,
		Stations:    s.index.Len(),
		LastUsed:    s.lastUsed,
		PlayerReady: player.IsReady(),
		Pending:     len(player.Pending()),
	}
	if line, ok := s.selection.Active(s.index); ok {
		key := line.Key()
		info.ActiveLine = &key
	}
	return info
}

func (s *Session) record(fn func(Recorder)) {
	if s.opts.Recorder != nil {
		fn(s.opts.Recorder)
	}
}
