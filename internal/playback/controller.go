// Package playback drives the single video player of a map view.
//
// A Controller is created by the map view that owns it and is never shared.
// The player itself lives in the browser and boots asynchronously: load
// requests made before it reports ready are queued and flushed in order once
// MarkReady is called.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cabview.railmap.org/internal/logging"
)

// DefaultQueueLimit bounds the commands held while the player is not ready.
const DefaultQueueLimit = 32

// ErrClosed is returned by WaitReady once the controller has been closed.
var ErrClosed = errors.New("playback controller closed")

// Player is the external video widget.
type Player interface {
	Load(ctx context.Context, videoID string, startSeconds int) error
}

// Command is one request to show a video from a given second.
type Command struct {
	VideoID      string `json:"videoId"`
	StartSeconds int    `json:"startSeconds"`
}

// LoadState is the outcome of a LoadVideo call.
type LoadState int

const (
	Sent LoadState = iota
	Queued
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Sent:
		return "sent"
	case Queued:
		return "queued"
	default:
		return "failed"
	}
}

// Recorder receives one observation per LoadVideo call.
type Recorder interface {
	RecordPlaybackCommand(state string)
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithQueueLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.queueLimit = n
		}
	}
}

type Controller struct {
	mu         sync.Mutex
	elementID  string
	player     Player
	ready      bool
	readyCh    chan struct{}
	closed     bool
	queue      []Command
	queueLimit int
	current    Command
	logger     *slog.Logger
	recorder   Recorder
}

// New creates the controller for the player mounted at elementID. The initial
// video is queued so that it is the first thing the player shows once ready.
func New(elementID, videoID string, startSeconds int, opts ...Option) *Controller {
	c := &Controller{
		elementID:  elementID,
		readyCh:    make(chan struct{}),
		queueLimit: DefaultQueueLimit,
		logger:     logging.WithComponent(slog.Default(), "playback"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("element_id", elementID))

	if videoID != "" {
		cmd := Command{VideoID: videoID, StartSeconds: max(startSeconds, 0)}
		c.queue = append(c.queue, cmd)
		c.current = cmd
	}
	return c
}

func (c *Controller) ElementID() string {
	return c.elementID
}

// Attach connects a player. Until MarkReady is called, loads are queued. If
// nothing is pending, the current video is queued so a newly attached player
// resumes where the view was.
func (c *Controller) Attach(p Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.player = p
	c.resetReadyLocked()
	if len(c.queue) == 0 && c.current.VideoID != "" {
		c.queue = append(c.queue, c.current)
	}
}

// Detach disconnects p if it is the attached player. Later loads are queued
// until another player is attached and ready.
func (c *Controller) Detach(p Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player != p {
		return
	}
	c.player = nil
	c.resetReadyLocked()
}

func (c *Controller) resetReadyLocked() {
	if c.ready {
		c.ready = false
		c.readyCh = make(chan struct{})
	}
}

// MarkReady records that the attached player finished booting and flushes
// queued loads in the order they were requested. It is a no-op without a
// player or when already ready.
func (c *Controller) MarkReady(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.player == nil || c.ready {
		return
	}
	c.ready = true
	close(c.readyCh)

	pending := c.queue
	c.queue = nil
	if len(pending) > 0 {
		c.logger.Debug("flushing queued loads", slog.Int("count", len(pending)))
	}
	for _, cmd := range pending {
		c.sendLocked(ctx, cmd)
	}
}

// Ready is closed once the current player has reported ready.
func (c *Controller) Ready() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyCh
}

// IsReady reports whether loads are currently sent straight to the player.
func (c *Controller) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// WaitReady blocks until the player is ready, ctx is done or the controller
// is closed.
func (c *Controller) WaitReady(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		ch := c.readyCh
		c.mu.Unlock()

		select {
		case <-ch:
			if c.IsReady() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// LoadVideo switches the player to videoID at startSeconds. Negative start
// times are clamped to zero. Player errors are logged and reported as Failed,
// never returned.
func (c *Controller) LoadVideo(ctx context.Context, videoID string, startSeconds int) LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || videoID == "" {
		c.logger.Warn("load ignored",
			slog.String("video_id", videoID),
			slog.Bool("closed", c.closed))
		c.record(Failed)
		return Failed
	}

	cmd := Command{VideoID: videoID, StartSeconds: max(startSeconds, 0)}
	c.current = cmd

	if !c.ready {
		if len(c.queue) >= c.queueLimit {
			dropped := c.queue[0]
			c.queue = append(c.queue[:0], c.queue[1:]...)
			c.logger.Warn("playback queue full, dropping oldest load",
				slog.String("video_id", dropped.VideoID),
				slog.Int("start_seconds", dropped.StartSeconds))
		}
		c.queue = append(c.queue, cmd)
		c.record(Queued)
		return Queued
	}

	return c.sendLocked(ctx, cmd)
}

func (c *Controller) sendLocked(ctx context.Context, cmd Command) LoadState {
	if err := c.player.Load(ctx, cmd.VideoID, cmd.StartSeconds); err != nil {
		logging.LogError(c.logger, "player rejected load", err,
			slog.String("video_id", cmd.VideoID),
			slog.Int("start_seconds", cmd.StartSeconds))
		c.record(Failed)
		return Failed
	}
	c.record(Sent)
	return Sent
}

func (c *Controller) record(state LoadState) {
	if c.recorder != nil {
		c.recorder.RecordPlaybackCommand(state.String())
	}
}

// Current returns the most recently requested video.
func (c *Controller) Current() (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current.VideoID != ""
}

// Pending returns a copy of the queued commands.
func (c *Controller) Pending() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Command(nil), c.queue...)
}

// Close detaches the player and drops pending loads. An in-flight load is not
// cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.player = nil
	if len(c.queue) > 0 {
		c.logger.Debug("discarding queued loads on close", slog.Int("count", len(c.queue)))
	}
	c.queue = nil
	if !c.ready {
		close(c.readyCh)
	}
	c.ready = false
}
