package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	mu    sync.Mutex
	loads []Command
	err   error
}

func (p *fakePlayer) Load(_ context.Context, videoID string, startSeconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.loads = append(p.loads, Command{VideoID: videoID, StartSeconds: startSeconds})
	return nil
}

func (p *fakePlayer) Loads() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Command(nil), p.loads...)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordPlaybackCommand(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[state]++
}

func TestController_QueuesUntilReady(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	c := New("player", "aaaaaaaaaaa", 5, WithRecorder(rec))
	p := &fakePlayer{}

	assert.Equal(t, Queued, c.LoadVideo(ctx, "bbbbbbbbbbb", 30))

	c.Attach(p)
	assert.Equal(t, Queued, c.LoadVideo(ctx, "ccccccccccc", 60))
	assert.Empty(t, p.Loads())

	c.MarkReady(ctx)
	assert.Equal(t, []Command{
		{VideoID: "aaaaaaaaaaa", StartSeconds: 5},
		{VideoID: "bbbbbbbbbbb", StartSeconds: 30},
		{VideoID: "ccccccccccc", StartSeconds: 60},
	}, p.Loads())
	assert.Empty(t, c.Pending())

	assert.Equal(t, Sent, c.LoadVideo(ctx, "ddddddddddd", 90))
	assert.Len(t, p.Loads(), 4)

	assert.Equal(t, 2, rec.counts["queued"])
	assert.Equal(t, 4, rec.counts["sent"])
}

func TestController_MarkReadyWithoutPlayer(t *testing.T) {
	c := New("player", "aaaaaaaaaaa", 0)
	c.MarkReady(context.Background())

	assert.False(t, c.IsReady())
	assert.Len(t, c.Pending(), 1)
}

func TestController_MarkReadyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := New("player", "aaaaaaaaaaa", 0)
	p := &fakePlayer{}
	c.Attach(p)

	c.MarkReady(ctx)
	c.MarkReady(ctx)
	assert.Len(t, p.Loads(), 1)
}

func TestController_NegativeStartClamped(t *testing.T) {
	ctx := context.Background()
	c := New("player", "", 0)
	p := &fakePlayer{}
	c.Attach(p)
	c.MarkReady(ctx)

	assert.Equal(t, Sent, c.LoadVideo(ctx, "aaaaaaaaaaa", -4))
	assert.Equal(t, []Command{{VideoID: "aaaaaaaaaaa", StartSeconds: 0}}, p.Loads())
}

func TestController_PlayerErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	c := New("player", "", 0, WithRecorder(rec))
	c.Attach(&fakePlayer{err: errors.New("widget missing loadVideoById")})
	c.MarkReady(ctx)

	assert.Equal(t, Failed, c.LoadVideo(ctx, "aaaaaaaaaaa", 10))
	assert.Equal(t, 1, rec.counts["failed"])

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "aaaaaaaaaaa", cur.VideoID)
}

func TestController_EmptyVideoIDFails(t *testing.T) {
	c := New("player", "", 0)
	assert.Equal(t, Failed, c.LoadVideo(context.Background(), "", 10))
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestController_QueueLimitDropsOldest(t *testing.T) {
	ctx := context.Background()
	c := New("player", "", 0, WithQueueLimit(2))

	c.LoadVideo(ctx, "aaaaaaaaaaa", 1)
	c.LoadVideo(ctx, "bbbbbbbbbbb", 2)
	c.LoadVideo(ctx, "ccccccccccc", 3)

	assert.Equal(t, []Command{
		{VideoID: "bbbbbbbbbbb", StartSeconds: 2},
		{VideoID: "ccccccccccc", StartSeconds: 3},
	}, c.Pending())
}

func TestController_DetachRequeues(t *testing.T) {
	ctx := context.Background()
	c := New("player", "aaaaaaaaaaa", 0)
	first := &fakePlayer{}
	c.Attach(first)
	c.MarkReady(ctx)
	c.LoadVideo(ctx, "bbbbbbbbbbb", 42)

	c.Detach(first)
	assert.False(t, c.IsReady())
	assert.Equal(t, Queued, c.LoadVideo(ctx, "ccccccccccc", 7))

	second := &fakePlayer{}
	c.Attach(second)
	c.MarkReady(ctx)
	assert.Equal(t, []Command{{VideoID: "ccccccccccc", StartSeconds: 7}}, second.Loads())
}

func TestController_ReattachResumesCurrent(t *testing.T) {
	ctx := context.Background()
	c := New("player", "aaaaaaaaaaa", 0)
	first := &fakePlayer{}
	c.Attach(first)
	c.MarkReady(ctx)
	c.LoadVideo(ctx, "bbbbbbbbbbb", 42)
	c.Detach(first)

	second := &fakePlayer{}
	c.Attach(second)
	c.MarkReady(ctx)
	assert.Equal(t, []Command{{VideoID: "bbbbbbbbbbb", StartSeconds: 42}}, second.Loads())
}

func TestController_DetachOtherPlayerIgnored(t *testing.T) {
	ctx := context.Background()
	c := New("player", "", 0)
	p := &fakePlayer{}
	c.Attach(p)
	c.MarkReady(ctx)

	c.Detach(&fakePlayer{})
	assert.True(t, c.IsReady())
}

func TestController_WaitReady(t *testing.T) {
	c := New("player", "aaaaaaaaaaa", 0)
	c.Attach(&fakePlayer{})

	errCh := make(chan error, 1)
	go func() { errCh <- c.WaitReady(context.Background()) }()

	c.MarkReady(context.Background())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return")
	}
}

func TestController_WaitReadyContextDone(t *testing.T) {
	c := New("player", "aaaaaaaaaaa", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, c.WaitReady(ctx), context.DeadlineExceeded)
}

func TestController_Close(t *testing.T) {
	ctx := context.Background()
	c := New("player", "aaaaaaaaaaa", 0)
	c.Attach(&fakePlayer{})

	c.Close()
	c.Close()

	assert.ErrorIs(t, c.WaitReady(ctx), ErrClosed)
	assert.Equal(t, Failed, c.LoadVideo(ctx, "bbbbbbbbbbb", 0))
	assert.Empty(t, c.Pending())
}
