package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabview.railmap.org/internal/clock"
	"cabview.railmap.org/internal/playback"
	"cabview.railmap.org/internal/railway"
)

func staticSource(lines ...railway.Line) LineSource {
	return LineSourceFunc(func(context.Context) ([]railway.Line, error) {
		return lines, nil
	})
}

func TestLoadLines(t *testing.T) {
	ctx := context.Background()

	lines := LoadLines(ctx, staticSource(lineL1()), nil)
	assert.Len(t, lines, 1)

	failing := LineSourceFunc(func(context.Context) ([]railway.Line, error) {
		return nil, errors.New("connection refused")
	})
	lines = LoadLines(ctx, failing, nil)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	assert.Empty(t, LoadLines(ctx, nil, nil))
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	rec := newFakeRecorder()
	r := NewRegistry(staticSource(lineL1()), Options{Recorder: rec}, 0)
	defer r.Close()
	assert.Equal(t, 2, r.Reload(context.Background()))

	s := r.Create()
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, 2, s.Index().Len())
	assert.Equal(t, 1, rec.sessions)
	assert.Equal(t, 2, rec.stations)

	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	other := r.Create()
	assert.NotEqual(t, s.ID(), other.ID())
	assert.NotSame(t, s.Playback(), other.Playback())
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Remove(s.ID()))
	assert.False(t, r.Remove(s.ID()))
	_, ok = r.Get(s.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, rec.sessions)
}

func TestRegistry_ReloadClearsSelections(t *testing.T) {
	lines := []railway.Line{lineL1()}
	src := LineSourceFunc(func(context.Context) ([]railway.Line, error) { return lines, nil })
	r := NewRegistry(src, Options{}, 0)
	defer r.Close()
	r.Reload(context.Background())

	s := r.Create()
	require.NoError(t, s.SelectLine(lineL1().Key()))

	lines = []railway.Line{lineL1(), lineL2()}
	assert.Equal(t, 4, r.Reload(context.Background()))

	_, ok := s.ActiveLine()
	assert.False(t, ok)
	assert.Equal(t, 4, s.Index().Len())
	assert.Same(t, r.Index(), s.Index())
}

func TestRegistry_ReloadFailureDegradesToEmpty(t *testing.T) {
	fail := false
	src := LineSourceFunc(func(context.Context) ([]railway.Line, error) {
		if fail {
			return nil, errors.New("timeout")
		}
		return []railway.Line{lineL1()}, nil
	})
	r := NewRegistry(src, Options{}, 0)
	defer r.Close()
	r.Reload(context.Background())
	s := r.Create()

	fail = true
	assert.Equal(t, 0, r.Reload(context.Background()))
	assert.Equal(t, 0, s.Index().Len())

	res := s.HandleClick(context.Background(), railway.Point{Lat: 35.0, Lon: 139.0})
	assert.Equal(t, OutcomeNone, res.Outcome)
}

func TestRegistry_ReloadIsOrderStable(t *testing.T) {
	r := NewRegistry(staticSource(lineL1(), lineL2()), Options{}, 0)
	defer r.Close()

	r.Reload(context.Background())
	first := r.Index().Entries()
	r.Reload(context.Background())
	assert.Equal(t, first, r.Index().Entries())
}

func TestRegistry_ConcurrentReloadsKeepNewestLines(t *testing.T) {
	var (
		mu    sync.Mutex
		lines = []railway.Line{lineL1()}
		calls int
	)
	firstStarted := make(chan struct{})
	secondFetched := make(chan struct{})
	release := make(chan struct{})

	src := LineSourceFunc(func(context.Context) ([]railway.Line, error) {
		mu.Lock()
		calls++
		call := calls
		snapshot := append([]railway.Line(nil), lines...)
		mu.Unlock()

		switch call {
		case 1:
			close(firstStarted)
			<-release
		case 2:
			close(secondFetched)
		}
		return snapshot, nil
	})
	r := NewRegistry(src, Options{}, 0)
	defer r.Close()
	s := r.Create()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.Reload(context.Background())
	}()
	<-firstStarted

	mu.Lock()
	lines = []railway.Line{lineL1(), lineL2()}
	mu.Unlock()
	go func() {
		defer wg.Done()
		r.Reload(context.Background())
	}()

	select {
	case <-secondFetched:
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	assert.Equal(t, 4, r.Index().Len())
	assert.Equal(t, 4, s.Index().Len())
	_, ok := r.Index().Line(lineL2().Key())
	assert.True(t, ok)
}

func TestRegistry_SweepIdle(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(staticSource(lineL1()), Options{Clock: mock}, 10*time.Minute)
	defer r.Close()

	idle := r.Create()
	active := r.Create()

	mock.Advance(6 * time.Minute)
	active.Touch()
	mock.Advance(6 * time.Minute)

	assert.Equal(t, 1, r.SweepIdle())
	_, ok := r.Get(idle.ID())
	assert.False(t, ok)
	_, ok = r.Get(active.ID())
	assert.True(t, ok)

	assert.ErrorIs(t, idle.Playback().WaitReady(context.Background()), playback.ErrClosed)
}

func TestRegistry_Sessions(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(staticSource(lineL1()), Options{Clock: mock}, 0)
	defer r.Close()
	r.Reload(context.Background())

	first := r.Create()
	mock.Advance(time.Second)
	second := r.Create()

	infos := r.Sessions()
	require.Len(t, infos, 2)
	assert.Equal(t, first.ID(), infos[0].ID)
	assert.Equal(t, second.ID(), infos[1].ID)
}

func TestRegistry_StartSweeperAndClose(t *testing.T) {
	r := NewRegistry(staticSource(), Options{}, time.Millisecond)
	s := r.Create()
	r.StartSweeper(5 * time.Millisecond)
	r.StartSweeper(5 * time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := r.Get(s.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}
