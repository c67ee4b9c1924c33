package mapview

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabview.railmap.org/internal/playback"
	"cabview.railmap.org/internal/railway"
	"cabview.railmap.org/internal/resolver"
	"cabview.railmap.org/internal/stationindex"
)

func lineL1() railway.Line {
	return railway.Line{
		VideoID:  "aaaaaaaaaaa",
		LineName: "L1",
		LineCode: "1",
		Stations: []railway.Station{
			{Code: "A", Name: "A", StartTime: 0, Lat: 35.0, Lon: 139.0},
			{Code: "B", Name: "B", StartTime: 60, Lat: 35.01, Lon: 139.0},
		},
	}
}

func lineL2() railway.Line {
	return railway.Line{
		VideoID:  "bbbbbbbbbbb",
		LineName: "L2",
		LineCode: "2",
		Stations: []railway.Station{
			{Code: "C", Name: "C", StartTime: 100, Lat: 35.0, Lon: 139.02},
			{Code: "D", Name: "D", StartTime: 400, Lat: 35.01, Lon: 139.02},
		},
	}
}

type recordingPlayer struct {
	mu    sync.Mutex
	loads []playback.Command
}

func (p *recordingPlayer) Load(_ context.Context, videoID string, startSeconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads = append(p.loads, playback.Command{VideoID: videoID, StartSeconds: startSeconds})
	return nil
}

func (p *recordingPlayer) last() (playback.Command, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.loads) == 0 {
		return playback.Command{}, 0
	}
	return p.loads[len(p.loads)-1], len(p.loads)
}

type fakeRecorder struct {
	mu       sync.Mutex
	clicks   map[string]int
	commands map[string]int
	stations int
	sessions int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{clicks: map[string]int{}, commands: map[string]int{}}
}

func (r *fakeRecorder) RecordClick(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks[o]++
}

func (r *fakeRecorder) RecordPlaybackCommand(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[s]++
}

func (r *fakeRecorder) SetIndexStations(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations = n
}

func (r *fakeRecorder) SetMapSessions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = n
}

// readySession returns a session whose player is attached and ready, with
// the bootstrap load already flushed.
func readySession(t *testing.T, lines []railway.Line, opts Options) (*Session, *recordingPlayer) {
	t.Helper()
	s := NewSession("test", stationindex.Build(lines), opts)
	p := &recordingPlayer{}
	s.Playback().Attach(p)
	s.Playback().MarkReady(context.Background())
	return s, p
}

func TestHandleClick_StationMatch(t *testing.T) {
	ctx := context.Background()
	s, p := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{})

	res := s.HandleClick(ctx, railway.Point{Lat: 35.0099, Lon: 139.0})
	assert.Equal(t, OutcomeStation, res.Outcome)
	require.NotNil(t, res.Station)
	assert.Equal(t, "B", res.Station.Code)
	assert.Equal(t, 60, res.StartSeconds)
	assert.Equal(t, "aaaaaaaaaaa", res.VideoID)
	assert.Equal(t, "sent", res.Playback)

	active, ok := s.ActiveLine()
	require.True(t, ok)
	assert.Equal(t, lineL1().Key(), active.Key())

	last, _ := p.last()
	assert.Equal(t, playback.Command{VideoID: "aaaaaaaaaaa", StartSeconds: 60}, last)
}

func TestHandleClick_NoActiveLineNoMatch(t *testing.T) {
	ctx := context.Background()
	s, p := readySession(t, []railway.Line{lineL1()}, Options{ThresholdMeters: 100})
	_, before := p.last()

	// About 200m south of A.
	res := s.HandleClick(ctx, railway.Point{Lat: 34.9982, Lon: 139.0})
	assert.Equal(t, OutcomeNone, res.Outcome)

	_, after := p.last()
	assert.Equal(t, before, after, "no playback change")
	_, ok := s.ActiveLine()
	assert.False(t, ok)
}

func TestHandleClick_InterpolatesOnActiveLine(t *testing.T) {
	ctx := context.Background()
	s, p := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{})

	require.NoError(t, s.SelectLine(lineL2().Key()))

	// Off-station click between A and B of L1; only L2 may be used.
	res := s.HandleClick(ctx, railway.Point{Lat: 35.005, Lon: 139.0})
	assert.Equal(t, OutcomeInterpolated, res.Outcome)
	assert.Equal(t, "bbbbbbbbbbb", res.VideoID)
	assert.InDelta(t, 250, res.StartSeconds, 1)

	last, _ := p.last()
	assert.Equal(t, "bbbbbbbbbbb", last.VideoID)
}

func TestHandleClick_StationMatchBeatsActiveLine(t *testing.T) {
	ctx := context.Background()
	s, _ := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{})
	require.NoError(t, s.SelectLine(lineL2().Key()))

	res := s.HandleClick(ctx, railway.Point{Lat: 35.0, Lon: 139.0})
	assert.Equal(t, OutcomeStation, res.Outcome)
	assert.Equal(t, "A", res.Station.Code)

	active, ok := s.ActiveLine()
	require.True(t, ok)
	assert.Equal(t, lineL1().Key(), active.Key())
}

func TestHandleClick_InterpolationAtStationOfActiveLine(t *testing.T) {
	ctx := context.Background()
	s, _ := readySession(t, []railway.Line{lineL1()}, Options{ThresholdMeters: 1})
	require.NoError(t, s.SelectLine(lineL1().Key()))

	res := s.HandleClick(ctx, railway.Point{Lat: 35.00001, Lon: 139.0})
	assert.Equal(t, OutcomeInterpolated, res.Outcome)
	assert.Equal(t, 0, res.StartSeconds)
}

func TestHandleClick_ActiveLineTooShort(t *testing.T) {
	short := railway.Line{
		VideoID:  "ccccccccccc",
		LineCode: "3",
		Stations: []railway.Station{{Code: "X", StartTime: 5, Lat: 35.0, Lon: 139.0}},
	}
	s, _ := readySession(t, []railway.Line{short}, Options{})
	require.NoError(t, s.SelectLine(short.Key()))

	res := s.HandleClick(context.Background(), railway.Point{Lat: 35.1, Lon: 139.0})
	assert.Equal(t, OutcomeNone, res.Outcome)
}

func TestSelectLine_Unknown(t *testing.T) {
	s, _ := readySession(t, []railway.Line{lineL1()}, Options{})
	assert.ErrorIs(t, s.SelectLine(railway.LineKey{VideoID: "x", LineCode: "y"}), ErrUnknownLine)
}

func TestSelectLine_DoesNotTouchPlayback(t *testing.T) {
	s, p := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{})
	_, before := p.last()

	require.NoError(t, s.SelectLine(lineL2().Key()))
	_, after := p.last()
	assert.Equal(t, before, after)
}

func TestClearSelection(t *testing.T) {
	s, _ := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{})
	require.NoError(t, s.SelectLine(lineL1().Key()))
	s.ClearSelection()

	_, ok := s.ActiveLine()
	assert.False(t, ok)

	res := s.HandleClick(context.Background(), railway.Point{Lat: 35.005, Lon: 139.0})
	assert.Equal(t, OutcomeNone, res.Outcome)
}

func TestReload_ClearsSelection(t *testing.T) {
	s, _ := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{})
	require.NoError(t, s.SelectLine(lineL1().Key()))

	s.Reload(stationindex.Build([]railway.Line{lineL1(), lineL2()}))
	_, ok := s.ActiveLine()
	assert.False(t, ok)

	s.Reload(nil)
	assert.Equal(t, 0, s.Index().Len())
}

func TestPlayback_QueuesBeforeReady(t *testing.T) {
	ctx := context.Background()
	s := NewSession("test", stationindex.Build([]railway.Line{lineL2(), lineL1()}), Options{})

	res := s.HandleClick(ctx, railway.Point{Lat: 35.0, Lon: 139.0})
	assert.Equal(t, "queued", res.Playback)

	p := &recordingPlayer{}
	s.Playback().Attach(p)
	s.Playback().MarkReady(ctx)

	assert.Equal(t, []playback.Command{
		{VideoID: "bbbbbbbbbbb", StartSeconds: 100},
		{VideoID: "aaaaaaaaaaa", StartSeconds: 0},
	}, p.loads)
}

func TestPlayback_SameControllerEveryTime(t *testing.T) {
	s := NewSession("test", nil, Options{})
	assert.Same(t, s.Playback(), s.Playback())
}

func TestClose_WithoutController(t *testing.T) {
	s := NewSession("test", nil, Options{})
	s.Close()
	assert.Nil(t, s.player)
}

func TestClose_ClosesController(t *testing.T) {
	s := NewSession("test", nil, Options{})
	player := s.Playback()
	s.Close()
	assert.ErrorIs(t, player.WaitReady(context.Background()), playback.ErrClosed)
}

func TestPlay(t *testing.T) {
	s, p := readySession(t, []railway.Line{lineL1()}, Options{})
	assert.Equal(t, playback.Sent, s.Play(context.Background(), "zzzzzzzzzzz", 33))

	last, _ := p.last()
	assert.Equal(t, playback.Command{VideoID: "zzzzzzzzzzz", StartSeconds: 33}, last)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec := newFakeRecorder()
	s, _ := readySession(t, []railway.Line{lineL1()}, Options{Recorder: rec})

	s.HandleClick(ctx, railway.Point{Lat: 35.0, Lon: 139.0})
	s.HandleClick(ctx, railway.Point{Lat: 36.0, Lon: 139.0})

	assert.Equal(t, 1, rec.clicks["station"])
	assert.Equal(t, 1, rec.clicks["none"])
	assert.Equal(t, 2, rec.commands["sent"])
}

func TestSpatialStrategyBehavesTheSame(t *testing.T) {
	ctx := context.Background()
	linear, _ := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{})
	indexed, _ := readySession(t, []railway.Line{lineL1(), lineL2()}, Options{Nearest: resolver.NearestIndexed})

	for _, click := range []railway.Point{
		{Lat: 35.0, Lon: 139.0},
		{Lat: 35.005, Lon: 139.0},
		{Lat: 35.0095, Lon: 139.02},
		{Lat: 35.005, Lon: 139.01},
	} {
		assert.Equal(t, linear.HandleClick(ctx, click), indexed.HandleClick(ctx, click))
	}
}

func TestInfo(t *testing.T) {
	s, _ := readySession(t, []railway.Line{lineL1()}, Options{})
	require.NoError(t, s.SelectLine(lineL1().Key()))

	info := s.Info()
	assert.Equal(t, "test", info.ID)
	assert.Equal(t, 2, info.Stations)
	assert.True(t, info.PlayerReady)
	require.NotNil(t, info.ActiveLine)
	assert.Equal(t, lineL1().Key(), *info.ActiveLine)
}
