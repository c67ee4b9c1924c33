package restapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabview.railmap.org/internal/mapview"
	"cabview.railmap.org/internal/playback"
	"cabview.railmap.org/internal/railway"
)

func (ta *testAPI) createSession(t *testing.T) sessionResponse {
	t.Helper()
	rr := ta.serveJSON(t, http.MethodPost, "/api/map/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var s sessionResponse
	decodeEntry(t, rr, &s)
	return s
}

func TestCreateSessionHandler(t *testing.T) {
	api := createTestApi(t)
	api.seedLine(t, yamanoteLine("alice"))

	s := api.createSession(t)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, mapview.DefaultElementID, s.ElementID)
	require.Len(t, s.Lines, 1)
	assert.Equal(t, "JR山手線", s.Lines[0].LineName)
	assert.Equal(t, 1, api.Registry.Len())

	rr := api.serveJSON(t, http.MethodGet, "/api/map/sessions/"+s.ID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var info mapview.Info
	decodeEntry(t, rr, &info)
	assert.Equal(t, s.ID, info.ID)
	assert.Equal(t, 3, info.Stations)
	assert.Nil(t, info.ActiveLine)

	rr = api.serveJSON(t, http.MethodDelete, "/api/map/sessions/"+s.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, api.Registry.Len())

	rr = api.serveJSON(t, http.MethodGet, "/api/map/sessions/"+s.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.serveJSON(t, http.MethodDelete, "/api/map/sessions/"+s.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClickHandler(t *testing.T) {
	api := createTestApi(t)
	api.seedLine(t, yamanoteLine("alice"))
	s := api.createSession(t)
	path := "/api/map/sessions/" + s.ID + "/click"

	t.Run("far click without a line selected", func(t *testing.T) {
		rr := api.serveJSON(t, http.MethodPost, path, map[string]float64{"lat": 35.686282, "lon": 139.768372}, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var result mapview.ClickResult
		decodeEntry(t, rr, &result)
		assert.Equal(t, mapview.OutcomeNone, result.Outcome)
	})

	t.Run("click near a station", func(t *testing.T) {
		rr := api.serveJSON(t, http.MethodPost, path, map[string]float64{"lat": 35.6815, "lon": 139.7662}, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var result mapview.ClickResult
		decodeEntry(t, rr, &result)
		assert.Equal(t, mapview.OutcomeStation, result.Outcome)
		require.NotNil(t, result.Station)
		assert.Equal(t, "東京", result.Station.Name)
		assert.Equal(t, "aaaaaaaaaaa", result.VideoID)
		assert.Equal(t, 0, result.StartSeconds)
		assert.Less(t, result.Distance, 100.0)
		assert.Equal(t, "queued", result.Playback, "no player is connected yet")
	})

	t.Run("far click interpolates along the active line", func(t *testing.T) {
		rr := api.serveJSON(t, http.MethodPost, path, map[string]float64{"lat": 35.686282, "lon": 139.768372}, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var result mapview.ClickResult
		decodeEntry(t, rr, &result)
		assert.Equal(t, mapview.OutcomeInterpolated, result.Outcome)
		assert.Nil(t, result.Station)
		assert.InDelta(t, 47, result.StartSeconds, 2)
	})

	tests := []struct {
		name string
		body any
	}{
		{"missing lon", map[string]float64{"lat": 35.68}},
		{"latitude out of range", map[string]float64{"lat": 91, "lon": 139.7}},
		{"longitude out of range", map[string]float64{"lat": 35.68, "lon": 181}},
		{"not JSON", "lat=35"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.serveJSON(t, http.MethodPost, path, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	rr := api.serveJSON(t, http.MethodPost, "/api/map/sessions/missing/click", map[string]float64{"lat": 35.68, "lon": 139.76}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSelectionHandlers(t *testing.T) {
	api := createTestApi(t)
	api.seedLine(t, yamanoteLine("alice"))
	s := api.createSession(t)
	path := "/api/map/sessions/" + s.ID + "/selection"
	key := railway.LineKey{VideoID: "aaaaaaaaaaa", LineCode: "11302"}

	rr := api.serveJSON(t, http.MethodPut, path, key, "")
	require.Equal(t, http.StatusOK, rr.Code)

	session, ok := api.Registry.Get(s.ID)
	require.True(t, ok)
	active, ok := session.ActiveLine()
	require.True(t, ok)
	assert.Equal(t, key, active.Key())

	rr = api.serveJSON(t, http.MethodPut, path, railway.LineKey{VideoID: "aaaaaaaaaaa", LineCode: "99999"}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.serveJSON(t, http.MethodPut, path, map[string]string{"videoId": "aaaaaaaaaaa"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.serveJSON(t, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, ok = session.ActiveLine()
	assert.False(t, ok)
}

func TestPlayHandler(t *testing.T) {
	api := createTestApi(t)
	s := api.createSession(t)
	path := "/api/map/sessions/" + s.ID + "/play"

	rr := api.serveJSON(t, http.MethodPost, path, map[string]any{"videoId": "bbbbbbbbbbb", "startSeconds": 95}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out playResponse
	decodeEntry(t, rr, &out)
	assert.Equal(t, "queued", out.Playback)

	rr = api.serveJSON(t, http.MethodPost, path, map[string]any{"videoId": "bad", "startSeconds": 1}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.serveJSON(t, http.MethodPost, path, map[string]any{"videoId": "bbbbbbbbbbb", "startSeconds": -1}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlayerWebSocketFlushesQueuedLoadOnReady(t *testing.T) {
	api := createTestApi(t)
	api.seedLine(t, yamanoteLine("alice"))
	s := api.createSession(t)

	server := httptest.NewServer(api.handler)
	t.Cleanup(server.Close)

	rr := api.serveJSON(t, http.MethodPost, "/api/map/sessions/"+s.ID+"/play",
		map[string]any{"videoId": "aaaaaaaaaaa", "startSeconds": 95}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/map/sessions/" + s.ID + "/player"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, resp.Body.Close())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg playback.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, playback.MessageInit, msg.Type)
	assert.Equal(t, s.ElementID, msg.ElementID)

	require.NoError(t, conn.WriteJSON(playback.Message{Type: playback.MessageReady}))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, playback.MessageLoad, msg.Type)
	assert.Equal(t, "aaaaaaaaaaa", msg.VideoID)
	assert.Equal(t, 95, msg.StartSeconds)

	rr = api.serveJSON(t, http.MethodPost, "/api/map/sessions/"+s.ID+"/click",
		map[string]float64{"lat": 35.691173, "lon": 139.770641}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, playback.MessageLoad, msg.Type)
	assert.Equal(t, 95, msg.StartSeconds, "clicking 神田 seeks to its start time")
}

func TestPlayerWebSocketUnknownSession(t *testing.T) {
	api := createTestApi(t)
	server := httptest.NewServer(api.handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/map/sessions/nope/player"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}
