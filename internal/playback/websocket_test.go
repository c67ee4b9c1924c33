package playback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servePlayer(t *testing.T, c *Controller) (*websocket.Conn, chan error) {
	t.Helper()

	upgrader := NewUpgrader(nil)
	served := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		served <- Serve(r.Context(), conn, c, nil)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, served
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServe_FlushesOnReady(t *testing.T) {
	c := New("map-player", "aaaaaaaaaaa", 12)
	conn, served := servePlayer(t, c)

	hello := readMessage(t, conn)
	assert.Equal(t, MessageInit, hello.Type)
	assert.Equal(t, "map-player", hello.ElementID)

	assert.Equal(t, Queued, c.LoadVideo(context.Background(), "bbbbbbbbbbb", 30))

	require.NoError(t, conn.WriteJSON(Message{Type: MessageReady}))

	first := readMessage(t, conn)
	assert.Equal(t, Message{Type: MessageLoad, VideoID: "aaaaaaaaaaa", StartSeconds: 12}, first)
	second := readMessage(t, conn)
	assert.Equal(t, Message{Type: MessageLoad, VideoID: "bbbbbbbbbbb", StartSeconds: 30}, second)

	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("controller never became ready")
	}

	assert.Equal(t, Sent, c.LoadVideo(context.Background(), "ccccccccccc", 45))
	third := readMessage(t, conn)
	assert.Equal(t, "ccccccccccc", third.VideoID)
	assert.Equal(t, 45, third.StartSeconds)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after close")
	}
	assert.False(t, c.IsReady())
}

func TestServe_InvalidMessage(t *testing.T) {
	c := New("map-player", "", 0)
	conn, _ := servePlayer(t, c)

	_ = readMessage(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.False(t, c.IsReady())
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://cabview.example")

	assert.True(t, NewUpgrader(nil).CheckOrigin(req))
	assert.True(t, NewUpgrader([]string{"*"}).CheckOrigin(req))
	assert.True(t, NewUpgrader([]string{"https://cabview.example"}).CheckOrigin(req))
	assert.False(t, NewUpgrader([]string{"https://other.example"}).CheckOrigin(req))
}
