package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cabview.railmap.org/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Message types on the player channel.
const (
	MessageInit  = "init"
	MessageLoad  = "load"
	MessageReady = "ready"
	MessageState = "state"
	MessageError = "error"
)

// Message is the JSON frame exchanged with the browser widget.
type Message struct {
	Type         string `json:"type"`
	ElementID    string `json:"elementId,omitempty"`
	VideoID      string `json:"videoId,omitempty"`
	StartSeconds int    `json:"startSeconds"`
	State        string `json:"state,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NewUpgrader returns an upgrader that accepts the listed origins. An empty
// list or "*" accepts any origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// WebSocketPlayer forwards load commands to a browser widget.
type WebSocketPlayer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewWebSocketPlayer(conn *websocket.Conn) *WebSocketPlayer {
	return &WebSocketPlayer{conn: conn}
}

// Load implements Player.
func (p *WebSocketPlayer) Load(ctx context.Context, videoID string, startSeconds int) error {
	return p.send(ctx, Message{Type: MessageLoad, VideoID: videoID, StartSeconds: startSeconds})
}

func (p *WebSocketPlayer) send(ctx context.Context, msg Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = p.conn.SetWriteDeadline(deadline)
	if err := p.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s message: %w", msg.Type, err)
	}
	return nil
}

func (p *WebSocketPlayer) ping() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.PingMessage, nil)
}

// Serve attaches conn to c as its player and runs until the browser goes
// away or ctx is done. The widget is told which element to mount in and
// signals readiness with a "ready" message, at which point queued loads are
// flushed.
func Serve(ctx context.Context, conn *websocket.Conn, c *Controller, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.WithComponent(slog.Default(), "playback")
	}
	defer logging.SafeCloseWithLogging(conn, logger, "player websocket")

	player := NewWebSocketPlayer(conn)
	c.Attach(player)
	defer c.Detach(player)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := player.send(ctx, Message{Type: MessageInit, ElementID: c.ElementID()}); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go pingLoop(player, done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				logging.LogError(logger, "player websocket closed unexpectedly", err)
				return err
			}
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("invalid player message", slog.String("error", err.Error()))
			_ = player.send(ctx, Message{Type: MessageError, Error: "invalid message format"})
			continue
		}

		switch msg.Type {
		case MessageReady:
			c.MarkReady(ctx)
		case MessageState:
			logger.Debug("player state", slog.String("state", msg.State), slog.String("video_id", msg.VideoID))
		case MessageError:
			logger.Warn("player reported error", slog.String("error", msg.Error))
		default:
			logger.Warn("unknown player message", slog.String("type", msg.Type))
		}
	}
}

func pingLoop(p *WebSocketPlayer, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
