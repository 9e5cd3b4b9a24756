package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/redis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	UserID string `json:"userId"` // User ID to follow, or "*" for every user
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "round.accepted", "subscribed", "unsubscribed", "error", "info"
	Payload interface{} `json:"payload"` // Event-specific data
}

// clientSubscriptions tracks which users a client follows.
type clientSubscriptions struct {
	mu    sync.RWMutex
	users map[string]bool
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{users: make(map[string]bool)}
}

func (cs *clientSubscriptions) Subscribe(userID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.users[userID] = true
}

func (cs *clientSubscriptions) Unsubscribe(userID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.users, userID)
}

// IsSubscribed checks a user ID against the set. Wildcard (*) matches everyone.
func (cs *clientSubscriptions) IsSubscribed(userID string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.users["*"] {
		return true
	}
	return cs.users[userID]
}

// HandleWebSocket upgrades the connection and streams accepted rounds.
//
// Protocol:
// Client sends: {"action": "subscribe", "userId": "alice"}  // Follow one user
// Client sends: {"action": "subscribe", "userId": "*"}      // Follow everyone
// Client sends: {"action": "unsubscribe", "userId": "alice"}
//
// Server sends:
// - {"type": "round.accepted", "payload": {...}}
// - {"type": "subscribed", "payload": {"userId": "alice"}}
// - {"type": "unsubscribed", "payload": {"userId": "alice"}}
// - {"type": "error", "payload": {"message": "..."}}
//
// All goroutines have panic recovery to prevent crashes.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Live feed not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.App.Logger.Error("Failed to close WebSocket connection", zap.Error(err))
		}
	}()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newClientSubscriptions()
	send := make(chan ServerMessage, 256)

	var wg sync.WaitGroup
	spawn := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in WebSocket goroutine",
						zap.String("goroutine", name),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("remote_addr", r.RemoteAddr))
					cancel()
				}
			}()
			fn()
		}()
	}

	spawn("feed", func() { c.forwardRounds(ctx, send, subs) })
	spawn("ping", func() { c.sendPings(ctx, conn) })
	spawn("writer", func() { c.writeMessages(conn, send) })

	// Blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel, subs, send)

	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// forwardRounds subscribes to the accepted-rounds channel and forwards
// matching events to the send channel. Reconnects with a capped backoff
// when Redis drops.
func (c *Controller) forwardRounds(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.consumeRounds(ctx, send, subs)
		if ctx.Err() != nil {
			return
		}
		c.App.Logger.Warn("Live feed subscription lost, will retry",
			zap.Error(err),
			zap.Duration("backoff", backoff))

		select {
		case send <- ServerMessage{Type: "error", Payload: map[string]interface{}{
			"message":     "feed connection lost, reconnecting...",
			"retryIn":     backoff.Seconds(),
			"recoverable": true,
		}}:
		case <-ctx.Done():
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consumeRounds runs one subscription until it fails or the context is
// cancelled. Returns nil when the pub/sub channel closes normally.
func (c *Controller) consumeRounds(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) error {
	pubsub := c.App.RedisClient.Subscribe(ctx, redis.RoundsChannel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Error("Error closing feed subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				c.App.Logger.Error("Failed to parse feed message", zap.Error(err))
				continue
			}

			userID, _ := payload["userId"].(string)
			if !subs.IsSubscribed(userID) {
				continue
			}

			select {
			case send <- ServerMessage{Type: "round.accepted", Payload: payload}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Error("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages drains the send channel onto the connection.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Error("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

// readClientMessages handles subscribe/unsubscribe requests and detects
// connection closure.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	resetDeadline := func() error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
	if err := resetDeadline(); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error { return resetDeadline() })

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.App.Logger.Error("WebSocket read error", zap.Error(err))
				}
				cancel()
				return
			}
			if err := resetDeadline(); err != nil {
				c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
				return
			}

			switch msg.Action {
			case "subscribe", "unsubscribe":
				if msg.UserID == "" {
					send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "userId is required"}}
					continue
				}
				if msg.Action == "subscribe" {
					subs.Subscribe(msg.UserID)
					send <- ServerMessage{Type: "subscribed", Payload: map[string]string{"userId": msg.UserID}}
				} else {
					subs.Unsubscribe(msg.UserID)
					send <- ServerMessage{Type: "unsubscribed", Payload: map[string]string{"userId": msg.UserID}}
				}

			default:
				send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
			}
		}
	}
}
