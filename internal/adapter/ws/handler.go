// Package ws pushes routing events to dashboards and chat widgets over
// WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/Switchboard/internal/port/broadcast"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn is one subscriber. An empty conversationID receives every event.
// send is closed by the hub when the subscriber is removed.
type conn struct {
	send           chan []byte
	conversationID string
}

// Hub fans events out to connected subscribers. Each subscriber has its
// own outbound queue so one slow client cannot hold up the others; a
// client whose queue overflows is disconnected.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*conn]struct{}
	origins []string
}

// NewHub returns a hub accepting browser upgrades from the same host or
// from an origin matching one of originPatterns (host globs such as
// "chat.example.com" or "*.example.com"). Requests without an Origin
// header come from non-browser clients and are accepted.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{conns: make(map[*conn]struct{}), origins: originPatterns}
}

// OriginPatterns turns the configured CORS origin into upgrade patterns.
// "*" allows every origin; an empty or unparsable value allows none.
func OriginPatterns(corsOrigin string) []string {
	if corsOrigin == "*" {
		return []string{"*"}
	}
	u, err := url.Parse(corsOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// HandleWS upgrades the request and streams events until the client leaves.
// The optional conversation_id query parameter limits the stream to one
// conversation.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	// Browsers do not apply CORS to upgrades, so the origin is checked here.
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.WarnContext(r.Context(), "websocket accept failed", "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	c := &conn{send: make(chan []byte, sendBuffer), conversationID: r.URL.Query().Get("conversation_id")}
	h.add(c)
	defer h.remove(c)
	slog.InfoContext(r.Context(), "websocket connected", "remote", r.RemoteAddr, "conversation_id", c.conversationID)

	// Client frames are discarded; ctx ends when the peer goes away.
	ctx := ws.CloseRead(r.Context())
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = ws.Close(websocket.StatusNormalClosure, "")
			return
		case data, ok := <-c.send:
			if !ok {
				_ = ws.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				return
			}
			if err := writeWithTimeout(ctx, func(wctx context.Context) error {
				return ws.Write(wctx, websocket.MessageText, data)
			}); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := writeWithTimeout(ctx, ws.Ping); err != nil {
				slog.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, fn func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return fn(wctx)
}

// Broadcast queues msg for every connection subscribed to conversationID.
// An empty conversationID reaches only unfiltered connections.
func (h *Hub) Broadcast(_ context.Context, conversationID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	var slow []*conn
	h.mu.RLock()
	for c := range h.conns {
		if c.conversationID != "" && c.conversationID != conversationID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("websocket subscriber dropped", "conversation_id", c.conversationID, "reason", "send queue full")
		h.remove(c)
	}
}

// BroadcastEvent marshals a typed event and broadcasts it. Payloads
// implementing broadcast.Scoped are limited to their conversation.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	var conversationID string
	if s, ok := payload.(broadcast.Scoped); ok {
		conversationID = s.Conversation()
	}
	h.Broadcast(ctx, conversationID, Message{Type: eventType, Payload: data})
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

// remove unregisters c and closes its queue. Safe to call more than once.
func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
}
