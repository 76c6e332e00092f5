// Package events pushes session notifications to connected browser tabs over WebSocket.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chgenberg/frejfund-site/internal/identity"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// Event kinds sent by the hub itself.
const (
	KindReady = "ready"
	KindPong  = "pong"
)

// Event is one message pushed to a client.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}

type client struct {
	userID    string
	sessionID string
	conn      *websocket.Conn
	send      chan Event
	done      chan struct{}
	stopOnce  sync.Once
}

func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Hub tracks live connections per visitor and tab.
type Hub struct {
	mu            sync.RWMutex
	active        map[string]map[string]*client
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHub creates a hub. allowedOrigin "*" or isDev accepts any origin.
func NewHub(allowedOrigin string, isDev bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		active:        make(map[string]map[string]*client),
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if _, ok := h.active[c.userID]; !ok {
		h.active[c.userID] = make(map[string]*client)
	}
	existing := h.active[c.userID][c.sessionID]
	h.active[c.userID][c.sessionID] = c
	h.mu.Unlock()

	if existing != nil && existing != c {
		existing.stop()
	}
	h.logger.Info("Event stream registered", "user_id", c.userID, "session_id", c.sessionID)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessions, ok := h.active[c.userID]; ok {
		if current, exists := sessions[c.sessionID]; exists && current == c {
			delete(sessions, c.sessionID)
			if len(sessions) == 0 {
				delete(h.active, c.userID)
			}
			h.logger.Info("Event stream unregistered", "user_id", c.userID, "session_id", c.sessionID)
		}
	}
}

// Publish sends an event to every tab of userID. Slow clients drop events
// rather than block the caller.
func (h *Hub) Publish(userID, sessionID, kind string, data any) {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Time:      time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.active[userID] {
		select {
		case c.send <- ev:
		default:
			h.logger.Warn("Dropping event for slow client", "user_id", userID, "session_id", c.sessionID, "type", kind)
		}
	}
}

// CloseUser disconnects every tab of userID.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	sessions := h.active[userID]
	delete(h.active, userID)
	h.mu.Unlock()

	for sid, c := range sessions {
		c.stop()
		h.logger.Info("Event stream closed", "user_id", userID, "session_id", sid)
	}
}

// Count returns the number of connected tabs.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, sessions := range h.active {
		n += len(sessions)
	}
	return n
}

// ServeHTTP upgrades the request and streams events until the client leaves
// or the hub closes the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}

	c := &client{
		userID:    userID,
		sessionID: sessionID,
		conn:      ws,
		send:      make(chan Event, sendBuffer),
		done:      make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.stop()
		h.readLoop(ctx, c)
	}()

	c.send <- Event{ID: uuid.NewString(), Type: KindReady, SessionID: sessionID, Time: time.Now().UTC()}
	h.writeLoop(ctx, c)

	if err := ws.Close(websocket.StatusNormalClosure, "stream closed"); err != nil {
		h.logger.Debug("Failed to close websocket", "error", err, "user_id", userID)
	}
	cancel()
	wg.Wait()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

type clientMessage struct {
	Type string `json:"type"`
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Debug("WebSocket read error", "error", err, "user_id", c.userID)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			select {
			case c.send <- Event{ID: uuid.NewString(), Type: KindPong, Time: time.Now().UTC()}:
			default:
			}
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case ev := <-c.send:
			if err := h.write(ctx, c.conn, ev); err != nil {
				h.logger.Debug("WebSocket write error", "error", err, "user_id", c.userID)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
