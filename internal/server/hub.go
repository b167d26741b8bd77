package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pathakanu/assistant/internal/auth"
	"github.com/pathakanu/assistant/internal/notify"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Event is a message pushed to browser clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ReminderPayload is the payload of a "reminder" event.
type ReminderPayload struct {
	User    string `json:"user"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	username string
}

// Hub tracks websocket connections per user and pushes fired reminders to them.
type Hub struct {
	tokens *auth.Tokens
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub returns a Hub that authenticates connections with tokens.
func NewHub(tokens *auth.Tokens, logger zerolog.Logger) *Hub {
	return &Hub{
		tokens:  tokens,
		logger:  logger.With().Str("component", "ws").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Notify implements reminder.Notifier by pushing to every connection of user.
func (h *Hub) Notify(_ context.Context, user, text string) error {
	return h.SendToUser(user, Event{
		Type:    "reminder",
		Payload: ReminderPayload{User: user, Text: text, Message: notify.Message(user, text)},
	})
}

// SendToUser queues ev on every connection of user. Connections whose buffer
// is full are dropped.
func (h *Hub) SendToUser(user string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.clients {
		if c.username != user {
			continue
		}
		select {
		case c.send <- data:
			sent++
		default:
			h.logger.Warn().Str("user", c.username).Msg("client buffer full, closing")
			h.removeLocked(c)
		}
	}
	h.logger.Debug().Str("user", user).Str("type", ev.Type).Int("connections", sent).Msg("event sent")
	return nil
}

// Connections returns the number of open connections for user.
func (h *Hub) Connections(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.username == user {
			n++
		}
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
		_ = c.conn.Close()
	}
}

// HandleWebSocket upgrades an authenticated request. The token comes from the
// "token" query parameter or the Authorization header.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is missing!"})
		return
	}
	username, err := h.tokens.Validate(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is invalid!"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("user", username).Msg("upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), username: username}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info().Str("user", username).Msg("client connected")

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.removeLocked(c)
		h.logger.Info().Str("user", c.username).Msg("client disconnected")
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readPump discards inbound frames and detects disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
