// Package realtime fans food-log events out to a user's open websocket
// connections.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"nutrisync/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	EventEntryCreated  = "entry_created"
	EventEntryUpdated  = "entry_updated"
	EventEntryDeleted  = "entry_deleted"
	EventSyncCompleted = "sync_completed"
	EventConnectivity  = "connectivity"
)

type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// writeWait bounds a single frame write; a peer that stops reading is
// dropped once it passes.
const writeWait = 10 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	UserID string
	conn   Conn

	// gorilla connections allow one concurrent writer.
	writeMu   sync.Mutex
	writeWait time.Duration
}

func NewClient(userID string, conn Conn) *Client {
	return &Client{UserID: userID, conn: conn, writeWait: writeWait}
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Ping sends a websocket ping frame.
func (c *Client) Ping() error {
	return c.write(websocket.PingMessage, nil)
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *logger.Logger
	now     func() time.Time
}

func NewHub(l *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger.OrNop(l).Named("realtime"),
		now:     time.Now,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
	h.logger.Infow("client connected", "user_id", c.UserID)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// ClientCount returns the number of connections open for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends an event to every connection of userID. Write failures drop
// the connection.
func (h *Hub) Publish(userID, eventType string, payload any) {
	h.send(h.targets(userID), eventType, payload)
}

// Broadcast sends an event to every connection of every user.
func (h *Hub) Broadcast(eventType string, payload any) {
	h.send(h.targets(""), eventType, payload)
}

func (h *Hub) targets(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Client
	for uid, set := range h.clients {
		if userID != "" && uid != userID {
			continue
		}
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) send(targets []*Client, eventType string, payload any) {
	if len(targets) == 0 {
		return
	}
	msg, err := json.Marshal(Event{Type: eventType, Payload: payload, At: h.now()})
	if err != nil {
		h.logger.Errorw("encode event", "type", eventType, "error", err)
		return
	}
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			h.logger.Warnw("write failed, dropping client", "user_id", c.UserID, "error", err)
			h.Unregister(c)
		}
	}
}
