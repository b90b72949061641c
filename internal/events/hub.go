package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	RunStaged          = "run.staged"
	RunFailed          = "run.failed"
	RunExpired         = "run.expired"
	PromotionCompleted = "promotion.completed"
	PromotionFailed    = "promotion.failed"
)

// Event is one import lifecycle notification
type Event struct {
	Type    string      `json:"type"`
	RunIDs  []uuid.UUID `json:"run_ids,omitempty"`
	Payload any         `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Publisher delivers events without blocking the caller
type Publisher interface {
	Publish(e Event)
}

// Discard drops every event
type Discard struct{}

func (Discard) Publish(Event) {}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans events out to connected websocket clients
type Hub struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan Event
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, 64),
		logger:    logger.With("component", "events"),
	}
}

// Publish drops the event when the broadcast buffer is full
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("event dropped", "type", e.Type)
	}
}

// Run broadcasts until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.clientsMux.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.clientsMux.Unlock()
			return
		case e := <-h.broadcast:
			h.clientsMux.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteJSON(e); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.clientsMux.Unlock()
		}
	}
}

// ServeWS upgrades the request and keeps the client until it disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.clientsMux.Lock()
	h.clients[conn] = true
	h.clientsMux.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.clientsMux.Lock()
			delete(h.clients, conn)
			h.clientsMux.Unlock()
			return
		}
	}
}

// Clients reports the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}
