// Package events pushes job status changes to connected UI clients over
// websockets, so the queue view stays current without polling.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
)

// Event is one job change notification.
type Event struct {
	Type      string    `json:"type"` // job_update or job_removed
	JobID     string    `json:"jobId"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans job events out to websocket clients. Broadcasting never blocks
// the caller: the queue publishes from its completion path.
type Hub struct {
	logger     *observability.Logger
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates an event hub.
func NewHub(logger *observability.Logger) *Hub {
	return &Hub{
		logger:     logger.WithComponent("events"),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
	}
}

// Start runs the hub loop until the broadcast channel is closed.
func (h *Hub) Start() {
	go func() {
		for {
			select {
			case conn := <-h.register:
				h.mu.Lock()
				h.clients[conn] = true
				count := len(h.clients)
				h.mu.Unlock()
				h.logger.Debug().Int("clients", count).Msg("websocket client connected")

			case conn := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[conn]; ok {
					delete(h.clients, conn)
					conn.Close()
				}
				count := len(h.clients)
				h.mu.Unlock()
				h.logger.Debug().Int("clients", count).Msg("websocket client disconnected")

			case message := <-h.broadcast:
				h.mu.Lock()
				for conn := range h.clients {
					if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
						h.logger.Warn().Err(err).Msg("websocket write failed, dropping client")
						conn.Close()
						delete(h.clients, conn)
					}
				}
				h.mu.Unlock()
			}
		}
	}()
}

// Register attaches a client connection to the hub.
func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister detaches a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// JobUpdated broadcasts a job change.
func (h *Hub) JobUpdated(job domain.Job) {
	h.send(Event{
		Type:      "job_update",
		JobID:     job.ID,
		Status:    string(job.Status),
		Error:     job.ErrorDetail,
		Timestamp: time.Now(),
	})
}

// JobRemoved broadcasts a job deletion.
func (h *Hub) JobRemoved(id string) {
	h.send(Event{
		Type:      "job_removed",
		JobID:     id,
		Timestamp: time.Now(),
	})
}

func (h *Hub) send(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("event channel full, dropping event")
	}
}
