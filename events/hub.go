// Package events is an in-process pub/sub hub for daemon lifecycle events.
// The HTTP layer publishes around manager calls and the WebSocket gateway
// fans events out to connected clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types published by the daemon.
const (
	TypeGenerationStarted   = "generation.started"
	TypeGenerationCompleted = "generation.completed"
	TypeGenerationFailed    = "generation.failed"
	TypeProjectCreated      = "project.created"
	TypeProjectDeleted      = "project.deleted"
	TypeFileWritten         = "file.written"
	TypePreviewStarted      = "preview.started"
	TypePreviewStopped      = "preview.stopped"
)

// Event is one daemon occurrence. Fields other than ID, Type and Timestamp
// are optional and depend on the type.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ProjectID string    `json:"project_id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans events out to subscribers. Publishing never blocks; a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
	logger zerolog.Logger
}

// NewHub creates an event hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[int]chan Event),
		logger: logger.With().Str("component", "event_hub").Logger(),
	}
}

// Subscribe registers a subscriber with the given channel buffer and returns
// its channel plus a cancel function. Cancel is idempotent and closes the
// channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish stamps the event with an id and timestamp and delivers it to every
// subscriber that has buffer room.
func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Debug().Int("subscriber", id).Str("type", e.Type).Msg("Dropping event for slow subscriber")
		}
	}
}

// Close shuts the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
