package events

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Subscriber is a connected indexer receiving the event feed.
type Subscriber struct {
	ID   string
	Conn *websocket.Conn
	Send chan Event
	Done chan struct{}
}

// Hub fans events out to all connected websocket subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
	}
}

// AddSubscriber registers a new indexer connection. An existing connection
// with the same ID is dropped first.
func (h *Hub) AddSubscriber(id string, conn *websocket.Conn) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.subscribers[id]; ok {
		close(existing.Done)
		existing.Conn.Close()
	}

	sub := &Subscriber{
		ID:   id,
		Conn: conn,
		Send: make(chan Event, 64), // buffered to absorb bursts of transitions
		Done: make(chan struct{}),
	}

	h.subscribers[id] = sub
	return sub
}

// RemoveSubscriber unregisters a connection.
func (h *Hub) RemoveSubscriber(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		close(sub.Done)
		delete(h.subscribers, id)
	}
}

// SubscriberCount reports the number of connected indexers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast delivers the event to every subscriber. Slow subscribers with a
// full queue are skipped rather than blocking the vault's commit path.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.Send <- ev:
		case <-sub.Done:
		default:
		}
	}
}

// SendTo delivers an event to one subscriber, for replay requests.
func (h *Hub) SendTo(id string, ev Event) error {
	h.mu.RLock()
	sub, ok := h.subscribers[id]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("subscriber %s is not connected", id)
	}

	select {
	case sub.Send <- ev:
		return nil
	case <-sub.Done:
		return fmt.Errorf("subscriber %s disconnected", id)
	default:
		return fmt.Errorf("subscriber %s queue full", id)
	}
}
