package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Publisher is accepted by every core service; each committed state
// transition goes through it exactly once.
type Publisher interface {
	Publish(kind Kind, entityID int64, payload map[string]any)
}

// Service journals each event and fans it out to connected subscribers.
// Journal failures are logged, never propagated: the in-memory commit that
// produced the event has already happened.
type Service struct {
	hub     *Hub
	journal Journal // optional; if nil, persistence is skipped
}

func NewService(hub *Hub, journal Journal) *Service {
	return &Service{hub: hub, journal: journal}
}

func (s *Service) Publish(kind Kind, entityID int64, payload map[string]any) {
	ev := Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		EntityID:   entityID,
		Payload:    payload,
		OccurredAt: time.Now(),
	}

	if s.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.journal.Append(ctx, ev); err != nil {
			log.Printf("event journal append failed for %s/%d: %v", kind, entityID, err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
}

// NopPublisher discards events; used in tests and as a safe default.
type NopPublisher struct{}

func (NopPublisher) Publish(Kind, int64, map[string]any) {}
