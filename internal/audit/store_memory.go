package audit

import (
	"context"
	"sync"

	id "obligo/pkg/domain"
)

// InMemoryStore keeps audit events in process memory for tests and
// development.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByInstance returns the recorded events for one instance in append order.
func (s *InMemoryStore) ListByInstance(_ context.Context, instanceID id.InstanceID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.InstanceID == instanceID {
			out = append(out, e)
		}
	}
	return out, nil
}
