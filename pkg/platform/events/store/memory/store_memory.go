package memory

import (
	"context"
	"sync"

	id "subvault/pkg/domain"
	"subvault/pkg/platform/events"
)

// InMemoryStore keeps emitted events grouped by account. Used in tests and
// single-process deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.AccountID][]events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.AccountID][]events.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.AccountID][]events.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.AccountID] = append(s.events[event.AccountID], event)
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events[accountID]...), nil
}
