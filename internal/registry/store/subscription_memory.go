package store

import (
	"context"
	"sync"

	"subvault/internal/registry/models"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
)

// InMemorySubscriptionStore keeps subscriptions in nested maps keyed by
// account then by name, mirroring the per-account uniqueness invariant.
// Intended for tests and local development.
type InMemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[id.AccountID]map[string]models.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subs: make(map[id.AccountID]map[string]models.Subscription),
	}
}

// Create inserts the subscription if no subscription with the same name
// exists under the account, returning sentinel.ErrConflict otherwise.
func (s *InMemorySubscriptionStore) Create(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.subs[sub.AccountID]
	if !ok {
		byName = make(map[string]models.Subscription)
		s.subs[sub.AccountID] = byName
	}
	if _, exists := byName[sub.Name]; exists {
		return sentinel.ErrConflict
	}
	byName[sub.Name] = copySubscription(*sub)
	return nil
}

func (s *InMemorySubscriptionStore) FindByName(_ context.Context, accountID id.AccountID, name string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[accountID][name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := copySubscription(sub)
	return &out, nil
}

// UpdateContent replaces the content blob, leaving name, price and duration
// untouched.
func (s *InMemorySubscriptionStore) UpdateContent(_ context.Context, accountID id.AccountID, name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[accountID][name]
	if !ok {
		return sentinel.ErrNotFound
	}
	sub.Content = append([]byte(nil), content...)
	s.subs[accountID][name] = sub
	return nil
}

func (s *InMemorySubscriptionStore) Delete(_ context.Context, accountID id.AccountID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[accountID][name]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.subs[accountID], name)
	return nil
}

func (s *InMemorySubscriptionStore) List(_ context.Context, accountID id.AccountID) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := s.subs[accountID]
	out := make([]models.Subscription, 0, len(byName))
	for _, sub := range byName {
		out = append(out, copySubscription(sub))
	}
	return out, nil
}

// Clear removes all subscriptions. Test helper.
func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[id.AccountID]map[string]models.Subscription)
}

func copySubscription(sub models.Subscription) models.Subscription {
	sub.Content = append([]byte(nil), sub.Content...)
	return sub
}
