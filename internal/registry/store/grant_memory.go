package store

import (
	"context"
	"sync"

	"subvault/internal/registry/models"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
)

type grantKey struct {
	accountID id.AccountID
	name      string
}

// InMemoryGrantStore keeps access grants in nested maps keyed by subscription
// then by subscriber. Expired grants remain stored until overwritten or
// removed; validity is the reader's concern.
type InMemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[grantKey]map[id.Principal]models.AccessGrant
}

func NewInMemoryGrantStore() *InMemoryGrantStore {
	return &InMemoryGrantStore{
		grants: make(map[grantKey]map[id.Principal]models.AccessGrant),
	}
}

// Upsert stores the grant, replacing any previous grant held by the same
// subscriber for the same subscription.
func (s *InMemoryGrantStore) Upsert(_ context.Context, accountID id.AccountID, name string, grant models.AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey{accountID: accountID, name: name}
	bySubscriber, ok := s.grants[key]
	if !ok {
		bySubscriber = make(map[id.Principal]models.AccessGrant)
		s.grants[key] = bySubscriber
	}
	bySubscriber[grant.Subscriber] = grant
	return nil
}

func (s *InMemoryGrantStore) Find(_ context.Context, accountID id.AccountID, name string, subscriber id.Principal) (models.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[grantKey{accountID: accountID, name: name}][subscriber]
	if !ok {
		return models.AccessGrant{}, sentinel.ErrNotFound
	}
	return grant, nil
}

func (s *InMemoryGrantStore) Delete(_ context.Context, accountID id.AccountID, name string, subscriber id.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey{accountID: accountID, name: name}
	if _, ok := s.grants[key][subscriber]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.grants[key], subscriber)
	return nil
}

func (s *InMemoryGrantStore) ListForSubscription(_ context.Context, accountID id.AccountID, name string) ([]models.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySubscriber := s.grants[grantKey{accountID: accountID, name: name}]
	out := make([]models.AccessGrant, 0, len(bySubscriber))
	for _, grant := range bySubscriber {
		out = append(out, grant)
	}
	return out, nil
}

// DeleteForSubscription removes every grant under the subscription. Used by
// cancellation, which tears down all subscriber access in one step.
func (s *InMemoryGrantStore) DeleteForSubscription(_ context.Context, accountID id.AccountID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, grantKey{accountID: accountID, name: name})
	return nil
}

// Clear removes all grants. Test helper.
func (s *InMemoryGrantStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = make(map[grantKey]map[id.Principal]models.AccessGrant)
}
