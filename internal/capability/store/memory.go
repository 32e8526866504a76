// Package store persists creator accounts. Capabilities are never stored:
// the authority model is possession-based, so only the discoverable account
// half lives here.
package store

import (
	"context"
	"sync"

	id "subvault/pkg/domain"
	"subvault/internal/capability/models"
	"subvault/pkg/platform/sentinel"
)

// InMemory is the default account store.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]models.CreatorAccount
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[id.AccountID]models.CreatorAccount)}
}

// Create publishes a new account. Returns sentinel.ErrConflict if the ID is
// already taken (freshly minted UUIDs make this effectively unreachable).
func (s *InMemory) Create(_ context.Context, account *models.CreatorAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return sentinel.ErrConflict
	}
	s.accounts[account.ID] = *account
	return nil
}

// FindByID returns a copy of the account, or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*models.CreatorAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &account, nil
}
