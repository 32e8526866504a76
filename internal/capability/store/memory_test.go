package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"subvault/internal/capability/models"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
)

type AccountStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *AccountStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestAccountStoreSuite(t *testing.T) {
	suite.Run(t, new(AccountStoreSuite))
}

func (s *AccountStoreSuite) newAccount(creator id.Principal) *models.CreatorAccount {
	account, err := models.NewCreatorAccount(creator, time.Now())
	s.Require().NoError(err)
	return account
}

func (s *AccountStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds account by ID", func() {
		account := s.newAccount("alice")
		s.Require().NoError(s.store.Create(s.ctx, account))

		found, err := s.store.FindByID(s.ctx, account.ID)
		s.Require().NoError(err)
		s.Equal(account.Creator, found.Creator)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewAccountID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AccountStoreSuite) TestIdentityUniqueness() {
	account := s.newAccount("alice")
	s.Require().NoError(s.store.Create(s.ctx, account))

	err := s.store.Create(s.ctx, account)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *AccountStoreSuite) TestCopiesAreIsolated() {
	account := s.newAccount("alice")
	s.Require().NoError(s.store.Create(s.ctx, account))

	found, err := s.store.FindByID(s.ctx, account.ID)
	s.Require().NoError(err)

	// Mutating the returned copy must not leak into the store.
	found.Creator = "mallory"
	again, err := s.store.FindByID(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(id.Principal("alice"), again.Creator)
}
