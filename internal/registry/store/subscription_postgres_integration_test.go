//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"subvault/internal/registry/models"
	"subvault/internal/registry/store"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
	"subvault/pkg/testutil/containers"
)

type PostgresSubscriptionStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresSubscriptionStore
}

func TestPostgresSubscriptionStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSubscriptionStoreSuite))
}

func (s *PostgresSubscriptionStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresSubscriptionStore(s.postgres.DB)
}

func (s *PostgresSubscriptionStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "subscriptions"))
}

func newPgSubscription(accountID id.AccountID, name string) *models.Subscription {
	sub, err := models.NewSubscription(accountID, name, "integration offering", 250, 90_000, []byte("payload"), time.Now().UTC())
	if err != nil {
		panic(err)
	}
	return sub
}

func (s *PostgresSubscriptionStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	sub := newPgSubscription(accountID, "premium")

	s.Require().NoError(s.store.Create(ctx, sub))

	found, err := s.store.FindByName(ctx, accountID, "premium")
	s.Require().NoError(err)
	s.Equal(sub.ID, found.ID)
	s.Equal(sub.AccountID, found.AccountID)
	s.Equal(sub.Price, found.Price)
	s.Equal(sub.DurationMs, found.DurationMs)
	s.Equal([]byte("payload"), found.Content)
	s.WithinDuration(sub.CreatedAt, found.CreatedAt, time.Millisecond)
}

// TestConcurrentUniqueNameViolation verifies that concurrent creation
// attempts under one account result in exactly one success.
func (s *PostgresSubscriptionStoreSuite) TestConcurrentUniqueNameViolation() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.store.Create(ctx, newPgSubscription(accountID, "premium"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict error")
}

func (s *PostgresSubscriptionStoreSuite) TestSameNameAcrossAccounts() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, newPgSubscription(id.NewAccountID(), "premium")))
	s.Require().NoError(s.store.Create(ctx, newPgSubscription(id.NewAccountID(), "premium")))
}

func (s *PostgresSubscriptionStoreSuite) TestUpdateContent() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	s.Require().NoError(s.store.Create(ctx, newPgSubscription(accountID, "premium")))

	s.Require().NoError(s.store.UpdateContent(ctx, accountID, "premium", []byte("v2")))

	found, err := s.store.FindByName(ctx, accountID, "premium")
	s.Require().NoError(err)
	s.Equal([]byte("v2"), found.Content)

	s.ErrorIs(s.store.UpdateContent(ctx, accountID, "ghost", []byte("v2")), sentinel.ErrNotFound)
}

func (s *PostgresSubscriptionStoreSuite) TestDeleteAndList() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	s.Require().NoError(s.store.Create(ctx, newPgSubscription(accountID, "basic")))
	s.Require().NoError(s.store.Create(ctx, newPgSubscription(accountID, "premium")))

	subs, err := s.store.List(ctx, accountID)
	s.Require().NoError(err)
	s.Len(subs, 2)

	s.Require().NoError(s.store.Delete(ctx, accountID, "basic"))
	s.ErrorIs(s.store.Delete(ctx, accountID, "basic"), sentinel.ErrNotFound)

	subs, err = s.store.List(ctx, accountID)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.Equal("premium", subs[0].Name)
}

func (s *PostgresSubscriptionStoreSuite) TestNotFound() {
	_, err := s.store.FindByName(context.Background(), id.NewAccountID(), "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
