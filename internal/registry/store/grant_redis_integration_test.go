//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"subvault/internal/registry/models"
	"subvault/internal/registry/store"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
	"subvault/pkg/testutil/containers"
)

type RedisGrantStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisGrantStore
}

func TestRedisGrantStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisGrantStoreSuite))
}

func (s *RedisGrantStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedisGrantStore(s.redis.Client)
}

func (s *RedisGrantStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func redisTestGrant(subscriber id.Principal) models.AccessGrant {
	return models.AccessGrant{
		Subscriber:     subscriber,
		SubscriptionID: id.NewSubscriptionID(),
		ExpiresAt:      time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond),
	}
}

func (s *RedisGrantStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	grant := redisTestGrant("alice")

	s.Require().NoError(s.store.Upsert(ctx, accountID, "premium", grant))

	found, err := s.store.Find(ctx, accountID, "premium", "alice")
	s.Require().NoError(err)
	s.Equal(grant.Subscriber, found.Subscriber)
	s.Equal(grant.SubscriptionID, found.SubscriptionID)
	s.True(grant.ExpiresAt.Equal(found.ExpiresAt))
}

func (s *RedisGrantStoreSuite) TestUpsertReplaces() {
	ctx := context.Background()
	accountID := id.NewAccountID()

	first := redisTestGrant("alice")
	s.Require().NoError(s.store.Upsert(ctx, accountID, "premium", first))

	second := first
	second.ExpiresAt = first.ExpiresAt.Add(time.Hour)
	s.Require().NoError(s.store.Upsert(ctx, accountID, "premium", second))

	found, err := s.store.Find(ctx, accountID, "premium", "alice")
	s.Require().NoError(err)
	s.True(second.ExpiresAt.Equal(found.ExpiresAt))
}

func (s *RedisGrantStoreSuite) TestExpiredGrantStaysReadable() {
	ctx := context.Background()
	accountID := id.NewAccountID()

	grant := redisTestGrant("alice")
	grant.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.Require().NoError(s.store.Upsert(ctx, accountID, "premium", grant))

	// Lapsed by the wall clock but still present: validity is decided by the
	// service clock, the store never expires grants on its own.
	found, err := s.store.Find(ctx, accountID, "premium", "alice")
	s.Require().NoError(err)
	s.True(found.ExpiredAt(time.Now().UTC()))
}

func (s *RedisGrantStoreSuite) TestDelete() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	s.Require().NoError(s.store.Upsert(ctx, accountID, "premium", redisTestGrant("alice")))

	s.Require().NoError(s.store.Delete(ctx, accountID, "premium", "alice"))

	_, err := s.store.Find(ctx, accountID, "premium", "alice")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Delete(ctx, accountID, "premium", "alice"), sentinel.ErrNotFound)
}

func (s *RedisGrantStoreSuite) TestListAndDeleteForSubscription() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	s.Require().NoError(s.store.Upsert(ctx, accountID, "premium", redisTestGrant("alice")))
	s.Require().NoError(s.store.Upsert(ctx, accountID, "premium", redisTestGrant("bob")))
	s.Require().NoError(s.store.Upsert(ctx, accountID, "basic", redisTestGrant("carol")))

	grants, err := s.store.ListForSubscription(ctx, accountID, "premium")
	s.Require().NoError(err)
	s.Len(grants, 2)

	s.Require().NoError(s.store.DeleteForSubscription(ctx, accountID, "premium"))

	grants, err = s.store.ListForSubscription(ctx, accountID, "premium")
	s.Require().NoError(err)
	s.Empty(grants)

	_, err = s.store.Find(ctx, accountID, "basic", "carol")
	s.NoError(err, "other subscriptions untouched")
}
