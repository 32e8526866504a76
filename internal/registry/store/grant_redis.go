package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"subvault/internal/registry/models"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
)

// RedisGrantStore persists access grants in Redis. Each grant is a JSON value
// under grant:{account}:{name}:{subscriber}, with a per-subscription set
// indexing subscribers so cancellation can enumerate them.
//
// Validity is always decided from the stored ExpiresAt against the service
// clock. Redis key TTLs are set as garbage collection only, padded well past
// the grant's lifetime, and never used as the expiry oracle.
type RedisGrantStore struct {
	client goredis.Cmdable
}

const grantTTLPadding = 24 * time.Hour

func NewRedisGrantStore(client goredis.Cmdable) *RedisGrantStore {
	return &RedisGrantStore{client: client}
}

func grantRedisKey(accountID id.AccountID, name string, subscriber id.Principal) string {
	return fmt.Sprintf("grant:%s:%s:%s", accountID, name, subscriber)
}

func grantIndexKey(accountID id.AccountID, name string) string {
	return fmt.Sprintf("grants:%s:%s", accountID, name)
}

func (s *RedisGrantStore) Upsert(ctx context.Context, accountID id.AccountID, name string, grant models.AccessGrant) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}

	ttl := time.Until(grant.ExpiresAt) + grantTTLPadding
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, grantRedisKey(accountID, name, grant.Subscriber), payload, ttl)
	pipe.SAdd(ctx, grantIndexKey(accountID, name), string(grant.Subscriber))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store grant: %w", err)
	}
	return nil
}

func (s *RedisGrantStore) Find(ctx context.Context, accountID id.AccountID, name string, subscriber id.Principal) (models.AccessGrant, error) {
	payload, err := s.client.Get(ctx, grantRedisKey(accountID, name, subscriber)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.AccessGrant{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.AccessGrant{}, fmt.Errorf("fetch grant: %w", err)
	}

	var grant models.AccessGrant
	if err := json.Unmarshal(payload, &grant); err != nil {
		return models.AccessGrant{}, fmt.Errorf("unmarshal grant: %w", err)
	}
	return grant, nil
}

func (s *RedisGrantStore) Delete(ctx context.Context, accountID id.AccountID, name string, subscriber id.Principal) error {
	deleted, err := s.client.Del(ctx, grantRedisKey(accountID, name, subscriber)).Result()
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	if err := s.client.SRem(ctx, grantIndexKey(accountID, name), string(subscriber)).Err(); err != nil {
		return fmt.Errorf("unindex grant: %w", err)
	}
	return nil
}

func (s *RedisGrantStore) ListForSubscription(ctx context.Context, accountID id.AccountID, name string) ([]models.AccessGrant, error) {
	subscribers, err := s.client.SMembers(ctx, grantIndexKey(accountID, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("list grant index: %w", err)
	}

	out := make([]models.AccessGrant, 0, len(subscribers))
	for _, subscriber := range subscribers {
		grant, err := s.Find(ctx, accountID, name, id.Principal(subscriber))
		if errors.Is(err, sentinel.ErrNotFound) {
			// Index entry outlived a garbage-collected grant key.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, grant)
	}
	return out, nil
}

func (s *RedisGrantStore) DeleteForSubscription(ctx context.Context, accountID id.AccountID, name string) error {
	subscribers, err := s.client.SMembers(ctx, grantIndexKey(accountID, name)).Result()
	if err != nil {
		return fmt.Errorf("list grant index: %w", err)
	}

	keys := make([]string, 0, len(subscribers)+1)
	for _, subscriber := range subscribers {
		keys = append(keys, grantRedisKey(accountID, name, id.Principal(subscriber)))
	}
	keys = append(keys, grantIndexKey(accountID, name))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	return nil
}
