package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// StatusReader answers "what is this account's live entitlement". Consumers
// (the access gate, the status endpoint) depend on this interface so tests
// can substitute fakes.
type StatusReader interface {
	Read(ctx context.Context, userID uint) (*Entitlement, error)
}

// StatusCache bounds provider API volume for the synchronous gate path.
// Entries are short-lived and invalidated whenever a webhook event for the
// account is applied.
type StatusCache interface {
	Get(ctx context.Context, userID uint) (*Entitlement, bool)
	Set(ctx context.Context, userID uint, ent *Entitlement)
	Invalidate(ctx context.Context, userID uint)
}

// Reader resolves entitlement by querying the provider live. The local mirror
// is consulted only for the customer linkage; the subscription state itself
// always comes from the provider (through the short-TTL cache).
type Reader struct {
	repo     Repository
	provider ProviderClient
	cache    StatusCache
}

// NewReader creates a status reader. cache may be nil to disable caching.
func NewReader(repo Repository, provider ProviderClient, cache StatusCache) *Reader {
	return &Reader{repo: repo, provider: provider, cache: cache}
}

// Read returns the normalized entitlement for a user. Unlinked accounts
// short-circuit to inactive without a provider call. Provider failures
// propagate to the caller; they mean "unknown", never "inactive".
func (r *Reader) Read(ctx context.Context, userID uint) (*Entitlement, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	account, err := r.repo.GetAccountByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return inactiveEntitlement(), nil
		}
		return nil, err
	}
	if !account.IsLinked() {
		return inactiveEntitlement(), nil
	}

	if r.cache != nil {
		if ent, ok := r.cache.Get(ctx, userID); ok {
			return ent, nil
		}
	}

	if r.provider == nil {
		return nil, errors.New("billing: no provider client configured")
	}

	sub, err := r.provider.LatestSubscription(ctx, account.ExternalCustomerID)
	if err != nil {
		return nil, fmt.Errorf("billing: provider status query failed: %w", err)
	}

	ent := Normalize(sub)
	if r.cache != nil {
		r.cache.Set(ctx, userID, ent)
	}
	return ent, nil
}

const statusCacheKeyPrefix = "billing:status:"

type redisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusCache creates a StatusCache over Redis with the given TTL.
func NewRedisStatusCache(client *redis.Client, ttl time.Duration) StatusCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisStatusCache{client: client, ttl: ttl}
}

func (c *redisStatusCache) key(userID uint) string {
	return fmt.Sprintf("%s%d", statusCacheKeyPrefix, userID)
}

func (c *redisStatusCache) Get(ctx context.Context, userID uint) (*Entitlement, bool) {
	raw, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		return nil, false
	}
	var ent Entitlement
	if err := json.Unmarshal([]byte(raw), &ent); err != nil {
		return nil, false
	}
	return &ent, true
}

func (c *redisStatusCache) Set(ctx context.Context, userID uint, ent *Entitlement) {
	raw, err := json.Marshal(ent)
	if err != nil {
		return
	}
	// Best effort; a cache write failure just means one more provider call.
	_ = c.client.Set(ctx, c.key(userID), raw, c.ttl).Err()
}

func (c *redisStatusCache) Invalidate(ctx context.Context, userID uint) {
	_ = c.client.Del(ctx, c.key(userID)).Err()
}
