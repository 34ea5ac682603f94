package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss signals that the balance is not cached; callers fall back to
// the store and repopulate.
var ErrCacheMiss = errors.New("balance not cached")

// BalanceCache is the cache-aside balance store. Writes to the ledger
// invalidate; reads repopulate with a TTL so stale values age out even if an
// invalidation is lost.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BalanceCache{
		client: client,
		ttl:    ttl,
	}
}

func balanceKey(memberID uuid.UUID) string {
	return fmt.Sprintf("loyalty:balance:%s", memberID)
}

func (c *BalanceCache) GetBalance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	val, err := c.client.Get(ctx, balanceKey(memberID)).Result()
	if err == redis.Nil {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance from Redis: %w", err)
	}

	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse cached balance: %w", err)
	}
	return balance, nil
}

func (c *BalanceCache) SetBalance(ctx context.Context, memberID uuid.UUID, balance int64) error {
	err := c.client.Set(ctx, balanceKey(memberID), balance, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store balance in Redis: %w", err)
	}
	return nil
}

func (c *BalanceCache) InvalidateBalance(ctx context.Context, memberID uuid.UUID) error {
	err := c.client.Del(ctx, balanceKey(memberID)).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate balance in Redis: %w", err)
	}
	return nil
}
