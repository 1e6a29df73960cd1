// Package counterstore wraps the shared, TTL-capable key/value store used
// for distributed counters. Counters are ephemeral: losing them on store
// failure is acceptable, and consumers decide their own fail-open policy.
package counterstore

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/redis/go-redis/v9"
)

// Store is the counter abstraction consumed by the rate limiter.
type Store interface {
	// Increment adds one to the counter at key and returns the new value.
	// The TTL is applied only on the first increment of a key so window
	// counters self-clean at the window boundary.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// incrExpireScript increments a key and sets its expiry atomically on the
// first hit. Two racing first increments must not leave the key without a
// TTL, so the check happens server-side.
var incrExpireScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client}
}

// NewRedisStoreWithClient wraps an existing client. Used by tests with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrExpireScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrCounterStoreUnavailable, err)
	}
	return count, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("counter store health check failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
