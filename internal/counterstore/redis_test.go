package counterstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client)

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return store, mr
}

func TestRedisStore_IncrementCounts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, err := store.Increment(ctx, "rl:auth:user1:minute:0", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestRedisStore_TTLSetOnFirstIncrementOnly(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	firstTTL := mr.TTL("k")
	assert.Equal(t, time.Minute, firstTTL)

	// Later increments must not reset the window expiry.
	mr.FastForward(30 * time.Second)
	_, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("k"))
}

func TestRedisStore_CounterResetsAfterExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	_, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)

	count, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired window should restart from zero")
}

func TestRedisStore_UnavailableMapsToSentinel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client)
	mr.Close()

	_, err = store.Increment(context.Background(), "k", time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCounterStoreUnavailable))

	_ = client.Close()
}
