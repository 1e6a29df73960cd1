package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitService(store CounterStore, cfg config.RateLimitConfig) *RateLimitService {
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = 250 * time.Millisecond
	}
	return NewRateLimitService(store, cfg, slog.Default())
}

func TestRateLimitService_Check_UnderLimit(t *testing.T) {
	counts := map[string]int64{}
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			counts[key]++
			return counts[key], nil
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 100,
		PerHour:   1000,
	})

	result := service.Check(context.Background(), "203.0.113.10", models.RateLimitScopeAuth, models.RateLimitClassCredentials)

	assert.True(t, result.Allowed)
	assert.False(t, result.FailedOpen)
	assert.Equal(t, 100, result.Limit)
	assert.Equal(t, 99, result.Remaining)
	assert.Len(t, counts, 2) // one key per window
}

func TestRateLimitService_Check_MinuteLimitExceeded(t *testing.T) {
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			return 101, nil
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 100,
		PerHour:   1000,
	})

	result := service.Check(context.Background(), "203.0.113.10", models.RateLimitScopeAuth, models.RateLimitClassCredentials)

	assert.False(t, result.Allowed)
	assert.Equal(t, 100, result.Limit)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, result.RetryAfter, time.Minute)
}

func TestRateLimitService_Check_HourLimitBindsAlone(t *testing.T) {
	// Minute window fresh, hour window exhausted: the hour window alone
	// must deny the request.
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			if strings.Contains(key, ":hour:") {
				return 1001, nil
			}
			return 1, nil
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 100,
		PerHour:   1000,
	})

	result := service.Check(context.Background(), "203.0.113.10", models.RateLimitScopeAuth, models.RateLimitClassCredentials)

	assert.False(t, result.Allowed)
	assert.Equal(t, 1000, result.Limit)
	assert.Equal(t, 0, result.Remaining)
}

func TestRateLimitService_Check_MostRestrictiveWindowWins(t *testing.T) {
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			if strings.Contains(key, ":minute:") {
				return 95, nil
			}
			return 200, nil
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 100,
		PerHour:   1000,
	})

	result := service.Check(context.Background(), "203.0.113.10", models.RateLimitScopeAuth, models.RateLimitClassCredentials)

	// Minute has 5 remaining, hour has 800: headers reflect the minute window.
	assert.True(t, result.Allowed)
	assert.Equal(t, 100, result.Limit)
	assert.Equal(t, 5, result.Remaining)
}

func TestRateLimitService_Check_FailsOpenOnStoreError(t *testing.T) {
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			return 0, models.ErrCounterStoreUnavailable
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 100,
		PerHour:   1000,
	})

	result := service.Check(context.Background(), "203.0.113.10", models.RateLimitScopeAuth, models.RateLimitClassCredentials)

	assert.True(t, result.Allowed)
	assert.True(t, result.FailedOpen)
}

func TestRateLimitService_Check_FailsOpenOnSlowStore(t *testing.T) {
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return 1, nil
			}
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:      true,
		PerMinute:    100,
		PerHour:      1000,
		StoreTimeout: 10 * time.Millisecond,
	})

	start := time.Now()
	result := service.Check(context.Background(), "203.0.113.10", models.RateLimitScopeAuth, models.RateLimitClassCredentials)

	assert.True(t, result.Allowed)
	assert.True(t, result.FailedOpen)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimitService_Check_KeysSeparateScopesAndWindows(t *testing.T) {
	var keys []string
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			keys = append(keys, key)
			return 1, nil
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 100,
		PerHour:   1000,
	})

	service.Check(context.Background(), "principal123", models.RateLimitScopeAPI, models.RateLimitClassSessions)

	require.Len(t, keys, 2)
	assert.True(t, strings.HasPrefix(keys[0], "rl:api:principal123:sessions:minute:"))
	assert.True(t, strings.HasPrefix(keys[1], "rl:api:principal123:sessions:hour:"))
}

func TestRateLimitService_Check_ClassesHaveIndependentBudgets(t *testing.T) {
	counts := map[string]int64{}
	store := &MockCounterStore{
		IncrementFunc: func(ctx context.Context, key string, ttl time.Duration) (int64, error) {
			counts[key]++
			return counts[key], nil
		},
	}

	service := newRateLimitService(store, config.RateLimitConfig{
		Enabled:   true,
		PerMinute: 3,
		PerHour:   1000,
	})

	for i := 0; i < 4; i++ {
		service.Check(context.Background(), "principal123", models.RateLimitScopeAuth, models.RateLimitClassCredentials)
	}
	denied := service.Check(context.Background(), "principal123", models.RateLimitScopeAuth, models.RateLimitClassCredentials)
	assert.False(t, denied.Allowed)

	// Exhausting the credentials budget must not touch the session budget
	// for the same identifier.
	other := service.Check(context.Background(), "principal123", models.RateLimitScopeAPI, models.RateLimitClassSessions)
	assert.True(t, other.Allowed)
	assert.Equal(t, 2, other.Remaining)
}

func TestRateLimitService_BypassRole(t *testing.T) {
	service := newRateLimitService(&MockCounterStore{}, config.RateLimitConfig{
		Enabled:     true,
		AdminBypass: true,
	})

	assert.True(t, service.BypassRole("admin"))
	assert.False(t, service.BypassRole("user"))
	assert.False(t, service.BypassRole(""))

	noBypass := newRateLimitService(&MockCounterStore{}, config.RateLimitConfig{Enabled: true})
	assert.False(t, noBypass.BypassRole("admin"))
}

func TestRateLimitService_Exempt(t *testing.T) {
	service := newRateLimitService(&MockCounterStore{}, config.RateLimitConfig{
		Enabled:        true,
		ExemptPrefixes: []string{"/health"},
	})

	assert.True(t, service.Exempt("/health"))
	assert.True(t, service.Exempt("/health/live"))
	assert.False(t, service.Exempt("/auth/login"))
}
