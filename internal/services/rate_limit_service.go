package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

// CounterStore defines the interface for the shared TTL-capable counter
// store backing the rate limiter.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// rateWindow is one fixed time bucket a request is counted against.
type rateWindow struct {
	kind   string
	length time.Duration
	limit  int
}

// RateLimitService maintains fixed-window counters per identifier across
// multiple simultaneous windows. A request passes only when every window
// has remaining capacity; the returned result reflects the most restrictive
// window.
//
// Counters are increment-and-check: a denied request still consumed one
// slot in each window it was counted against, which keeps the check a
// single round trip per window and matches the counter-store key TTLs.
type RateLimitService struct {
	store       CounterStore
	config      config.RateLimitConfig
	windows     []rateWindow
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewRateLimitService(store CounterStore, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: cfg,
		windows: []rateWindow{
			{kind: "minute", length: time.Minute, limit: cfg.PerMinute},
			{kind: "hour", length: time.Hour, limit: cfg.PerHour},
		},
		logger:      logger,
		auditLogger: pkglogger.NewAuditLogger(logger),
	}
}

// Check counts the request against every window and decides allow/deny.
//
// Fail-open policy: when the counter store is unreachable or the call does
// not complete within the configured budget, the request is allowed and the
// failure logged. Availability of the login path takes precedence over
// strict throttling; lockout and session state never fail open.
func (s *RateLimitService) Check(ctx context.Context, identifier, scope, class string) *models.RateLimitResult {
	now := time.Now()

	result := &models.RateLimitResult{Allowed: true, Limit: -1, Remaining: -1}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	for _, w := range s.windows {
		windowStart := now.Truncate(w.length)
		resetAt := windowStart.Add(w.length)
		key := counterKey(scope, identifier, class, w.kind, windowStart)

		count, err := s.store.Increment(ctx, key, w.length)
		if err != nil {
			s.logger.Error("rate limit check failed open",
				slog.String("identifier", identifier),
				slog.String("scope", scope),
				slog.String("class", class),
				slog.String("window", w.kind),
				slog.Any("error", err))
			s.auditLogger.LogRateLimitEvent(identifier, scope, true)
			return &models.RateLimitResult{Allowed: true, Limit: -1, Remaining: -1, FailedOpen: true}
		}

		remaining := w.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}

		// Track the most restrictive window: minimum remaining, and the
		// nearest reset on a tie.
		if result.Remaining < 0 || remaining < result.Remaining ||
			(remaining == result.Remaining && resetAt.Before(result.ResetAt)) {
			result.Limit = w.limit
			result.Remaining = remaining
			result.ResetAt = resetAt
		}

		if int(count) > w.limit {
			result.Allowed = false
		}
	}

	if !result.Allowed {
		result.RetryAfter = time.Until(result.ResetAt)
		if result.RetryAfter < 0 {
			result.RetryAfter = 0
		}
		s.logger.Warn("rate limit exceeded",
			slog.String("identifier", identifier),
			slog.String("scope", scope),
			slog.String("class", class),
			slog.Time("reset_at", result.ResetAt))
		s.auditLogger.LogRateLimitEvent(identifier, scope, false)
	}

	return result
}

// Enabled reports whether throttling is switched on at all.
func (s *RateLimitService) Enabled() bool {
	return s.config.Enabled
}

// BypassRole reports whether the given role skips rate limiting entirely.
func (s *RateLimitService) BypassRole(role string) bool {
	return s.config.AdminBypass && role == "admin"
}

// Exempt reports whether the request path is excluded from rate limiting.
// Health and monitoring endpoints are matched by prefix before identifier
// resolution even happens.
func (s *RateLimitService) Exempt(path string) bool {
	for _, prefix := range s.config.ExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// counterKey builds the composite window key. Scope and endpoint class keep
// budgets for distinct route groups independent, the window start pins the
// counter to its bucket, and the TTL on first increment makes stale windows
// self-clean.
func counterKey(scope, identifier, class, windowKind string, windowStart time.Time) string {
	return fmt.Sprintf("rl:%s:%s:%s:%s:%d", scope, identifier, class, windowKind, windowStart.Unix())
}
