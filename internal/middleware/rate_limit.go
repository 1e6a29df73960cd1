package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/models"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitService is the decision core the middleware wraps. The middleware
// is the thin I/O shell: identifier resolution, bypass, headers, 429.
// Implemented by services.RateLimitService.
type RateLimitService interface {
	Check(ctx context.Context, identifier, scope, class string) *models.RateLimitResult
	Enabled() bool
	BypassRole(role string) bool
	Exempt(path string) bool
}

// RateLimit throttles requests per identifier across the limiter's windows.
//
// Evaluation order: exempt path prefixes (health checks, before identifier
// resolution) → disabled toggle → identifier resolution (authenticated
// principal id wins over client IP) → role bypass → counter check. Denials
// get Retry-After plus the X-RateLimit-* trio; allowed responses carry the
// same quota headers.
func RateLimit(limiter RateLimitService, ipConfig *pkghttp.IPConfig, scope, class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Enabled() || limiter.Exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			identifier := pkghttp.ExtractClientIP(r, ipConfig)
			if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
				identifier = claims.PrincipalID
				if limiter.BypassRole(claims.Role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			result := limiter.Check(r.Context(), identifier, scope, class)

			if !result.FailedOpen {
				pkghttp.SetRateLimitHeaders(w, result.Limit, result.Remaining, result.ResetAt)
			}

			if !result.Allowed {
				pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthRateLimitConfig holds the coarse outer per-IP guard applied to auth
// endpoints in addition to the counter-store limiter.
type AuthRateLimitConfig struct {
	RequestsPerMinute int
}

// RateLimitByIP is a process-local, in-memory guard in front of the shared
// limiter. It is not authoritative across instances; the counter store is.
func RateLimitByIP(config AuthRateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", time.Minute)
		}),
	)
}
