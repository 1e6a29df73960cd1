package models

import "time"

// Rate limit scopes identify which part of the API a counter guards;
// endpoint classes split a scope's routes onto separate budgets. Both
// dimensions are part of the counter key, so credential attempts never
// drain the quota of the authenticated surface and vice versa.
const (
	RateLimitScopeAuth = "auth"
	RateLimitScopeAPI  = "api"

	RateLimitClassCredentials = "credentials"
	RateLimitClassSessions    = "sessions"
	RateLimitClassAdmin       = "admin"
)

// RateLimitResult is the decision for a single request against all
// configured windows. When more than one window applies, Remaining and
// ResetAt reflect the most restrictive one.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // non-zero only when the request was denied
	FailedOpen bool          // counter store was unreachable; request allowed by policy
}
