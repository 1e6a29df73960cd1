package models

import "time"

// Session termination reasons. These are stored verbatim on the session
// record and surfaced in audit logs.
const (
	TerminationReasonLimitExceeded = "Session limit exceeded: max 5 concurrent sessions"
	TerminationReasonUserLogout    = "User logout"
	TerminationReasonKeepCurrent   = "Terminated by user - keep current session"
	TerminationReasonExpired       = "Session expired"
	TerminationReasonAdmin         = "Terminated by administrator"
)

// Session is a bounded-lifetime record of a successful authentication,
// bound to one device/client context.
type Session struct {
	ID                string
	PrincipalID       string
	DeviceType        string // "desktop", "mobile", "tablet" - classified once at admission
	IPAddress         string
	UserAgent         string
	CreatedAt         time.Time
	LastActivityAt    time.Time
	ExpiresAt         time.Time
	IsActive          bool
	TerminatedAt      *time.Time
	TerminationReason string
}

// Expired reports whether the session's fixed TTL has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
