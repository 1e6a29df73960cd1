package models

import (
	"time"
)

// Principal is an identity capable of authenticating.
type Principal struct {
	ID                  string
	Email               string
	PasswordHash        string
	Name                string
	Role                string // "user", "admin"
	Status              string // "active", "disabled"
	FailedLoginAttempts int
	AccountLocked       bool
	LockedUntil         *time.Time // nil while AccountLocked means a permanent lock
	LockReason          string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LockoutDecision reports the outcome of recording a failed login attempt.
type LockoutDecision struct {
	FailedAttempts int
	Locked         bool
	CausedLock     bool // true only on the attempt that transitioned the account into the locked state
	LockedUntil    *time.Time
}
