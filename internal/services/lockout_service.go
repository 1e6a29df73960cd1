package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

// LockReasonTooManyFailures is stored on the principal when the failed-login
// threshold triggers a lock.
const LockReasonTooManyFailures = "Too many failed login attempts"

// LockoutRepository defines the interface for lockout state persistence.
// RecordFailure must perform the increment-compare-set as a single atomic
// update so concurrent failures cannot both skip the lock transition.
type LockoutRepository interface {
	RecordFailure(ctx context.Context, id string, threshold int, lockUntil time.Time, reason string) (*models.LockoutDecision, error)
	ResetFailures(ctx context.Context, id string) error
	SetLock(ctx context.Context, id string, until *time.Time, reason string) error
	ClearLock(ctx context.Context, id string) error
}

// LockoutService owns the failed-login counter and the lock state machine:
// UNLOCKED --(threshold-th failure)--> LOCKED(timed), lifted lazily at check
// time once locked_until passes. Admin locks may be permanent (nil until)
// and are never auto-cleared.
type LockoutService struct {
	repo        LockoutRepository
	config      config.LockoutConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewLockoutService(repo LockoutRepository, cfg config.LockoutConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LockoutService {
	return &LockoutService{
		repo:        repo,
		config:      cfg,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// RecordFailure counts a failed login attempt and reports whether this call
// caused the lock transition, for caller-side messaging and auditing.
func (s *LockoutService) RecordFailure(ctx context.Context, principalID string) (*models.LockoutDecision, error) {
	lockUntil := time.Now().Add(s.config.Duration)

	decision, err := s.repo.RecordFailure(ctx, principalID, s.config.Threshold, lockUntil, LockReasonTooManyFailures)
	if err != nil {
		s.logger.Error("failed to record login failure",
			slog.String("principal_id", principalID),
			slog.Any("error", err))
		return nil, err
	}

	if decision.CausedLock {
		s.logger.Warn("account locked after repeated failures",
			slog.String("principal_id", principalID),
			slog.Int("failed_attempts", decision.FailedAttempts))
		s.auditLogger.LogAccountAction("account_locked", principalID, LockReasonTooManyFailures, map[string]string{
			"failed_attempts": strconv.Itoa(decision.FailedAttempts),
		})
	}

	return decision, nil
}

// RecordSuccess resets the failure counter unconditionally. It never touches
// the lock itself; an expired lock is simply found expired on the next
// IsLocked check.
func (s *LockoutService) RecordSuccess(ctx context.Context, principalID string) error {
	if err := s.repo.ResetFailures(ctx, principalID); err != nil {
		s.logger.Error("failed to reset failure counter",
			slog.String("principal_id", principalID),
			slog.Any("error", err))
		return err
	}
	return nil
}

// IsLocked evaluates the lock lazily against now. A nil locked_until on a
// locked account is a permanent lock.
func (s *LockoutService) IsLocked(p *models.Principal, now time.Time) bool {
	if !p.AccountLocked {
		return false
	}
	if p.LockedUntil == nil {
		return true
	}
	return p.LockedUntil.After(now)
}

// Lock applies an administrative lock. A nil until locks permanently.
func (s *LockoutService) Lock(ctx context.Context, principalID string, until *time.Time, reason string) error {
	if err := s.repo.SetLock(ctx, principalID, until, reason); err != nil {
		return err
	}

	s.auditLogger.LogAccountAction("account_locked_by_admin", principalID, reason, nil)
	return nil
}

// Unlock clears any lock and the failure counter.
func (s *LockoutService) Unlock(ctx context.Context, principalID string) error {
	if err := s.repo.ClearLock(ctx, principalID); err != nil {
		return err
	}

	s.auditLogger.LogAccountAction("account_unlocked", principalID, "", nil)
	return nil
}
