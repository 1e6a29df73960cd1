package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/google/uuid"
)

// SessionRepository defines the interface for session persistence.
// AdmitSession must serialize admission+eviction per principal so the
// active-session cap holds under concurrent logins.
type SessionRepository interface {
	AdmitSession(ctx context.Context, session *models.Session, cap int) ([]*models.Session, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListActive(ctx context.Context, principalID string) ([]*models.Session, error)
	Terminate(ctx context.Context, sessionID, reason string) error
	TerminateOwned(ctx context.Context, sessionID, principalID, reason string) error
	TerminateAllExcept(ctx context.Context, principalID, keepID, reason string) (int, error)
	TerminateAll(ctx context.Context, principalID, reason string) (int, error)
	Touch(ctx context.Context, sessionID string) error
}

// ClientMeta carries the client context a session is bound to.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// SessionService manages the set of active sessions per principal and
// enforces the concurrency cap with deterministic oldest-first eviction.
type SessionService struct {
	repo        SessionRepository
	config      config.SessionConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewSessionService(repo SessionRepository, cfg config.SessionConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *SessionService {
	return &SessionService{
		repo:        repo,
		config:      cfg,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Admit creates an active session for the principal, evicting the oldest
// active session when the cap would be exceeded. A storage failure here is
// fatal to the login attempt: a session is the proof of a successful
// authentication and cannot be silently skipped.
func (s *SessionService) Admit(ctx context.Context, principalID string, meta ClientMeta) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		ID:             uuid.New().String(),
		PrincipalID:    principalID,
		DeviceType:     ClassifyDevice(meta.UserAgent),
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.config.TTL),
		IsActive:       true,
	}

	evicted, err := s.repo.AdmitSession(ctx, session, s.config.MaxConcurrent)
	if err != nil {
		s.logger.Error("session admission failed",
			slog.String("principal_id", principalID),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrSessionAdmission, err)
	}

	for _, old := range evicted {
		s.logger.Info("session evicted",
			slog.String("principal_id", principalID),
			slog.String("session_id", old.ID),
			slog.String("reason", old.TerminationReason))
		s.auditLogger.LogSessionEvent("session_evicted", principalID, old.ID, old.TerminationReason)
	}

	s.auditLogger.LogSessionEvent("session_created", principalID, session.ID, "")

	return session, nil
}

// GetActive returns the session when it exists, is active, and has not
// outlived its TTL.
func (s *SessionService) GetActive(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive || session.Expired(time.Now()) {
		return nil, models.ErrNotFound
	}
	return session, nil
}

// ListActive returns the principal's active sessions ordered by creation
// time ascending. Callers compute is_current against their own session id.
func (s *SessionService) ListActive(ctx context.Context, principalID string) ([]*models.Session, error) {
	return s.repo.ListActive(ctx, principalID)
}

// Terminate ends one of the principal's sessions. Terminating a session
// that is already inactive is not an error.
func (s *SessionService) Terminate(ctx context.Context, sessionID, principalID, reason string) error {
	if err := s.repo.TerminateOwned(ctx, sessionID, principalID, reason); err != nil {
		return err
	}

	s.auditLogger.LogSessionEvent("session_terminated", principalID, sessionID, reason)
	return nil
}

// TerminateAllExcept ends every other active session for the principal,
// leaving exactly keepID active.
func (s *SessionService) TerminateAllExcept(ctx context.Context, principalID, keepID string) (int, error) {
	count, err := s.repo.TerminateAllExcept(ctx, principalID, keepID, models.TerminationReasonKeepCurrent)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.auditLogger.LogSessionEvent("sessions_terminated_except_current", principalID, keepID, models.TerminationReasonKeepCurrent)
	}

	return count, nil
}

// TerminateAll ends every active session for the principal. Used when an
// administrative lock must also cut off access held by existing sessions.
func (s *SessionService) TerminateAll(ctx context.Context, principalID, reason string) (int, error) {
	count, err := s.repo.TerminateAll(ctx, principalID, reason)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.auditLogger.LogSessionEvent("sessions_terminated", principalID, "", reason)
	}

	return count, nil
}

// Touch records activity on a session. Failures are logged, not surfaced;
// last-activity is advisory.
func (s *SessionService) Touch(ctx context.Context, sessionID string) {
	if err := s.repo.Touch(ctx, sessionID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("failed to touch session",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
	}
}

// ClassifyDevice derives a coarse device class from the User-Agent header.
// Classification happens once at admission and is stored immutably on the
// session. Tablet is checked before mobile: tablet UAs usually also say
// "Mobile".
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"),
		strings.Contains(ua, "kindle"):
		return "tablet"
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		// Android without "Mobile" is the tablet form factor.
		return "tablet"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "iphone"),
		strings.Contains(ua, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}
