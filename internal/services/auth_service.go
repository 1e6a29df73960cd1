package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

// PrincipalRepository defines the interface for principal lookup and creation.
type PrincipalRepository interface {
	GetByID(ctx context.Context, id string) (*models.Principal, error)
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
}

// CredentialVerifier is the external collaborator that checks a secret
// against a stored credential. The coordinator only consumes the decision.
type CredentialVerifier interface {
	Verify(hash, secret string) bool
}

// AuthService orchestrates a single login attempt: lockout check, credential
// verification, lockout bookkeeping, and session admission. Rate limiting
// runs in middleware before the request reaches this service.
type AuthService struct {
	repo     PrincipalRepository
	lockout  *LockoutService
	sessions *SessionService
	verifier CredentialVerifier
	tm       *auth.TokenManager
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

func NewAuthService(
	repo PrincipalRepository,
	lockout *LockoutService,
	sessions *SessionService,
	verifier CredentialVerifier,
	tm *auth.TokenManager,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:     repo,
		lockout:  lockout,
		sessions: sessions,
		verifier: verifier,
		tm:       tm,
		logger:   logger,
		audit:    audit,
	}
}

// SessionResponse represents a session in the HTTP response
type SessionResponse struct {
	ID             string `json:"id"`
	DeviceType     string `json:"device_type"`
	IPAddress      string `json:"ip_address,omitempty"`
	CreatedAt      string `json:"created_at"`
	LastActivityAt string `json:"last_activity_at"`
	ExpiresAt      string `json:"expires_at"`
	IsCurrent      bool   `json:"is_current"`
}

// AuthResponse represents the response from a successful login or refresh
type AuthResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	Session      *SessionResponse `json:"session"`
}

// Login authenticates a principal and admits a session.
//
// A locked account fails before the credential is ever verified, so a
// correct and an incorrect secret produce the same error for a locked
// account - the response does not oracle lock status against credential
// validity.
func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) (*AuthResponse, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	principal, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			s.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     meta.IPAddress,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get principal by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if principal.Status != "active" {
		s.logger.Info("login blocked: account not active",
			slog.String("principal_id", principal.ID),
			slog.String("status", principal.Status))
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			PrincipalID:   principal.ID,
			IPAddress:     meta.IPAddress,
			FailureReason: "account_disabled",
			Success:       false,
		})
		return nil, models.ErrAccountDisabled
	}

	if s.lockout.IsLocked(principal, time.Now()) {
		s.logger.Info("login blocked: account locked",
			slog.String("principal_id", principal.ID))
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			PrincipalID:   principal.ID,
			IPAddress:     meta.IPAddress,
			FailureReason: "account_locked",
			Success:       false,
		})
		return nil, models.ErrAccountLocked
	}

	if !s.verifier.Verify(principal.PasswordHash, password) {
		decision, recErr := s.lockout.RecordFailure(ctx, principal.ID)
		if recErr != nil {
			// Lockout state governs the authentication decision; a failed
			// write here must not be swallowed.
			return nil, models.ErrInternalServer
		}

		event := pkglogger.AuditEvent{
			EventType:     "login_failed",
			PrincipalID:   principal.ID,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: "invalid_credentials",
			Success:       false,
		}
		if decision.CausedLock {
			event.FailureReason = "invalid_credentials_lock_triggered"
		}
		s.audit.LogAuthAttempt(event)

		if decision.CausedLock {
			return nil, models.ErrAccountLocked
		}
		return nil, models.ErrUnauthorized
	}

	if err := s.lockout.RecordSuccess(ctx, principal.ID); err != nil {
		return nil, models.ErrInternalServer
	}

	session, err := s.sessions.Admit(ctx, principal.ID, meta)
	if err != nil {
		// Session admission failure is fatal to the login attempt.
		return nil, err
	}

	accessToken, refreshToken, err := s.tm.GenerateTokenPair(principal, session.ID)
	if err != nil {
		s.logger.Error("failed to generate tokens",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("principal logged in",
		slog.String("principal_id", principal.ID),
		slog.String("session_id", session.ID))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:   "login_success",
		PrincipalID: principal.ID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Success:     true,
	})

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Session:      sessionToResponse(session, session.ID),
	}, nil
}

// Logout terminates the caller's own session.
func (s *AuthService) Logout(ctx context.Context, principalID, sessionID string) error {
	if err := s.sessions.Terminate(ctx, sessionID, principalID, models.TerminationReasonUserLogout); err != nil {
		s.logger.Error("failed to terminate session on logout",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("principal logged out",
		slog.String("principal_id", principalID),
		slog.String("session_id", sessionID))
	return nil
}

// RefreshToken rotates the token pair when the refresh token is valid and
// its session is still active.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token",
			slog.String("principal_id", claims.PrincipalID))
		return nil, models.ErrUnauthorized
	}

	// Terminated or evicted sessions cannot be refreshed.
	session, err := s.sessions.GetActive(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	principal, err := s.repo.GetByID(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	if principal.Status != "active" || s.lockout.IsLocked(principal, time.Now()) {
		return nil, models.ErrUnauthorized
	}

	s.sessions.Touch(ctx, session.ID)

	accessToken, refreshToken, err := s.tm.GenerateTokenPair(principal, session.ID)
	if err != nil {
		s.logger.Error("failed to generate tokens on refresh",
			slog.String("principal_id", principal.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("token refreshed",
		slog.String("principal_id", principal.ID),
		slog.String("session_id", session.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Session:      sessionToResponse(session, session.ID),
	}, nil
}

// sessionToResponse converts a session model to a response DTO. IsCurrent is
// computed against the caller's own session id, never stored.
func sessionToResponse(s *models.Session, currentSessionID string) *SessionResponse {
	return &SessionResponse{
		ID:             s.ID,
		DeviceType:     s.DeviceType,
		IPAddress:      s.IPAddress,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		LastActivityAt: s.LastActivityAt.Format(time.RFC3339),
		ExpiresAt:      s.ExpiresAt.Format(time.RFC3339),
		IsCurrent:      s.ID == currentSessionID,
	}
}
