package services

import (
	"context"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/google/uuid"
)

// MockPrincipalRepository implements PrincipalRepository for testing
type MockPrincipalRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.Principal, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.Principal, error)
	CreateFunc     func(ctx context.Context, p *models.Principal) (*models.Principal, error)
}

func (m *MockPrincipalRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockPrincipalRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockPrincipalRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	return nil, models.ErrInternalServer
}

// MockLockoutRepository implements LockoutRepository for testing
type MockLockoutRepository struct {
	RecordFailureFunc func(ctx context.Context, id string, threshold int, lockUntil time.Time, reason string) (*models.LockoutDecision, error)
	ResetFailuresFunc func(ctx context.Context, id string) error
	SetLockFunc       func(ctx context.Context, id string, until *time.Time, reason string) error
	ClearLockFunc     func(ctx context.Context, id string) error
}

func (m *MockLockoutRepository) RecordFailure(ctx context.Context, id string, threshold int, lockUntil time.Time, reason string) (*models.LockoutDecision, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, id, threshold, lockUntil, reason)
	}
	return &models.LockoutDecision{FailedAttempts: 1}, nil
}

func (m *MockLockoutRepository) ResetFailures(ctx context.Context, id string) error {
	if m.ResetFailuresFunc != nil {
		return m.ResetFailuresFunc(ctx, id)
	}
	return nil
}

func (m *MockLockoutRepository) SetLock(ctx context.Context, id string, until *time.Time, reason string) error {
	if m.SetLockFunc != nil {
		return m.SetLockFunc(ctx, id, until, reason)
	}
	return nil
}

func (m *MockLockoutRepository) ClearLock(ctx context.Context, id string) error {
	if m.ClearLockFunc != nil {
		return m.ClearLockFunc(ctx, id)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	AdmitSessionFunc       func(ctx context.Context, session *models.Session, cap int) ([]*models.Session, error)
	GetByIDFunc            func(ctx context.Context, id string) (*models.Session, error)
	ListActiveFunc         func(ctx context.Context, principalID string) ([]*models.Session, error)
	TerminateFunc          func(ctx context.Context, sessionID, reason string) error
	TerminateOwnedFunc     func(ctx context.Context, sessionID, principalID, reason string) error
	TerminateAllExceptFunc func(ctx context.Context, principalID, keepID, reason string) (int, error)
	TerminateAllFunc       func(ctx context.Context, principalID, reason string) (int, error)
	TouchFunc              func(ctx context.Context, sessionID string) error
}

func (m *MockSessionRepository) AdmitSession(ctx context.Context, session *models.Session, cap int) ([]*models.Session, error) {
	if m.AdmitSessionFunc != nil {
		return m.AdmitSessionFunc(ctx, session, cap)
	}
	return nil, nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) ListActive(ctx context.Context, principalID string) ([]*models.Session, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, principalID)
	}
	return []*models.Session{}, nil
}

func (m *MockSessionRepository) Terminate(ctx context.Context, sessionID, reason string) error {
	if m.TerminateFunc != nil {
		return m.TerminateFunc(ctx, sessionID, reason)
	}
	return nil
}

func (m *MockSessionRepository) TerminateOwned(ctx context.Context, sessionID, principalID, reason string) error {
	if m.TerminateOwnedFunc != nil {
		return m.TerminateOwnedFunc(ctx, sessionID, principalID, reason)
	}
	return nil
}

func (m *MockSessionRepository) TerminateAllExcept(ctx context.Context, principalID, keepID, reason string) (int, error) {
	if m.TerminateAllExceptFunc != nil {
		return m.TerminateAllExceptFunc(ctx, principalID, keepID, reason)
	}
	return 0, nil
}

func (m *MockSessionRepository) TerminateAll(ctx context.Context, principalID, reason string) (int, error) {
	if m.TerminateAllFunc != nil {
		return m.TerminateAllFunc(ctx, principalID, reason)
	}
	return 0, nil
}

func (m *MockSessionRepository) Touch(ctx context.Context, sessionID string) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, sessionID)
	}
	return nil
}

// MockCounterStore implements CounterStore for testing
type MockCounterStore struct {
	IncrementFunc func(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func (m *MockCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.IncrementFunc != nil {
		return m.IncrementFunc(ctx, key, ttl)
	}
	return 1, nil
}

// MockCredentialVerifier implements CredentialVerifier for testing
type MockCredentialVerifier struct {
	VerifyFunc func(hash, secret string) bool
}

func (m *MockCredentialVerifier) Verify(hash, secret string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(hash, secret)
	}
	return hash == secret
}

// NewTestPrincipal creates an active principal for testing
func NewTestPrincipal(id, email string) *models.Principal {
	now := time.Now()
	return &models.Principal{
		ID:           id,
		Email:        email,
		PasswordHash: "hashed-password",
		Name:         "Test Principal",
		Role:         "user",
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestSession creates an active session for testing
func NewTestSession(principalID string, createdAt time.Time) *models.Session {
	return &models.Session{
		ID:             uuid.New().String(),
		PrincipalID:    principalID,
		DeviceType:     "desktop",
		IPAddress:      "203.0.113.10",
		UserAgent:      "test-agent",
		CreatedAt:      createdAt,
		LastActivityAt: createdAt,
		ExpiresAt:      createdAt.Add(24 * time.Hour),
		IsActive:       true,
	}
}
