package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/services"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds principal claims to request context for testing
// authenticated endpoints
func WithAuthContext(req *http.Request, principalID, sessionID string) *http.Request {
	claims := &models.TokenClaims{
		PrincipalID: principalID,
		SessionID:   sessionID,
		Type:        "access",
		Role:        "user",
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, email, password string, meta services.ClientMeta) (*services.AuthResponse, error)
	LogoutFunc       func(ctx context.Context, principalID, sessionID string) error
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.ClientMeta) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, principalID, sessionID string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, principalID, sessionID)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	ListActiveFunc         func(ctx context.Context, principalID string) ([]*models.Session, error)
	TerminateFunc          func(ctx context.Context, sessionID, principalID, reason string) error
	TerminateAllExceptFunc func(ctx context.Context, principalID, keepID string) (int, error)
}

func (m *MockSessionService) ListActive(ctx context.Context, principalID string) ([]*models.Session, error) {
	if m.ListActiveFunc == nil {
		return []*models.Session{}, nil
	}
	return m.ListActiveFunc(ctx, principalID)
}

func (m *MockSessionService) Terminate(ctx context.Context, sessionID, principalID, reason string) error {
	if m.TerminateFunc == nil {
		return nil
	}
	return m.TerminateFunc(ctx, sessionID, principalID, reason)
}

func (m *MockSessionService) TerminateAllExcept(ctx context.Context, principalID, keepID string) (int, error) {
	if m.TerminateAllExceptFunc == nil {
		return 0, nil
	}
	return m.TerminateAllExceptFunc(ctx, principalID, keepID)
}

// MockSessionTerminator implements SessionTerminator for testing
type MockSessionTerminator struct {
	TerminateAllFunc func(ctx context.Context, principalID, reason string) (int, error)
}

func (m *MockSessionTerminator) TerminateAll(ctx context.Context, principalID, reason string) (int, error) {
	if m.TerminateAllFunc == nil {
		return 0, nil
	}
	return m.TerminateAllFunc(ctx, principalID, reason)
}

// MockLockoutService implements LockoutServiceInterface for testing
type MockLockoutService struct {
	LockFunc   func(ctx context.Context, principalID string, until *time.Time, reason string) error
	UnlockFunc func(ctx context.Context, principalID string) error
}

func (m *MockLockoutService) Lock(ctx context.Context, principalID string, until *time.Time, reason string) error {
	if m.LockFunc == nil {
		return nil
	}
	return m.LockFunc(ctx, principalID, until, reason)
}

func (m *MockLockoutService) Unlock(ctx context.Context, principalID string) error {
	if m.UnlockFunc == nil {
		return nil
	}
	return m.UnlockFunc(ctx, principalID)
}
