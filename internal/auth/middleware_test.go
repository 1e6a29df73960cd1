package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSessionChecker implements SessionChecker for testing
type mockSessionChecker struct {
	GetActiveFunc func(ctx context.Context, sessionID string) (*models.Session, error)
}

func (m *mockSessionChecker) GetActive(ctx context.Context, sessionID string) (*models.Session, error) {
	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx, sessionID)
	}
	return &models.Session{ID: sessionID, IsActive: true}, nil
}

func runMiddleware(t *testing.T, tm *TokenManager, sessions SessionChecker, authHeader string) (*httptest.ResponseRecorder, *models.TokenClaims) {
	t.Helper()

	var captured *models.TokenClaims
	handler := Middleware(tm, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions/active", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec, captured
}

func TestMiddleware_ValidToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	access, _, err := tm.GenerateTokenPair(testPrincipal(), "session456")
	require.NoError(t, err)

	rec, claims := runMiddleware(t, tm, &mockSessionChecker{}, "Bearer "+access)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "principal123", claims.PrincipalID)
	assert.Equal(t, "session456", claims.SessionID)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	rec, _ := runMiddleware(t, tm, &mockSessionChecker{}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	rec, _ := runMiddleware(t, tm, &mockSessionChecker{}, "Token abc123")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_RejectsRefreshToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	_, refresh, err := tm.GenerateTokenPair(testPrincipal(), "session456")
	require.NoError(t, err)

	rec, _ := runMiddleware(t, tm, &mockSessionChecker{}, "Bearer "+refresh)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_TerminatedSessionRejected(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	access, _, err := tm.GenerateTokenPair(testPrincipal(), "session456")
	require.NoError(t, err)

	sessions := &mockSessionChecker{
		GetActiveFunc: func(ctx context.Context, sessionID string) (*models.Session, error) {
			return nil, models.ErrNotFound
		},
	}

	rec, _ := runMiddleware(t, tm, sessions, "Bearer "+access)

	// A valid token whose session was evicted or terminated is refused.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_SessionCheckerErrorFailsClosed(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	access, _, err := tm.GenerateTokenPair(testPrincipal(), "session456")
	require.NoError(t, err)

	sessions := &mockSessionChecker{
		GetActiveFunc: func(ctx context.Context, sessionID string) (*models.Session, error) {
			return nil, models.ErrInternalServer
		},
	}

	rec, _ := runMiddleware(t, tm, sessions, "Bearer "+access)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("admin allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/principals/p1/lock", nil)
		ctx := context.WithValue(req.Context(), ClaimsContextKey, &models.TokenClaims{Role: "admin"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/principals/p1/lock", nil)
		ctx := context.WithValue(req.Context(), ClaimsContextKey, &models.TokenClaims{Role: "user"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `"forbidden"`)
	})

	t.Run("no claims unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/principals/p1/lock", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
