package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LockoutServiceInterface defines the interface for administrative lock control
type LockoutServiceInterface interface {
	Lock(ctx context.Context, principalID string, until *time.Time, reason string) error
	Unlock(ctx context.Context, principalID string) error
}

// SessionTerminator cuts off access held by a principal's live sessions.
// Implemented by services.SessionService.
type SessionTerminator interface {
	TerminateAll(ctx context.Context, principalID, reason string) (int, error)
}

// AdminHandler handles administrative account-security operations
type AdminHandler struct {
	lockout  LockoutServiceInterface
	sessions SessionTerminator
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(lockout LockoutServiceInterface, sessions SessionTerminator) *AdminHandler {
	return &AdminHandler{lockout: lockout, sessions: sessions}
}

// LockRequest represents the request body for an administrative lock
type LockRequest struct {
	Reason   string `json:"reason" validate:"required,min=1,max=255"`
	Duration string `json:"duration,omitempty"` // Go duration; empty means permanent
}

// LockPrincipal applies an administrative lock. Omitting duration locks the
// account permanently; a permanent lock is never auto-cleared.
func (h *AdminHandler) LockPrincipal(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(principalID); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid principal id")
		return
	}

	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var until *time.Time
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			pkghttp.WriteBadRequest(w, "Invalid lock duration")
			return
		}
		t := time.Now().Add(d)
		until = &t
	}

	if err := h.lockout.Lock(r.Context(), principalID, until, req.Reason); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Principal not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	// A lock blocks new logins; live sessions are cut off here so the lock
	// takes effect immediately rather than when tokens expire.
	terminated, err := h.sessions.TerminateAll(r.Context(), principalID, models.TerminationReasonAdmin)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":              "locked",
		"sessions_terminated": terminated,
	})
}

// UnlockPrincipal clears any lock and resets the failure counter.
func (h *AdminHandler) UnlockPrincipal(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(principalID); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid principal id")
		return
	}

	if err := h.lockout.Unlock(r.Context(), principalID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Principal not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "unlocked"})
}
