package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/models"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SessionServiceInterface defines the interface for session management
type SessionServiceInterface interface {
	ListActive(ctx context.Context, principalID string) ([]*models.Session, error)
	Terminate(ctx context.Context, sessionID, principalID, reason string) error
	TerminateAllExcept(ctx context.Context, principalID, keepID string) (int, error)
}

// SessionHandler handles session management HTTP requests
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// SessionListItem represents one session in the active-sessions response
type SessionListItem struct {
	ID             string `json:"id"`
	DeviceType     string `json:"device_type"`
	IPAddress      string `json:"ip_address,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	CreatedAt      string `json:"created_at"`
	LastActivityAt string `json:"last_activity_at"`
	ExpiresAt      string `json:"expires_at"`
	IsCurrent      bool   `json:"is_current"`
}

// SessionListResponse wraps the ordered active-session list
type SessionListResponse struct {
	Sessions []SessionListItem `json:"sessions"`
}

// ListActive returns the caller's active sessions ordered by creation time.
// is_current is computed here against the caller's session id; it is not
// registry state.
func (h *SessionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	sessions, err := h.service.ListActive(r.Context(), claims.PrincipalID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionListItem, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, sessionToListItem(s, claims.SessionID))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Terminate ends one of the caller's sessions. Terminating an already
// inactive session is not an error.
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(sessionID); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid session id")
		return
	}

	if err := h.service.Terminate(r.Context(), sessionID, claims.PrincipalID, models.TerminationReasonUserLogout); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "terminated"})
}

// TerminateAllExceptCurrent ends every other session for the caller,
// leaving only the current one active.
func (h *SessionHandler) TerminateAllExceptCurrent(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	count, err := h.service.TerminateAllExcept(r.Context(), claims.PrincipalID, claims.SessionID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"terminated": count})
}

func sessionToListItem(s *models.Session, currentSessionID string) SessionListItem {
	return SessionListItem{
		ID:             s.ID,
		DeviceType:     s.DeviceType,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt.Format(timeFormat),
		LastActivityAt: s.LastActivityAt.Format(timeFormat),
		ExpiresAt:      s.ExpiresAt.Format(timeFormat),
		IsCurrent:      s.ID == currentSessionID,
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
