package http

import (
	"net/http"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/service"
	"github.com/lamplight/gatehouse/pkg/httpx"
)

// SessionsHandler serves the session registry endpoints.
type SessionsHandler struct {
	SessionService *service.SessionService
}

type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// List serves GET /v1/sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())

	sessions, err := h.SessionService.List(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:         s.ID,
			DeviceName: s.DeviceName,
			CreatedAt:  s.CreatedAt,
			LastSeenAt: s.LastSeenAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// Revoke serves DELETE /v1/sessions/{id}.
func (h *SessionsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}

	if err := h.SessionService.Revoke(r.Context(), accountID, sessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeOthers serves POST /v1/sessions/revoke-others. The caller's own
// session, identified through the access token, survives; everything
// else goes.
func (h *SessionsHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "")
		return
	}

	if err := h.SessionService.RevokeOthers(r.Context(), claims.Subject, claims.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
