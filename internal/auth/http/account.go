package http

import (
	"net/http"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/service"
	"github.com/lamplight/gatehouse/pkg/httpx"
)

// AccountHandler serves the authenticated account endpoints.
type AccountHandler struct {
	AccountService *service.AccountService
}

type meResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	TOTPEnabled   bool       `json:"totp_enabled"`
	EmailMFA      bool       `json:"email_mfa_enabled"`
	CreatedAt     time.Time  `json:"created_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
}

// Me serves GET /v1/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())

	account, err := h.AccountService.Get(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, meResponse{
		ID:            account.ID,
		Username:      account.Username,
		Email:         account.Email,
		Role:          account.Role,
		EmailVerified: account.EmailVerified != nil,
		TOTPEnabled:   account.TOTPActive(),
		EmailMFA:      account.EmailMFAActive(),
		CreatedAt:     account.CreatedAt,
		LockedUntil:   account.LockedUntil,
	})
}

type verifyEmailRequest struct {
	Code string `json:"code"`
}

// VerifyEmail serves POST /v1/account/verify-email.
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	accountID := httpx.UserIDFromContext(r.Context())
	if err := h.AccountService.VerifyEmail(r.Context(), accountID, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestVerification serves POST /v1/account/verify-email/resend.
func (h *AccountHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())
	if err := h.AccountService.RequestEmailVerification(r.Context(), accountID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword serves POST /v1/account/change-password. Every existing
// session and token dies with the old password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "current_password and new_password are required")
		return
	}

	accountID := httpx.UserIDFromContext(r.Context())
	if err := h.AccountService.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SignOutEverywhere serves POST /v1/account/signout-everywhere.
func (h *AccountHandler) SignOutEverywhere(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())
	if err := h.AccountService.SignOutEverywhere(r.Context(), accountID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
