package http

import (
	"net/http"

	"github.com/lamplight/gatehouse/internal/auth/service"
	"github.com/lamplight/gatehouse/pkg/httpx"
)

// MFAManageHandler serves the authenticated MFA management endpoints:
// enrollment, disabling, and recovery codes.
type MFAManageHandler struct {
	AccountService *service.AccountService
}

// EnrollTOTP serves POST /v1/mfa/totp/enroll. The secret comes back once;
// MFA is not active until the first valid code confirms it.
func (h *MFAManageHandler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())

	enrollment, err := h.AccountService.BeginTOTPEnrollment(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

type confirmTOTPRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP serves POST /v1/mfa/totp/confirm. Activating the first MFA
// method also returns the recovery code batch, shown exactly once.
func (h *MFAManageHandler) ConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	var req confirmTOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	accountID := httpx.UserIDFromContext(r.Context())
	recoveryCodes, err := h.AccountService.ConfirmTOTPEnrollment(r.Context(), accountID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"enabled":        true,
		"recovery_codes": recoveryCodes,
	})
}

type disableMFARequest struct {
	Password string `json:"password"`
}

// DisableTOTP serves POST /v1/mfa/totp/disable.
func (h *MFAManageHandler) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	var req disableMFARequest
	if !decodeJSON(w, r, &req) {
		return
	}

	accountID := httpx.UserIDFromContext(r.Context())
	if err := h.AccountService.DisableTOTP(r.Context(), accountID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnableEmailMFA serves POST /v1/mfa/email/enable.
func (h *MFAManageHandler) EnableEmailMFA(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())

	recoveryCodes, err := h.AccountService.EnableEmailMFA(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"enabled":        true,
		"recovery_codes": recoveryCodes,
	})
}

// DisableEmailMFA serves POST /v1/mfa/email/disable.
func (h *MFAManageHandler) DisableEmailMFA(w http.ResponseWriter, r *http.Request) {
	var req disableMFARequest
	if !decodeJSON(w, r, &req) {
		return
	}

	accountID := httpx.UserIDFromContext(r.Context())
	if err := h.AccountService.DisableEmailMFA(r.Context(), accountID, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegenerateRecoveryCodes serves POST /v1/mfa/recovery-codes/regenerate.
// The old batch stops working entirely.
func (h *MFAManageHandler) RegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())

	codes, err := h.AccountService.RegenerateRecoveryCodes(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"recovery_codes": codes})
}

// RemainingRecoveryCodes serves GET /v1/mfa/recovery-codes.
func (h *MFAManageHandler) RemainingRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())

	remaining, err := h.AccountService.RemainingRecoveryCodes(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}
