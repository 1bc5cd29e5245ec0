package http

import (
	"net/http"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/service"
	"github.com/lamplight/gatehouse/pkg/httpx"
)

// MFASelectHandler serves POST /v1/auth/mfa/select. It trades the
// selection state token for a method-scoped one.
type MFASelectHandler struct {
	SignInService *service.SignInService
}

type mfaSelectRequest struct {
	StateToken string `json:"state_token"`
	Method     string `json:"method"`
}

func (h *MFASelectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req mfaSelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	method := domain.MFAMethod(req.Method)
	if req.StateToken == "" || !method.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "state_token and a valid method are required")
		return
	}

	next, err := h.SignInService.SelectMethod(r.Context(), req.StateToken, method)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"state_token": next,
		"method":      req.Method,
	})
}

// MFASubmitHandler serves POST /v1/auth/mfa/submit. The state token's
// purpose decides which check runs; the method field must agree with it.
type MFASubmitHandler struct {
	SignInService *service.SignInService
}

type mfaSubmitRequest struct {
	StateToken string `json:"state_token"`
	Method     string `json:"method"`
	Code       string `json:"code"`
	DeviceName string `json:"device_name,omitempty"`
}

func (h *MFASubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req mfaSubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StateToken == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "state_token and code are required")
		return
	}

	ctx := r.Context()

	var (
		pair *domain.TokenPair
		err  error
	)
	switch domain.MFAMethod(req.Method) {
	case domain.MFAMethodTOTP:
		pair, err = h.SignInService.SubmitTOTP(ctx, req.StateToken, req.Code, req.DeviceName)
	case domain.MFAMethodEmail:
		pair, err = h.SignInService.SubmitEmailCode(ctx, req.StateToken, req.Code, req.DeviceName)
	case domain.MFAMethodRecoveryCode:
		pair, err = h.SignInService.SubmitRecoveryCode(ctx, req.StateToken, req.Code, req.DeviceName)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown method")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeTokenPair(w, pair)
}

// MFAResendHandler serves POST /v1/auth/mfa/resend for email challenges.
type MFAResendHandler struct {
	SignInService *service.SignInService
}

type mfaResendRequest struct {
	StateToken string `json:"state_token"`
}

func (h *MFAResendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req mfaResendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StateToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "state_token is required")
		return
	}

	if err := h.SignInService.ResendEmailCode(r.Context(), req.StateToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MFACancelHandler serves POST /v1/auth/mfa/cancel. The state token dies
// and the sign-in starts over.
type MFACancelHandler struct {
	SignInService *service.SignInService
}

type mfaCancelRequest struct {
	StateToken string `json:"state_token"`
}

func (h *MFACancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req mfaCancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StateToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "state_token is required")
		return
	}

	if err := h.SignInService.Cancel(r.Context(), req.StateToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
