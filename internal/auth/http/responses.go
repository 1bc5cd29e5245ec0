package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/service"
	"github.com/lamplight/gatehouse/pkg/cryptox"
	"github.com/lamplight/gatehouse/pkg/httpx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`

	// RetryAfter mirrors the Retry-After header in seconds, when present.
	RetryAfter int `json:"retry_after,omitempty"`

	// Remaining is the attempts left on an MFA challenge.
	Remaining *int `json:"remaining,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

func writeRetryAfter(w http.ResponseWriter, status int, code string, retryAfter time.Duration) {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	httpx.WriteJSON(w, status, ErrorResponse{Error: code, RetryAfter: seconds})
}

// decodeJSON parses a JSON request body into dst. Unknown fields are
// rejected so typos fail loudly instead of silently.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

// writeServiceError maps the service error taxonomy onto HTTP. Anything
// unmapped is a 500 with a generic body; details go to the log only.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		locked      *service.AccountLockedError
		rateLimited *service.RateLimitedError
		cooldown    *service.CooldownError
		invalidCode *service.InvalidCodeError
	)

	switch {
	case errors.As(err, &locked):
		retryAfter := time.Until(locked.Until)
		writeRetryAfter(w, http.StatusForbidden, "account_locked", retryAfter)

	case errors.As(err, &rateLimited):
		writeRetryAfter(w, http.StatusTooManyRequests, "rate_limited", rateLimited.RetryAfter)

	case errors.As(err, &cooldown):
		writeRetryAfter(w, http.StatusTooManyRequests, "resend_cooldown", cooldown.RetryAfter)

	case errors.As(err, &invalidCode):
		remaining := invalidCode.Remaining
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:     "invalid_code",
			Remaining: &remaining,
		})

	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "")

	case errors.Is(err, service.ErrInvalidRefresh),
		errors.Is(err, service.ErrInvalidAccessToken),
		errors.Is(err, service.ErrInvalidStateToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "")

	case errors.Is(err, service.ErrInvalidCode):
		writeError(w, http.StatusUnauthorized, "invalid_code", "")

	case errors.Is(err, service.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "too_many_attempts", "challenge exhausted, sign in again")

	case errors.Is(err, service.ErrMethodNotAvailable):
		writeError(w, http.StatusBadRequest, "mfa_method_not_available", "")

	case errors.Is(err, service.ErrMFANotEnabled):
		writeError(w, http.StatusConflict, "mfa_not_enabled", "")

	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		writeError(w, http.StatusConflict, "mfa_already_enabled", "")

	case errors.Is(err, service.ErrEmailNotVerified):
		writeError(w, http.StatusForbidden, "email_not_verified", "")

	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", "")

	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "")

	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "")

	case errors.Is(err, cryptox.ErrPasswordTooShort),
		errors.Is(err, cryptox.ErrPasswordTooLong),
		errors.Is(err, cryptox.ErrPasswordTooWeak):
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())

	default:
		slogx.FromContext(r.Context()).Error("internal error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
