package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the service.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeAccountLocked      = "account_locked"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeResendCooldown     = "resend_cooldown"
	ErrorCodeTooManyAttempts    = "too_many_attempts"
	ErrorCodeMethodNotAvailable = "mfa_method_not_available"
	ErrorCodeMFANotEnabled      = "mfa_not_enabled"
	ErrorCodeMFAAlreadyEnabled  = "mfa_already_enabled"
	ErrorCodeEmailNotVerified   = "email_not_verified"
	ErrorCodeUsernameTaken      = "username_taken"
	ErrorCodeEmailTaken         = "email_taken"
	ErrorCodeWeakPassword       = "weak_password"
	ErrorCodeSessionNotFound    = "session_not_found"
	ErrorCodeInternalError      = "internal_error"
)

// APIError is the service's error envelope. It implements error, so SDK
// calls return it directly and callers can switch on Code.
type APIError struct {
	// StatusCode is the HTTP status the service answered with.
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`

	// RetryAfter is set (seconds) on rate-limit and lockout responses.
	RetryAfter int `json:"retry_after,omitempty"`

	// Remaining is set on rejected MFA submissions: attempts left before
	// the challenge dies.
	Remaining *int `json:"remaining,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// HasErrorCode reports whether err is an APIError carrying the code.
func HasErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns a non-2xx response body into an *APIError.
// Bodies that are not the error envelope still produce a usable error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = ErrorCodeInternalError
		apiErr.Description = fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)
	}
	return apiErr
}
