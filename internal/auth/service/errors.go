package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidAccessToken = errors.New("invalid_access_token")
	ErrInvalidStateToken  = errors.New("invalid_state_token")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
	ErrMethodNotAvailable = errors.New("mfa_method_not_available")
	ErrMFANotEnabled      = errors.New("mfa_not_enabled")
	ErrMFAAlreadyEnabled  = errors.New("mfa_already_enabled")
	ErrEmailNotVerified   = errors.New("email_not_verified")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrEmailTaken         = errors.New("email_taken")
	ErrSessionNotFound    = errors.New("session_not_found")
)

// AccountLockedError carries the lockout deadline so callers can hint how
// long to wait. It still collapses to a credential failure for anyone who
// shouldn't learn the account exists.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account_locked until %s", e.Until.Format(time.RFC3339))
}

// RateLimitedError carries the wait hint for a 429 response.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate_limited retry after %s", e.RetryAfter)
}

// CooldownError means a code was requested again before the resend window
// elapsed.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend_cooldown retry after %s", e.RetryAfter)
}

// InvalidCodeError is a failed MFA submission with the attempts left on
// this challenge. Remaining 0 means the challenge is burned.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid_code (%d attempts remaining)", e.Remaining)
}
