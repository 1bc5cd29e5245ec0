package domain

import "time"

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2 encoded

	Role string

	// TokenVersion is stamped into every issued token. Bumping it kills
	// all outstanding tokens for the account at once.
	TokenVersion int64

	// EmailVerified is the timestamp the address was confirmed (nullable).
	EmailVerified *time.Time

	// TOTPSecret holds the base32 secret (nullable). A secret with a nil
	// TOTPEnabled is a pending enrollment awaiting its first valid code.
	TOTPSecret  *string
	TOTPEnabled *time.Time

	// EmailMFAEnabled is when email-code MFA was switched on (nullable).
	EmailMFAEnabled *time.Time

	// FailedLogins counts consecutive credential failures. Reset on
	// success, drives LockedUntil on overflow.
	FailedLogins int
	LockedUntil  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account is under a lockout window at t.
func (a *Account) Locked(t time.Time) bool {
	return a.LockedUntil != nil && t.Before(*a.LockedUntil)
}

// TOTPActive reports whether TOTP enrollment has been confirmed.
func (a *Account) TOTPActive() bool {
	return a.TOTPSecret != nil && a.TOTPEnabled != nil
}

// EmailMFAActive reports whether email-code MFA is switched on.
func (a *Account) EmailMFAActive() bool {
	return a.EmailMFAEnabled != nil
}

// MFARequired reports whether sign-in must pass a second factor.
func (a *Account) MFARequired() bool {
	return a.TOTPActive() || a.EmailMFAActive()
}

// EnabledMethods lists the second factors the account can choose from.
// Recovery codes ride along whenever any real method is enabled.
func (a *Account) EnabledMethods() []MFAMethod {
	var methods []MFAMethod
	if a.TOTPActive() {
		methods = append(methods, MFAMethodTOTP)
	}
	if a.EmailMFAActive() {
		methods = append(methods, MFAMethodEmail)
	}
	if len(methods) > 0 {
		methods = append(methods, MFAMethodRecoveryCode)
	}
	return methods
}
