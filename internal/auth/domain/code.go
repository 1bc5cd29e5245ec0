package domain

import "time"

// Secret-code purposes. One live code per (owner, purpose); issuing a new
// one supersedes the old.
const (
	CodePurposeMFA           = "mfa"
	CodePurposeVerifyEmail   = "verify_email"
	CodePurposeResetPassword = "reset_password"
)

// SecretCode is a short-lived emailed code. Only the fingerprint of the
// code is stored.
type SecretCode struct {
	ID         string
	OwnerID    string
	Purpose    string
	CodeHash   string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Consumed reports whether the code was already used.
func (c *SecretCode) Consumed() bool { return c.ConsumedAt != nil }

// Expired reports whether the code's window has closed at now.
func (c *SecretCode) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// RecoveryCode is one single-use fallback code from an account's batch.
type RecoveryCode struct {
	ID         string
	AccountID  string
	CodeHash   string
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Consumed reports whether the code was already spent.
func (c *RecoveryCode) Consumed() bool { return c.ConsumedAt != nil }
