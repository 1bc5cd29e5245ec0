package domain

import "time"

// TokenPair is what a completed sign-in or refresh returns.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until access expiry
}

// RefreshToken models the stored rotation record. The row ID doubles as
// the refresh JWT's jti, so presenting a token points straight at its row.
type RefreshToken struct {
	ID        string
	AccountID string
	SessionID string

	// TokenHash is the base64url SHA-256 fingerprint of the signed JWT.
	// The raw token is never stored.
	TokenHash string

	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Revoked reports whether the token has been consumed or revoked.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// Expired reports whether the token's lifetime has run out at now.
func (t *RefreshToken) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }
