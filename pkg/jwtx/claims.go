package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short access tokens keep the revocation window small;
// refresh tokens carry the long-lived session.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultStateTokenTTL   = 5 * time.Minute
)

// Token types carried in the "type" claim. A token is only ever accepted
// for the purpose its type names; an access token can never refresh and a
// state token can never access resources.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeState   = "state"
)

// State-token purposes. Each names the single pending step of a
// partially completed sign-in.
const (
	PurposeAwaitingMFASelection = "AwaitingMFASelection"
	PurposeAwaitingTOTP         = "AwaitingTOTP"
	PurposeAwaitingEmailCode    = "AwaitingEmailCode"
	PurposeAwaitingRecoveryCode = "AwaitingRecoveryCode"
)

// Claims is the single claim set used for access, refresh, and state
// tokens. The wire names are a compatibility contract; keep changes
// additive.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType discriminates access|refresh|state.
	TokenType string `json:"type,omitempty"`

	// TokenVersion snapshots the account's version counter at issuance.
	// A token whose version trails the account is dead, which is how
	// "sign out everywhere" works without per-token bookkeeping.
	TokenVersion int64 `json:"tokenVersion,omitempty"`

	// Role of the account at issuance, for coarse authorization.
	Role string `json:"role,omitempty"`

	// Purpose is set on state tokens only.
	Purpose string `json:"purpose,omitempty"`

	// PendingMethod is set on state tokens scoped to one MFA method.
	PendingMethod string `json:"pendingMethod,omitempty"`
}

// NewAccessClaims builds claims for a resource-access token.
func NewAccessClaims(
	subject, jti, role string,
	tokenVersion int64,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	c := newBaseClaims(subject, jti, ttl, issuer, audience, now)
	c.TokenType = TokenTypeAccess
	c.TokenVersion = tokenVersion
	c.Role = role
	return c
}

// NewRefreshClaims builds claims for a refresh token. The jti doubles as
// the server-side rotation record id, so it is provided by the caller.
func NewRefreshClaims(
	subject, jti string,
	tokenVersion int64,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	c := newBaseClaims(subject, jti, ttl, issuer, audience, now)
	c.TokenType = TokenTypeRefresh
	c.TokenVersion = tokenVersion
	return c
}

// NewStateClaims builds claims for a partial sign-in state token.
func NewStateClaims(
	subject, jti, purpose, pendingMethod string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	c := newBaseClaims(subject, jti, ttl, issuer, audience, now)
	c.TokenType = TokenTypeState
	c.Purpose = purpose
	c.PendingMethod = pendingMethod
	return c
}

func newBaseClaims(
	subject, jti string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	if jti == "" {
		jti = NewJTI()
	}
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateTokenType ensures the token was minted for the expected use.
func (c *Claims) ValidateTokenType(expected string) error {
	if c.TokenType != expected {
		return ErrTokenType
	}
	return nil
}

// ValidateExpiryAt checks exp/nbf against the provided instant. Expiry is
// always evaluated against an injected clock so tests can pin time.
func (c *Claims) ValidateExpiryAt(now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateExpiry is ValidateExpiryAt against the wall clock.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryAt(time.Now().UTC())
}
