package authsdk

import "time"

// MFA method names accepted by the challenge endpoints.
const (
	MethodTOTP         = "totp"
	MethodEmail        = "email"
	MethodRecoveryCode = "recovery_code"
)

// TokenResponse is the token pair as issued by sign-in, MFA completion,
// and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// Account is the authenticated profile from GET /v1/me.
type Account struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	EmailVerified   bool       `json:"email_verified"`
	TOTPEnabled     bool       `json:"totp_enabled"`
	EmailMFAEnabled bool       `json:"email_mfa_enabled"`
	CreatedAt       time.Time  `json:"created_at"`
	LockedUntil     *time.Time `json:"locked_until,omitempty"`
}

// RegisteredAccount is the response to a successful registration.
type RegisteredAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SessionInfo describes one device session in the registry.
type SessionInfo struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// TOTPEnrollment is the one-time enrollment material: the shared secret
// and the otpauth URL for QR rendering.
type TOTPEnrollment struct {
	Secret  string `json:"secret"`
	URL     string `json:"otpauth_url"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// MFAActivation is returned when an MFA method turns on. RecoveryCodes is
// non-empty only for the account's first method; it is shown exactly once.
type MFAActivation struct {
	Enabled       bool     `json:"enabled"`
	RecoveryCodes []string `json:"recovery_codes"`
}

// JWK is one verification key from the JWKS endpoint.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKS is the key set published at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// HealthStatus is the body of /livez and /readyz.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type challengeResponse struct {
	MFARequired bool     `json:"mfa_required"`
	StateToken  string   `json:"state_token"`
	Methods     []string `json:"methods"`
}

type selectResponse struct {
	StateToken string `json:"state_token"`
	Method     string `json:"method"`
}

type sessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type recoveryCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

type remainingResponse struct {
	Remaining int `json:"remaining"`
}
