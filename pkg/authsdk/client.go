package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the gatehouse authentication service. It
// handles the unauthenticated surface and produces Sessions for the rest.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with a sensible default timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account. The service mails a verification code to
// the address; verify it through the session's VerifyEmail.
func (c *SDKClient) Register(ctx context.Context, username, email, password string) (*RegisteredAccount, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var account RegisteredAccount
	if err := decodeJSON(resp, &account, http.StatusCreated); err != nil {
		return nil, err
	}
	return &account, nil
}

// SignInResult is the outcome of a credential check: a ready Session, or
// a Challenge when a second factor is still required. Exactly one is set.
type SignInResult struct {
	Session   *Session
	Challenge *Challenge
}

// SignIn checks credentials. MFA-enabled accounts get a Challenge back
// instead of a Session.
func (c *SDKClient) SignIn(ctx context.Context, identifier, password, deviceName string) (*SignInResult, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/signin", map[string]string{
		"identifier":  identifier,
		"password":    password,
		"device_name": deviceName,
	})
	if err != nil {
		return nil, err
	}

	// The endpoint answers 200 for both shapes; mfa_required tells them
	// apart.
	var raw struct {
		challengeResponse
		TokenResponse
	}
	if err := decodeJSON(resp, &raw, http.StatusOK); err != nil {
		return nil, err
	}

	if raw.MFARequired {
		return &SignInResult{Challenge: &Challenge{
			client:     c,
			StateToken: raw.StateToken,
			Methods:    raw.Methods,
		}}, nil
	}
	return &SignInResult{Session: newSession(c, raw.TokenResponse)}, nil
}

// AuthenticateWithRefreshToken creates a Session from a stored refresh
// token. The token is rotated in the process.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokens, err := c.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, *tokens), nil
}

// RefreshTokens exchanges a refresh token for a fresh pair. The presented
// token stops working.
func (c *SDKClient) RefreshTokens(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// ForgotPassword requests a reset code. The answer is the same whether or
// not the address matches an account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/forgot-password", map[string]string{
		"email": email,
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// ResetPassword sets a new password using the mailed code. Every session
// and token on the account dies.
func (c *SDKClient) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/reset-password", map[string]string{
		"email":        email,
		"code":         code,
		"new_password": newPassword,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// JWKS fetches the service's public verification keys.
func (c *SDKClient) JWKS(ctx context.Context) (*JWKS, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/.well-known/jwks.json", nil)
	if err != nil {
		return nil, err
	}

	var keys JWKS
	if err := decodeJSON(resp, &keys, http.StatusOK); err != nil {
		return nil, err
	}
	return &keys, nil
}

// Livez hits the liveness probe.
func (c *SDKClient) Livez(ctx context.Context) (*HealthStatus, error) {
	return c.health(ctx, "/livez")
}

// Readyz hits the readiness probe.
func (c *SDKClient) Readyz(ctx context.Context) (*HealthStatus, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthStatus, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := decodeJSON(resp, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}
