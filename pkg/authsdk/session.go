package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Session is an authenticated connection to the service. It refreshes the
// access token automatically when it expires and is safe for concurrent
// use.
type Session struct {
	client *SDKClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, tokens TokenResponse) *Session {
	s := &Session{client: client}
	s.setTokens(tokens)
	return s
}

// NewSessionFromTokens rebuilds a Session from stored tokens, for example
// after a process restart. Auto-refresh still applies.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second).Add(-30 * time.Second),
	}
}

func (s *Session) setTokens(tokens TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	// Refresh slightly early so in-flight requests don't race expiry.
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second).Add(-30 * time.Second)
}

// RefreshToken returns the current refresh token for persistence. It
// changes on every refresh, so store it again before shutdown.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// getValidToken returns a usable access token, rotating the pair first
// when the current one has expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	tokens, err := s.client.RefreshTokens(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}

	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second).Add(-30 * time.Second)
	return s.accessToken, nil
}

// SignOut tears down this session server-side. The Session is unusable
// afterwards.
func (s *Session) SignOut(ctx context.Context) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/auth/signout", map[string]string{
		"refresh_token": s.RefreshToken(),
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Me fetches the authenticated account profile.
func (s *Session) Me(ctx context.Context) (*Account, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodGet, "/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var account Account
	if err := decodeJSON(resp, &account, http.StatusOK); err != nil {
		return nil, err
	}
	return &account, nil
}

// VerifyEmail confirms the account's address with the mailed code.
func (s *Session) VerifyEmail(ctx context.Context, code string) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/account/verify-email", map[string]string{
		"code": code,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// RequestEmailVerification re-mails the verification code.
func (s *Session) RequestEmailVerification(ctx context.Context) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/account/verify-email/resend", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ChangePassword swaps the password. Every other session dies; this one
// keeps working because its tokens are rotated by the next refresh.
func (s *Session) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/account/change-password", map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// SignOutEverywhere invalidates every session and token on the account,
// including this one.
func (s *Session) SignOutEverywhere(ctx context.Context) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/account/signout-everywhere", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Sessions lists the account's device sessions, oldest first.
func (s *Session) Sessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodGet, "/v1/sessions", nil)
	if err != nil {
		return nil, err
	}

	var out sessionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// RevokeSession kills one device session by id.
func (s *Session) RevokeSession(ctx context.Context, sessionID string) error {
	resp, err := s.doAuthJSON(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// RevokeOtherSessions kills every session except this one. The service
// recognizes the caller's session through the access token.
func (s *Session) RevokeOtherSessions(ctx context.Context) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/sessions/revoke-others", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// EnrollTOTP starts authenticator enrollment. The returned secret is
// shown once; confirm with the first generated code.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollment, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/mfa/totp/enroll", nil)
	if err != nil {
		return nil, err
	}

	var enrollment TOTPEnrollment
	if err := decodeJSON(resp, &enrollment, http.StatusOK); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ConfirmTOTP activates the pending enrollment with a valid code.
func (s *Session) ConfirmTOTP(ctx context.Context, code string) (*MFAActivation, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/mfa/totp/confirm", map[string]string{
		"code": code,
	})
	if err != nil {
		return nil, err
	}

	var activation MFAActivation
	if err := decodeJSON(resp, &activation, http.StatusOK); err != nil {
		return nil, err
	}
	return &activation, nil
}

// DisableTOTP turns the authenticator off. The password re-confirms the
// caller.
func (s *Session) DisableTOTP(ctx context.Context, password string) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/mfa/totp/disable", map[string]string{
		"password": password,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// EnableEmailMFA turns on emailed sign-in codes.
func (s *Session) EnableEmailMFA(ctx context.Context) (*MFAActivation, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/mfa/email/enable", nil)
	if err != nil {
		return nil, err
	}

	var activation MFAActivation
	if err := decodeJSON(resp, &activation, http.StatusOK); err != nil {
		return nil, err
	}
	return &activation, nil
}

// DisableEmailMFA turns off emailed sign-in codes.
func (s *Session) DisableEmailMFA(ctx context.Context, password string) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/mfa/email/disable", map[string]string{
		"password": password,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// RegenerateRecoveryCodes replaces the recovery code batch. Old codes die
// with the swap.
func (s *Session) RegenerateRecoveryCodes(ctx context.Context) ([]string, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/mfa/recovery-codes/regenerate", nil)
	if err != nil {
		return nil, err
	}

	var out recoveryCodesResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.RecoveryCodes, nil
}

// RemainingRecoveryCodes reports how many codes are still unspent.
func (s *Session) RemainingRecoveryCodes(ctx context.Context) (int, error) {
	resp, err := s.doAuthJSON(ctx, http.MethodGet, "/v1/mfa/recovery-codes", nil)
	if err != nil {
		return 0, err
	}

	var out remainingResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Remaining, nil
}
