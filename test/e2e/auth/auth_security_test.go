package auth_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamplight/gatehouse/internal/auth/guard"
	"github.com/lamplight/gatehouse/internal/auth/service"
	"github.com/lamplight/gatehouse/pkg/authsdk"
)

func TestAccountLockout(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	for i := 0; i < service.DefaultMaxLoginFailures; i++ {
		_, err := env.client.SignIn(t.Context(), "alice", "not-the-password", testDevice)
		require.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCredentials))
	}

	// The correct password is refused while the lockout holds.
	_, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeAccountLocked))

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Positive(t, apiErr.RetryAfter)
}

func TestSignInRateLimitPerIP(t *testing.T) {
	env := setupAuthServer(t)

	// Unknown identifiers still consume the per-IP window.
	for i := 0; i < guard.DefaultSignInLimit; i++ {
		_, err := env.client.SignIn(t.Context(), "nobody", testPassword, testDevice)
		require.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCredentials))
	}

	_, err := env.client.SignIn(t.Context(), "nobody", testPassword, testDevice)
	require.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeRateLimited))

	// The window expires and attempts flow again.
	env.redis.FastForward(guard.DefaultSignInWindow)
	_, err = env.client.SignIn(t.Context(), "nobody", testPassword, testDevice)
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCredentials))
}

func TestForgotAndResetPassword(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	require.NoError(t, env.client.ForgotPassword(t.Context(), "alice@example.com"))
	code := env.lastCode(t)

	const newPassword = "an-even-longer-password-1"
	require.NoError(t, env.client.ResetPassword(t.Context(), "alice@example.com", code, newPassword))

	_, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCredentials))

	session, err := env.client.SignIn(t.Context(), "alice", newPassword, testDevice)
	require.NoError(t, err)
	require.NotNil(t, session.Session)
}

func TestForgotPasswordHidesUnknownEmail(t *testing.T) {
	env := setupAuthServer(t)

	// Unknown addresses get the same answer as known ones.
	require.NoError(t, env.client.ForgotPassword(t.Context(), "nobody@example.com"))
}

func TestResetPasswordRejectsBadCode(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")

	require.NoError(t, env.client.ForgotPassword(t.Context(), "alice@example.com"))
	env.lastCode(t)

	err := env.client.ResetPassword(t.Context(), "alice@example.com", "000000", "an-even-longer-password-1")
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCode))
}

func TestResetPasswordInvalidatesSessions(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")
	session := env.signIn(t, "alice")

	require.NoError(t, env.client.ForgotPassword(t.Context(), "alice@example.com"))
	code := env.lastCode(t)
	require.NoError(t, env.client.ResetPassword(t.Context(), "alice@example.com", code, "an-even-longer-password-1"))

	_, err := env.client.RefreshTokens(t.Context(), session.RefreshToken())
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidToken))
}
