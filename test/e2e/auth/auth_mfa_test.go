package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamplight/gatehouse/pkg/authsdk"
)

func TestTOTPEnrollmentAndSignIn(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")

	secret, recovery := env.enrollTOTP(t, session)
	assert.Len(t, recovery, 10)

	me, err := session.Me(t.Context())
	require.NoError(t, err)
	assert.True(t, me.TOTPEnabled)

	// With TOTP on, credentials alone return a challenge instead of tokens.
	result, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.Nil(t, result.Session)
	require.NotNil(t, result.Challenge)
	assert.ElementsMatch(t, []string{authsdk.MethodTOTP, authsdk.MethodRecoveryCode}, result.Challenge.Methods)

	require.NoError(t, result.Challenge.Select(t.Context(), authsdk.MethodTOTP))
	mfaSession, err := result.Challenge.Submit(t.Context(), authsdk.MethodTOTP, totpCode(t, secret), testDevice)
	require.NoError(t, err)

	me, err = mfaSession.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}

func TestTOTPEnrollmentRequiresVerifiedEmail(t *testing.T) {
	env := setupAuthServer(t)
	env.register(t, "alice", "alice@example.com")
	session := env.signIn(t, "alice")

	_, err := session.EnrollTOTP(t.Context())
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeEmailNotVerified))
}

func TestMFARejectsBadCode(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")
	env.enrollTOTP(t, session)

	result, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.NotNil(t, result.Challenge)
	require.NoError(t, result.Challenge.Select(t.Context(), authsdk.MethodTOTP))

	_, err = result.Challenge.Submit(t.Context(), authsdk.MethodTOTP, "000000", testDevice)
	require.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCode))

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.NotNil(t, apiErr.Remaining)
	assert.Equal(t, 9, *apiErr.Remaining)
}

func TestMFACancel(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")
	secret, _ := env.enrollTOTP(t, session)

	result, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.NotNil(t, result.Challenge)

	require.NoError(t, result.Challenge.Cancel(t.Context()))

	// A cancelled challenge token is dead even with the right code.
	_, err = result.Challenge.Submit(t.Context(), authsdk.MethodTOTP, totpCode(t, secret), testDevice)
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidToken))
}

func TestEmailMFASignIn(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")

	activation, err := session.EnableEmailMFA(t.Context())
	require.NoError(t, err)
	assert.True(t, activation.Enabled)
	assert.Len(t, activation.RecoveryCodes, 10)

	result, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.NotNil(t, result.Challenge)
	assert.Contains(t, result.Challenge.Methods, authsdk.MethodEmail)

	// Committing to the email method triggers the code mail.
	require.NoError(t, result.Challenge.Select(t.Context(), authsdk.MethodEmail))
	code := env.lastCode(t)

	mfaSession, err := result.Challenge.Submit(t.Context(), authsdk.MethodEmail, code, testDevice)
	require.NoError(t, err)

	me, err := mfaSession.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}

func TestRecoveryCodeSignIn(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")
	_, recovery := env.enrollTOTP(t, session)

	result, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.NotNil(t, result.Challenge)
	require.NoError(t, result.Challenge.Select(t.Context(), authsdk.MethodRecoveryCode))

	mfaSession, err := result.Challenge.Submit(t.Context(), authsdk.MethodRecoveryCode, recovery[0], testDevice)
	require.NoError(t, err)

	remaining, err := mfaSession.RemainingRecoveryCodes(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 9, remaining)

	// Each code is single use.
	result, err = env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.NoError(t, result.Challenge.Select(t.Context(), authsdk.MethodRecoveryCode))
	_, err = result.Challenge.Submit(t.Context(), authsdk.MethodRecoveryCode, recovery[0], testDevice)
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCode))
}

func TestRegenerateRecoveryCodes(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")
	_, old := env.enrollTOTP(t, session)

	fresh, err := session.RegenerateRecoveryCodes(t.Context())
	require.NoError(t, err)
	assert.Len(t, fresh, 10)
	assert.NotElementsMatch(t, old, fresh)

	result, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.NoError(t, result.Challenge.Select(t.Context(), authsdk.MethodRecoveryCode))
	mfaSession, err := result.Challenge.Submit(t.Context(), authsdk.MethodRecoveryCode, fresh[0], testDevice)
	require.NoError(t, err)
	require.NotNil(t, mfaSession)
}

func TestDisableTOTP(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")
	env.enrollTOTP(t, session)

	require.NoError(t, session.DisableTOTP(t.Context(), testPassword))

	me, err := session.Me(t.Context())
	require.NoError(t, err)
	assert.False(t, me.TOTPEnabled)

	// With the last method gone, sign-in is back to credentials only.
	result, err := env.client.SignIn(t.Context(), "alice", testPassword, testDevice)
	require.NoError(t, err)
	require.NotNil(t, result.Session)
}

func TestDisableTOTPRequiresPassword(t *testing.T) {
	env := setupAuthServer(t)
	session := env.registerVerified(t, "alice", "alice@example.com")
	env.enrollTOTP(t, session)

	err := session.DisableTOTP(t.Context(), "not-the-password")
	assert.True(t, authsdk.HasErrorCode(err, authsdk.ErrorCodeInvalidCredentials))
}
