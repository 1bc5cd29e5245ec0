package service

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestTOTPGenerate(t *testing.T) {
	engine := &TOTPEngine{Issuer: testIssuer}

	enrollment, err := engine.Generate("alice")
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Equal(t, testIssuer, enrollment.Issuer)
	require.Equal(t, "alice", enrollment.Account)
	require.Contains(t, enrollment.URL, "otpauth://totp/")

	// Two enrollments never share a secret.
	second, err := engine.Generate("alice")
	require.NoError(t, err)
	require.NotEqual(t, enrollment.Secret, second.Secret)
}

func TestTOTPValidateAcceptsAdjacentSteps(t *testing.T) {
	clock := newTestClock()
	engine := &TOTPEngine{Issuer: testIssuer, Now: clock.Now}

	enrollment, err := engine.Generate("alice")
	require.NoError(t, err)
	secret := enrollment.Secret

	codeAt := func(offset time.Duration) string {
		code, err := totp.GenerateCode(secret, clock.Now().Add(offset))
		require.NoError(t, err)
		return code
	}

	require.True(t, engine.Validate(codeAt(0), secret))

	// One step of clock drift either way is tolerated.
	require.True(t, engine.Validate(codeAt(-30*time.Second), secret))
	require.True(t, engine.Validate(codeAt(30*time.Second), secret))

	// Two steps is outside the window.
	require.False(t, engine.Validate(codeAt(-90*time.Second), secret))
	require.False(t, engine.Validate(codeAt(90*time.Second), secret))
}

func TestTOTPValidateRejectsJunk(t *testing.T) {
	engine := &TOTPEngine{Issuer: testIssuer}

	enrollment, err := engine.Generate("alice")
	require.NoError(t, err)

	require.False(t, engine.Validate("", enrollment.Secret))
	require.False(t, engine.Validate("000000", enrollment.Secret))
	require.False(t, engine.Validate("abcdef", enrollment.Secret))
}
