package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/guard"
)

func TestSecretCodeIssueAndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t) // drain the registration verification code
	env.advance(guard.DefaultResendCooldown + time.Second)

	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeResetPassword))
	code := env.lastCode(t)
	require.Len(t, code, 6)

	require.NoError(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, code))

	// Single use: the consumed code fails a second verify.
	require.ErrorIs(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, code), ErrInvalidCode)
}

func TestSecretCodeWrongCodeRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)
	env.advance(guard.DefaultResendCooldown + time.Second)

	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeResetPassword))
	code := env.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	require.ErrorIs(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, wrong), ErrInvalidCode)

	// The right code still works; a failed guess does not consume it.
	require.NoError(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, code))
}

func TestSecretCodeExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)
	env.advance(guard.DefaultResendCooldown + time.Second)

	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeResetPassword))
	code := env.lastCode(t)

	env.advance(DefaultCodeTTL + time.Second)

	require.ErrorIs(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, code), ErrInvalidCode)
}

func TestSecretCodeReissueSupersedes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)
	env.advance(guard.DefaultResendCooldown + time.Second)

	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeResetPassword))
	first := env.lastCode(t)

	env.advance(guard.DefaultResendCooldown + time.Second)
	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeResetPassword))
	second := env.lastCode(t)

	// One live code per (owner, purpose): only the latest verifies.
	require.ErrorIs(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, first), ErrInvalidCode)
	require.NoError(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, second))
}

func TestSecretCodeCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)
	env.advance(guard.DefaultResendCooldown + time.Second)

	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeResetPassword))
	env.lastCode(t)

	err := env.codes.Issue(ctx, account, domain.CodePurposeResetPassword)
	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)
	require.Greater(t, cooldown.RetryAfter, time.Duration(0))

	// Purposes cool down independently.
	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeMFA))
}

func TestSecretCodePurposesAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)
	env.advance(guard.DefaultResendCooldown + time.Second)

	require.NoError(t, env.codes.Issue(ctx, account, domain.CodePurposeResetPassword))
	code := env.lastCode(t)

	// A reset code is not an MFA code.
	require.ErrorIs(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeMFA, code), ErrInvalidCode)
	require.NoError(t, env.codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, code))
}
