package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/pkg/cryptox"
)

func TestRegisterRejectsTakenNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createAccount(t, "alice", "alice@example.com")

	_, err := env.accounts.Register(ctx, "alice", "other@example.com", testPassword)
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = env.accounts.Register(ctx, "alice2", "alice@example.com", testPassword)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterEnforcesPasswordPolicy(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.accounts.Register(context.Background(), "alice", "alice@example.com", "short")
	require.ErrorIs(t, err, cryptox.ErrPasswordTooShort)
}

func TestVerifyEmailWithMailedCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	code := env.lastCode(t)

	require.ErrorIs(t, env.accounts.VerifyEmail(ctx, account.ID, "999999"), ErrInvalidCode)
	require.NoError(t, env.accounts.VerifyEmail(ctx, account.ID, code))

	got, err := env.accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EmailVerified)

	// Verifying an already verified address is a no-op.
	require.NoError(t, env.accounts.VerifyEmail(ctx, account.ID, "999999"))
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)

	// An open session that must die with the reset.
	pair, err := env.tokens.IssuePair(ctx, account, "laptop")
	require.NoError(t, err)

	require.NoError(t, env.accounts.ForgotPassword(ctx, "alice@example.com"))
	code := env.lastCode(t)

	const newPassword = "a-brand-new-passphrase-7"
	require.NoError(t, env.accounts.ResetPassword(ctx, "alice@example.com", code, newPassword))

	_, err = env.credentials.CheckPassword(ctx, "alice", testPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.credentials.CheckPassword(ctx, "alice", newPassword)
	require.NoError(t, err)

	// Every prior credential is invalidated.
	_, err = env.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = env.tokens.ValidateAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidAccessToken)

	sessions, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.accounts.ForgotPassword(context.Background(), "nobody@example.com"))
}

func TestResetPasswordRejectsBadCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)

	require.NoError(t, env.accounts.ForgotPassword(ctx, "alice@example.com"))
	env.lastCode(t)

	err := env.accounts.ResetPassword(ctx, "alice@example.com", "999999", "a-brand-new-passphrase-7")
	require.ErrorIs(t, err, ErrInvalidCode)

	// The old password still works.
	_, err = env.credentials.CheckPassword(ctx, "alice", testPassword)
	require.NoError(t, err)
}

func TestResetPasswordClearsLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createAccount(t, "alice", "alice@example.com")
	env.lastCode(t)

	for i := 0; i < DefaultMaxLoginFailures; i++ {
		_, err := env.credentials.CheckPassword(ctx, "alice", "wrong")
		require.Error(t, err)
	}

	require.NoError(t, env.accounts.ForgotPassword(ctx, "alice@example.com"))
	code := env.lastCode(t)

	const newPassword = "a-brand-new-passphrase-7"
	require.NoError(t, env.accounts.ResetPassword(ctx, "alice@example.com", code, newPassword))

	// The reset proves account control, so the lockout does not outlive it.
	_, err := env.credentials.CheckPassword(ctx, "alice", newPassword)
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")

	pair, err := env.tokens.IssuePair(ctx, account, "laptop")
	require.NoError(t, err)

	require.ErrorIs(t,
		env.accounts.ChangePassword(ctx, account.ID, "wrong", "a-brand-new-passphrase-7"),
		ErrInvalidCredentials,
	)

	const newPassword = "a-brand-new-passphrase-7"
	require.NoError(t, env.accounts.ChangePassword(ctx, account.ID, testPassword, newPassword))

	_, err = env.credentials.CheckPassword(ctx, "alice", newPassword)
	require.NoError(t, err)

	// Other sessions are signed out by the change.
	_, err = env.tokens.ValidateAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestSignOutEverywhere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")

	var pairs []*domain.TokenPair
	for _, device := range []string{"laptop", "phone"} {
		pair, err := env.tokens.IssuePair(ctx, account, device)
		require.NoError(t, err)
		pairs = append(pairs, pair)
		env.advance(time.Second)
	}

	require.NoError(t, env.accounts.SignOutEverywhere(ctx, account.ID))

	for _, pair := range pairs {
		_, err := env.tokens.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
		_, err = env.tokens.ValidateAccessToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrInvalidAccessToken)
	}

	sessions, err := env.sessions.List(ctx, account.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestTOTPEnrollmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t, "alice", "alice@example.com")

	// Enrollment needs a verified address first.
	_, err := env.accounts.BeginTOTPEnrollment(ctx, account.ID)
	require.ErrorIs(t, err, ErrEmailNotVerified)

	require.NoError(t, env.store.Accounts().MarkEmailVerified(ctx, account.ID, env.clock.Now()))

	enrollment, err := env.accounts.BeginTOTPEnrollment(ctx, account.ID)
	require.NoError(t, err)

	// A wrong code does not activate anything.
	_, err = env.accounts.ConfirmTOTPEnrollment(ctx, account.ID, "000000")
	require.ErrorIs(t, err, ErrInvalidCode)

	got, err := env.accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, got.TOTPActive())

	// The first confirmed method yields recovery codes.
	recovery, err := env.accounts.ConfirmTOTPEnrollment(ctx, account.ID, env.totpCode(t, enrollment.Secret))
	require.NoError(t, err)
	require.Len(t, recovery, 10)

	got, err = env.accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.TOTPActive())
	require.True(t, got.MFARequired())

	// Re-enrolling while active is refused.
	_, err = env.accounts.BeginTOTPEnrollment(ctx, account.ID)
	require.ErrorIs(t, err, ErrMFAAlreadyEnabled)
}

func TestDisableLastMethodDeletesRecoveryCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createVerifiedAccount(t, "alice", "alice@example.com")
	env.enrollTOTP(t, account.ID)

	remaining, err := env.accounts.RemainingRecoveryCodes(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 10, remaining)

	require.ErrorIs(t, env.accounts.DisableTOTP(ctx, account.ID, "wrong"), ErrInvalidCredentials)
	require.NoError(t, env.accounts.DisableTOTP(ctx, account.ID, testPassword))

	got, err := env.accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, got.TOTPActive())
	require.False(t, got.MFARequired())

	remaining, err = env.accounts.RemainingRecoveryCodes(ctx, account.ID)
	require.NoError(t, err)
	require.Zero(t, remaining)
}

func TestRecoveryCodesSurviveWhileAnotherMethodRemains(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createVerifiedAccount(t, "alice", "alice@example.com")
	env.enrollTOTP(t, account.ID)

	// Email MFA joins an existing method, so no new batch is minted.
	codes, err := env.accounts.EnableEmailMFA(ctx, account.ID)
	require.NoError(t, err)
	require.Empty(t, codes)

	require.NoError(t, env.accounts.DisableTOTP(ctx, account.ID, testPassword))

	// Email MFA still stands, so the codes stay.
	remaining, err := env.accounts.RemainingRecoveryCodes(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 10, remaining)
}

func TestRegenerateRecoveryCodesReplacesBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createVerifiedAccount(t, "alice", "alice@example.com")
	_, oldCodes := env.enrollTOTP(t, account.ID)

	newCodes, err := env.accounts.RegenerateRecoveryCodes(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, newCodes, 10)
	require.NotElementsMatch(t, oldCodes, newCodes)

	// Codes from the old batch are dead.
	result, err := env.signin.SignIn(ctx, "alice", testPassword, "laptop", testIP)
	require.NoError(t, err)
	next, err := env.signin.SelectMethod(ctx, result.Challenge.StateToken, domain.MFAMethodRecoveryCode)
	require.NoError(t, err)

	_, err = env.signin.SubmitRecoveryCode(ctx, next, oldCodes[0], "laptop")
	var invalid *InvalidCodeError
	require.ErrorAs(t, err, &invalid)

	pair, err := env.signin.SubmitRecoveryCode(ctx, next, newCodes[0], "laptop")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
}

func TestRegenerateRequiresMFA(t *testing.T) {
	env := newTestEnv(t)

	account := env.createVerifiedAccount(t, "alice", "alice@example.com")

	_, err := env.accounts.RegenerateRecoveryCodes(context.Background(), account.ID)
	require.ErrorIs(t, err, ErrMFANotEnabled)
}
