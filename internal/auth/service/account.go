package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/store"
	"github.com/lamplight/gatehouse/pkg/cryptox"
	"github.com/lamplight/gatehouse/pkg/idx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

// recoveryCodeCount is the batch size handed out on (re)generation.
const recoveryCodeCount = 10

// AccountService covers account lifecycle outside the sign-in flow:
// registration, email verification, password management, MFA enrollment,
// and recovery codes.
type AccountService struct {
	Store       store.Store
	Codes       *SecretCodeService
	TOTP        *TOTPEngine
	Credentials *CredentialService

	// Now is the clock for timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates an account and mails the verification code. Usernames
// and emails are taken first come, first served.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (domain.Account, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := cryptox.CheckPasswordPolicy(password); err != nil {
		return domain.Account{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Account{}, err
	}

	account := domain.Account{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		TokenVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Disambiguate for the caller without a second write.
			if _, lookupErr := s.Store.Accounts().GetAccountByUsername(ctx, username); lookupErr == nil {
				return domain.Account{}, ErrUsernameTaken
			}
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, err
	}

	if err := s.Codes.Issue(ctx, account, domain.CodePurposeVerifyEmail); err != nil {
		var cooldown *CooldownError
		if !errors.As(err, &cooldown) {
			l.Error("failed to issue verification code", slog.Any("error", err), slog.String("account_id", account.ID))
		}
	}

	l.Info("account registered", slog.String("account_id", account.ID))
	return account, nil
}

// RequestEmailVerification re-mails the verification code.
func (s *AccountService) RequestEmailVerification(ctx context.Context, accountID string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.EmailVerified != nil {
		return nil
	}
	return s.Codes.Issue(ctx, account, domain.CodePurposeVerifyEmail)
}

// VerifyEmail confirms the address with the mailed code.
func (s *AccountService) VerifyEmail(ctx context.Context, accountID, code string) error {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.EmailVerified != nil {
		return nil
	}

	if err := s.Codes.Verify(ctx, account.ID, domain.CodePurposeVerifyEmail, code); err != nil {
		return err
	}

	return s.Store.Accounts().MarkEmailVerified(ctx, account.ID, s.now())
}

// ForgotPassword mails a reset code when the address matches an account.
// The caller learns nothing either way.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.Codes.Issue(ctx, account, domain.CodePurposeResetPassword); err != nil {
		var cooldown *CooldownError
		if errors.As(err, &cooldown) {
			// Cooldown also stays invisible from the outside.
			return nil
		}
		l.Error("failed to issue reset code", slog.Any("error", err), slog.String("account_id", account.ID))
	}
	return nil
}

// ResetPassword redeems a reset code for a new password. Every existing
// token and session dies with the old password.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	now := s.now()
	l := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if err := s.Codes.Verify(ctx, account.ID, domain.CodePurposeResetPassword, code); err != nil {
		return err
	}

	if err := cryptox.CheckPasswordPolicy(newPassword); err != nil {
		return err
	}
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdatePasswordHash(ctx, account.ID, hash); err != nil {
			return err
		}
		if err := tx.Accounts().ResetLoginFailures(ctx, account.ID); err != nil {
			return err
		}
		if _, err := tx.Accounts().BumpTokenVersion(ctx, account.ID); err != nil {
			return err
		}
		if err := tx.RefreshTokens().RevokeAccountRefreshTokens(ctx, account.ID, now); err != nil {
			return err
		}
		return tx.Sessions().DeleteSessionsByAccount(ctx, account.ID, "")
	})
	if err != nil {
		return err
	}

	l.Info("password reset", slog.String("account_id", account.ID))
	return nil
}

// ChangePassword swaps the password after confirming the current one.
// Outstanding tokens are invalidated through the version bump.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	now := s.now()
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := s.Credentials.VerifyPassword(account, currentPassword); err != nil {
		return err
	}

	if err := cryptox.CheckPasswordPolicy(newPassword); err != nil {
		return err
	}
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdatePasswordHash(ctx, account.ID, hash); err != nil {
			return err
		}
		if _, err := tx.Accounts().BumpTokenVersion(ctx, account.ID); err != nil {
			return err
		}
		if err := tx.RefreshTokens().RevokeAccountRefreshTokens(ctx, account.ID, now); err != nil {
			return err
		}
		return tx.Sessions().DeleteSessionsByAccount(ctx, account.ID, "")
	})
	if err != nil {
		return err
	}

	l.Info("password changed", slog.String("account_id", account.ID))
	return nil
}

// SignOutEverywhere bumps the token version and clears every session, so
// all outstanding tokens stop working at once.
func (s *AccountService) SignOutEverywhere(ctx context.Context, accountID string) error {
	now := s.now()

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Accounts().BumpTokenVersion(ctx, accountID); err != nil {
			return err
		}
		if err := tx.RefreshTokens().RevokeAccountRefreshTokens(ctx, accountID, now); err != nil {
			return err
		}
		return tx.Sessions().DeleteSessionsByAccount(ctx, accountID, "")
	})
}

// BeginTOTPEnrollment generates a secret and stores it pending. MFA only
// turns on once the first valid code arrives. A verified email address is
// required so the account has a recovery path.
func (s *AccountService) BeginTOTPEnrollment(ctx context.Context, accountID string) (domain.TOTPEnrollment, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}
	if account.EmailVerified == nil {
		return domain.TOTPEnrollment{}, ErrEmailNotVerified
	}
	if account.TOTPActive() {
		return domain.TOTPEnrollment{}, ErrMFAAlreadyEnabled
	}

	enrollment, err := s.TOTP.Generate(account.Username)
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}

	if err := s.Store.Accounts().SetTOTPSecret(ctx, account.ID, enrollment.Secret); err != nil {
		return domain.TOTPEnrollment{}, err
	}
	return enrollment, nil
}

// ConfirmTOTPEnrollment activates the pending secret once a valid code
// proves the authenticator works. The first MFA method on the account
// also yields its recovery code batch.
func (s *AccountService) ConfirmTOTPEnrollment(ctx context.Context, accountID, code string) ([]string, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.TOTPSecret == nil {
		return nil, ErrMFANotEnabled
	}
	if account.TOTPActive() {
		return nil, ErrMFAAlreadyEnabled
	}

	if !s.TOTP.Validate(code, *account.TOTPSecret) {
		return nil, ErrInvalidCode
	}

	hadMFA := account.MFARequired()

	var plainCodes []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().EnableTOTP(ctx, account.ID, now); err != nil {
			return err
		}
		if hadMFA {
			return nil
		}
		codes, records, err := newRecoveryBatch(now)
		if err != nil {
			return err
		}
		plainCodes = codes
		return tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, account.ID, records)
	})
	if err != nil {
		return nil, err
	}

	l.Info("totp enabled", slog.String("account_id", account.ID))
	return plainCodes, nil
}

// DisableTOTP turns the authenticator off after confirming the password.
// When it was the last method, the recovery codes go with it.
func (s *AccountService) DisableTOTP(ctx context.Context, accountID, password string) error {
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.TOTPActive() {
		return ErrMFANotEnabled
	}
	if err := s.Credentials.VerifyPassword(account, password); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().DisableTOTP(ctx, account.ID); err != nil {
			return err
		}
		if !account.EmailMFAActive() {
			return tx.RecoveryCodes().DeleteRecoveryCodes(ctx, account.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.Info("totp disabled", slog.String("account_id", account.ID))
	return nil
}

// EnableEmailMFA switches on emailed sign-in codes. Requires a verified
// address; the first MFA method also yields recovery codes.
func (s *AccountService) EnableEmailMFA(ctx context.Context, accountID string) ([]string, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.EmailVerified == nil {
		return nil, ErrEmailNotVerified
	}
	if account.EmailMFAActive() {
		return nil, ErrMFAAlreadyEnabled
	}

	hadMFA := account.MFARequired()

	var plainCodes []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().EnableEmailMFA(ctx, account.ID, now); err != nil {
			return err
		}
		if hadMFA {
			return nil
		}
		codes, records, err := newRecoveryBatch(now)
		if err != nil {
			return err
		}
		plainCodes = codes
		return tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, account.ID, records)
	})
	if err != nil {
		return nil, err
	}

	l.Info("email mfa enabled", slog.String("account_id", account.ID))
	return plainCodes, nil
}

// DisableEmailMFA turns off emailed sign-in codes after confirming the
// password.
func (s *AccountService) DisableEmailMFA(ctx context.Context, accountID, password string) error {
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.EmailMFAActive() {
		return ErrMFANotEnabled
	}
	if err := s.Credentials.VerifyPassword(account, password); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().DisableEmailMFA(ctx, account.ID); err != nil {
			return err
		}
		if !account.TOTPActive() {
			return tx.RecoveryCodes().DeleteRecoveryCodes(ctx, account.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.Info("email mfa disabled", slog.String("account_id", account.ID))
	return nil
}

// RegenerateRecoveryCodes replaces the account's batch. Any codes from
// the old batch, spent or not, stop working.
func (s *AccountService) RegenerateRecoveryCodes(ctx context.Context, accountID string) ([]string, error) {
	now := s.now()

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.MFARequired() {
		return nil, ErrMFANotEnabled
	}

	codes, records, err := newRecoveryBatch(now)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, account.ID, records)
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// RemainingRecoveryCodes reports how many codes are still unspent.
func (s *AccountService) RemainingRecoveryCodes(ctx context.Context, accountID string) (int, error) {
	return s.Store.RecoveryCodes().CountActiveRecoveryCodes(ctx, accountID)
}

// Get returns the account for profile reads.
func (s *AccountService) Get(ctx context.Context, accountID string) (domain.Account, error) {
	return s.Store.Accounts().GetAccountByID(ctx, accountID)
}

// newRecoveryBatch mints the plaintext codes and the hashed records that
// back them. Plaintext is shown once and never stored.
func newRecoveryBatch(now time.Time) ([]string, []domain.RecoveryCode, error) {
	codes := make([]string, 0, recoveryCodeCount)
	records := make([]domain.RecoveryCode, 0, recoveryCodeCount)

	for i := 0; i < recoveryCodeCount; i++ {
		code, err := cryptox.GenerateRecoveryCode()
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		records = append(records, domain.RecoveryCode{
			ID:        idx.NewAt(now).String(),
			CodeHash:  cryptox.FingerprintToken(code),
			CreatedAt: now,
		})
	}
	return codes, records, nil
}

// normalizeRecoveryCode forgives the formatting users type in: spaces,
// hyphens, uppercase.
func normalizeRecoveryCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}
