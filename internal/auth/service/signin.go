package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/guard"
	"github.com/lamplight/gatehouse/internal/auth/store"
	"github.com/lamplight/gatehouse/pkg/cryptox"
	"github.com/lamplight/gatehouse/pkg/jwtx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

// SignInService orchestrates the sign-in flow end to end: credential
// check, the MFA challenge state machine, and final token issuance.
// Partial progress lives entirely in the state token; the only
// server-side state is the Redis attempt counters and invalidation set.
type SignInService struct {
	Store       store.Store
	Guard       *guard.Guard
	Credentials *CredentialService
	Tokens      *TokenService
	Codes       *SecretCodeService
	TOTP        *TOTPEngine

	// Now is the clock for the flow. Defaults to time.Now.
	Now func() time.Time
}

func (s *SignInService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SignInResult is either a finished token pair or an MFA challenge to
// continue with, never both.
type SignInResult struct {
	Tokens    *domain.TokenPair
	Challenge *domain.MFAChallenge
}

// SignIn checks credentials and either completes immediately or opens an
// MFA challenge. The per-IP budget is spent before anything else.
func (s *SignInService) SignIn(ctx context.Context, identifier, password, deviceName, ip string) (*SignInResult, error) {
	l := slogx.FromContext(ctx)

	if retryAfter, err := s.Guard.AllowSignIn(ctx, ip); err != nil {
		if errors.Is(err, guard.ErrRateLimited) {
			return nil, &RateLimitedError{RetryAfter: retryAfter}
		}
		return nil, err
	}

	account, err := s.Credentials.CheckPassword(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	if !account.MFARequired() {
		pair, err := s.Tokens.IssuePair(ctx, account, deviceName)
		if err != nil {
			return nil, err
		}
		l.Info("sign-in completed", slog.String("account_id", account.ID))
		return &SignInResult{Tokens: pair}, nil
	}

	stateToken, _, err := s.Tokens.IssueStateToken(ctx, account.ID, jwtx.PurposeAwaitingMFASelection, "")
	if err != nil {
		return nil, err
	}

	methods := account.EnabledMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}

	l.Info("sign-in requires second factor", slog.String("account_id", account.ID))

	return &SignInResult{Challenge: &domain.MFAChallenge{
		MFARequired: true,
		StateToken:  stateToken,
		Methods:     names,
	}}, nil
}

// SelectMethod commits the challenge to one method. The selection token
// is superseded; the returned token only accepts that method's submission.
func (s *SignInService) SelectMethod(ctx context.Context, stateToken string, method domain.MFAMethod) (string, error) {
	claims, err := s.Tokens.CheckStateToken(ctx, stateToken, jwtx.PurposeAwaitingMFASelection)
	if err != nil {
		return "", err
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidStateToken
		}
		return "", err
	}

	if !methodEnabled(account, method) {
		return "", ErrMethodNotAvailable
	}

	purpose, err := purposeForMethod(method)
	if err != nil {
		return "", err
	}

	if err := s.Tokens.InvalidateStateToken(ctx, claims); err != nil {
		return "", err
	}

	next, _, err := s.Tokens.IssueStateToken(ctx, account.ID, purpose, method.String())
	if err != nil {
		return "", err
	}

	if method == domain.MFAMethodEmail {
		// First code for this challenge; a still-running cooldown from a
		// recent challenge is fine, that code remains valid.
		if err := s.Codes.Issue(ctx, account, domain.CodePurposeMFA); err != nil {
			var cooldown *CooldownError
			if !errors.As(err, &cooldown) {
				return "", err
			}
		}
	}

	return next, nil
}

// SubmitTOTP finishes a challenge pointed at the authenticator app.
func (s *SignInService) SubmitTOTP(ctx context.Context, stateToken, code, deviceName string) (*domain.TokenPair, error) {
	return s.submit(ctx, stateToken, jwtx.PurposeAwaitingTOTP, jwtx.PurposeAwaitingTOTP, code, deviceName)
}

// SubmitEmailCode finishes a challenge pointed at the emailed code.
func (s *SignInService) SubmitEmailCode(ctx context.Context, stateToken, code, deviceName string) (*domain.TokenPair, error) {
	return s.submit(ctx, stateToken, jwtx.PurposeAwaitingEmailCode, jwtx.PurposeAwaitingEmailCode, code, deviceName)
}

// SubmitRecoveryCode finishes a challenge with a single-use recovery
// code. Recovery is a fallback for every step, so any challenge-phase
// state token is accepted regardless of which method was pending.
func (s *SignInService) SubmitRecoveryCode(ctx context.Context, stateToken, code, deviceName string) (*domain.TokenPair, error) {
	return s.submit(ctx, stateToken, "", jwtx.PurposeAwaitingRecoveryCode, code, deviceName)
}

// submit runs the shared challenge-completion path. tokenPurpose narrows
// which state tokens are accepted (empty means any), codePurpose picks
// the verification in checkCode.
func (s *SignInService) submit(ctx context.Context, stateToken, tokenPurpose, codePurpose, code, deviceName string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	claims, err := s.Tokens.CheckStateToken(ctx, stateToken, tokenPurpose)
	if err != nil {
		return nil, err
	}

	failures, err := s.Guard.MFAFailures(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if failures >= s.Guard.MaxMFAAttempts {
		if err := s.Tokens.InvalidateStateToken(ctx, claims); err != nil {
			l.Error("failed to invalidate exhausted challenge", slog.Any("error", err))
		}
		return nil, ErrTooManyAttempts
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidStateToken
		}
		return nil, err
	}

	ok, err := s.checkCode(ctx, account, codePurpose, code, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		remaining, err := s.Guard.RegisterMFAFailure(ctx, claims.ID, s.Tokens.StateTokenRemaining(claims))
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			if err := s.Tokens.InvalidateStateToken(ctx, claims); err != nil {
				l.Error("failed to invalidate exhausted challenge", slog.Any("error", err))
			}
		}
		l.Warn("second factor rejected",
			slog.String("account_id", account.ID),
			slog.Int("remaining", remaining),
		)
		return nil, &InvalidCodeError{Remaining: remaining}
	}

	if err := s.Tokens.InvalidateStateToken(ctx, claims); err != nil {
		return nil, err
	}

	pair, err := s.Tokens.IssuePair(ctx, account, deviceName)
	if err != nil {
		return nil, err
	}

	l.Info("sign-in completed with second factor", slog.String("account_id", account.ID))
	return pair, nil
}

func (s *SignInService) checkCode(ctx context.Context, account domain.Account, purpose, code string, now time.Time) (bool, error) {
	switch purpose {
	case jwtx.PurposeAwaitingTOTP:
		if !account.TOTPActive() {
			return false, ErrMethodNotAvailable
		}
		return s.TOTP.Validate(code, *account.TOTPSecret), nil

	case jwtx.PurposeAwaitingEmailCode:
		if !account.EmailMFAActive() {
			return false, ErrMethodNotAvailable
		}
		err := s.Codes.Verify(ctx, account.ID, domain.CodePurposeMFA, code)
		if errors.Is(err, ErrInvalidCode) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil

	case jwtx.PurposeAwaitingRecoveryCode:
		if !account.MFARequired() {
			return false, ErrMethodNotAvailable
		}
		hash := cryptox.FingerprintToken(normalizeRecoveryCode(code))
		err := s.Store.RecoveryCodes().ConsumeRecoveryCode(ctx, account.ID, hash, now)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}

	return false, ErrInvalidStateToken
}

// ResendEmailCode reissues the challenge's emailed code, subject to the
// cooldown.
func (s *SignInService) ResendEmailCode(ctx context.Context, stateToken string) error {
	claims, err := s.Tokens.CheckStateToken(ctx, stateToken, jwtx.PurposeAwaitingEmailCode)
	if err != nil {
		return err
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidStateToken
		}
		return err
	}

	return s.Codes.Issue(ctx, account, domain.CodePurposeMFA)
}

// Cancel abandons a challenge at any step. The state token is dead
// afterwards and the sign-in starts over from credentials.
func (s *SignInService) Cancel(ctx context.Context, stateToken string) error {
	claims, err := s.Tokens.CheckStateToken(ctx, stateToken, "")
	if err != nil {
		return err
	}
	return s.Tokens.InvalidateStateToken(ctx, claims)
}

func methodEnabled(account domain.Account, method domain.MFAMethod) bool {
	for _, m := range account.EnabledMethods() {
		if m == method {
			return true
		}
	}
	return false
}

func purposeForMethod(method domain.MFAMethod) (string, error) {
	switch method {
	case domain.MFAMethodTOTP:
		return jwtx.PurposeAwaitingTOTP, nil
	case domain.MFAMethodEmail:
		return jwtx.PurposeAwaitingEmailCode, nil
	case domain.MFAMethodRecoveryCode:
		return jwtx.PurposeAwaitingRecoveryCode, nil
	}
	return "", ErrMethodNotAvailable
}
