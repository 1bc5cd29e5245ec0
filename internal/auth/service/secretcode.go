package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/guard"
	"github.com/lamplight/gatehouse/internal/auth/store"
	"github.com/lamplight/gatehouse/pkg/cryptox"
	"github.com/lamplight/gatehouse/pkg/idx"
	"github.com/lamplight/gatehouse/pkg/slogx"
)

const (
	// DefaultCodeTTL is how long an emailed code stays valid.
	DefaultCodeTTL = 5 * time.Minute

	// secretCodeDigits is the length of emailed numeric codes.
	secretCodeDigits = 6
)

// SecretCodeService issues and checks short-lived emailed codes: MFA
// codes, email verification, password reset. One live code per
// (owner, purpose); issuing again supersedes.
type SecretCodeService struct {
	Store  store.Store
	Guard  *guard.Guard
	Mailer Mailer

	CodeTTL time.Duration

	// Now is the clock for expiry. Defaults to time.Now.
	Now func() time.Time
}

func (s *SecretCodeService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SecretCodeService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

// Issue mints a fresh code for (owner, purpose), stores its fingerprint,
// and mails it. The resend cooldown applies; callers that are reissuing
// on a user's explicit request surface CooldownError, first-time issuers
// usually ignore it.
func (s *SecretCodeService) Issue(ctx context.Context, account domain.Account, purpose string) error {
	l := slogx.FromContext(ctx)
	now := s.now()

	if retryAfter, err := s.Guard.AllowResend(ctx, account.ID, purpose); err != nil {
		if errors.Is(err, guard.ErrRateLimited) {
			return &CooldownError{RetryAfter: retryAfter}
		}
		return err
	}

	code, err := cryptox.GenerateNumericCode(secretCodeDigits)
	if err != nil {
		return err
	}

	record := domain.SecretCode{
		ID:        idx.New().String(),
		OwnerID:   account.ID,
		Purpose:   purpose,
		CodeHash:  cryptox.FingerprintToken(code),
		ExpiresAt: now.Add(s.codeTTL()),
		CreatedAt: now,
	}

	if err := s.Store.SecretCodes().UpsertSecretCode(ctx, record); err != nil {
		return err
	}

	// Mail delivery never blocks the flow. A lost mail is recovered by
	// the resend endpoint once the cooldown passes.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.Mailer.SendCode(sendCtx, account.Email, purpose, code); err != nil {
			l.Error("failed to send code",
				slog.Any("error", err),
				slog.String("account_id", account.ID),
				slog.String("purpose", purpose),
			)
		}
	}()

	return nil
}

// Verify checks a submitted code against the live record for
// (owner, purpose) and consumes it on success. Expired, consumed,
// missing, and mismatched codes all collapse to ErrInvalidCode.
func (s *SecretCodeService) Verify(ctx context.Context, ownerID, purpose, code string) error {
	now := s.now()

	record, err := s.Store.SecretCodes().GetSecretCode(ctx, ownerID, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if record.Consumed() || record.Expired(now) {
		return ErrInvalidCode
	}

	submitted := cryptox.FingerprintToken(code)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(record.CodeHash)) != 1 {
		return ErrInvalidCode
	}

	// Conditional consume; a concurrent replay of the same code loses.
	if err := s.Store.SecretCodes().ConsumeSecretCode(ctx, record.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	return nil
}
