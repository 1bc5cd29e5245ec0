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
	"github.com/lamplight/gatehouse/pkg/slogx"
)

const (
	// DefaultMaxLoginFailures is how many consecutive bad passwords lock
	// the account.
	DefaultMaxLoginFailures = 4

	// DefaultLockoutDuration is how long a locked account stays locked.
	DefaultLockoutDuration = 15 * time.Minute
)

// dummyPasswordHash is compared against when the identifier matches no
// account, so an unknown username costs the same as a wrong password.
// Hash of an unguessable throwaway value.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$c29tZXNhbHRzb21lc2FsdA$WqZr0xkLhI0sYCQ9VZ0uHkJtXVIZGMeKNpUOAJkCLHI"

// CredentialService owns the password check and the failure counters that
// drive lockout.
type CredentialService struct {
	Store store.Store

	MaxFailures     int
	LockoutDuration time.Duration

	// Now is the clock for lockout arithmetic. Defaults to time.Now.
	Now func() time.Time
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CredentialService) maxFailures() int {
	if s.MaxFailures > 0 {
		return s.MaxFailures
	}
	return DefaultMaxLoginFailures
}

func (s *CredentialService) lockoutDuration() time.Duration {
	if s.LockoutDuration > 0 {
		return s.LockoutDuration
	}
	return DefaultLockoutDuration
}

// lookup resolves a sign-in identifier, which may be a username or an
// email address.
func (s *CredentialService) lookup(ctx context.Context, identifier string) (domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.Store.Accounts().GetAccountByEmail(ctx, strings.ToLower(identifier))
	}
	return s.Store.Accounts().GetAccountByUsername(ctx, identifier)
}

// CheckPassword verifies identifier+password and maintains the failure
// counters. During a lockout window even the correct password is refused.
func (s *CredentialService) CheckPassword(ctx context.Context, identifier, password string) (domain.Account, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	account, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a compare so unknown identifiers take as long as
			// wrong passwords.
			_ = cryptox.VerifyPassword(password, dummyPasswordHash)
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}

	if account.Locked(now) {
		// Still verify so the timing doesn't reveal the lockout, but the
		// result is ignored.
		_ = cryptox.VerifyPassword(password, account.PasswordHash)
		return domain.Account{}, &AccountLockedError{Until: *account.LockedUntil}
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		return domain.Account{}, s.recordFailure(ctx, account, now)
	}

	if account.FailedLogins > 0 || account.LockedUntil != nil {
		if err := s.Store.Accounts().ResetLoginFailures(ctx, account.ID); err != nil {
			l.Error("failed to reset login failures", slog.Any("error", err), slog.String("account_id", account.ID))
		}
	}

	return account, nil
}

// VerifyPassword re-checks the password for an already resolved account,
// for password change and similar confirmations. No counters involved.
func (s *CredentialService) VerifyPassword(account domain.Account, password string) error {
	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *CredentialService) recordFailure(ctx context.Context, account domain.Account, now time.Time) error {
	l := slogx.FromContext(ctx)

	failures, err := s.Store.Accounts().IncrementFailedLogins(ctx, account.ID)
	if err != nil {
		l.Error("failed to record login failure", slog.Any("error", err), slog.String("account_id", account.ID))
		return ErrInvalidCredentials
	}

	if failures >= s.maxFailures() {
		until := now.Add(s.lockoutDuration())
		if err := s.Store.Accounts().SetLockout(ctx, account.ID, until); err != nil {
			l.Error("failed to set lockout", slog.Any("error", err), slog.String("account_id", account.ID))
			return ErrInvalidCredentials
		}
		l.Warn("account locked after repeated failures",
			slog.String("account_id", account.ID),
			slog.Int("failures", failures),
		)
	}

	// The tripping attempt itself still reads as a bad password; only
	// attempts made inside the window report the lockout.
	return ErrInvalidCredentials
}
