package store

import (
	"context"
	"errors"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement this. Sub-repositories keep the concerns tidy and make
// it obvious which operations belong together in one transaction.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	SecretCodes() SecretCodes
	RecoveryCodes() RecoveryCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed. Prefer this over
	// Tx for anything multi-step, refresh rotation especially.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Same repos, plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByUsername looks up a sign-in identifier.
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, error)

	// GetAccountByEmail looks up a sign-in identifier.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// CreateAccount inserts a new account (id is provided by app via ULID).
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error

	// BumpTokenVersion increments token_version and returns the new value.
	// Every outstanding token stamped with an older version dies with it.
	BumpTokenVersion(ctx context.Context, accountID string) (int64, error)

	// IncrementFailedLogins bumps the consecutive-failure counter and
	// returns the new count.
	IncrementFailedLogins(ctx context.Context, accountID string) (int, error)

	// SetLockout sets locked_until. Failed logins keep counting.
	SetLockout(ctx context.Context, accountID string, until time.Time) error

	// ResetLoginFailures clears failed_logins and locked_until.
	ResetLoginFailures(ctx context.Context, accountID string) error

	// MarkEmailVerified stamps email_verified.
	MarkEmailVerified(ctx context.Context, accountID string, at time.Time) error

	// SetTOTPSecret stores a pending TOTP secret. Enrollment is not
	// active until EnableTOTP.
	SetTOTPSecret(ctx context.Context, accountID, secret string) error

	// EnableTOTP activates a previously stored TOTP secret.
	EnableTOTP(ctx context.Context, accountID string, at time.Time) error

	// DisableTOTP clears both the secret and the enabled timestamp.
	DisableTOTP(ctx context.Context, accountID string) error

	// EnableEmailMFA stamps email_mfa_enabled.
	EnableEmailMFA(ctx context.Context, accountID string, at time.Time) error

	// DisableEmailMFA clears email_mfa_enabled.
	DisableEmailMFA(ctx context.Context, accountID string) error
}

type Sessions interface {
	// CreateSession inserts a new device session.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns a session by id.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// ListSessionsByAccount returns an account's sessions oldest first.
	ListSessionsByAccount(ctx context.Context, accountID string) ([]domain.Session, error)

	// CountSessionsByAccount returns the number of live sessions.
	CountSessionsByAccount(ctx context.Context, accountID string) (int, error)

	// OldestSessionByAccount returns the eviction candidate.
	OldestSessionByAccount(ctx context.Context, accountID string) (domain.Session, error)

	// UpdateSessionTokens points the session at its current refresh and
	// access tokens and bumps last_seen_at.
	UpdateSessionTokens(ctx context.Context, sessionID, refreshTokenID, accessTokenID string, lastSeen time.Time) error

	// DeleteSession removes one session.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteSessionsByAccount removes an account's sessions, sparing
	// exceptID when non-empty.
	DeleteSessionsByAccount(ctx context.Context, accountID, exceptID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new rotation record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByID returns the record whose id is the JWT's jti.
	GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error)

	// ConsumeRefreshToken revokes the token only if it is still live.
	// Returns ErrNotFound when the token was already consumed or never
	// existed, which is how exactly one concurrent refresh wins.
	ConsumeRefreshToken(ctx context.Context, id string, at time.Time) error

	// RevokeAccountRefreshTokens bulk-revokes every live token for an
	// account (password reset, sign out everywhere).
	RevokeAccountRefreshTokens(ctx context.Context, accountID string, at time.Time) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) error
}

type SecretCodes interface {
	// UpsertSecretCode writes the live code for (owner, purpose),
	// superseding any previous one.
	UpsertSecretCode(ctx context.Context, c domain.SecretCode) error

	// GetSecretCode returns the live code for (owner, purpose).
	GetSecretCode(ctx context.Context, ownerID, purpose string) (domain.SecretCode, error)

	// ConsumeSecretCode marks a code used only if it is still unused.
	// Returns ErrNotFound when it was already consumed.
	ConsumeSecretCode(ctx context.Context, id string, at time.Time) error

	// DeleteSecretCode drops the live code for (owner, purpose).
	DeleteSecretCode(ctx context.Context, ownerID, purpose string) error

	// DeleteExpiredSecretCodes is housekeeping.
	DeleteExpiredSecretCodes(ctx context.Context, before time.Time) error
}

type RecoveryCodes interface {
	// ReplaceRecoveryCodes swaps the account's batch for a new one.
	ReplaceRecoveryCodes(ctx context.Context, accountID string, codes []domain.RecoveryCode) error

	// ConsumeRecoveryCode spends the unused code matching hash. Returns
	// ErrNotFound when no unused code matches, so double-spends lose.
	ConsumeRecoveryCode(ctx context.Context, accountID, codeHash string, at time.Time) error

	// CountActiveRecoveryCodes returns how many codes remain unspent.
	CountActiveRecoveryCodes(ctx context.Context, accountID string) (int, error)

	// DeleteRecoveryCodes removes the whole batch.
	DeleteRecoveryCodes(ctx context.Context, accountID string) error
}
