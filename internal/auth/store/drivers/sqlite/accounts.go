package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/store"

	sqlitelib "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type accountsRepo struct {
	db querier
}

const accountColumns = `id, username, email, password_hash, role, token_version,
	email_verified, totp_secret, totp_enabled, email_mfa_enabled,
	failed_logins, locked_until, created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a             domain.Account
		emailVerified sql.NullTime
		totpSecret    sql.NullString
		totpEnabled   sql.NullTime
		emailMFA      sql.NullTime
		lockedUntil   sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.TokenVersion,
		&emailVerified, &totpSecret, &totpEnabled, &emailMFA,
		&a.FailedLogins, &lockedUntil, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.EmailVerified = mapNullTimePtr(emailVerified)
	a.TOTPSecret = mapNullStringPtr(totpSecret)
	a.TOTPEnabled = mapNullTimePtr(totpEnabled)
	a.EmailMFAEnabled = mapNullTimePtr(emailMFA)
	a.LockedUntil = mapNullTimePtr(lockedUntil)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, username, email, password_hash, role, token_version,
			email_verified, totp_secret, totp_enabled, email_mfa_enabled,
			failed_logins, locked_until, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Email, a.PasswordHash, a.Role, a.TokenVersion,
		mapOptionalTime(a.EmailVerified), mapOptionalString(a.TOTPSecret),
		mapOptionalTime(a.TOTPEnabled), mapOptionalTime(a.EmailMFAEnabled),
		a.FailedLogins, mapOptionalTime(a.LockedUntil), a.CreatedAt, a.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	return r.exec(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, accountID)
}

func (r *accountsRepo) BumpTokenVersion(ctx context.Context, accountID string) (int64, error) {
	if err := r.exec(ctx,
		`UPDATE accounts SET token_version = token_version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID); err != nil {
		return 0, err
	}

	var v int64
	err := r.db.QueryRowContext(ctx,
		`SELECT token_version FROM accounts WHERE id = ?`, accountID).Scan(&v)
	return v, mapNotFound(err)
}

func (r *accountsRepo) IncrementFailedLogins(ctx context.Context, accountID string) (int, error) {
	if err := r.exec(ctx,
		`UPDATE accounts SET failed_logins = failed_logins + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID); err != nil {
		return 0, err
	}

	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT failed_logins FROM accounts WHERE id = ?`, accountID).Scan(&n)
	return n, mapNotFound(err)
}

func (r *accountsRepo) SetLockout(ctx context.Context, accountID string, until time.Time) error {
	return r.exec(ctx,
		`UPDATE accounts SET locked_until = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		until, accountID)
}

func (r *accountsRepo) ResetLoginFailures(ctx context.Context, accountID string) error {
	return r.exec(ctx,
		`UPDATE accounts SET failed_logins = 0, locked_until = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID)
}

func (r *accountsRepo) MarkEmailVerified(ctx context.Context, accountID string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE accounts SET email_verified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at, accountID)
}

func (r *accountsRepo) SetTOTPSecret(ctx context.Context, accountID, secret string) error {
	return r.exec(ctx,
		`UPDATE accounts SET totp_secret = ?, totp_enabled = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		secret, accountID)
}

func (r *accountsRepo) EnableTOTP(ctx context.Context, accountID string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE accounts SET totp_enabled = ? WHERE id = ? AND totp_secret IS NOT NULL`,
		at, accountID)
}

func (r *accountsRepo) DisableTOTP(ctx context.Context, accountID string) error {
	return r.exec(ctx,
		`UPDATE accounts SET totp_secret = NULL, totp_enabled = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID)
}

func (r *accountsRepo) EnableEmailMFA(ctx context.Context, accountID string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE accounts SET email_mfa_enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at, accountID)
}

func (r *accountsRepo) DisableEmailMFA(ctx context.Context, accountID string) error {
	return r.exec(ctx,
		`UPDATE accounts SET email_mfa_enabled = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID)
}

// exec runs a single-row UPDATE and maps a zero-row result to ErrNotFound.
func (r *accountsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapConstraint translates unique-constraint violations to ErrAlreadyExists.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlitelib.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return store.ErrAlreadyExists
		}
	}
	return err
}
