package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/store"
)

type sessionsRepo struct {
	db querier
}

const sessionColumns = `id, account_id, device_name, refresh_token_id, access_token_id, created_at, last_seen_at`

func scanSession(row *sql.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.AccountID, &s.DeviceName,
		&s.RefreshTokenID, &s.AccessTokenID, &s.CreatedAt, &s.LastSeenAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, device_name, refresh_token_id, access_token_id, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.AccountID, s.DeviceName, s.RefreshTokenID, s.AccessTokenID, s.CreatedAt, s.LastSeenAt,
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (r *sessionsRepo) ListSessionsByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE account_id = ? ORDER BY created_at ASC, id ASC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.AccountID, &s.DeviceName,
			&s.RefreshTokenID, &s.AccessTokenID, &s.CreatedAt, &s.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) CountSessionsByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

func (r *sessionsRepo) OldestSessionByAccount(ctx context.Context, accountID string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE account_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		accountID)
	return scanSession(row)
}

func (r *sessionsRepo) UpdateSessionTokens(ctx context.Context, sessionID, refreshTokenID, accessTokenID string, lastSeen time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET refresh_token_id = ?, access_token_id = ?, last_seen_at = ?
		WHERE id = ?`,
		refreshTokenID, accessTokenID, lastSeen, sessionID)
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

func (r *sessionsRepo) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
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

func (r *sessionsRepo) DeleteSessionsByAccount(ctx context.Context, accountID, exceptID string) error {
	if exceptID == "" {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM sessions WHERE account_id = ?`, accountID)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = ? AND id != ?`, accountID, exceptID)
	return err
}
