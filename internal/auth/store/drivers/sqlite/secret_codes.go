package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/store"
)

type secretCodesRepo struct {
	db querier
}

// UpsertSecretCode replaces the one live code per (owner, purpose). A
// resent or reissued code always supersedes its predecessor.
func (r *secretCodesRepo) UpsertSecretCode(ctx context.Context, c domain.SecretCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO secret_codes (id, owner_id, purpose, code_hash, expires_at, consumed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, purpose) DO UPDATE SET
			id = excluded.id,
			code_hash = excluded.code_hash,
			expires_at = excluded.expires_at,
			consumed_at = excluded.consumed_at,
			created_at = excluded.created_at`,
		c.ID, c.OwnerID, c.Purpose, c.CodeHash, c.ExpiresAt,
		mapOptionalTime(c.ConsumedAt), c.CreatedAt,
	)
	return err
}

func (r *secretCodesRepo) GetSecretCode(ctx context.Context, ownerID, purpose string) (domain.SecretCode, error) {
	var (
		c          domain.SecretCode
		consumedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, purpose, code_hash, expires_at, consumed_at, created_at
		FROM secret_codes WHERE owner_id = ? AND purpose = ?`, ownerID, purpose).
		Scan(&c.ID, &c.OwnerID, &c.Purpose, &c.CodeHash, &c.ExpiresAt, &consumedAt, &c.CreatedAt)
	if err != nil {
		return domain.SecretCode{}, mapNotFound(err)
	}
	c.ConsumedAt = mapNullTimePtr(consumedAt)
	return c, nil
}

// ConsumeSecretCode only succeeds while the code is unused, so a replayed
// code loses the race.
func (r *secretCodesRepo) ConsumeSecretCode(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE secret_codes SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		at, id)
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

func (r *secretCodesRepo) DeleteSecretCode(ctx context.Context, ownerID, purpose string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM secret_codes WHERE owner_id = ? AND purpose = ?`, ownerID, purpose)
	return err
}

func (r *secretCodesRepo) DeleteExpiredSecretCodes(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM secret_codes WHERE expires_at < ?`, before)
	return err
}
