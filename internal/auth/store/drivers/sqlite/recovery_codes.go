package sqlite

import (
	"context"
	"time"

	"github.com/lamplight/gatehouse/internal/auth/domain"
	"github.com/lamplight/gatehouse/internal/auth/store"
)

type recoveryCodesRepo struct {
	db querier
}

// ReplaceRecoveryCodes swaps the whole batch. Run this inside WithTx so a
// failed insert never leaves the account half-replaced.
func (r *recoveryCodesRepo) ReplaceRecoveryCodes(ctx context.Context, accountID string, codes []domain.RecoveryCode) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE account_id = ?`, accountID); err != nil {
		return err
	}

	for _, c := range codes {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO recovery_codes (id, account_id, code_hash, consumed_at, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, accountID, c.CodeHash, mapOptionalTime(c.ConsumedAt), c.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeRecoveryCode spends the unused code matching hash. Conditional
// on consumed_at so presenting the same code twice fails the second time.
func (r *recoveryCodesRepo) ConsumeRecoveryCode(ctx context.Context, accountID, codeHash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recovery_codes SET consumed_at = ?
		WHERE account_id = ? AND code_hash = ? AND consumed_at IS NULL`,
		at, accountID, codeHash)
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

func (r *recoveryCodesRepo) CountActiveRecoveryCodes(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE account_id = ? AND consumed_at IS NULL`,
		accountID).Scan(&n)
	return n, err
}

func (r *recoveryCodesRepo) DeleteRecoveryCodes(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE account_id = ?`, accountID)
	return err
}
