package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calebmoran/gatehouse/internal/database"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TwoFactorRepository struct {
	pool *pgxpool.Pool
}

func NewTwoFactorRepository(db *database.DB) *TwoFactorRepository {
	return &TwoFactorRepository{pool: db.Pool}
}

func (r *TwoFactorRepository) GetByAccountID(ctx context.Context, accountID string) (*models.TwoFactor, error) {
	query := `
		SELECT account_id, enabled, secret_encrypted, secret_nonce, backup_codes, last_verified_at, created_at
		FROM two_factor WHERE account_id = $1
	`

	var tf models.TwoFactor
	var codesJSON []byte

	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&tf.AccountID, &tf.Enabled, &tf.SecretEncrypted, &tf.SecretNonce,
		&codesJSON, &tf.LastVerifiedAt, &tf.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if len(codesJSON) > 0 {
		if err := json.Unmarshal(codesJSON, &tf.BackupCodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal backup codes: %w", err)
		}
	}

	return &tf, nil
}

// UpsertPending stores a fresh enrollment in pending state. An existing
// pending record is replaced wholesale; an enabled record is left untouched
// and the call fails with ErrConflict.
func (r *TwoFactorRepository) UpsertPending(ctx context.Context, tf *models.TwoFactor) error {
	codesJSON, err := json.Marshal(tf.BackupCodes)
	if err != nil {
		return fmt.Errorf("failed to marshal backup codes: %w", err)
	}

	query := `
		INSERT INTO two_factor (account_id, enabled, secret_encrypted, secret_nonce, backup_codes, created_at)
		VALUES ($1, false, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE
		SET secret_encrypted = EXCLUDED.secret_encrypted,
		    secret_nonce = EXCLUDED.secret_nonce,
		    backup_codes = EXCLUDED.backup_codes,
		    last_verified_at = NULL,
		    created_at = EXCLUDED.created_at
		WHERE two_factor.enabled = false
	`

	tag, err := r.pool.Exec(ctx, query,
		tf.AccountID, tf.SecretEncrypted, tf.SecretNonce, codesJSON, tf.CreatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

// Enable flips a pending enrollment on. Only a pending record qualifies.
func (r *TwoFactorRepository) Enable(ctx context.Context, accountID string, verifiedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE two_factor
		SET enabled = true, last_verified_at = $2
		WHERE account_id = $1 AND enabled = false
	`, accountID, verifiedAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateBackupCodes persists the full backup-code list (used on consumption)
func (r *TwoFactorRepository) UpdateBackupCodes(ctx context.Context, accountID string, codes []models.BackupCodeEntry) error {
	codesJSON, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("failed to marshal backup codes: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE two_factor SET backup_codes = $2 WHERE account_id = $1
	`, accountID, codesJSON)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *TwoFactorRepository) SetLastVerified(ctx context.Context, accountID string, verifiedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE two_factor SET last_verified_at = $2 WHERE account_id = $1
	`, accountID, verifiedAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes the record entirely: secret, nonce, and all backup codes
func (r *TwoFactorRepository) Delete(ctx context.Context, accountID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM two_factor WHERE account_id = $1`, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
