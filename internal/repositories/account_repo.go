package repositories

import (
	"context"
	"time"

	"github.com/calebmoran/gatehouse/internal/database"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account

	err := scanner.Scan(
		&account.ID, &account.Email, &account.PasswordHash,
		&account.FailedLoginCount, &account.LockedUntil,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, failed_login_count, locked_until, created_at, updated_at
		FROM accounts WHERE id = $1
	`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT id, email, password_hash, failed_login_count, locked_until, created_at, updated_at
		FROM accounts WHERE email = $1
	`

	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, email, password_hash, failed_login_count, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID, account.Email, account.PasswordHash,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return account, nil
}

// RecordFailedAttempt atomically increments the failed-login counter and, if
// the new count reached the threshold and no lock is currently in force, sets
// the lock. A failure during an active lock increments the counter but does
// not re-extend the lock.
// Returns the counter value after the increment and whether this call locked
// the account.
func (r *AccountRepository) RecordFailedAttempt(ctx context.Context, accountID string, maxAttempts int, lockedUntil time.Time) (int, bool, error) {
	var newCount int
	err := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET failed_login_count = failed_login_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_count
	`, accountID).Scan(&newCount)
	if err != nil {
		return 0, false, database.MapPostgresError(err)
	}

	if newCount < maxAttempts {
		return newCount, false, nil
	}

	// Guard keeps an existing lock from being re-extended
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET locked_until = $2, updated_at = now()
		WHERE id = $1 AND (locked_until IS NULL OR locked_until <= now())
	`, accountID, lockedUntil)
	if err != nil {
		return newCount, false, database.MapPostgresError(err)
	}

	return newCount, tag.RowsAffected() > 0, nil
}

// ResetFailedAttempts clears the counter and any lockout in one statement
func (r *AccountRepository) ResetFailedAttempts(ctx context.Context, accountID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET failed_login_count = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, accountID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, accountID, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, accountID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
