package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calebmoran/gatehouse/internal/database"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var session models.Session
	var deviceJSON []byte

	err := scanner.Scan(
		&session.ID, &session.AccountID, &session.TokenHash, &deviceJSON,
		&session.IssuedAt, &session.LastActivityAt, &session.ExpiresAt,
		&session.IsActive,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if len(deviceJSON) > 0 {
		if err := json.Unmarshal(deviceJSON, &session.DeviceInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device info: %w", err)
		}
	}

	return &session, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := make([]*models.Session, 0)

	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	deviceJSON, err := json.Marshal(session.DeviceInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal device info: %w", err)
	}

	query := `
		INSERT INTO sessions (id, account_id, token_hash, device_info, issued_at, last_activity_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
	`

	_, err = r.pool.Exec(ctx, query,
		session.ID, session.AccountID, session.TokenHash, deviceJSON,
		session.IssuedAt, session.LastActivityAt, session.ExpiresAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, account_id, token_hash, device_info, issued_at, last_activity_at, expires_at, is_active
		FROM sessions WHERE id = $1
	`

	return scanSessionRow(r.pool.QueryRow(ctx, query, id))
}

// EnforceCap deactivates the least-recently-active sessions beyond maxSessions
// in a single statement. Concurrent creates can momentarily overshoot the cap;
// the next call converges.
func (r *SessionRepository) EnforceCap(ctx context.Context, accountID string, maxSessions int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET is_active = false
		WHERE account_id = $1 AND is_active = true AND id NOT IN (
			SELECT id FROM sessions
			WHERE account_id = $1 AND is_active = true
			ORDER BY last_activity_at DESC
			LIMIT $2
		)
	`, accountID, maxSessions)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return tag.RowsAffected(), nil
}

// DeleteExpired drops expired rows for one account (write-side lazy GC)
func (r *SessionRepository) DeleteExpired(ctx context.Context, accountID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE account_id = $1 AND expires_at <= now()
	`, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// TouchActivity records validation-time activity on a session
func (r *SessionRepository) TouchActivity(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET last_activity_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Revoke deactivates one session owned by the account. Already-inactive
// sessions revoke cleanly; a session that does not exist or belongs to
// another account is ErrNotFound.
func (r *SessionRepository) Revoke(ctx context.Context, accountID, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_active = false
		WHERE id = $1 AND account_id = $2
	`, sessionID, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RevokeAll deactivates every session of the account, returning the count
func (r *SessionRepository) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_active = false
		WHERE account_id = $1 AND is_active = true
	`, accountID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// ListActive returns active, unexpired sessions, most recently active first
func (r *SessionRepository) ListActive(ctx context.Context, accountID string) ([]*models.Session, error) {
	query := `
		SELECT id, account_id, token_hash, device_info, issued_at, last_activity_at, expires_at, is_active
		FROM sessions
		WHERE account_id = $1 AND is_active = true AND expires_at > now()
		ORDER BY last_activity_at DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	return scanSessionRows(rows)
}

// MarkExpired flips active-but-expired sessions to inactive (background sweep)
func (r *SessionRepository) MarkExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_active = false
		WHERE is_active = true AND expires_at <= now()
	`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteInactiveExpired removes terminal rows that can no longer validate
func (r *SessionRepository) DeleteInactiveExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE is_active = false AND expires_at <= now()
	`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
