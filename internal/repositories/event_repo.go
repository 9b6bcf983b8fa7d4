package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calebmoran/gatehouse/internal/database"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{pool: db.Pool}
}

func scanEventRow(scanner rowScanner) (*models.SecurityEvent, error) {
	var event models.SecurityEvent
	var deviceJSON []byte

	err := scanner.Scan(
		&event.ID, &event.AccountID, &event.Type, &event.RiskScore,
		&deviceJSON, &event.Details, &event.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if len(deviceJSON) > 0 {
		if err := json.Unmarshal(deviceJSON, &event.DeviceInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device info: %w", err)
		}
	}

	return &event, nil
}

// AppendEvent inserts one event and prunes the account's log down to cap.
// The log is a bounded ring: pruning drops the oldest rows and never errors
// the append.
func (r *EventRepository) AppendEvent(ctx context.Context, event *models.SecurityEvent, cap int) error {
	if !event.Type.Valid() {
		return models.ErrBadRequest
	}

	event.ID = uuid.New().String()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	deviceJSON, err := json.Marshal(event.DeviceInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal device info: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO security_events (id, account_id, event_type, risk_score, device_info, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.AccountID, event.Type, event.RiskScore, deviceJSON, event.Details, event.CreatedAt)
	if err != nil {
		return database.MapPostgresError(err)
	}

	_, err = r.pool.Exec(ctx, `
		DELETE FROM security_events
		WHERE account_id = $1 AND id NOT IN (
			SELECT id FROM security_events
			WHERE account_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`, event.AccountID, cap)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// AppendLoginEntry inserts one login-history row with the same ring semantics
func (r *EventRepository) AppendLoginEntry(ctx context.Context, entry *models.LoginHistoryEntry, cap int) error {
	entry.ID = uuid.New().String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	deviceJSON, err := json.Marshal(entry.DeviceInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal device info: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO login_history (id, account_id, success, failure_reason, device_info, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.AccountID, entry.Success, entry.FailureReason, deviceJSON, entry.CreatedAt)
	if err != nil {
		return database.MapPostgresError(err)
	}

	_, err = r.pool.Exec(ctx, `
		DELETE FROM login_history
		WHERE account_id = $1 AND id NOT IN (
			SELECT id FROM login_history
			WHERE account_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`, entry.AccountID, cap)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// ListRecentEvents returns the newest events first, bounded by limit
func (r *EventRepository) ListRecentEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, account_id, event_type, risk_score, device_info, details, created_at
		FROM security_events
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

// ListLoginHistory returns the newest login attempts first, bounded by limit
func (r *EventRepository) ListLoginHistory(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error) {
	query := `
		SELECT id, account_id, success, failure_reason, device_info, created_at
		FROM login_history
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.LoginHistoryEntry, 0)
	for rows.Next() {
		var entry models.LoginHistoryEntry
		var deviceJSON []byte

		err := rows.Scan(
			&entry.ID, &entry.AccountID, &entry.Success,
			&entry.FailureReason, &deviceJSON, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login history entry: %w", err)
		}

		if len(deviceJSON) > 0 {
			if err := json.Unmarshal(deviceJSON, &entry.DeviceInfo); err != nil {
				return nil, fmt.Errorf("failed to unmarshal device info: %w", err)
			}
		}

		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// CountHighRiskSince counts events above the risk threshold since the cutoff
func (r *EventRepository) CountHighRiskSince(ctx context.Context, accountID string, riskThreshold int, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM security_events
		WHERE account_id = $1 AND risk_score > $2 AND created_at >= $3
	`, accountID, riskThreshold, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CountFailedLoginsSince counts failed login attempts since the cutoff
func (r *EventRepository) CountFailedLoginsSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_history
		WHERE account_id = $1 AND success = false AND created_at >= $2
	`, accountID, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// HasSuspiciousSince reports whether a suspicious_activity event was logged
// since the cutoff
func (r *EventRepository) HasSuspiciousSince(ctx context.Context, accountID string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM security_events
			WHERE account_id = $1 AND event_type = $2 AND created_at >= $3
		)
	`, accountID, models.EventSuspiciousActivity, since).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// PruneAll enforces both caps across every account (background sweep)
func (r *EventRepository) PruneAll(ctx context.Context, eventCap, historyCap int) (int64, error) {
	var pruned int64

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM security_events WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (PARTITION BY account_id ORDER BY created_at DESC) AS rn
				FROM security_events
			) ranked WHERE ranked.rn > $1
		)
	`, eventCap)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	pruned += tag.RowsAffected()

	tag, err = r.pool.Exec(ctx, `
		DELETE FROM login_history WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (PARTITION BY account_id ORDER BY created_at DESC) AS rn
				FROM login_history
			) ranked WHERE ranked.rn > $1
		)
	`, historyCap)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	pruned += tag.RowsAffected()

	return pruned, nil
}
