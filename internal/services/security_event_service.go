package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/calebmoran/gatehouse/internal/models"
)

// EventRepository defines the storage interface for the security event log
type EventRepository interface {
	AppendEvent(ctx context.Context, event *models.SecurityEvent, cap int) error
	AppendLoginEntry(ctx context.Context, entry *models.LoginHistoryEntry, cap int) error
	ListRecentEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error)
	ListLoginHistory(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error)
	CountHighRiskSince(ctx context.Context, accountID string, riskThreshold int, since time.Time) (int, error)
	CountFailedLoginsSince(ctx context.Context, accountID string, since time.Time) (int, error)
	HasSuspiciousSince(ctx context.Context, accountID string, since time.Time) (bool, error)
	PruneAll(ctx context.Context, eventCap, historyCap int) (int64, error)
}

// EventRecorder is the write-side interface other services use. Recording is
// best-effort: the log is observability, not a ledger, and must never fail
// the operation that produced the event.
type EventRecorder interface {
	RecordEvent(ctx context.Context, accountID string, eventType models.EventType, riskScore int, deviceInfo models.DeviceInfo, details models.EventDetails)
	RecordLoginAttempt(ctx context.Context, accountID string, success bool, failureReason string, deviceInfo models.DeviceInfo)
}

// Risk snapshot thresholds
const (
	highRiskScoreThreshold = 50
	highRiskWindow         = 24 * time.Hour
	failedLoginWindow      = 1 * time.Hour
)

// EventConfig holds the per-account log caps
type EventConfig struct {
	SecurityEventCap int
	LoginHistoryCap  int
}

// SecurityEventService maintains the bounded per-account security log and
// derives the risk snapshot
type SecurityEventService struct {
	repo   EventRepository
	logger *slog.Logger
	config EventConfig
}

// NewSecurityEventService creates a new security event service
func NewSecurityEventService(repo EventRepository, logger *slog.Logger, config EventConfig) *SecurityEventService {
	return &SecurityEventService{
		repo:   repo,
		logger: logger,
		config: config,
	}
}

// RecordEvent appends one event to the account's capped log
func (s *SecurityEventService) RecordEvent(ctx context.Context, accountID string, eventType models.EventType, riskScore int, deviceInfo models.DeviceInfo, details models.EventDetails) {
	event := &models.SecurityEvent{
		AccountID:  accountID,
		Type:       eventType,
		RiskScore:  riskScore,
		DeviceInfo: deviceInfo,
		Details:    details,
	}

	if err := s.repo.AppendEvent(ctx, event, s.config.SecurityEventCap); err != nil {
		s.logger.Error("failed to record security event",
			slog.String("account_id", accountID),
			slog.String("event_type", string(eventType)),
			slog.Any("error", err))
	}
}

// RecordLoginAttempt appends one entry to the account's capped login history
func (s *SecurityEventService) RecordLoginAttempt(ctx context.Context, accountID string, success bool, failureReason string, deviceInfo models.DeviceInfo) {
	entry := &models.LoginHistoryEntry{
		AccountID:  accountID,
		Success:    success,
		DeviceInfo: deviceInfo,
	}
	if failureReason != "" {
		entry.FailureReason = &failureReason
	}

	if err := s.repo.AppendLoginEntry(ctx, entry, s.config.LoginHistoryCap); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("account_id", accountID),
			slog.Any("error", err))
	}
}

// ListEvents returns the account's recent events, newest first
func (s *SecurityEventService) ListEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	if limit <= 0 || limit > s.config.SecurityEventCap {
		limit = s.config.SecurityEventCap
	}
	return s.repo.ListRecentEvents(ctx, accountID, limit)
}

// ListLoginHistory returns the account's recent login attempts, newest first
func (s *SecurityEventService) ListLoginHistory(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error) {
	if limit <= 0 || limit > s.config.LoginHistoryCap {
		limit = s.config.LoginHistoryCap
	}
	return s.repo.ListLoginHistory(ctx, accountID, limit)
}

// RiskSnapshot derives the account's current risk level from recent activity.
// Nothing is stored; every call reads the log fresh.
func (s *SecurityEventService) RiskSnapshot(ctx context.Context, accountID string) (*models.RiskSnapshot, error) {
	now := time.Now()

	highRisk, err := s.repo.CountHighRiskSince(ctx, accountID, highRiskScoreThreshold, now.Add(-highRiskWindow))
	if err != nil {
		return nil, err
	}

	failedLogins, err := s.repo.CountFailedLoginsSince(ctx, accountID, now.Add(-failedLoginWindow))
	if err != nil {
		return nil, err
	}

	suspicious, err := s.repo.HasSuspiciousSince(ctx, accountID, now.Add(-highRiskWindow))
	if err != nil {
		return nil, err
	}

	level := models.RiskLow
	switch {
	case highRisk > 5:
		level = models.RiskHigh
	case highRisk > 2:
		level = models.RiskMedium
	}

	return &models.RiskSnapshot{
		Level:                      level,
		SuspiciousActivityDetected: suspicious,
		RecentFailedLogins:         failedLogins,
		HighRiskEvents24h:          highRisk,
	}, nil
}

// Prune enforces both caps across all accounts (called from the background sweep)
func (s *SecurityEventService) Prune(ctx context.Context) (int64, error) {
	return s.repo.PruneAll(ctx, s.config.SecurityEventCap, s.config.LoginHistoryCap)
}
