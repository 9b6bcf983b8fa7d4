package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/google/uuid"
)

// SessionRepository defines the storage interface for sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	EnforceCap(ctx context.Context, accountID string, maxSessions int) (int64, error)
	DeleteExpired(ctx context.Context, accountID string) error
	TouchActivity(ctx context.Context, id string) error
	Revoke(ctx context.Context, accountID, sessionID string) error
	RevokeAll(ctx context.Context, accountID string) (int64, error)
	ListActive(ctx context.Context, accountID string) ([]*models.Session, error)
	MarkExpired(ctx context.Context) (int64, error)
	DeleteInactiveExpired(ctx context.Context) (int64, error)
}

// SessionConfig holds session lifetime configuration
type SessionConfig struct {
	Timeout     time.Duration
	MaxSessions int
}

// SessionService mints, validates, and revokes opaque bearer sessions
type SessionService struct {
	repo   SessionRepository
	events EventRecorder
	logger *slog.Logger
	config SessionConfig
}

// NewSessionService creates a new session service
func NewSessionService(repo SessionRepository, events EventRecorder, logger *slog.Logger, config SessionConfig) *SessionService {
	return &SessionService{
		repo:   repo,
		events: events,
		logger: logger,
		config: config,
	}
}

// Create mints a session for the account. The returned credential carries the
// plaintext secret exactly once; only its hash is stored. Expiry is fixed at
// issuance and never extended.
func (s *SessionService) Create(ctx context.Context, accountID string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error) {
	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		s.logger.Error("failed to generate session secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	session := &models.Session{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		TokenHash:      auth.HashSessionSecret(secret),
		DeviceInfo:     deviceInfo,
		IssuedAt:       now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.config.Timeout),
		IsActive:       true,
	}

	// Expired rows are garbage collected on this write path
	if err := s.repo.DeleteExpired(ctx, accountID); err != nil {
		s.logger.Warn("failed to prune expired sessions",
			slog.String("account_id", accountID),
			slog.Any("error", err))
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	// Cap enforcement evicts the least-recently-active overflow; a failure
	// here never fails the create
	evicted, err := s.repo.EnforceCap(ctx, accountID, s.config.MaxSessions)
	if err != nil {
		s.logger.Error("failed to enforce session cap",
			slog.String("account_id", accountID),
			slog.Any("error", err))
	} else if evicted > 0 {
		s.logger.Info("evicted sessions over cap",
			slog.String("account_id", accountID),
			slog.Int64("evicted", evicted))
	}

	s.events.RecordEvent(ctx, accountID, models.EventSessionCreated, 0, deviceInfo, models.EventDetails{
		"session_id": session.ID,
	})

	return &models.SessionCredential{
		ID:        session.ID,
		Secret:    secret,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Validate resolves a presented credential into a live session. Every
// mismatch (unknown id, inactive, expired, wrong secret) reads the same from
// outside: ErrUnauthorized. Storage failures pass through untouched so the
// transport layer can answer 503 instead of 401.
// Side effect: bumps last_activity_at.
func (s *SessionService) Validate(ctx context.Context, sessionID, secret string) (*models.Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	now := time.Now()
	if !session.IsActive || !now.Before(session.ExpiresAt) {
		return nil, models.ErrUnauthorized
	}

	if !auth.SecretMatches(session.TokenHash, secret) {
		return nil, models.ErrUnauthorized
	}

	if err := s.repo.TouchActivity(ctx, sessionID); err != nil {
		// Activity tracking feeds LRU eviction, not validity
		s.logger.Warn("failed to touch session activity",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
	}
	session.LastActivityAt = now

	return session, nil
}

// Revoke deactivates one of the account's sessions. Revocation is immediately
// visible: the next Validate on that session fails.
func (s *SessionService) Revoke(ctx context.Context, accountID, sessionID string, deviceInfo models.DeviceInfo) error {
	if err := s.repo.Revoke(ctx, accountID, sessionID); err != nil {
		return err
	}

	s.events.RecordEvent(ctx, accountID, models.EventSessionRevoked, 0, deviceInfo, models.EventDetails{
		"session_id": sessionID,
	})
	return nil
}

// RevokeAll deactivates every session of the account
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	revoked, err := s.repo.RevokeAll(ctx, accountID)
	if err != nil {
		return 0, err
	}

	if revoked > 0 {
		s.events.RecordEvent(ctx, accountID, models.EventSessionRevoked, 0, models.DeviceInfo{}, models.EventDetails{
			"revoked_count": revoked,
		})
	}
	return revoked, nil
}

// ListActive returns the account's live sessions, most recently active first
func (s *SessionService) ListActive(ctx context.Context, accountID string) ([]*models.Session, error) {
	return s.repo.ListActive(ctx, accountID)
}

// CleanupExpired marks expired sessions inactive and drops terminal rows.
// Called from the background sweep.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	expired, err := s.repo.MarkExpired(ctx)
	if err != nil {
		return 0, err
	}

	if _, err := s.repo.DeleteInactiveExpired(ctx); err != nil {
		s.logger.Warn("failed to delete inactive expired sessions", slog.Any("error", err))
	}

	return expired, nil
}
