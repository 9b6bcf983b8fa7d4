package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/calebmoran/gatehouse/internal/models"
	pkgauth "github.com/calebmoran/gatehouse/pkg/auth"
	pkglogger "github.com/calebmoran/gatehouse/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// AccountRepository defines the storage interface for account records
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	RecordFailedAttempt(ctx context.Context, accountID string, maxAttempts int, lockedUntil time.Time) (int, bool, error)
	ResetFailedAttempts(ctx context.Context, accountID string) error
	UpdatePassword(ctx context.Context, accountID, passwordHash string) error
}

// SessionRevoker is the slice of the session service the credential side
// needs for revoke-on-password-change
type SessionRevoker interface {
	RevokeAll(ctx context.Context, accountID string) (int64, error)
}

// CredentialConfig holds credential verification configuration
type CredentialConfig struct {
	MaxLoginAttempts       int
	LockoutDuration        time.Duration
	RevokeOnPasswordChange bool
}

// CredentialService verifies passwords and maintains the failed-attempt
// counter and lockout state
type CredentialService struct {
	accountRepo AccountRepository
	sessions    SessionRevoker
	events      EventRecorder
	logger      *slog.Logger
	config      CredentialConfig
}

// NewCredentialService creates a new credential service
func NewCredentialService(
	accountRepo AccountRepository,
	sessions SessionRevoker,
	events EventRecorder,
	logger *slog.Logger,
	config CredentialConfig,
) *CredentialService {
	return &CredentialService{
		accountRepo: accountRepo,
		sessions:    sessions,
		events:      events,
		logger:      logger,
		config:      config,
	}
}

// VerifyPassword checks a candidate password for the account identified by
// email. The lockout check comes first: a locked account never runs the
// bcrypt compare and its counter is untouched.
// Returns ErrNotFound (unknown email), ErrAccountLocked, or
// ErrInvalidCredential; the caller collapses NotFound for the wire. On
// ErrAccountLocked and ErrInvalidCredential the account is returned alongside
// the error so the caller can book the failure.
func (s *CredentialService) VerifyPassword(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if account.IsLocked(time.Now()) {
		return account, models.ErrAccountLocked
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return account, models.ErrInvalidCredential
		}
		s.logger.Error("password compare failed",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return account, nil
}

// RecordFailure increments the failed-attempt counter and reports whether
// this failure locked the account
func (s *CredentialService) RecordFailure(ctx context.Context, accountID string) (lockedUntil *time.Time, lockedNow bool, err error) {
	until := time.Now().Add(s.config.LockoutDuration)

	count, locked, err := s.accountRepo.RecordFailedAttempt(ctx, accountID, s.config.MaxLoginAttempts, until)
	if err != nil {
		return nil, false, err
	}

	s.logger.Warn("failed login attempt recorded",
		slog.String("account_id", accountID),
		slog.Int("failed_count", count),
		slog.Bool("locked", locked))

	if !locked {
		return nil, false, nil
	}
	return &until, true, nil
}

// ResetAttempts clears the counter and any lockout. Called only after FULL
// authentication: password plus the 2FA step when 2FA is enabled.
func (s *CredentialService) ResetAttempts(ctx context.Context, accountID string) error {
	return s.accountRepo.ResetFailedAttempts(ctx, accountID)
}

// ChangePassword verifies the current password, validates and stores the new
// one, and revokes the account's sessions when configured to do so
func (s *CredentialService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, deviceInfo models.DeviceInfo) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		return models.ErrInvalidCredential
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrBadRequest
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.accountRepo.UpdatePassword(ctx, accountID, hash); err != nil {
		return err
	}

	s.events.RecordEvent(ctx, accountID, models.EventPasswordChange, 0, deviceInfo, nil)

	if s.config.RevokeOnPasswordChange {
		revoked, err := s.sessions.RevokeAll(ctx, accountID)
		if err != nil {
			// Password already changed; surface the partial failure in logs
			s.logger.Error("failed to revoke sessions after password change",
				slog.String("account_id", accountID),
				slog.Any("error", err))
		} else {
			s.logger.Info("sessions revoked after password change",
				slog.String("account_id", accountID),
				slog.Int64("revoked", revoked))
		}
	}

	return nil
}
