package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// backupCodeBcryptCost trades some hardness for verifying up to ten hashes
// in one login attempt
const backupCodeBcryptCost = 12

// TwoFactorRepository defines the storage interface for 2FA records
type TwoFactorRepository interface {
	GetByAccountID(ctx context.Context, accountID string) (*models.TwoFactor, error)
	UpsertPending(ctx context.Context, tf *models.TwoFactor) error
	Enable(ctx context.Context, accountID string, verifiedAt time.Time) error
	UpdateBackupCodes(ctx context.Context, accountID string, codes []models.BackupCodeEntry) error
	SetLastVerified(ctx context.Context, accountID string, verifiedAt time.Time) error
	Delete(ctx context.Context, accountID string) error
}

// TwoFactorConfig holds 2FA configuration
type TwoFactorConfig struct {
	BackupCodeCount int
}

// TwoFactorService handles TOTP enrollment, login verification, and backup
// codes. Enrollment is two-phase: a generated secret stays pending until the
// first code confirms the authenticator actually holds it.
type TwoFactorService struct {
	repo        TwoFactorRepository
	accountRepo AccountRepository
	totpMgr     *auth.TOTPManager
	events      EventRecorder
	logger      *slog.Logger
	config      TwoFactorConfig
}

// NewTwoFactorService creates a new two-factor service
func NewTwoFactorService(
	repo TwoFactorRepository,
	accountRepo AccountRepository,
	totpMgr *auth.TOTPManager,
	events EventRecorder,
	logger *slog.Logger,
	config TwoFactorConfig,
) *TwoFactorService {
	return &TwoFactorService{
		repo:        repo,
		accountRepo: accountRepo,
		totpMgr:     totpMgr,
		events:      events,
		logger:      logger,
		config:      config,
	}
}

// IsEnabled reports whether the account has confirmed 2FA
func (s *TwoFactorService) IsEnabled(ctx context.Context, accountID string) (bool, error) {
	tf, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return tf.Enabled, nil
}

// BeginEnrollment generates a fresh secret, QR code, and backup codes, and
// stores them pending. Re-running replaces an unconfirmed enrollment; an
// enabled account gets ErrTwoFactorAlreadyEnabled.
// The plaintext secret and codes are returned exactly once.
func (s *TwoFactorService) BeginEnrollment(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	encrypted, nonce, secret, qrCode, err := s.totpMgr.GenerateSecretWithQR(account.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	backupCodes, err := s.totpMgr.GenerateBackupCodes(s.config.BackupCodeCount)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	entries := make([]models.BackupCodeEntry, len(backupCodes))
	for i, code := range backupCodes {
		hash, err := bcrypt.GenerateFromPassword([]byte(code), backupCodeBcryptCost)
		if err != nil {
			s.logger.Error("failed to hash backup code", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		entries[i] = models.BackupCodeEntry{
			CodeHash:  string(hash),
			CreatedAt: now,
		}
	}

	pending := &models.TwoFactor{
		AccountID:       accountID,
		SecretEncrypted: encrypted,
		SecretNonce:     nonce,
		BackupCodes:     entries,
		CreatedAt:       now,
	}

	if err := s.repo.UpsertPending(ctx, pending); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrTwoFactorAlreadyEnabled
		}
		return nil, err
	}

	return &models.TwoFactorEnrollment{
		Secret:          secret,
		ProvisioningURI: s.totpMgr.ProvisioningURI(secret, account.Email),
		QRCode:          qrCode,
		BackupCodes:     backupCodes,
	}, nil
}

// ConfirmEnrollment validates the first code against the pending secret and
// flips 2FA on. A wrong code leaves the pending enrollment in place.
func (s *TwoFactorService) ConfirmEnrollment(ctx context.Context, accountID, code string) error {
	tf, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTwoFactorNotEnabled
		}
		return err
	}
	if tf.Enabled {
		return models.ErrTwoFactorAlreadyEnabled
	}

	secret, err := s.totpMgr.DecryptSecret(tf.SecretEncrypted, tf.SecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.totpMgr.ValidateTOTP(string(secret), code, nil)
	if err != nil || !valid {
		return models.ErrInvalidCode
	}

	now := time.Now()
	if err := s.repo.Enable(ctx, accountID, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTwoFactorAlreadyEnabled
		}
		return err
	}

	s.events.RecordEvent(ctx, accountID, models.EventTwoFactorEnabled, 0, models.DeviceInfo{}, nil)
	return nil
}

// VerifyAtLogin accepts a TOTP code or an unused backup code during the
// second login step. A matching backup code is consumed; a previously used
// one is ErrBackupCodeConsumed.
func (s *TwoFactorService) VerifyAtLogin(ctx context.Context, accountID, code string) error {
	tf, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTwoFactorNotEnabled
		}
		return err
	}
	if !tf.Enabled {
		return models.ErrTwoFactorNotEnabled
	}

	matched, err := s.verifyCode(ctx, tf, code, true)
	if err != nil {
		return err
	}
	if !matched {
		return models.ErrInvalidCode
	}

	if err := s.repo.SetLastVerified(ctx, accountID, time.Now()); err != nil {
		s.logger.Warn("failed to update last verified timestamp",
			slog.String("account_id", accountID),
			slog.Any("error", err))
	}
	return nil
}

// Disable turns 2FA off. It demands a valid current TOTP or backup code, then
// removes the secret and every backup code.
func (s *TwoFactorService) Disable(ctx context.Context, accountID, code string) error {
	tf, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTwoFactorNotEnabled
		}
		return err
	}
	if !tf.Enabled {
		return models.ErrTwoFactorNotEnabled
	}

	// No consumption: the whole record is about to go away
	matched, err := s.verifyCode(ctx, tf, code, false)
	if err != nil {
		return err
	}
	if !matched {
		return models.ErrInvalidCode
	}

	if err := s.repo.Delete(ctx, accountID); err != nil {
		return err
	}

	s.events.RecordEvent(ctx, accountID, models.EventTwoFactorDisabled, 30, models.DeviceInfo{}, nil)
	return nil
}

// verifyCode tries TOTP first, then the backup codes. Returns whether the
// code matched; a used backup code surfaces as ErrBackupCodeConsumed.
func (s *TwoFactorService) verifyCode(ctx context.Context, tf *models.TwoFactor, code string, consume bool) (bool, error) {
	secret, err := s.totpMgr.DecryptSecret(tf.SecretEncrypted, tf.SecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret",
			slog.String("account_id", tf.AccountID),
			slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	valid, err := s.totpMgr.ValidateTOTP(string(secret), code, tf.LastVerifiedAt)
	if err == nil && valid {
		return true, nil
	}

	// Fall through to backup codes
	for i := range tf.BackupCodes {
		entry := &tf.BackupCodes[i]
		if bcrypt.CompareHashAndPassword([]byte(entry.CodeHash), []byte(code)) != nil {
			continue
		}

		if entry.UsedAt != nil {
			return false, models.ErrBackupCodeConsumed
		}

		if consume {
			now := time.Now()
			entry.UsedAt = &now
			if err := s.repo.UpdateBackupCodes(ctx, tf.AccountID, tf.BackupCodes); err != nil {
				s.logger.Error("failed to consume backup code",
					slog.String("account_id", tf.AccountID),
					slog.Any("error", err))
				return false, err
			}
		}
		return true, nil
	}

	return false, nil
}
