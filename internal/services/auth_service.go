package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	pkglogger "github.com/calebmoran/gatehouse/pkg/logger"
)

// LoginResult is the outcome of a successful password check. Either the
// session credential is set (2FA off, login complete) or the challenge token
// is (2FA on, one step to go).
type LoginResult struct {
	TwoFactorRequired bool
	ChallengeToken    string
	Credential        *models.SessionCredential
}

// AuthService orchestrates the login flow across credentials, 2FA, and
// sessions
type AuthService struct {
	credentials  *CredentialService
	sessions     *SessionService
	twoFactor    *TwoFactorService
	events       EventRecorder
	alerts       AlertService
	challengeMgr *auth.ChallengeManager
	audit        *pkglogger.AuditLogger
	logger       *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	credentials *CredentialService,
	sessions *SessionService,
	twoFactor *TwoFactorService,
	events EventRecorder,
	alerts AlertService,
	challengeMgr *auth.ChallengeManager,
	audit *pkglogger.AuditLogger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		credentials:  credentials,
		sessions:     sessions,
		twoFactor:    twoFactor,
		events:       events,
		alerts:       alerts,
		challengeMgr: challengeMgr,
		audit:        audit,
		logger:       logger,
	}
}

// Login runs the password step. Unknown email and wrong password both come
// back as ErrInvalidCredential; ErrAccountLocked is the single distinguished
// negative. When 2FA is enabled the result carries a short-lived challenge
// token instead of a session, and the failed-attempt counter stays put until
// the code step succeeds.
func (s *AuthService) Login(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*LoginResult, error) {
	account, err := s.credentials.VerifyPassword(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			// Account existence stays hidden
			s.auditFailure("", email, deviceInfo, "unknown_account")
			return nil, models.ErrInvalidCredential

		case errors.Is(err, models.ErrAccountLocked):
			s.events.RecordLoginAttempt(ctx, account.ID, false, "account_locked", deviceInfo)
			s.auditFailure(account.ID, email, deviceInfo, "account_locked")
			return nil, models.ErrAccountLocked

		case errors.Is(err, models.ErrInvalidCredential):
			return nil, s.handleFailedPassword(ctx, account, email, deviceInfo)

		default:
			return nil, err
		}
	}

	enabled, err := s.twoFactor.IsEnabled(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	if enabled {
		token, err := s.challengeMgr.Generate(account.ID, account.Email)
		if err != nil {
			s.logger.Error("failed to generate challenge token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		return &LoginResult{TwoFactorRequired: true, ChallengeToken: token}, nil
	}

	credential, err := s.finalizeLogin(ctx, account.ID, deviceInfo)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Credential: credential}, nil
}

// CompleteTwoFactor exchanges a challenge token plus a TOTP or backup code
// for the real session
func (s *AuthService) CompleteTwoFactor(ctx context.Context, challengeToken, code string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error) {
	claims, err := s.challengeMgr.Validate(challengeToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	if err := s.twoFactor.VerifyAtLogin(ctx, claims.AccountID, code); err != nil {
		if errors.Is(err, models.ErrInvalidCode) || errors.Is(err, models.ErrBackupCodeConsumed) {
			// A failed code step counts against the lockout threshold too
			if _, _, recErr := s.credentials.RecordFailure(ctx, claims.AccountID); recErr != nil {
				s.logger.Error("failed to record 2FA failure",
					slog.String("account_id", claims.AccountID),
					slog.Any("error", recErr))
			}
			s.events.RecordLoginAttempt(ctx, claims.AccountID, false, "invalid_code", deviceInfo)
			s.auditFailure(claims.AccountID, claims.Email, deviceInfo, "invalid_code")

			// A spent backup code coming back means someone holds old codes
			if errors.Is(err, models.ErrBackupCodeConsumed) {
				s.events.RecordEvent(ctx, claims.AccountID, models.EventSuspiciousActivity, 60, deviceInfo, models.EventDetails{
					"reason": "consumed_backup_code_replayed",
				})
				s.alerts.SendSuspiciousActivity(ctx, claims.Email,
					"A previously used backup code was presented during sign-in.")
			}
		}
		return nil, err
	}

	return s.finalizeLogin(ctx, claims.AccountID, deviceInfo)
}

// finalizeLogin completes full authentication: reset the counter, mint the
// session, record the trail
func (s *AuthService) finalizeLogin(ctx context.Context, accountID string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error) {
	if err := s.credentials.ResetAttempts(ctx, accountID); err != nil {
		s.logger.Error("failed to reset failed attempts",
			slog.String("account_id", accountID),
			slog.Any("error", err))
	}

	credential, err := s.sessions.Create(ctx, accountID, deviceInfo)
	if err != nil {
		return nil, err
	}

	s.events.RecordLoginAttempt(ctx, accountID, true, "", deviceInfo)
	s.events.RecordEvent(ctx, accountID, models.EventLoginSuccess, 0, deviceInfo, nil)
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		AccountID: accountID,
		IPAddress: deviceInfo.IPAddress,
		Success:   true,
	})

	return credential, nil
}

// handleFailedPassword books the failure and, when it trips the threshold,
// locks the account and fires the alert email
func (s *AuthService) handleFailedPassword(ctx context.Context, account *models.Account, email string, deviceInfo models.DeviceInfo) error {
	lockedUntil, lockedNow, err := s.credentials.RecordFailure(ctx, account.ID)
	if err != nil {
		s.logger.Error("failed to record login failure",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	s.events.RecordLoginAttempt(ctx, account.ID, false, "invalid_credential", deviceInfo)
	s.events.RecordEvent(ctx, account.ID, models.EventLoginFailure, 20, deviceInfo, nil)
	s.auditFailure(account.ID, email, deviceInfo, "invalid_credential")

	if lockedNow {
		s.events.RecordEvent(ctx, account.ID, models.EventAccountLocked, 70, deviceInfo, models.EventDetails{
			"locked_until": lockedUntil,
		})
		s.alerts.SendAccountLocked(ctx, account.Email, *lockedUntil)
	}

	return models.ErrInvalidCredential
}

func (s *AuthService) auditFailure(accountID, email string, deviceInfo models.DeviceInfo, reason string) {
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login",
		AccountID:     accountID,
		IPAddress:     deviceInfo.IPAddress,
		Success:       false,
		FailureReason: reason,
	})
	s.logger.Warn("login failed",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("reason", reason))
}
