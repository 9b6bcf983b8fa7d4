package services

import (
	"context"
	"testing"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc           *AuthService
	accountRepo   *MockAccountRepository
	sessionRepo   *MockSessionRepository
	twoFactorRepo *MockTwoFactorRepository
	recorder      *MockEventRecorder
	alerts        *MockAlertService
	challengeMgr  *auth.ChallengeManager
}

func newAuthFixture(t *testing.T, tm *auth.TOTPManager) *authFixture {
	t.Helper()

	accountRepo := &MockAccountRepository{}
	sessionRepo := &MockSessionRepository{}
	twoFactorRepo := &MockTwoFactorRepository{}
	recorder := &MockEventRecorder{}
	alerts := &MockAlertService{}
	challengeMgr := auth.NewChallengeManager("test-challenge-secret", 5*time.Minute)

	credentials := NewCredentialService(accountRepo, &MockSessionRevoker{}, recorder, testLogger(), CredentialConfig{
		MaxLoginAttempts:       5,
		LockoutDuration:        2 * time.Hour,
		RevokeOnPasswordChange: true,
	})
	sessions := NewSessionService(sessionRepo, recorder, testLogger(), SessionConfig{
		Timeout:     24 * time.Hour,
		MaxSessions: 5,
	})
	twoFactor := NewTwoFactorService(twoFactorRepo, accountRepo, tm, recorder, testLogger(), TwoFactorConfig{
		BackupCodeCount: 10,
	})

	svc := NewAuthService(credentials, sessions, twoFactor, recorder, alerts, challengeMgr, testAuditLogger(), testLogger())
	return &authFixture{
		svc:           svc,
		accountRepo:   accountRepo,
		sessionRepo:   sessionRepo,
		twoFactorRepo: twoFactorRepo,
		recorder:      recorder,
		alerts:        alerts,
		challengeMgr:  challengeMgr,
	}
}

func fixtureAccount(t *testing.T, password string) *models.Account {
	t.Helper()
	return &models.Account{
		ID:           "account-1",
		Email:        "user@example.com",
		PasswordHash: hashForTest(t, password),
	}
}

func TestAuthService_Login_SuccessWithout2FA(t *testing.T) {
	fx := newAuthFixture(t, newTestTOTPManager(t))
	account := fixtureAccount(t, "Sup3r-secret!")

	resetCalled := false
	fx.accountRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.Account, error) {
		return account, nil
	}
	fx.accountRepo.ResetFailedAttemptsFunc = func(ctx context.Context, accountID string) error {
		resetCalled = true
		return nil
	}

	result, err := fx.svc.Login(context.Background(), "user@example.com", "Sup3r-secret!", models.DeviceInfo{})
	require.NoError(t, err)

	assert.False(t, result.TwoFactorRequired)
	assert.Empty(t, result.ChallengeToken)
	require.NotNil(t, result.Credential)
	assert.NotEmpty(t, result.Credential.Secret)
	assert.True(t, resetCalled)

	// One successful login attempt plus the login_success event
	require.Len(t, fx.recorder.Logins, 1)
	assert.True(t, fx.recorder.Logins[0].Success)
}

func TestAuthService_Login_UnknownEmailIsInvalidCredential(t *testing.T) {
	fx := newAuthFixture(t, newTestTOTPManager(t))

	_, err := fx.svc.Login(context.Background(), "ghost@example.com", "whatever", models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestAuthService_Login_WrongPasswordBooksFailure(t *testing.T) {
	fx := newAuthFixture(t, newTestTOTPManager(t))
	account := fixtureAccount(t, "Sup3r-secret!")

	fx.accountRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.Account, error) {
		return account, nil
	}
	failureRecorded := false
	fx.accountRepo.RecordFailedAttemptFunc = func(ctx context.Context, accountID string, maxAttempts int, lockedUntil time.Time) (int, bool, error) {
		failureRecorded = true
		return 1, false, nil
	}

	_, err := fx.svc.Login(context.Background(), "user@example.com", "wrong", models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
	assert.True(t, failureRecorded)

	require.Len(t, fx.recorder.Logins, 1)
	assert.False(t, fx.recorder.Logins[0].Success)
	assert.Equal(t, "invalid_credential", fx.recorder.Logins[0].FailureReason)
	assert.Empty(t, fx.alerts.LockedEmails)
}

func TestAuthService_Login_LockoutFiresAlert(t *testing.T) {
	fx := newAuthFixture(t, newTestTOTPManager(t))
	account := fixtureAccount(t, "Sup3r-secret!")

	fx.accountRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.Account, error) {
		return account, nil
	}
	fx.accountRepo.RecordFailedAttemptFunc = func(ctx context.Context, accountID string, maxAttempts int, lockedUntil time.Time) (int, bool, error) {
		return 5, true, nil
	}

	_, err := fx.svc.Login(context.Background(), "user@example.com", "wrong", models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrInvalidCredential)

	assert.Equal(t, []string{"user@example.com"}, fx.alerts.LockedEmails)

	var types []models.EventType
	for _, e := range fx.recorder.Events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, models.EventLoginFailure)
	assert.Contains(t, types, models.EventAccountLocked)
}

func TestAuthService_Login_LockedIsDistinguished(t *testing.T) {
	fx := newAuthFixture(t, newTestTOTPManager(t))
	account := fixtureAccount(t, "Sup3r-secret!")
	lockedUntil := time.Now().Add(time.Hour)
	account.LockedUntil = &lockedUntil

	fx.accountRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.Account, error) {
		return account, nil
	}

	_, err := fx.svc.Login(context.Background(), "user@example.com", "Sup3r-secret!", models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	require.Len(t, fx.recorder.Logins, 1)
	assert.Equal(t, "account_locked", fx.recorder.Logins[0].FailureReason)
}

func TestAuthService_Login_With2FAReturnsChallenge(t *testing.T) {
	tm := newTestTOTPManager(t)
	fx := newAuthFixture(t, tm)
	account := fixtureAccount(t, "Sup3r-secret!")
	tf, _, _ := enrolledRecord(t, tm)

	fx.accountRepo.GetByEmailFunc = func(ctx context.Context, email string) (*models.Account, error) {
		return account, nil
	}
	fx.twoFactorRepo.GetByAccountIDFunc = func(ctx context.Context, accountID string) (*models.TwoFactor, error) {
		return tf, nil
	}
	resetCalled := false
	fx.accountRepo.ResetFailedAttemptsFunc = func(ctx context.Context, accountID string) error {
		resetCalled = true
		return nil
	}
	sessionCreated := false
	fx.sessionRepo.CreateFunc = func(ctx context.Context, session *models.Session) error {
		sessionCreated = true
		return nil
	}

	result, err := fx.svc.Login(context.Background(), "user@example.com", "Sup3r-secret!", models.DeviceInfo{})
	require.NoError(t, err)

	assert.True(t, result.TwoFactorRequired)
	assert.NotEmpty(t, result.ChallengeToken)
	assert.Nil(t, result.Credential)

	// Full auth has not happened yet: no session, counter untouched
	assert.False(t, sessionCreated)
	assert.False(t, resetCalled)

	claims, err := fx.challengeMgr.Validate(result.ChallengeToken)
	require.NoError(t, err)
	assert.Equal(t, "account-1", claims.AccountID)
}

func TestAuthService_CompleteTwoFactor_Success(t *testing.T) {
	tm := newTestTOTPManager(t)
	fx := newAuthFixture(t, tm)
	tf, secret, _ := enrolledRecord(t, tm)

	fx.twoFactorRepo.GetByAccountIDFunc = func(ctx context.Context, accountID string) (*models.TwoFactor, error) {
		return tf, nil
	}
	resetCalled := false
	fx.accountRepo.ResetFailedAttemptsFunc = func(ctx context.Context, accountID string) error {
		resetCalled = true
		return nil
	}

	token, err := fx.challengeMgr.Generate("account-1", "user@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	credential, err := fx.svc.CompleteTwoFactor(context.Background(), token, code, models.DeviceInfo{})
	require.NoError(t, err)
	assert.NotEmpty(t, credential.Secret)
	assert.True(t, resetCalled)

	require.Len(t, fx.recorder.Logins, 1)
	assert.True(t, fx.recorder.Logins[0].Success)
}

func TestAuthService_CompleteTwoFactor_BadToken(t *testing.T) {
	fx := newAuthFixture(t, newTestTOTPManager(t))

	_, err := fx.svc.CompleteTwoFactor(context.Background(), "not-a-token", "123456", models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_CompleteTwoFactor_WrongCodeCountsTowardLockout(t *testing.T) {
	tm := newTestTOTPManager(t)
	fx := newAuthFixture(t, tm)
	tf, _, _ := enrolledRecord(t, tm)

	fx.twoFactorRepo.GetByAccountIDFunc = func(ctx context.Context, accountID string) (*models.TwoFactor, error) {
		return tf, nil
	}
	failureRecorded := false
	fx.accountRepo.RecordFailedAttemptFunc = func(ctx context.Context, accountID string, maxAttempts int, lockedUntil time.Time) (int, bool, error) {
		failureRecorded = true
		return 3, false, nil
	}

	token, err := fx.challengeMgr.Generate("account-1", "user@example.com")
	require.NoError(t, err)

	_, err = fx.svc.CompleteTwoFactor(context.Background(), token, "000000", models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrInvalidCode)
	assert.True(t, failureRecorded)

	require.Len(t, fx.recorder.Logins, 1)
	assert.Equal(t, "invalid_code", fx.recorder.Logins[0].FailureReason)
}

func TestAuthService_CompleteTwoFactor_ReplayedBackupCodeIsSuspicious(t *testing.T) {
	tm := newTestTOTPManager(t)
	fx := newAuthFixture(t, tm)
	tf, _, backupCode := enrolledRecord(t, tm)
	used := time.Now().Add(-time.Hour)
	tf.BackupCodes[0].UsedAt = &used

	fx.twoFactorRepo.GetByAccountIDFunc = func(ctx context.Context, accountID string) (*models.TwoFactor, error) {
		return tf, nil
	}

	token, err := fx.challengeMgr.Generate("account-1", "user@example.com")
	require.NoError(t, err)

	_, err = fx.svc.CompleteTwoFactor(context.Background(), token, backupCode, models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrBackupCodeConsumed)

	assert.Equal(t, []string{"user@example.com"}, fx.alerts.SuspiciousEmails)

	var types []models.EventType
	for _, e := range fx.recorder.Events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, models.EventSuspiciousActivity)
}

func TestAuthService_CompleteTwoFactor_ExpiredChallenge(t *testing.T) {
	tm := newTestTOTPManager(t)
	fx := newAuthFixture(t, tm)

	expired := auth.NewChallengeManager("test-challenge-secret", -time.Minute)
	token, err := expired.Generate("account-1", "user@example.com")
	require.NoError(t, err)

	_, err = fx.svc.CompleteTwoFactor(context.Background(), token, "123456", models.DeviceInfo{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
