package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/calebmoran/gatehouse/internal/models"
	pkglogger "github.com/calebmoran/gatehouse/pkg/logger"
)

// testLogger discards everything; failures under test assert on returned
// errors, not log output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc              func(ctx context.Context, account *models.Account) (*models.Account, error)
	RecordFailedAttemptFunc func(ctx context.Context, accountID string, maxAttempts int, lockedUntil time.Time) (int, bool, error)
	ResetFailedAttemptsFunc func(ctx context.Context, accountID string) error
	UpdatePasswordFunc      func(ctx context.Context, accountID, passwordHash string) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RecordFailedAttempt(ctx context.Context, accountID string, maxAttempts int, lockedUntil time.Time) (int, bool, error) {
	if m.RecordFailedAttemptFunc != nil {
		return m.RecordFailedAttemptFunc(ctx, accountID, maxAttempts, lockedUntil)
	}
	return 1, false, nil
}

func (m *MockAccountRepository) ResetFailedAttempts(ctx context.Context, accountID string) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, accountID)
	}
	return nil
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, accountID, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, accountID, passwordHash)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc                func(ctx context.Context, session *models.Session) error
	GetByIDFunc               func(ctx context.Context, id string) (*models.Session, error)
	EnforceCapFunc            func(ctx context.Context, accountID string, maxSessions int) (int64, error)
	DeleteExpiredFunc         func(ctx context.Context, accountID string) error
	TouchActivityFunc         func(ctx context.Context, id string) error
	RevokeFunc                func(ctx context.Context, accountID, sessionID string) error
	RevokeAllFunc             func(ctx context.Context, accountID string) (int64, error)
	ListActiveFunc            func(ctx context.Context, accountID string) ([]*models.Session, error)
	MarkExpiredFunc           func(ctx context.Context) (int64, error)
	DeleteInactiveExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) EnforceCap(ctx context.Context, accountID string, maxSessions int) (int64, error) {
	if m.EnforceCapFunc != nil {
		return m.EnforceCapFunc(ctx, accountID, maxSessions)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, accountID string) error {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, accountID)
	}
	return nil
}

func (m *MockSessionRepository) TouchActivity(ctx context.Context, id string) error {
	if m.TouchActivityFunc != nil {
		return m.TouchActivityFunc(ctx, id)
	}
	return nil
}

func (m *MockSessionRepository) Revoke(ctx context.Context, accountID, sessionID string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, accountID, sessionID)
	}
	return nil
}

func (m *MockSessionRepository) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, accountID)
	}
	return 0, nil
}

func (m *MockSessionRepository) ListActive(ctx context.Context, accountID string) ([]*models.Session, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, accountID)
	}
	return []*models.Session{}, nil
}

func (m *MockSessionRepository) MarkExpired(ctx context.Context) (int64, error) {
	if m.MarkExpiredFunc != nil {
		return m.MarkExpiredFunc(ctx)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteInactiveExpired(ctx context.Context) (int64, error) {
	if m.DeleteInactiveExpiredFunc != nil {
		return m.DeleteInactiveExpiredFunc(ctx)
	}
	return 0, nil
}

// MockTwoFactorRepository implements TwoFactorRepository for testing
type MockTwoFactorRepository struct {
	GetByAccountIDFunc    func(ctx context.Context, accountID string) (*models.TwoFactor, error)
	UpsertPendingFunc     func(ctx context.Context, tf *models.TwoFactor) error
	EnableFunc            func(ctx context.Context, accountID string, verifiedAt time.Time) error
	UpdateBackupCodesFunc func(ctx context.Context, accountID string, codes []models.BackupCodeEntry) error
	SetLastVerifiedFunc   func(ctx context.Context, accountID string, verifiedAt time.Time) error
	DeleteFunc            func(ctx context.Context, accountID string) error
}

func (m *MockTwoFactorRepository) GetByAccountID(ctx context.Context, accountID string) (*models.TwoFactor, error) {
	if m.GetByAccountIDFunc != nil {
		return m.GetByAccountIDFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTwoFactorRepository) UpsertPending(ctx context.Context, tf *models.TwoFactor) error {
	if m.UpsertPendingFunc != nil {
		return m.UpsertPendingFunc(ctx, tf)
	}
	return nil
}

func (m *MockTwoFactorRepository) Enable(ctx context.Context, accountID string, verifiedAt time.Time) error {
	if m.EnableFunc != nil {
		return m.EnableFunc(ctx, accountID, verifiedAt)
	}
	return nil
}

func (m *MockTwoFactorRepository) UpdateBackupCodes(ctx context.Context, accountID string, codes []models.BackupCodeEntry) error {
	if m.UpdateBackupCodesFunc != nil {
		return m.UpdateBackupCodesFunc(ctx, accountID, codes)
	}
	return nil
}

func (m *MockTwoFactorRepository) SetLastVerified(ctx context.Context, accountID string, verifiedAt time.Time) error {
	if m.SetLastVerifiedFunc != nil {
		return m.SetLastVerifiedFunc(ctx, accountID, verifiedAt)
	}
	return nil
}

func (m *MockTwoFactorRepository) Delete(ctx context.Context, accountID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, accountID)
	}
	return nil
}

// MockEventRepository implements EventRepository for testing
type MockEventRepository struct {
	AppendEventFunc            func(ctx context.Context, event *models.SecurityEvent, cap int) error
	AppendLoginEntryFunc       func(ctx context.Context, entry *models.LoginHistoryEntry, cap int) error
	ListRecentEventsFunc       func(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error)
	ListLoginHistoryFunc       func(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error)
	CountHighRiskSinceFunc     func(ctx context.Context, accountID string, riskThreshold int, since time.Time) (int, error)
	CountFailedLoginsSinceFunc func(ctx context.Context, accountID string, since time.Time) (int, error)
	HasSuspiciousSinceFunc     func(ctx context.Context, accountID string, since time.Time) (bool, error)
	PruneAllFunc               func(ctx context.Context, eventCap, historyCap int) (int64, error)
}

func (m *MockEventRepository) AppendEvent(ctx context.Context, event *models.SecurityEvent, cap int) error {
	if m.AppendEventFunc != nil {
		return m.AppendEventFunc(ctx, event, cap)
	}
	return nil
}

func (m *MockEventRepository) AppendLoginEntry(ctx context.Context, entry *models.LoginHistoryEntry, cap int) error {
	if m.AppendLoginEntryFunc != nil {
		return m.AppendLoginEntryFunc(ctx, entry, cap)
	}
	return nil
}

func (m *MockEventRepository) ListRecentEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	if m.ListRecentEventsFunc != nil {
		return m.ListRecentEventsFunc(ctx, accountID, limit)
	}
	return []*models.SecurityEvent{}, nil
}

func (m *MockEventRepository) ListLoginHistory(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error) {
	if m.ListLoginHistoryFunc != nil {
		return m.ListLoginHistoryFunc(ctx, accountID, limit)
	}
	return []*models.LoginHistoryEntry{}, nil
}

func (m *MockEventRepository) CountHighRiskSince(ctx context.Context, accountID string, riskThreshold int, since time.Time) (int, error) {
	if m.CountHighRiskSinceFunc != nil {
		return m.CountHighRiskSinceFunc(ctx, accountID, riskThreshold, since)
	}
	return 0, nil
}

func (m *MockEventRepository) CountFailedLoginsSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	if m.CountFailedLoginsSinceFunc != nil {
		return m.CountFailedLoginsSinceFunc(ctx, accountID, since)
	}
	return 0, nil
}

func (m *MockEventRepository) HasSuspiciousSince(ctx context.Context, accountID string, since time.Time) (bool, error) {
	if m.HasSuspiciousSinceFunc != nil {
		return m.HasSuspiciousSinceFunc(ctx, accountID, since)
	}
	return false, nil
}

func (m *MockEventRepository) PruneAll(ctx context.Context, eventCap, historyCap int) (int64, error) {
	if m.PruneAllFunc != nil {
		return m.PruneAllFunc(ctx, eventCap, historyCap)
	}
	return 0, nil
}

// recordedEvent captures one RecordEvent call on the mock recorder
type recordedEvent struct {
	AccountID string
	Type      models.EventType
	RiskScore int
}

// recordedLogin captures one RecordLoginAttempt call on the mock recorder
type recordedLogin struct {
	AccountID     string
	Success       bool
	FailureReason string
}

// MockEventRecorder implements EventRecorder for testing, capturing calls
type MockEventRecorder struct {
	Events []recordedEvent
	Logins []recordedLogin
}

func (m *MockEventRecorder) RecordEvent(ctx context.Context, accountID string, eventType models.EventType, riskScore int, deviceInfo models.DeviceInfo, details models.EventDetails) {
	m.Events = append(m.Events, recordedEvent{AccountID: accountID, Type: eventType, RiskScore: riskScore})
}

func (m *MockEventRecorder) RecordLoginAttempt(ctx context.Context, accountID string, success bool, failureReason string, deviceInfo models.DeviceInfo) {
	m.Logins = append(m.Logins, recordedLogin{AccountID: accountID, Success: success, FailureReason: failureReason})
}

// MockAlertService implements AlertService for testing, capturing calls
type MockAlertService struct {
	LockedEmails     []string
	SuspiciousEmails []string
}

func (m *MockAlertService) SendAccountLocked(ctx context.Context, email string, lockedUntil time.Time) {
	m.LockedEmails = append(m.LockedEmails, email)
}

func (m *MockAlertService) SendSuspiciousActivity(ctx context.Context, email, summary string) {
	m.SuspiciousEmails = append(m.SuspiciousEmails, email)
}

// MockSessionRevoker implements SessionRevoker for testing
type MockSessionRevoker struct {
	RevokeAllFunc func(ctx context.Context, accountID string) (int64, error)
}

func (m *MockSessionRevoker) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, accountID)
	}
	return 0, nil
}
