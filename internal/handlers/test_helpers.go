package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/calebmoran/gatehouse/internal/services"
	pkghttp "github.com/calebmoran/gatehouse/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext injects a validated session into request context for
// testing authenticated endpoints
func WithSessionContext(req *http.Request, sessionID, accountID string) *http.Request {
	session := &models.Session{
		ID:             sessionID,
		AccountID:      accountID,
		IssuedAt:       time.Now().Add(-time.Hour),
		LastActivityAt: time.Now(),
		ExpiresAt:      time.Now().Add(23 * time.Hour),
		IsActive:       true,
	}
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, session)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc             func(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error)
	CompleteTwoFactorFunc func(ctx context.Context, challengeToken, code string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredential
	}
	return m.LoginFunc(ctx, email, password, deviceInfo)
}

func (m *MockAuthService) CompleteTwoFactor(ctx context.Context, challengeToken, code string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error) {
	if m.CompleteTwoFactorFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.CompleteTwoFactorFunc(ctx, challengeToken, code, deviceInfo)
}

// MockPasswordChanger implements PasswordChanger for testing
type MockPasswordChanger struct {
	ChangePasswordFunc func(ctx context.Context, accountID, currentPassword, newPassword string, deviceInfo models.DeviceInfo) error
}

func (m *MockPasswordChanger) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, deviceInfo models.DeviceInfo) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, accountID, currentPassword, newPassword, deviceInfo)
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	ListActiveFunc func(ctx context.Context, accountID string) ([]*models.Session, error)
	RevokeFunc     func(ctx context.Context, accountID, sessionID string, deviceInfo models.DeviceInfo) error
	RevokeAllFunc  func(ctx context.Context, accountID string) (int64, error)
}

func (m *MockSessionService) ListActive(ctx context.Context, accountID string) ([]*models.Session, error) {
	if m.ListActiveFunc == nil {
		return []*models.Session{}, nil
	}
	return m.ListActiveFunc(ctx, accountID)
}

func (m *MockSessionService) Revoke(ctx context.Context, accountID, sessionID string, deviceInfo models.DeviceInfo) error {
	if m.RevokeFunc == nil {
		return nil
	}
	return m.RevokeFunc(ctx, accountID, sessionID, deviceInfo)
}

func (m *MockSessionService) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	if m.RevokeAllFunc == nil {
		return 0, nil
	}
	return m.RevokeAllFunc(ctx, accountID)
}

// MockTwoFactorService implements TwoFactorServiceInterface for testing
type MockTwoFactorService struct {
	BeginEnrollmentFunc   func(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error)
	ConfirmEnrollmentFunc func(ctx context.Context, accountID, code string) error
	DisableFunc           func(ctx context.Context, accountID, code string) error
}

func (m *MockTwoFactorService) BeginEnrollment(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error) {
	if m.BeginEnrollmentFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.BeginEnrollmentFunc(ctx, accountID)
}

func (m *MockTwoFactorService) ConfirmEnrollment(ctx context.Context, accountID, code string) error {
	if m.ConfirmEnrollmentFunc == nil {
		return models.ErrInvalidCode
	}
	return m.ConfirmEnrollmentFunc(ctx, accountID, code)
}

func (m *MockTwoFactorService) Disable(ctx context.Context, accountID, code string) error {
	if m.DisableFunc == nil {
		return models.ErrInvalidCode
	}
	return m.DisableFunc(ctx, accountID, code)
}

// MockSecurityService implements SecurityServiceInterface for testing
type MockSecurityService struct {
	ListEventsFunc       func(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error)
	ListLoginHistoryFunc func(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error)
	RiskSnapshotFunc     func(ctx context.Context, accountID string) (*models.RiskSnapshot, error)
}

func (m *MockSecurityService) ListEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	if m.ListEventsFunc == nil {
		return []*models.SecurityEvent{}, nil
	}
	return m.ListEventsFunc(ctx, accountID, limit)
}

func (m *MockSecurityService) ListLoginHistory(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error) {
	if m.ListLoginHistoryFunc == nil {
		return []*models.LoginHistoryEntry{}, nil
	}
	return m.ListLoginHistoryFunc(ctx, accountID, limit)
}

func (m *MockSecurityService) RiskSnapshot(ctx context.Context, accountID string) (*models.RiskSnapshot, error) {
	if m.RiskSnapshotFunc == nil {
		return &models.RiskSnapshot{Level: models.RiskLow}, nil
	}
	return m.RiskSnapshotFunc(ctx, accountID)
}
