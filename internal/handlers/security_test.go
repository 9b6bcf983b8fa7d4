package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calebmoran/gatehouse/internal/handlers"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityEvents_List(t *testing.T) {
	mockSvc := &handlers.MockSecurityService{
		ListEventsFunc: func(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
			return []*models.SecurityEvent{
				{ID: "ev-1", AccountID: accountID, Type: models.EventLoginSuccess, CreatedAt: time.Now()},
				{ID: "ev-2", AccountID: accountID, Type: models.EventLoginFailure, RiskScore: 20, CreatedAt: time.Now().Add(-time.Minute)},
			}, nil
		},
	}

	handler := handlers.NewSecurityHandler(mockSvc)
	req := handlers.NewTestRequest(t, "GET", "/security/events", nil)
	req = handlers.WithSessionContext(req, "sess-1", "account-1")

	w := httptest.NewRecorder()
	handler.Events(w, req)

	var resp map[string][]handlers.EventResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.Len(t, resp["events"], 2)
	assert.Equal(t, models.EventLoginSuccess, resp["events"][0].Type)
}

func TestSecurityEvents_LimitQueryParam(t *testing.T) {
	var gotLimit int
	mockSvc := &handlers.MockSecurityService{
		ListEventsFunc: func(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	handler := handlers.NewSecurityHandler(mockSvc)
	req := handlers.NewTestRequest(t, "GET", "/security/events?limit=25", nil)
	req = handlers.WithSessionContext(req, "sess-1", "account-1")

	w := httptest.NewRecorder()
	handler.Events(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 25, gotLimit)
}

func TestSecurityRisk_Snapshot(t *testing.T) {
	mockSvc := &handlers.MockSecurityService{
		RiskSnapshotFunc: func(ctx context.Context, accountID string) (*models.RiskSnapshot, error) {
			return &models.RiskSnapshot{
				Level:              models.RiskMedium,
				RecentFailedLogins: 3,
				HighRiskEvents24h:  4,
			}, nil
		},
	}

	handler := handlers.NewSecurityHandler(mockSvc)
	req := handlers.NewTestRequest(t, "GET", "/security/risk", nil)
	req = handlers.WithSessionContext(req, "sess-1", "account-1")

	w := httptest.NewRecorder()
	handler.Risk(w, req)

	var resp models.RiskSnapshot
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, models.RiskMedium, resp.Level)
	assert.Equal(t, 3, resp.RecentFailedLogins)
}

func TestSecurityLoginHistory(t *testing.T) {
	reason := "invalid_credential"
	mockSvc := &handlers.MockSecurityService{
		ListLoginHistoryFunc: func(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error) {
			return []*models.LoginHistoryEntry{
				{ID: "lh-1", AccountID: accountID, Success: true, CreatedAt: time.Now()},
				{ID: "lh-2", AccountID: accountID, Success: false, FailureReason: &reason, CreatedAt: time.Now().Add(-time.Minute)},
			}, nil
		},
	}

	handler := handlers.NewSecurityHandler(mockSvc)
	req := handlers.NewTestRequest(t, "GET", "/security/login-history", nil)
	req = handlers.WithSessionContext(req, "sess-1", "account-1")

	w := httptest.NewRecorder()
	handler.LoginHistory(w, req)

	var resp map[string][]handlers.LoginHistoryResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.Len(t, resp["login_history"], 2)
	require.NotNil(t, resp["login_history"][1].FailureReason)
	assert.Equal(t, "invalid_credential", *resp["login_history"][1].FailureReason)
}

func TestSecurityRisk_StorageFailureIs503(t *testing.T) {
	mockSvc := &handlers.MockSecurityService{
		RiskSnapshotFunc: func(ctx context.Context, accountID string) (*models.RiskSnapshot, error) {
			return nil, context.DeadlineExceeded
		},
	}

	handler := handlers.NewSecurityHandler(mockSvc)
	req := handlers.NewTestRequest(t, "GET", "/security/risk", nil)
	req = handlers.WithSessionContext(req, "sess-1", "account-1")

	w := httptest.NewRecorder()
	handler.Risk(w, req)

	handlers.AssertErrorResponse(t, w, 503, "service_unavailable")
}
