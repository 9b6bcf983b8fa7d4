package services

import (
	"context"
	"testing"
	"time"

	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventService(repo *MockEventRepository) *SecurityEventService {
	return NewSecurityEventService(repo, testLogger(), EventConfig{
		SecurityEventCap: 1000,
		LoginHistoryCap:  100,
	})
}

func TestSecurityEventService_RiskSnapshot_Levels(t *testing.T) {
	tests := []struct {
		name      string
		highRisk  int
		wantLevel models.RiskLevel
	}{
		{name: "no high risk events", highRisk: 0, wantLevel: models.RiskLow},
		{name: "two is still low", highRisk: 2, wantLevel: models.RiskLow},
		{name: "three is medium", highRisk: 3, wantLevel: models.RiskMedium},
		{name: "five is medium", highRisk: 5, wantLevel: models.RiskMedium},
		{name: "six is high", highRisk: 6, wantLevel: models.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockEventRepository{
				CountHighRiskSinceFunc: func(ctx context.Context, accountID string, riskThreshold int, since time.Time) (int, error) {
					return tt.highRisk, nil
				},
			}
			svc := newEventService(repo)

			snapshot, err := svc.RiskSnapshot(context.Background(), "account-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, snapshot.Level)
			assert.Equal(t, tt.highRisk, snapshot.HighRiskEvents24h)
		})
	}
}

func TestSecurityEventService_RiskSnapshot_Windows(t *testing.T) {
	var highRiskSince, failedSince time.Time
	var gotThreshold int
	repo := &MockEventRepository{
		CountHighRiskSinceFunc: func(ctx context.Context, accountID string, riskThreshold int, since time.Time) (int, error) {
			gotThreshold, highRiskSince = riskThreshold, since
			return 0, nil
		},
		CountFailedLoginsSinceFunc: func(ctx context.Context, accountID string, since time.Time) (int, error) {
			failedSince = since
			return 4, nil
		},
		HasSuspiciousSinceFunc: func(ctx context.Context, accountID string, since time.Time) (bool, error) {
			return true, nil
		},
	}
	svc := newEventService(repo)

	snapshot, err := svc.RiskSnapshot(context.Background(), "account-1")
	require.NoError(t, err)

	assert.Equal(t, 50, gotThreshold)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), highRiskSince, time.Minute)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), failedSince, time.Minute)
	assert.Equal(t, 4, snapshot.RecentFailedLogins)
	assert.True(t, snapshot.SuspiciousActivityDetected)
}

func TestSecurityEventService_ListEvents_ClampsLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "zero uses cap", limit: 0, wantLimit: 1000},
		{name: "negative uses cap", limit: -1, wantLimit: 1000},
		{name: "over cap is clamped", limit: 5000, wantLimit: 1000},
		{name: "in range passes through", limit: 25, wantLimit: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			repo := &MockEventRepository{
				ListRecentEventsFunc: func(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
					gotLimit = limit
					return nil, nil
				},
			}
			svc := newEventService(repo)

			_, err := svc.ListEvents(context.Background(), "account-1", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, gotLimit)
		})
	}
}

func TestSecurityEventService_ListLoginHistory_ClampsLimit(t *testing.T) {
	var gotLimit int
	repo := &MockEventRepository{
		ListLoginHistoryFunc: func(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	svc := newEventService(repo)

	_, err := svc.ListLoginHistory(context.Background(), "account-1", 500)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
}

func TestSecurityEventService_RecordEvent_PassesCap(t *testing.T) {
	var gotCap int
	var gotEvent *models.SecurityEvent
	repo := &MockEventRepository{
		AppendEventFunc: func(ctx context.Context, event *models.SecurityEvent, cap int) error {
			gotEvent, gotCap = event, cap
			return nil
		},
	}
	svc := newEventService(repo)

	svc.RecordEvent(context.Background(), "account-1", models.EventLoginFailure, 20, models.DeviceInfo{}, nil)

	assert.Equal(t, 1000, gotCap)
	require.NotNil(t, gotEvent)
	assert.Equal(t, models.EventLoginFailure, gotEvent.Type)
	assert.Equal(t, 20, gotEvent.RiskScore)
}

func TestSecurityEventService_RecordLoginAttempt_FailureReason(t *testing.T) {
	var gotEntry *models.LoginHistoryEntry
	repo := &MockEventRepository{
		AppendLoginEntryFunc: func(ctx context.Context, entry *models.LoginHistoryEntry, cap int) error {
			gotEntry = entry
			return nil
		},
	}
	svc := newEventService(repo)

	svc.RecordLoginAttempt(context.Background(), "account-1", false, "invalid_credential", models.DeviceInfo{})
	require.NotNil(t, gotEntry)
	require.NotNil(t, gotEntry.FailureReason)
	assert.Equal(t, "invalid_credential", *gotEntry.FailureReason)

	svc.RecordLoginAttempt(context.Background(), "account-1", true, "", models.DeviceInfo{})
	assert.Nil(t, gotEntry.FailureReason)
}
