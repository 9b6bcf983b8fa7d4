package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// EventType is the closed enumeration of security event kinds. Unknown
// values are rejected at the boundary rather than passed through.
type EventType string

const (
	EventLoginSuccess       EventType = "login_success"
	EventLoginFailure       EventType = "login_failure"
	EventPasswordChange     EventType = "password_change"
	EventTwoFactorEnabled   EventType = "two_factor_enabled"
	EventTwoFactorDisabled  EventType = "two_factor_disabled"
	EventSessionCreated     EventType = "session_created"
	EventSessionRevoked     EventType = "session_revoked"
	EventSessionExpired     EventType = "session_expired"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventAccountLocked      EventType = "account_locked"
	EventAccountUnlocked    EventType = "account_unlocked"
	EventDeviceAdded        EventType = "device_added"
	EventDeviceRemoved      EventType = "device_removed"
)

// Valid reports whether t is a member of the closed enumeration.
func (t EventType) Valid() bool {
	switch t {
	case EventLoginSuccess, EventLoginFailure, EventPasswordChange,
		EventTwoFactorEnabled, EventTwoFactorDisabled,
		EventSessionCreated, EventSessionRevoked, EventSessionExpired,
		EventSuspiciousActivity, EventAccountLocked, EventAccountUnlocked,
		EventDeviceAdded, EventDeviceRemoved:
		return true
	}
	return false
}

// SecurityEvent is one append-only entry in an account's security log.
// The per-account log is capped; appends beyond the cap drop the oldest
// entries.
type SecurityEvent struct {
	ID         string
	AccountID  string
	Type       EventType
	RiskScore  int // 0-100, default 0
	DeviceInfo DeviceInfo
	Details    EventDetails
	CreatedAt  time.Time
}

// LoginHistoryEntry is an append-only record of a login attempt, kept
// separately from SecurityEvent with its own smaller cap.
type LoginHistoryEntry struct {
	ID            string
	AccountID     string
	Success       bool
	FailureReason *string
	DeviceInfo    DeviceInfo
	CreatedAt     time.Time
}

// RiskLevel classifies recent account activity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskSnapshot is derived on read, never stored.
type RiskSnapshot struct {
	Level                      RiskLevel `json:"level"`
	SuspiciousActivityDetected bool      `json:"suspicious_activity_detected"`
	RecentFailedLogins         int       `json:"recent_failed_logins"`
	HighRiskEvents24h          int       `json:"high_risk_events_24h"`
}

// EventDetails holds free-form context for an event, stored as JSONB.
type EventDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(EventDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = EventDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d EventDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
