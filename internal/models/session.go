package models

import "time"

// Session is a server-side bearer session. The client holds the plaintext
// secret; only its SHA-256 hash is stored. ExpiresAt is fixed at issuance
// and is not extended by activity.
type Session struct {
	ID             string
	AccountID      string
	TokenHash      string // SHA-256 hex of the bearer secret
	DeviceInfo     DeviceInfo
	IssuedAt       time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	IsActive       bool
}

// DeviceInfo is informational metadata attached to sessions and security
// events. None of it participates in any invariant.
type DeviceInfo struct {
	DeviceName string `json:"device_name,omitempty"`
	Browser    string `json:"browser,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	Location   string `json:"location,omitempty"`
}

// SessionCredential is returned exactly once at session creation. The
// client presents "<ID>.<Secret>" as its bearer token.
type SessionCredential struct {
	ID        string
	Secret    string
	ExpiresAt time.Time
}

// Token renders the wire form of the credential.
func (c SessionCredential) Token() string {
	return c.ID + "." + c.Secret
}
