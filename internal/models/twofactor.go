package models

import "time"

// TwoFactor is the per-account TOTP record. A freshly generated secret sits
// in pending state (Enabled=false) until the first code is confirmed.
// Invariant: Enabled implies a non-empty SecretEncrypted.
type TwoFactor struct {
	AccountID       string
	Enabled         bool
	SecretEncrypted []byte // AES-256-GCM encrypted TOTP secret
	SecretNonce     []byte // GCM nonce (12 bytes)
	BackupCodes     []BackupCodeEntry
	LastVerifiedAt  *time.Time
	CreatedAt       time.Time
}

// BackupCodeEntry is a single-use fallback credential.
type BackupCodeEntry struct {
	CodeHash  string     `json:"code_hash"` // bcrypt hash of the backup code
	UsedAt    *time.Time `json:"used_at"`   // nil = unused
	CreatedAt time.Time  `json:"created_at"`
}

// TwoFactorEnrollment is returned from BeginEnrollment. Secret and codes
// are shown to the user exactly once.
type TwoFactorEnrollment struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCode          string   `json:"qr_code"` // data URL, PNG
	BackupCodes     []string `json:"backup_codes"`
}
