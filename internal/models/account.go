package models

import (
	"time"
)

// Account holds the security record for a single marketplace account.
// Profile data (name, worker listings, wallet) lives in other services;
// this record carries only what authentication needs.
type Account struct {
	ID               string
	Email            string
	PasswordHash     string
	FailedLoginCount int
	LockedUntil      *time.Time // Temporary lockout expiration, nil when not locked
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsLocked reports whether the account is under an active lockout.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
