package models

import "github.com/golang-jwt/jwt/v5"

// ChallengeClaims are the claims carried by the short-lived pre-2FA
// challenge token issued after a correct password when two-factor is
// enabled. It grants access to exactly one endpoint: code verification.
type ChallengeClaims struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}
