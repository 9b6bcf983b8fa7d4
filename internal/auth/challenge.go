package auth

import (
	"fmt"
	"time"

	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const challengeTokenType = "2fa_challenge"

// ChallengeManager issues and validates the short-lived token handed to a
// client that passed the password check but still owes a two-factor code.
// The token is not a session: it cannot be used against any authenticated
// endpoint.
type ChallengeManager struct {
	secret []byte
	expiry time.Duration
}

// NewChallengeManager creates a new ChallengeManager
func NewChallengeManager(secret string, expiry time.Duration) *ChallengeManager {
	return &ChallengeManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Generate creates a challenge token for the given account
func (cm *ChallengeManager) Generate(accountID, email string) (string, error) {
	now := time.Now()
	claims := &models.ChallengeClaims{
		Type:      challengeTokenType,
		AccountID: accountID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(cm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(cm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies a challenge token and returns its claims
func (cm *ChallengeManager) Validate(tokenString string) (*models.ChallengeClaims, error) {
	claims := &models.ChallengeClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse challenge token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != challengeTokenType {
		return nil, fmt.Errorf("invalid token: wrong type %q", claims.Type)
	}

	return claims, nil
}
