package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/calebmoran/gatehouse/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing the validated session in context
	SessionContextKey contextKey = "session"
)

// SessionValidator defines the interface for resolving a presented bearer
// credential into a live session
type SessionValidator interface {
	Validate(ctx context.Context, sessionID, secret string) (*models.Session, error)
}

// SessionMiddleware validates bearer session tokens and injects the session
// into the request context. A revoked or expired session fails here; there
// is no grace period after revocation.
func SessionMiddleware(validator SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			sessionID, secret, err := ParseSessionToken(parts[1])
			if err != nil {
				http.Error(w, "invalid session token", http.StatusUnauthorized)
				return
			}

			session, err := validator.Validate(r.Context(), sessionID, secret)
			if err != nil {
				// Storage failures must not masquerade as bad credentials
				if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrNotFound) {
					http.Error(w, "invalid or expired session", http.StatusUnauthorized)
					return
				}
				http.Error(w, "unable to verify session", http.StatusServiceUnavailable)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext extracts the validated session from request context
func GetSessionFromContext(r *http.Request) *models.Session {
	session, ok := r.Context().Value(SessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
