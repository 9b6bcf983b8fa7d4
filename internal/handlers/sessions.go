package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	pkghttp "github.com/calebmoran/gatehouse/pkg/http"
	"github.com/go-chi/chi/v5"
)

// SessionServiceInterface defines the interface for session management
type SessionServiceInterface interface {
	ListActive(ctx context.Context, accountID string) ([]*models.Session, error)
	Revoke(ctx context.Context, accountID, sessionID string, deviceInfo models.DeviceInfo) error
	RevokeAll(ctx context.Context, accountID string) (int64, error)
}

// SessionHandler handles session management HTTP requests
type SessionHandler struct {
	service  SessionServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service SessionServiceInterface, ipConfig *pkghttp.IPConfig) *SessionHandler {
	return &SessionHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// SessionSummary is the client view of one active session. The token hash
// never leaves the server.
type SessionSummary struct {
	ID             string            `json:"id"`
	Current        bool              `json:"current"`
	DeviceInfo     models.DeviceInfo `json:"device_info"`
	IssuedAt       time.Time         `json:"issued_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

// ListSessionsResponse wraps the active session list
type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// List returns the caller's active sessions, most recently active first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	sessions, err := h.service.ListActive(r.Context(), session.AccountID)
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:             s.ID,
			Current:        s.ID == session.ID,
			DeviceInfo:     s.DeviceInfo,
			IssuedAt:       s.IssuedAt,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
		})
	}

	writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: summaries})
}

// Revoke deactivates one of the caller's sessions. Revoking a session the
// caller does not own reads as 404.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		pkghttp.WriteBadRequest(w, "Session ID is required")
		return
	}

	deviceInfo := models.DeviceInfo{
		Browser:   r.Header.Get("User-Agent"),
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
	}

	err := h.service.Revoke(r.Context(), session.AccountID, sessionID, deviceInfo)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Session not found")
			return
		}
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevokeAll deactivates every session of the caller's account, including the
// one making this request
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	revoked, err := h.service.RevokeAll(r.Context(), session.AccountID)
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"revoked_count": revoked,
	})
}
