package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	pkghttp "github.com/calebmoran/gatehouse/pkg/http"
)

// SecurityServiceInterface defines the read side of the security log
type SecurityServiceInterface interface {
	ListEvents(ctx context.Context, accountID string, limit int) ([]*models.SecurityEvent, error)
	ListLoginHistory(ctx context.Context, accountID string, limit int) ([]*models.LoginHistoryEntry, error)
	RiskSnapshot(ctx context.Context, accountID string) (*models.RiskSnapshot, error)
}

// SecurityHandler serves the account security page read models
type SecurityHandler struct {
	service SecurityServiceInterface
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(service SecurityServiceInterface) *SecurityHandler {
	return &SecurityHandler{service: service}
}

// EventResponse is the client view of one security event
type EventResponse struct {
	ID         string              `json:"id"`
	Type       models.EventType    `json:"type"`
	RiskScore  int                 `json:"risk_score"`
	DeviceInfo models.DeviceInfo   `json:"device_info"`
	Details    models.EventDetails `json:"details,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// LoginHistoryResponse is the client view of one login attempt
type LoginHistoryResponse struct {
	ID            string            `json:"id"`
	Success       bool              `json:"success"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	DeviceInfo    models.DeviceInfo `json:"device_info"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Events returns the caller's recent security events, newest first
func (h *SecurityHandler) Events(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	events, err := h.service.ListEvents(r.Context(), session.AccountID, parseLimit(r))
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:         e.ID,
			Type:       e.Type,
			RiskScore:  e.RiskScore,
			DeviceInfo: e.DeviceInfo,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string][]EventResponse{"events": out})
}

// LoginHistory returns the caller's recent login attempts, newest first
func (h *SecurityHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	entries, err := h.service.ListLoginHistory(r.Context(), session.AccountID, parseLimit(r))
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		return
	}

	out := make([]LoginHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LoginHistoryResponse{
			ID:            e.ID,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			DeviceInfo:    e.DeviceInfo,
			CreatedAt:     e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string][]LoginHistoryResponse{"login_history": out})
}

// Risk returns the derived risk snapshot for the caller's account
func (h *SecurityHandler) Risk(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	snapshot, err := h.service.RiskSnapshot(r.Context(), session.AccountID)
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// parseLimit reads the optional ?limit= query parameter. The service clamps
// it to the configured cap; zero means "use the cap".
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
