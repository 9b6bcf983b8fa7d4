package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	pkghttp "github.com/calebmoran/gatehouse/pkg/http"
)

// TwoFactorServiceInterface defines the interface for 2FA enrollment and
// teardown
type TwoFactorServiceInterface interface {
	BeginEnrollment(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error)
	ConfirmEnrollment(ctx context.Context, accountID, code string) error
	Disable(ctx context.Context, accountID, code string) error
}

// TwoFactorHandler handles 2FA management HTTP requests
type TwoFactorHandler struct {
	service TwoFactorServiceInterface
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(service TwoFactorServiceInterface) *TwoFactorHandler {
	return &TwoFactorHandler{service: service}
}

// ConfirmTwoFactorRequest represents the request body for enrollment confirmation
type ConfirmTwoFactorRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// DisableTwoFactorRequest represents the request body for disabling 2FA
type DisableTwoFactorRequest struct {
	Code string `json:"code" validate:"required,min=6,max=10"`
}

// Setup begins 2FA enrollment. The response carries the secret, provisioning
// URI, QR code, and backup codes; none of them can be retrieved again.
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	enrollment, err := h.service.BeginEnrollment(r.Context(), session.AccountID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTwoFactorAlreadyEnabled):
			pkghttp.WriteError(w, http.StatusBadRequest, "already_enabled", "Two-factor authentication is already enabled")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, enrollment)
}

// Confirm validates the first code against the pending secret and turns 2FA on
func (h *TwoFactorHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ConfirmTwoFactorRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ConfirmEnrollment(r.Context(), session.AccountID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrTwoFactorNotEnabled):
			pkghttp.WriteBadRequest(w, "No pending enrollment. Call setup first.")
		case errors.Is(err, models.ErrTwoFactorAlreadyEnabled):
			pkghttp.WriteError(w, http.StatusBadRequest, "already_enabled", "Two-factor authentication is already enabled")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Two-factor authentication enabled",
	})
}

// Disable turns 2FA off. A valid current TOTP or backup code is required.
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req DisableTwoFactorRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), session.AccountID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrBackupCodeConsumed):
			pkghttp.WriteError(w, http.StatusBadRequest, "backup_code_used", "This backup code has already been used")
		case errors.Is(err, models.ErrTwoFactorNotEnabled):
			pkghttp.WriteBadRequest(w, "Two-factor authentication is not enabled")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Two-factor authentication disabled",
	})
}
