package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/calebmoran/gatehouse/internal/services"
	pkghttp "github.com/calebmoran/gatehouse/pkg/http"
)

// AuthServiceInterface defines the interface for login flow business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error)
	CompleteTwoFactor(ctx context.Context, challengeToken, code string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error)
}

// PasswordChanger is the slice of the credential service the handler needs
type PasswordChanger interface {
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, deviceInfo models.DeviceInfo) error
}

// AuthHandler handles login, the 2FA step, and password changes
type AuthHandler struct {
	service     AuthServiceInterface
	credentials PasswordChanger
	ipConfig    *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, credentials PasswordChanger, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:     service,
		credentials: credentials,
		ipConfig:    ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceName string `json:"device_name" validate:"omitempty,max=100"`
}

// VerifyTwoFactorRequest represents the request body for the 2FA login step
type VerifyTwoFactorRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required,min=6,max=10"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Response DTOs

// SessionResponse carries a freshly minted session credential. The token is
// shown to the client exactly once.
type SessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeResponse is returned when the password checked out but 2FA still
// stands between the client and a session
type ChallengeResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeToken    string `json:"challenge_token"`
}

// Login handles the password step of authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	deviceInfo := h.deviceInfo(r, req.DeviceName)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, deviceInfo)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredential):
			// Unknown account and wrong password read identically
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteAccountLocked(w, "Account temporarily locked. Try again later.")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		}
		return
	}

	if result.TwoFactorRequired {
		writeJSON(w, http.StatusOK, ChallengeResponse{
			TwoFactorRequired: true,
			ChallengeToken:    result.ChallengeToken,
		})
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     result.Credential.Token(),
		SessionID: result.Credential.ID,
		ExpiresAt: result.Credential.ExpiresAt,
	})
}

// VerifyTwoFactor exchanges a challenge token plus a TOTP or backup code for
// the real session
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	deviceInfo := h.deviceInfo(r, "")

	credential, err := h.service.CompleteTwoFactor(r.Context(), req.ChallengeToken, req.Code, deviceInfo)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid or expired challenge token")
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrBackupCodeConsumed):
			pkghttp.WriteError(w, http.StatusBadRequest, "backup_code_used", "This backup code has already been used")
		case errors.Is(err, models.ErrTwoFactorNotEnabled):
			pkghttp.WriteBadRequest(w, "Two-factor authentication is not enabled")
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteAccountLocked(w, "Account temporarily locked. Try again later.")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     credential.Token(),
		SessionID: credential.ID,
		ExpiresAt: credential.ExpiresAt,
	})
}

// ChangePassword handles an authenticated password change
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	deviceInfo := h.deviceInfo(r, "")

	err := h.credentials.ChangePassword(r.Context(), session.AccountID, req.CurrentPassword, req.NewPassword, deviceInfo)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredential):
			pkghttp.WriteBadRequest(w, "Current password is incorrect")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "New password does not meet requirements")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "Internal server error")
		default:
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// deviceInfo assembles the informational request metadata attached to
// sessions and events
func (h *AuthHandler) deviceInfo(r *http.Request, deviceName string) models.DeviceInfo {
	return models.DeviceInfo{
		DeviceName: deviceName,
		Browser:    r.Header.Get("User-Agent"),
		IPAddress:  pkghttp.ExtractClientIP(r, h.ipConfig),
	}
}

// writeJSON writes a JSON response body with the given status
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
