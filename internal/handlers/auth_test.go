package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calebmoran/gatehouse/internal/handlers"
	"github.com/calebmoran/gatehouse/internal/models"
	"github.com/calebmoran/gatehouse/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error) {
			return &services.LoginResult{
				Credential: &models.SessionCredential{
					ID:        "sess-1",
					Secret:    "secret-123",
					ExpiresAt: time.Now().Add(24 * time.Hour),
				},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "sess-1.secret-123", resp.Token)
	assert.Equal(t, "sess-1", resp.SessionID)
}

func TestLogin_TwoFactorRequired(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error) {
			return &services.LoginResult{
				TwoFactorRequired: true,
				ChallengeToken:    "challenge-token-123",
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.ChallengeResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.TwoFactorRequired)
	assert.Equal(t, "challenge-token-123", resp.ChallengeToken)
}

func TestLogin_InvalidCredential(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCredential
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_AccountLockedIsDistinguished(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error) {
			return nil, models.ErrAccountLocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "account_locked")
}

func TestLogin_StorageFailureIs503(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, deviceInfo models.DeviceInfo) (*services.LoginResult, error) {
			return nil, context.DeadlineExceeded
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 503, "service_unavailable")
}

func TestLogin_InvalidBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email: "not-an-email",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestVerifyTwoFactor_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		CompleteTwoFactorFunc: func(ctx context.Context, challengeToken, code string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error) {
			return &models.SessionCredential{
				ID:        "sess-2",
				Secret:    "secret-456",
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/2fa/verify", handlers.VerifyTwoFactorRequest{
		ChallengeToken: "challenge-token-123",
		Code:           "123456",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	var resp handlers.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "sess-2.secret-456", resp.Token)
}

func TestVerifyTwoFactor_InvalidCode(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		CompleteTwoFactorFunc: func(ctx context.Context, challengeToken, code string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error) {
			return nil, models.ErrInvalidCode
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/2fa/verify", handlers.VerifyTwoFactorRequest{
		ChallengeToken: "challenge-token-123",
		Code:           "000000",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestVerifyTwoFactor_ConsumedBackupCode(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		CompleteTwoFactorFunc: func(ctx context.Context, challengeToken, code string, deviceInfo models.DeviceInfo) (*models.SessionCredential, error) {
			return nil, models.ErrBackupCodeConsumed
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/2fa/verify", handlers.VerifyTwoFactorRequest{
		ChallengeToken: "challenge-token-123",
		Code:           "ABCD2345",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	handlers.AssertErrorResponse(t, w, 400, "backup_code_used")
}

func TestVerifyTwoFactor_ExpiredChallenge(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/2fa/verify", handlers.VerifyTwoFactorRequest{
		ChallengeToken: "expired-token",
		Code:           "123456",
	})

	w := httptest.NewRecorder()
	handler.VerifyTwoFactor(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestChangePassword_Success(t *testing.T) {
	var gotAccountID string
	changer := &handlers.MockPasswordChanger{
		ChangePasswordFunc: func(ctx context.Context, accountID, currentPassword, newPassword string, deviceInfo models.DeviceInfo) error {
			gotAccountID = accountID
			return nil
		},
	}

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, changer, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password", handlers.ChangePasswordRequest{
		CurrentPassword: "Current-pass1!",
		NewPassword:     "New-passw0rd!",
	})
	req = handlers.WithSessionContext(req, "sess-1", "account-1")

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "account-1", gotAccountID)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	changer := &handlers.MockPasswordChanger{
		ChangePasswordFunc: func(ctx context.Context, accountID, currentPassword, newPassword string, deviceInfo models.DeviceInfo) error {
			return models.ErrInvalidCredential
		},
	}

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, changer, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password", handlers.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "New-passw0rd!",
	})
	req = handlers.WithSessionContext(req, "sess-1", "account-1")

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestChangePassword_NoSession(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockPasswordChanger{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password", handlers.ChangePasswordRequest{
		CurrentPassword: "Current-pass1!",
		NewPassword:     "New-passw0rd!",
	})

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
