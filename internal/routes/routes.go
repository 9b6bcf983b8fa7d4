package routes

import (
	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/handlers"
	"github.com/calebmoran/gatehouse/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
	securityHandler *handlers.SecurityHandler,
	sessionValidator auth.SessionValidator,
) {
	// Public routes - rate limited by IP, no session required
	router.With(middleware.RateLimitByIP(middleware.DefaultLoginRateLimit())).
		Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(middleware.DefaultVerifyRateLimit())).
		Post("/auth/2fa/verify", authHandler.VerifyTwoFactor)

	// Protected routes - a live session is required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessionValidator))

		r.Post("/auth/password", authHandler.ChangePassword)

		r.Post("/auth/2fa/setup", twoFactorHandler.Setup)
		r.Post("/auth/2fa/confirm", twoFactorHandler.Confirm)
		r.Delete("/auth/2fa", twoFactorHandler.Disable)

		r.Get("/sessions", sessionHandler.List)
		r.Delete("/sessions/{id}", sessionHandler.Revoke)
		r.Delete("/sessions", sessionHandler.RevokeAll)

		r.Get("/security/events", securityHandler.Events)
		r.Get("/security/login-history", securityHandler.LoginHistory)
		r.Get("/security/risk", securityHandler.Risk)
	})
}
