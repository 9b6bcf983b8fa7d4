package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/calebmoran/gatehouse/internal/auth"
	"github.com/calebmoran/gatehouse/internal/background"
	"github.com/calebmoran/gatehouse/internal/config"
	"github.com/calebmoran/gatehouse/internal/database"
	"github.com/calebmoran/gatehouse/internal/handlers"
	middlewareCustom "github.com/calebmoran/gatehouse/internal/middleware"
	"github.com/calebmoran/gatehouse/internal/repositories"
	"github.com/calebmoran/gatehouse/internal/routes"
	"github.com/calebmoran/gatehouse/internal/services"
	"github.com/calebmoran/gatehouse/migrations"
	pkglogger "github.com/calebmoran/gatehouse/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Run embedded migrations
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := migrations.Up(migrateCtx, db.Pool); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	twoFactorRepo := repositories.NewTwoFactorRepository(db)
	eventRepo := repositories.NewEventRepository(db)

	// Token managers
	totpManager, err := auth.NewTOTPManager(cfg.Auth.TOTPEncryptionKey, cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}
	challengeManager := auth.NewChallengeManager(cfg.Auth.ChallengeSecret, cfg.Auth.ChallengeTokenExpiry)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Security alert emails
	var alertService services.AlertService = services.NoopAlertService{}
	if cfg.Email.Enabled {
		sesAlerts, err := services.NewSESAlertService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize alert service", slog.Any("error", err))
			os.Exit(1)
		}
		alertService = sesAlerts
	}

	// Initialize services
	eventService := services.NewSecurityEventService(eventRepo, logger, services.EventConfig{
		SecurityEventCap: cfg.Auth.SecurityEventCap,
		LoginHistoryCap:  cfg.Auth.LoginHistoryCap,
	})
	sessionService := services.NewSessionService(sessionRepo, eventService, logger, services.SessionConfig{
		Timeout:     cfg.Auth.SessionTimeout,
		MaxSessions: cfg.Auth.MaxSessions,
	})
	credentialService := services.NewCredentialService(accountRepo, sessionService, eventService, logger, services.CredentialConfig{
		MaxLoginAttempts:       cfg.Auth.MaxLoginAttempts,
		LockoutDuration:        cfg.Auth.LockoutDuration,
		RevokeOnPasswordChange: cfg.Auth.RevokeOnPasswordChange,
	})
	twoFactorService := services.NewTwoFactorService(twoFactorRepo, accountRepo, totpManager, eventService, logger, services.TwoFactorConfig{
		BackupCodeCount: cfg.Auth.BackupCodeCount,
	})
	authService := services.NewAuthService(credentialService, sessionService, twoFactorService, eventService, alertService, challengeManager, auditLogger, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, credentialService, nil)
	sessionHandler := handlers.NewSessionHandler(sessionService, nil)
	twoFactorHandler := handlers.NewTwoFactorHandler(twoFactorService)
	securityHandler := handlers.NewSecurityHandler(eventService)

	// Background cleanup sweep
	cleanupManager := background.NewCleanupManager(sessionService, eventService, logger, cfg.Auth.CleanupInterval)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, sessionHandler, twoFactorHandler, securityHandler, sessionService)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
