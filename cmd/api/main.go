package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/background"
	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/counterstore"
	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/handlers"
	middlewareCustom "github.com/BradenHooton/bastion/internal/middleware"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/repositories"
	"github.com/BradenHooton/bastion/internal/routes"
	"github.com/BradenHooton/bastion/internal/services"
	pkgauth "github.com/BradenHooton/bastion/pkg/auth"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Durable storage: principals and sessions. Source of truth for lockout
	// and session state.
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Shared, ephemeral counter store for rate-limit windows.
	counters := counterstore.NewRedisStore(&cfg.Redis)
	defer counters.Close()

	// Repositories
	principalRepo := repositories.NewPrincipalRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Services
	auditLogger := pkglogger.NewAuditLogger(logger)
	lockoutService := services.NewLockoutService(principalRepo, cfg.Lockout, logger, auditLogger)
	sessionService := services.NewSessionService(sessionRepo, cfg.Session, logger, auditLogger)
	rateLimitService := services.NewRateLimitService(counters, cfg.RateLimit, logger)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	authService := services.NewAuthService(
		principalRepo,
		lockoutService,
		sessionService,
		pkgauth.BcryptVerifier{},
		tokenManager,
		logger,
		auditLogger,
	)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	adminHandler := handlers.NewAdminHandler(lockoutService, sessionService)

	// Background cleanup of expired sessions
	cleanupManager := background.NewCleanupManager(sessionRepo, logger, cfg.Auth.CleanupInterval)

	// Bootstrap first admin principal if configured
	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminPrincipal(bootstrapCtx, principalRepo, logger, cfg.Server.Env); err != nil {
		logger.Error("failed to ensure admin principal", slog.Any("error", err))
	}
	cancel()

	// Router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(
		router,
		authHandler,
		sessionHandler,
		adminHandler,
		tokenManager,
		sessionService,
		rateLimitService,
		ipConfig,
		middlewareCustom.AuthRateLimitConfig{RequestsPerMinute: cfg.RateLimit.AuthPerMinuteIP},
	)

	// Health check is never rate limited
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		// The counter store is not load-bearing for health: rate limiting
		// fails open without it.
		counterStatus := "up"
		if err := counters.HealthCheck(ctx); err != nil {
			counterStatus = "down"
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up","counter_store":"` + counterStatus + `"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

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

// ensureAdminPrincipal creates the first admin if ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no such principal exists yet.
func ensureAdminPrincipal(ctx context.Context, repo *repositories.PrincipalRepository, logger *slog.Logger, env string) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	if _, err := repo.GetByEmail(ctx, adminEmail); err == nil {
		logger.Info("admin principal already exists")
		return nil
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	_, err = repo.Create(ctx, &models.Principal{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         "admin",
		Status:       "active",
	})
	if err != nil {
		return err
	}

	logger.Info("admin principal created", pkglogger.RedactedAttr("email", adminEmail, env))
	return nil
}
