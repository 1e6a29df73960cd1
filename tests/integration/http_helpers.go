package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/counterstore"
	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/handlers"
	middlewareCustom "github.com/BradenHooton/bastion/internal/middleware"
	"github.com/BradenHooton/bastion/internal/repositories"
	"github.com/BradenHooton/bastion/internal/routes"
	"github.com/BradenHooton/bastion/internal/services"
	pkgauth "github.com/BradenHooton/bastion/pkg/auth"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

// TestServer wraps httptest.Server with the full application wired against a
// real database and an in-process redis.
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Redis  *miniredis.Miniredis
	Config *config.Config

	TokenManager *auth.TokenManager
	logger       *slog.Logger
}

// NewTestServer initializes a complete HTTP server with real database and
// miniredis-backed counter store
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start miniredis: %w", err)
	}

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
			CleanupInterval:    time.Hour,
		},
		Lockout: config.LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Session: config.SessionConfig{
			MaxConcurrent: 5,
			TTL:           24 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:         true,
			PerMinute:       100,
			PerHour:         1000,
			AdminBypass:     true,
			StoreTimeout:    250 * time.Millisecond,
			ExemptPrefixes:  []string{"/health"},
			AuthPerMinuteIP: 1000, // outer guard out of the way for most tests
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
	}

	counters := counterstore.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	principalRepo := repositories.NewPrincipalRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

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

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	adminHandler := handlers.NewAdminHandler(lockoutService, sessionService)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chiMiddleware.Recoverer)

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

	server := httptest.NewServer(router)

	return &TestServer{
		Server:       server,
		DB:           db,
		Redis:        mr,
		Config:       cfg,
		TokenManager: tokenManager,
		logger:       logger,
	}, nil
}

// Close shuts down the test server and its counter store
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Redis.Close()
}

// PostJSON sends a POST request with JSON body, optionally authenticated
func (ts *TestServer) PostJSON(path string, body interface{}, accessToken string) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return http.DefaultClient.Do(req)
}

// Do sends an arbitrary request, optionally authenticated
func (ts *TestServer) Do(method, path, accessToken string) (*http.Response, error) {
	req, err := http.NewRequest(method, ts.Server.URL+path, nil)
	if err != nil {
		return nil, err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return http.DefaultClient.Do(req)
}

// DecodeJSON decodes a response body into target and closes it
func DecodeJSON(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// Login performs a login request and returns the decoded response
func (ts *TestServer) Login(email, password string) (*services.AuthResponse, *http.Response, error) {
	resp, err := ts.PostJSON("/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, resp, nil
	}

	var authResp services.AuthResponse
	if err := DecodeJSON(resp, &authResp); err != nil {
		return nil, resp, err
	}
	return &authResp, resp, nil
}
