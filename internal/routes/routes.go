package routes

import (
	"github.com/BradenHooton/bastion/internal/auth"
	"github.com/BradenHooton/bastion/internal/handlers"
	"github.com/BradenHooton/bastion/internal/middleware"
	"github.com/BradenHooton/bastion/internal/models"
	pkghttp "github.com/BradenHooton/bastion/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	sessionChecker auth.SessionChecker,
	rateLimiter middleware.RateLimitService,
	ipConfig *pkghttp.IPConfig,
	authIPLimit middleware.AuthRateLimitConfig,
) {
	// Each route group draws on its own counter budget: the shared-counter
	// limiter keys by scope and endpoint class, so credential attempts never
	// starve the authenticated surface. The in-memory httprate guard
	// additionally fronts the credential endpoints.
	credentialLimit := middleware.RateLimit(rateLimiter, ipConfig, models.RateLimitScopeAuth, models.RateLimitClassCredentials)
	sessionLimit := middleware.RateLimit(rateLimiter, ipConfig, models.RateLimitScopeAPI, models.RateLimitClassSessions)
	adminLimit := middleware.RateLimit(rateLimiter, ipConfig, models.RateLimitScopeAPI, models.RateLimitClassAdmin)
	ipGuard := middleware.RateLimitByIP(authIPLimit)

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(ipGuard)
		r.Use(credentialLimit)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, sessionChecker))

		r.Group(func(r chi.Router) {
			r.Use(sessionLimit)

			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/sessions/active", sessionHandler.ListActive)
			r.Delete("/sessions/all-except-current", sessionHandler.TerminateAllExceptCurrent)
			r.Delete("/sessions/{id}", sessionHandler.Terminate)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Use(adminLimit)
			r.Post("/admin/principals/{id}/lock", adminHandler.LockPrincipal)
			r.Post("/admin/principals/{id}/unlock", adminHandler.UnlockPrincipal)
		})
	})
}
