package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/riskgate/internal/auth"
	"github.com/BradenHooton/riskgate/internal/handlers"
	"github.com/BradenHooton/riskgate/internal/metrics"
	"github.com/BradenHooton/riskgate/internal/middleware"
	pkghttp "github.com/BradenHooton/riskgate/pkg/http"
)

// HealthChecker reports whether the backing store is reachable. A nil
// checker means there is nothing to check.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps groups what RegisterRoutes wires together.
type Deps struct {
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	TokenManager   *auth.TokenManager
	Accounts       auth.AccountReader
	LoginRateLimit middleware.RateLimitConfig
	Health         HealthChecker
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, d Deps) {
	router.Get("/health", healthHandler(d.Health))
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Public routes - no authentication required
		r.With(middleware.RateLimitByIP(d.LoginRateLimit)).Post("/auth/login", d.Auth.Login)
		r.Get("/auth/delays/{id}", d.Auth.CheckDelay)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(d.TokenManager))
			r.Use(auth.RequireAdmin(d.Accounts))

			r.Get("/admin/dashboard", d.Admin.GetDashboard)
			r.Get("/admin/model", d.Admin.GetModel)
			r.Get("/admin/detections", d.Admin.ListDetections)
			r.Post("/admin/detections/{id}/actions", d.Admin.ReviewDetection)
			r.Get("/admin/accounts/monitored", d.Admin.ListMonitored)
			r.Get("/admin/accounts/{id}/events", d.Admin.ListEvents)
			r.Post("/admin/accounts/{id}/unblock", d.Admin.Unblock)
			r.Post("/admin/accounts/{id}/stop-monitoring", d.Admin.StopMonitoring)
			r.Post("/admin/accounts/{id}/reset-password", d.Admin.ResetPassword)
		})
	})
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
