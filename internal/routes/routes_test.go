package routes_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/auth"
	"github.com/BradenHooton/riskgate/internal/handlers"
	"github.com/BradenHooton/riskgate/internal/middleware"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/repositories"
	"github.com/BradenHooton/riskgate/internal/risk"
	"github.com/BradenHooton/riskgate/internal/routes"
	"github.com/BradenHooton/riskgate/internal/services"
	pkghttp "github.com/BradenHooton/riskgate/pkg/http"
	pkglogger "github.com/BradenHooton/riskgate/pkg/logger"
)

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router http.Handler
	store  *repositories.MemoryStore
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, health routes.HealthChecker) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	security := pkglogger.NewSecurityLogger(logger)
	store := repositories.NewMemoryStore()
	ipConfig := &pkghttp.IPConfig{}

	scorer := anomaly.NewScorer(anomaly.NewLoader(t.TempDir(), logger))
	extractor := risk.NewExtractor(store.Attempts(), risk.HeaderResolver{}, time.UTC, nil, logger)
	engine := risk.NewEngine(scorer, risk.NewClassifier(risk.DefaultPolicy()))
	tm := auth.NewTokenManager("routes-test-secret-that-is-long-enough", 15*time.Minute)

	riskSvc := services.NewRiskService(store, extractor, engine, services.NoopNotifier{}, security, logger)
	delays := services.NewDelayService(store, services.DefaultClaimWindow, logger)
	authSvc := services.NewAuthService(store, riskSvc, delays, tm, security, logger, services.BootstrapAdmin{})
	intervention := services.NewInterventionService(store, scorer, security, logger)

	router := chi.NewRouter()
	routes.RegisterRoutes(router, routes.Deps{
		Auth:           handlers.NewAuthHandler(authSvc, ipConfig),
		Admin:          handlers.NewAdminHandler(intervention),
		TokenManager:   tm,
		Accounts:       store.Accounts(),
		LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: 2, IPConfig: ipConfig},
		Health:         health,
	})

	return &testServer{router: router, store: store, tokens: tm}
}

func (s *testServer) tokenFor(t *testing.T, role string) string {
	t.Helper()
	account := &models.Account{
		Username:     "user-" + role,
		PasswordHash: "unused",
		Role:         role,
		Status:       models.AccountStatusActive,
	}
	require.NoError(t, s.store.Accounts().Create(context.Background(), account))
	token, _, err := s.tokens.IssueAccessToken(account)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		health routes.HealthChecker
		status int
		body   string
	}{
		{"no database", nil, 200, `{"status":"healthy"}`},
		{"database up", healthFunc(func(context.Context) error { return nil }), 200, `{"status":"healthy","database":"up"}`},
		{"database down", healthFunc(func(context.Context) error { return errors.New("refused") }), 503, `{"status":"unhealthy","database":"down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.health)
			w := s.do("GET", "/health", "", "")
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do("GET", "/metrics", "", "")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "# HELP")
}

func TestAdminRoutes_RequireAdminToken(t *testing.T) {
	s := newTestServer(t, nil)
	userToken := s.tokenFor(t, models.RoleUser)
	adminToken := s.tokenFor(t, models.RoleAdmin)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"user token", userToken, http.StatusForbidden},
		{"admin token", adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("GET", "/api/v1/admin/dashboard", tt.token, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAdminRoutes_Registered(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.tokenFor(t, models.RoleAdmin)
	missing := "00000000-0000-4000-8000-000000000000"

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{"GET", "/api/v1/admin/model", "", 200},
		{"GET", "/api/v1/admin/detections?status=unreviewed", "", 200},
		{"GET", "/api/v1/admin/accounts/monitored", "", 200},
		{"GET", "/api/v1/admin/accounts/" + missing + "/events", "", 404},
		{"POST", "/api/v1/admin/detections/" + missing + "/actions", `{"action":"dismiss"}`, 404},
		{"POST", "/api/v1/admin/accounts/" + missing + "/unblock", "", 404},
		{"POST", "/api/v1/admin/accounts/" + missing + "/stop-monitoring", "", 404},
		{"POST", "/api/v1/admin/accounts/" + missing + "/reset-password", "", 404},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := s.do(tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestLogin_RateLimitedPerIP(t *testing.T) {
	s := newTestServer(t, nil)

	for i := 0; i < 2; i++ {
		w := s.do("POST", "/api/v1/auth/login", "", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := s.do("POST", "/api/v1/auth/login", "", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// The delay poll is not behind the login limiter.
	w = s.do("GET", "/api/v1/auth/delays/not-a-uuid", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
