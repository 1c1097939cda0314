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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/auth"
	"github.com/BradenHooton/riskgate/internal/config"
	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/handlers"
	"github.com/BradenHooton/riskgate/internal/metrics"
	middlewareCustom "github.com/BradenHooton/riskgate/internal/middleware"
	"github.com/BradenHooton/riskgate/internal/repositories"
	"github.com/BradenHooton/riskgate/internal/risk"
	"github.com/BradenHooton/riskgate/internal/routes"
	"github.com/BradenHooton/riskgate/internal/services"
	pkghttp "github.com/BradenHooton/riskgate/pkg/http"
	pkglogger "github.com/BradenHooton/riskgate/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Server)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("storage", cfg.Storage),
		slog.String("timezone", cfg.Risk.Location.String()),
	)

	// Initialize storage
	var (
		store  repositories.Store
		health routes.HealthChecker
	)
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; state is lost on restart")
		store = repositories.NewMemoryStore()
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		store = repositories.NewPostgresStore(db)
		health = db
	}

	// Geo resolution: the city database first, trusted headers for the gaps
	geo := risk.ChainResolver{}
	if cfg.Geo.DBPath != "" {
		mm, err := risk.NewMaxMindResolver(cfg.Geo.DBPath, cfg.Geo.CacheTTL)
		if err != nil {
			logger.Error("failed to open geoip database", slog.Any("error", err))
			os.Exit(1)
		}
		defer mm.Close()
		geo = append(geo, mm)
	}
	geo = append(geo, risk.HeaderResolver{})

	// Risk engine
	loader := anomaly.NewLoader(cfg.Risk.ModelDir, logger)
	_, modelErr := loader.Bundle()
	scorer := anomaly.NewScorer(loader)
	extractor := risk.NewExtractor(store.Attempts(), geo, cfg.Risk.Location, cfg.Risk.HighRiskCountries, logger)
	engine := risk.NewEngine(scorer, risk.NewClassifier(cfg.Risk.Policy))
	logger.Info("risk engine ready",
		slog.Bool("model_loaded", modelErr == nil),
		slog.Bool("fallback_classifier", modelErr != nil))

	// Escalation mail
	var notifier services.EscalationNotifier = services.NoopNotifier{}
	if cfg.Notify.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ses, err := services.NewSESNotifier(ctx, cfg.Notify.AWSRegion, cfg.Notify.FromAddress, cfg.Notify.Recipients, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = ses
	}

	// Initialize services
	security := pkglogger.NewSecurityLogger(logger)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	riskService := services.NewRiskService(store, extractor, engine, notifier, security, logger)
	delayService := services.NewDelayService(store, cfg.Risk.ClaimWindow, logger)
	authService := services.NewAuthService(store, riskService, delayService, tokenManager, security, logger, services.BootstrapAdmin{
		Username: cfg.Auth.BootstrapUsername,
		Password: cfg.Auth.BootstrapPassword,
	})
	interventionService := services.NewInterventionService(store, scorer, security, logger)

	// Bootstrap first admin if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authService.EnsureBootstrapAdmin(ctx); err != nil {
		logger.Error("failed to ensure bootstrap admin", slog.Any("error", err))
	}
	cancel()

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{
		TrustedProxies:     cfg.Server.TrustedProxies,
		TrustClientHeaders: cfg.Server.TrustClientGeoHeaders,
	}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	adminHandler := handlers.NewAdminHandler(interventionService)

	loginRateLimit := middlewareCustom.DefaultLoginRateLimit(ipConfig)
	loginRateLimit.RequestsPerMinute = cfg.Server.LoginRateLimit

	// Setup router. No chi RealIP: client IPs come only from
	// pkghttp.ExtractClientIP and its trusted proxy list.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router, routes.Deps{
		Auth:           authHandler,
		Admin:          adminHandler,
		TokenManager:   tokenManager,
		Accounts:       store.Accounts(),
		LoginRateLimit: loginRateLimit,
		Health:         health,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
