// Package main is the entrypoint for the ParcelGrid API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/cache"
	"github.com/parcelgrid/parcelgrid/internal/config"
	"github.com/parcelgrid/parcelgrid/internal/handler"
	"github.com/parcelgrid/parcelgrid/internal/metrics"
	"github.com/parcelgrid/parcelgrid/internal/middleware"
	"github.com/parcelgrid/parcelgrid/internal/repository"
	"github.com/parcelgrid/parcelgrid/internal/server"
	"github.com/parcelgrid/parcelgrid/internal/service"
	"github.com/parcelgrid/parcelgrid/internal/usage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus(registry)

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("failed to initialize session tokens", "error", err)
		os.Exit(1)
	}

	accountService := service.NewAccountService(repo, tokens, cfg.WelcomeBonusCredits)
	creditService := service.NewCreditService(repo)
	apiKeyService := service.NewAPIKeyService(repo)
	locationService := service.NewLocationService(repo, repo, cacheClient, cfg.LocationQueryCost, cfg.LocationCacheTTL, recorder)

	var publisher *usage.Publisher
	var worker *usage.Worker
	if cfg.UsageStreamEnabled {
		publisher = usage.NewPublisher(cacheClient.Client(), logger, recorder)
		worker = usage.NewWorker(cacheClient.Client(), repo, logger, hostnameConsumerID(), recorder)
	}

	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	accountHandler := handler.NewAccountHandler(logger, accountService)
	creditHandler := handler.NewCreditHandler(logger, creditService)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, apiKeyService)
	locationHandler := handler.NewLocationHandler(logger, locationService)

	r := setupRouter(routerDeps{
		health:    healthHandler,
		accounts:  accountHandler,
		credits:   creditHandler,
		apiKeys:   apiKeyHandler,
		locations: locationHandler,
		keys:      apiKeyService,
		publisher: publisher,
		tokens:    tokens,
		registry:  registry,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	if worker != nil {
		workerCtx, cancelWorker := context.WithCancel(ctx)
		defer cancelWorker()
		go func() {
			if err := worker.Run(workerCtx); err != nil && err != context.Canceled {
				logger.Error("usage worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("usage-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"metered_prefixes", cfg.MeteredPathPrefixes,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func hostnameConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "api"
	}
	return host
}

type routerDeps struct {
	health    *handler.HealthHandler
	accounts  *handler.AccountHandler
	credits   *handler.CreditHandler
	apiKeys   *handler.APIKeyHandler
	locations *handler.LocationHandler
	keys      *service.APIKeyService
	publisher *usage.Publisher
	tokens    *auth.TokenService
	registry  *prometheus.Registry
	recorder  metrics.Recorder
	cfg       *config.Config
	logger    *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))

	secCfg := middleware.DefaultSecurityConfig()
	secCfg.IsDevelopment = deps.cfg.IsDevelopment()
	r.Use(middleware.Security(secCfg))
	r.Use(middleware.MaxBodySize(secCfg.MaxRequestBodySize))

	if len(deps.cfg.AllowedOrigins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowedOrigins = deps.cfg.AllowedOrigins
		r.Use(middleware.CORS(corsCfg))
	}

	// Service info and health endpoints (no auth required)
	r.Get("/", handler.Root)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))

	// Metered API: key-gated location queries
	authCfg := middleware.AuthConfig{
		Logger:       deps.logger,
		Resolver:     deps.keys,
		PathPrefixes: deps.cfg.GetMeteredPathPrefixes(),
		Metrics:      deps.recorder,
	}
	if deps.publisher != nil {
		authCfg.Usage = deps.publisher
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Get("/api/locations", deps.locations.Locations)
	})

	// Dashboard API: registration, login, and session-gated management
	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", deps.accounts.Register)
		r.Post("/auth/login", deps.accounts.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(middleware.SessionConfig{
				Logger: deps.logger,
				Tokens: deps.tokens,
			}))

			r.Get("/credits", deps.credits.Balance)
			r.Get("/credits/transactions", deps.credits.Transactions)

			r.Route("/api-keys", func(r chi.Router) {
				r.Get("/", deps.apiKeys.ListAPIKeys)
				r.Post("/", deps.apiKeys.CreateAPIKey)
				r.Delete("/{keyID}", deps.apiKeys.DeleteAPIKey)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
