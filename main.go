package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tavolo/tavolo/internal/adapters/datastore"
	"github.com/tavolo/tavolo/internal/app"
	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/config"
	"github.com/tavolo/tavolo/internal/idempotency"
	"github.com/tavolo/tavolo/internal/logging"
	"github.com/tavolo/tavolo/internal/ports"
	"github.com/tavolo/tavolo/internal/ratelimiting"
	"github.com/tavolo/tavolo/internal/reporting"
	"github.com/tavolo/tavolo/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "tavolo"

const (
	apiRequestsPerWindow     ratelimiting.Limit  = 120
	apiWindow                ratelimiting.Window = ratelimiting.Window(time.Minute)
	webhookRequestsPerWindow ratelimiting.Limit  = 600
	webhookWindow            ratelimiting.Window = ratelimiting.Window(time.Minute)
	adminRequestsPerWindow   ratelimiting.Limit  = 30
	adminWindow              ratelimiting.Window = ratelimiting.Window(time.Minute)
)

const cacheCapacity = 10_000

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTraceLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.OTelEnabled() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName, instanceID)
		if err != nil {
			fail("Failed to initialize OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	tenantDataProvider, err := datastore.NewRESTOrMock(config, httpClient, time.Now)
	if err != nil {
		fail("Failed to initialize datastore", "error", err.Error())
	}
	logger.Info("Initialized datastore")

	tenantCache := cache.New(cache.NewStore(config.SettingsCacheTTL(), time.Now, cache.WithCapacity(cacheCapacity)))
	guard := idempotency.NewGuard(config.IdempotencyRetention(), time.Now)

	var counterStore ratelimiting.CounterStore
	switch config.RateLimitBackend() {
	case "memory":
		idleTTL := time.Duration(slices.Max([]ratelimiting.Window{apiWindow, webhookWindow, adminWindow}))
		counterStore = ratelimiting.NewMemoryCounterStore(idleTTL)
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
			DB:       config.RedisDB(),
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// Rate limits fail open until redis is reachable
			logger.Warn("Failed to reach redis", "error", err.Error())
		}

		counterStore = ratelimiting.NewRedisCounterStore(redisClient)
	case "disabled":
		logger.Warn("Rate limiting is disabled, all requests are admitted")
	default:
		fail("Unknown rate limit backend", "backend", string(config.RateLimitBackend()))
	}
	logger.Info("Initialized rate limit counter store", "backend", string(config.RateLimitBackend()))

	apiLimiter := ratelimiting.NewSlidingWindowLimiter("api", apiRequestsPerWindow, apiWindow, counterStore, time.Now)
	webhookLimiter := ratelimiting.NewSlidingWindowLimiter("webhook", webhookRequestsPerWindow, webhookWindow, counterStore, time.Now)
	adminLimiter := ratelimiting.NewSlidingWindowLimiter("admin", adminRequestsPerWindow, adminWindow, counterStore, time.Now)

	allowedOrigins, err := ports.NewDomainSuffixes(config.CORSDomainSuffixes()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	getTenantSettings := app.BuildGetTenantSettingsWithCache(tenantCache, tenantDataProvider, config.SettingsCacheTTL())
	listTenantProducts := app.BuildListTenantProductsWithCache(tenantCache, tenantDataProvider, config.ProductsCacheTTL())
	getTenantLiveStatus := app.BuildGetTenantLiveStatusWithCache(tenantCache, tenantDataProvider, config.StatusCacheTTL())

	handleDataChange := app.BuildHandleDataChange(tenantCache, guard, getTenantSettings)
	invalidateTenant := app.BuildInvalidateTenant(tenantCache)

	tenantDeps := ports.TenantDataHandlerDeps{
		Limiter:          apiLimiter,
		AllowedOrigins:   allowedOrigins,
		RootLogger:       logger,
		SentryMiddleware: sentryMiddleware,
		NowFunc:          time.Now,
	}
	adminDeps := ports.AdminHandlerDeps{
		Token:            config.AdminToken(),
		Limiter:          adminLimiter,
		RootLogger:       logger,
		SentryMiddleware: sentryMiddleware,
		NowFunc:          time.Now,
	}

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/tenants/{tenantID}/settings",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/tenants/{tenantID}/settings",
		ports.MakeGetTenantSettingsHandler(getTenantSettings, tenantDeps),
	)

	mux.HandleFunc(
		"OPTIONS /v1/tenants/{tenantID}/products",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/tenants/{tenantID}/products",
		ports.MakeListTenantProductsHandler(listTenantProducts, tenantDeps),
	)

	mux.HandleFunc(
		"OPTIONS /v1/tenants/{tenantID}/status",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/tenants/{tenantID}/status",
		ports.MakeGetTenantLiveStatusHandler(getTenantLiveStatus, tenantDeps),
	)

	mux.HandleFunc(
		"POST /v1/webhooks/data-change",
		ports.MakeDataChangeWebhookHandler(
			handleDataChange,
			config.WebhookSecret(),
			webhookLimiter,
			logger,
			sentryMiddleware,
			time.Now,
		),
	)

	mux.HandleFunc(
		"GET /v1/admin/cache",
		ports.MakeGetCacheStatsHandler(tenantCache.Stats, guard.Len, adminDeps),
	)
	mux.HandleFunc(
		"POST /v1/admin/tenants/{tenantID}/invalidate",
		ports.MakeInvalidateTenantHandler(invalidateTenant, adminDeps),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
