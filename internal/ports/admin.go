package ports

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tavolo/tavolo/internal/app"
	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/domain"
	"github.com/tavolo/tavolo/internal/logging"
	"github.com/tavolo/tavolo/internal/ratelimiting"
	"github.com/tavolo/tavolo/internal/reporting"
)

// An empty token disables the endpoint
func buildBearerAuthMiddleware(token string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeErrorResponse(w, http.StatusNotFound, "not found")
				return
			}

			provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next(w, r)
		}
	}
}

// AdminHandlerDeps are shared by all admin endpoints
type AdminHandlerDeps struct {
	Token            string
	Limiter          *ratelimiting.SlidingWindowLimiter
	RootLogger       *slog.Logger
	SentryMiddleware func(http.HandlerFunc) http.HandlerFunc
	NowFunc          func() time.Time
}

func (deps AdminHandlerDeps) middleware(portName string) func(http.HandlerFunc) http.HandlerFunc {
	return ComposeMiddlewares(
		buildMetricsMiddleware(portName),
		logging.NewRequestLoggerMiddleware(deps.RootLogger.With("port", portName), ratelimiting.ClientAddress),
		deps.SentryMiddleware,
		// Limit before authenticating so tokens can not be guessed quickly
		NewRateLimitMiddleware(deps.Limiter, ratelimiting.ClientAddress, deps.NowFunc),
		buildBearerAuthMiddleware(deps.Token),
	)
}

type cacheStatsResponse struct {
	Success        bool     `json:"success"`
	Size           int      `json:"size"`
	Keys           []string `json:"keys"`
	RetainedEvents int      `json:"retainedEvents"`
}

func MakeGetCacheStatsHandler(getCacheStats func() cache.Stats, retainedEvents func() int, deps AdminHandlerDeps) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		stats := getCacheStats()

		err := writeJSONResponse(w, cacheStatsResponse{
			Success:        true,
			Size:           stats.Size,
			Keys:           stats.Keys,
			RetainedEvents: retainedEvents(),
		})
		if err != nil {
			reporting.Report(r.Context(), fmt.Errorf("failed to marshal cache stats response: %w", err))
			writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	return deps.middleware("admin_cache_stats")(handler)
}

type invalidateTenantResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

func MakeInvalidateTenantHandler(invalidateTenant app.InvalidateTenant, deps AdminHandlerDeps) http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := r.PathValue("tenantID")

		removed, err := invalidateTenant(ctx, tenantID)
		if errors.Is(err, domain.ErrInvalidTenantID) {
			writeErrorResponse(w, http.StatusBadRequest, "invalid tenant id")
			return
		} else if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to invalidate tenant: %w", err))
			writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}

		logging.FromContext(ctx).InfoContext(ctx, "Invalidated tenant on request", "tenantID", tenantID, "removed", removed)

		if err := writeJSONResponse(w, invalidateTenantResponse{Success: true, Removed: removed}); err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal invalidate response: %w", err))
			writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	return deps.middleware("admin_invalidate_tenant")(handler)
}
