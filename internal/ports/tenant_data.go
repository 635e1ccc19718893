package ports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tavolo/tavolo/internal/app"
	"github.com/tavolo/tavolo/internal/domain"
	"github.com/tavolo/tavolo/internal/logging"
	"github.com/tavolo/tavolo/internal/ratelimiting"
	"github.com/tavolo/tavolo/internal/reporting"
)

type settingsResponse struct {
	TenantID        string    `json:"tenantID"`
	Name            string    `json:"name"`
	Currency        string    `json:"currency"`
	Timezone        string    `json:"timezone"`
	AcceptingOrders bool      `json:"acceptingOrders"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type productResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"priceCents"`
	Available  bool   `json:"available"`
}

type liveStatusResponse struct {
	Open                 bool      `json:"open"`
	QueueLength          int       `json:"queueLength"`
	EstimatedWaitMinutes int       `json:"estimatedWaitMinutes"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type tenantSettingsResponse struct {
	Success  bool             `json:"success"`
	Settings settingsResponse `json:"settings"`
}

type tenantProductsResponse struct {
	Success  bool              `json:"success"`
	TenantID string            `json:"tenantID"`
	Products []productResponse `json:"products"`
}

type tenantLiveStatusResponse struct {
	Success  bool               `json:"success"`
	TenantID string             `json:"tenantID"`
	Status   liveStatusResponse `json:"status"`
}

// TenantDataHandlerDeps are shared by all tenant read endpoints
type TenantDataHandlerDeps struct {
	Limiter          *ratelimiting.SlidingWindowLimiter
	AllowedOrigins   *DomainSuffixes
	RootLogger       *slog.Logger
	SentryMiddleware func(http.HandlerFunc) http.HandlerFunc
	NowFunc          func() time.Time
}

func (deps TenantDataHandlerDeps) middleware(portName string) func(http.HandlerFunc) http.HandlerFunc {
	return ComposeMiddlewares(
		buildMetricsMiddleware(portName),
		logging.NewRequestLoggerMiddleware(deps.RootLogger.With("port", portName), ratelimiting.ClientAddress),
		deps.SentryMiddleware,
		BuildCORSMiddleware(deps.AllowedOrigins),
		NewRateLimitMiddleware(deps.Limiter, ratelimiting.ClientAddress, deps.NowFunc),
	)
}

var errInvalidQuery = errors.New("invalid query")

// Each tenant endpoint only differs in how it gets and renders its data
func makeTenantDataHandler(getResponse func(ctx context.Context, r *http.Request, tenantID string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := r.PathValue("tenantID")

		if err := domain.ValidateTenantID(tenantID); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid tenant id")
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("tenantID", tenantID))
		ctx = reporting.SetTenantIDInContext(ctx, tenantID)

		response, err := getResponse(ctx, r, tenantID)
		if errors.Is(err, errInvalidQuery) {
			writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		} else if errors.Is(err, domain.ErrTenantNotFound) {
			writeErrorResponse(w, http.StatusNotFound, "not found")
			return
		} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			writeErrorResponse(w, http.StatusServiceUnavailable, "temporarily unavailable")
			return
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logging.FromContext(ctx).InfoContext(ctx, "Request ended while waiting for tenant data", "error", err.Error())
			writeErrorResponse(w, http.StatusServiceUnavailable, "temporarily unavailable")
			return
		} else if err != nil {
			// NOTE: app functions and TenantDataProvider implementations handle their own error reporting
			logging.FromContext(ctx).ErrorContext(ctx, "Failed to get tenant data", "error", err.Error())
			writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := writeJSONResponse(w, response); err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal tenant data response: %w", err))
			writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}
}

func MakeGetTenantSettingsHandler(getTenantSettings app.GetTenantSettings, deps TenantDataHandlerDeps) http.HandlerFunc {
	handler := makeTenantDataHandler(func(ctx context.Context, r *http.Request, tenantID string) (any, error) {
		settings, err := getTenantSettings(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return tenantSettingsResponse{
			Success: true,
			Settings: settingsResponse{
				TenantID:        settings.TenantID,
				Name:            settings.Name,
				Currency:        settings.Currency,
				Timezone:        settings.Timezone,
				AcceptingOrders: settings.AcceptingOrders,
				UpdatedAt:       settings.UpdatedAt,
			},
		}, nil
	})

	return deps.middleware("tenant_settings")(handler)
}

func MakeListTenantProductsHandler(listTenantProducts app.ListTenantProducts, deps TenantDataHandlerDeps) http.HandlerFunc {
	handler := makeTenantDataHandler(func(ctx context.Context, r *http.Request, tenantID string) (any, error) {
		onlyAvailable := false
		if raw := r.URL.Query().Get("available"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: available=%s", errInvalidQuery, raw)
			}
			onlyAvailable = parsed
		}

		products, err := listTenantProducts(ctx, tenantID, onlyAvailable)
		if err != nil {
			return nil, err
		}

		productResponses := make([]productResponse, 0, len(products))
		for _, product := range products {
			productResponses = append(productResponses, productResponse{
				ID:         product.ID,
				Name:       product.Name,
				Category:   product.Category,
				PriceCents: product.PriceCents,
				Available:  product.Available,
			})
		}

		return tenantProductsResponse{
			Success:  true,
			TenantID: tenantID,
			Products: productResponses,
		}, nil
	})

	return deps.middleware("tenant_products")(handler)
}

func MakeGetTenantLiveStatusHandler(getTenantLiveStatus app.GetTenantLiveStatus, deps TenantDataHandlerDeps) http.HandlerFunc {
	handler := makeTenantDataHandler(func(ctx context.Context, r *http.Request, tenantID string) (any, error) {
		status, err := getTenantLiveStatus(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return tenantLiveStatusResponse{
			Success:  true,
			TenantID: tenantID,
			Status: liveStatusResponse{
				Open:                 status.Open,
				QueueLength:          status.QueueLength,
				EstimatedWaitMinutes: status.EstimatedWaitMinutes,
				UpdatedAt:            status.UpdatedAt,
			},
		}, nil
	})

	return deps.middleware("tenant_status")(handler)
}
