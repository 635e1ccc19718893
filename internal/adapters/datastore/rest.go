package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tavolo/tavolo/internal/domain"
	"github.com/tavolo/tavolo/internal/logging"
	"github.com/tavolo/tavolo/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const userAgent = "tavolo/1.0"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type restMetricsCollection struct {
	requestCount metric.Int64Counter
}

func setupRESTMetrics(meter metric.Meter) (restMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("datastore/request_count")
	if err != nil {
		return restMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return restMetricsCollection{
		requestCount: requestCount,
	}, nil
}

// rest reads tenant data through the datastore's REST interface
type rest struct {
	httpClient HttpClient
	baseURL    string
	apiKey     string

	metrics restMetricsCollection
	tracer  trace.Tracer
}

func NewREST(httpClient HttpClient, baseURL string, apiKey string) (*rest, error) {
	const name = "tavolo/adapters/datastore"

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid datastore url %q", baseURL)
	}

	metrics, err := setupRESTMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &rest{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

type settingsRow struct {
	TenantID        string    `json:"tenant_id"`
	Name            string    `json:"name"`
	Currency        string    `json:"currency"`
	Timezone        string    `json:"timezone"`
	AcceptingOrders bool      `json:"accepting_orders"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type productRow struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Available  bool   `json:"available"`
}

type liveStatusRow struct {
	TenantID             string    `json:"tenant_id"`
	Open                 bool      `json:"open"`
	QueueLength          int       `json:"queue_length"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (r *rest) GetSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	ctx, span := r.tracer.Start(ctx, "Datastore.GetSettings")
	defer span.End()

	query := url.Values{}
	query.Set("tenant_id", "eq."+tenantID)
	query.Set("limit", "1")

	rows, err := getRows[settingsRow](ctx, r, "tenant_settings", query)
	if err != nil {
		return domain.TenantSettings{}, err
	}
	if len(rows) == 0 {
		return domain.TenantSettings{}, domain.ErrTenantNotFound
	}

	row := rows[0]
	return domain.TenantSettings{
		TenantID:        row.TenantID,
		Name:            row.Name,
		Currency:        row.Currency,
		Timezone:        row.Timezone,
		AcceptingOrders: row.AcceptingOrders,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (r *rest) ListProducts(ctx context.Context, tenantID string, onlyAvailable bool) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "Datastore.ListProducts")
	defer span.End()

	query := url.Values{}
	query.Set("tenant_id", "eq."+tenantID)
	query.Set("order", "name.asc")
	if onlyAvailable {
		query.Set("available", "eq.true")
	}

	rows, err := getRows[productRow](ctx, r, "products", query)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, domain.Product{
			ID:         row.ID,
			TenantID:   row.TenantID,
			Name:       row.Name,
			Category:   row.Category,
			PriceCents: row.PriceCents,
			Available:  row.Available,
		})
	}
	return products, nil
}

func (r *rest) GetLiveStatus(ctx context.Context, tenantID string) (domain.LiveStatus, error) {
	ctx, span := r.tracer.Start(ctx, "Datastore.GetLiveStatus")
	defer span.End()

	query := url.Values{}
	query.Set("tenant_id", "eq."+tenantID)
	query.Set("limit", "1")

	rows, err := getRows[liveStatusRow](ctx, r, "live_status", query)
	if err != nil {
		return domain.LiveStatus{}, err
	}
	if len(rows) == 0 {
		return domain.LiveStatus{}, domain.ErrTenantNotFound
	}

	row := rows[0]
	return domain.LiveStatus{
		TenantID:             row.TenantID,
		Open:                 row.Open,
		QueueLength:          row.QueueLength,
		EstimatedWaitMinutes: row.EstimatedWaitMinutes,
		UpdatedAt:            row.UpdatedAt,
	}, nil
}

func getRows[T any](ctx context.Context, r *rest, table string, query url.Values) ([]T, error) {
	data, statusCode, err := r.get(ctx, table, query)
	if err != nil {
		return nil, err
	}

	rows, err := rowsFromResponse[T](statusCode, data)
	if err != nil {
		// Intermittent failures are expected and not worth a report
		if !errors.Is(err, domain.ErrTemporarilyUnavailable) {
			reporting.Report(ctx, fmt.Errorf("failed to read %s rows: %w", table, err), map[string]string{
				"data":   string(data),
				"status": strconv.Itoa(statusCode),
			})
		}
		return nil, err
	}

	return rows, nil
}

func (r *rest) get(ctx context.Context, table string, query url.Values) ([]byte, int, error) {
	requestURL := fmt.Sprintf("%s/rest/v1/%s?%s", r.baseURL, table, query.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return nil, -1, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("table", table),
			attribute.String("status", "error"),
		))
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err)
		return nil, -1, err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return nil, -1, err
	}

	r.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("status", strconv.Itoa(resp.StatusCode)),
	))
	logging.FromContext(ctx).InfoContext(ctx, "datastore request completed", "table", table, "status", resp.StatusCode, "duration", time.Since(start).String())

	return data, resp.StatusCode, nil
}

func rowsFromResponse[T any](statusCode int, data []byte) ([]T, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: datastore returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}

	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("datastore returned status code %d", statusCode)
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse datastore response: %w", err)
	}

	return rows, nil
}
