package ports

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tavolo/tavolo/internal/app"
	"github.com/tavolo/tavolo/internal/domain"
	"github.com/tavolo/tavolo/internal/logging"
	"github.com/tavolo/tavolo/internal/ratelimiting"
	"github.com/tavolo/tavolo/internal/reporting"
)

const (
	signatureHeader    = "X-Signature-256"
	signaturePrefix    = "sha256="
	maxWebhookBodySize = 64 * 1024
)

type dataChangeRequest struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	TenantID string `json:"tenant_id"`
}

type dataChangeResponse struct {
	Success   bool `json:"success"`
	Duplicate bool `json:"duplicate"`
}

// SignBody returns the signature header value for body
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	rawSignature, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return false
	}
	signature, err := hex.DecodeString(rawSignature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(signature, mac.Sum(nil))
}

// MakeDataChangeWebhookHandler applies data change events sent by the datastore.
//
// An empty secret disables signature checks.
func MakeDataChangeWebhookHandler(
	handleDataChange app.HandleDataChange,
	secret string,
	limiter *ratelimiting.SlidingWindowLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	nowFunc func() time.Time,
) http.HandlerFunc {
	const portName = "data_change_webhook"

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware(portName),
		logging.NewRequestLoggerMiddleware(rootLogger.With("port", portName), ratelimiting.ClientAddress),
		sentryMiddleware,
		NewRateLimitMiddleware(limiter, ratelimiting.ClientAddress, nowFunc),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeErrorResponse(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		} else if err != nil {
			logging.FromContext(ctx).InfoContext(ctx, "Failed to read data change body", "error", err.Error())
			writeErrorResponse(w, http.StatusBadRequest, "could not read body")
			return
		}

		if secret != "" && !validSignature(secret, body, r.Header.Get(signatureHeader)) {
			logging.FromContext(ctx).WarnContext(ctx, "Rejected data change with invalid signature")
			writeErrorResponse(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		var request dataChangeRequest
		if err := json.Unmarshal(body, &request); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid json")
			return
		}

		event := domain.DataChangeEvent{
			ID:       request.ID,
			Type:     domain.EventType(request.Type),
			TenantID: request.TenantID,
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("eventID", event.ID),
			slog.String("eventType", request.Type),
			slog.String("tenantID", event.TenantID),
		)
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"eventID":   event.ID,
			"eventType": request.Type,
		})
		ctx = reporting.SetTenantIDInContext(ctx, event.TenantID)

		handled, err := handleDataChange(ctx, event)
		if errors.Is(err, domain.ErrInvalidEvent) || errors.Is(err, domain.ErrUnknownEventType) {
			writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			// The event was released, the datastore will deliver it again
			writeErrorResponse(w, http.StatusServiceUnavailable, "temporarily unavailable")
			return
		} else if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to handle data change: %w", err))
			writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := writeJSONResponse(w, dataChangeResponse{Success: true, Duplicate: !handled}); err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal data change response: %w", err))
			writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	return middleware(handler)
}
