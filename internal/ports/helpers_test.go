package ports

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func noopSentryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return next
}

func newTestTenantDeps(t *testing.T, clock *fakeClock) TenantDataHandlerDeps {
	t.Helper()

	allowedOrigins, err := NewDomainSuffixes("trattoria.example")
	require.NoError(t, err)

	return TenantDataHandlerDeps{
		Limiter:          newTestLimiter(t, 100, clock),
		AllowedOrigins:   allowedOrigins,
		RootLogger:       testLogger,
		SentryMiddleware: noopSentryMiddleware,
		NowFunc:          clock.Now,
	}
}

func newTestAdminDeps(t *testing.T, token string, clock *fakeClock) AdminHandlerDeps {
	t.Helper()

	return AdminHandlerDeps{
		Token:            token,
		Limiter:          newTestLimiter(t, 3, clock),
		RootLogger:       testLogger,
		SentryMiddleware: noopSentryMiddleware,
		NowFunc:          clock.Now,
	}
}

var updatedAt = time.Date(2026, time.February, 27, 9, 30, 0, 0, time.UTC)
