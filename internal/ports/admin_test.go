package ports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/domain"
)

const testAdminToken = "admin-secret"

func newAdminRequest(method string, path string, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-For", "192.0.2.10")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestBearerAuthMiddleware(t *testing.T) {
	t.Parallel()

	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	for _, tc := range []struct {
		name          string
		token         string
		authorization string
		status        int
	}{
		{"correct", testAdminToken, "Bearer " + testAdminToken, http.StatusOK},
		{"wrong", testAdminToken, "Bearer nope", http.StatusUnauthorized},
		{"missing", testAdminToken, "", http.StatusUnauthorized},
		{"not bearer", testAdminToken, "Basic " + testAdminToken, http.StatusUnauthorized},
		{"prefix of token", testAdminToken, "Bearer admin", http.StatusUnauthorized},
		{"disabled", "", "Bearer ", http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/v1/admin/cache", nil)
			if tc.authorization != "" {
				req.Header.Set("Authorization", tc.authorization)
			}
			w := httptest.NewRecorder()
			buildBearerAuthMiddleware(tc.token)(ok)(w, req)

			require.Equal(t, tc.status, w.Code)
		})
	}
}

func TestGetCacheStatsHandler(t *testing.T) {
	t.Parallel()

	getCacheStats := func() cache.Stats {
		return cache.Stats{Size: 2, Keys: []string{"tenant:demo:settings", "tenant:demo:status"}}
	}
	retainedEvents := func() int { return 7 }

	t.Run("authorized", func(t *testing.T) {
		t.Parallel()
		handler := MakeGetCacheStatsHandler(getCacheStats, retainedEvents, newTestAdminDeps(t, testAdminToken, newFakeClock()))

		w := httptest.NewRecorder()
		handler(w, newAdminRequest("GET", "/v1/admin/cache", testAdminToken))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t,
			`{"success":true,"size":2,"keys":["tenant:demo:settings","tenant:demo:status"],"retainedEvents":7}`,
			w.Body.String(),
		)
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		handler := MakeGetCacheStatsHandler(getCacheStats, retainedEvents, newTestAdminDeps(t, testAdminToken, newFakeClock()))

		w := httptest.NewRecorder()
		handler(w, newAdminRequest("GET", "/v1/admin/cache", "guess"))

		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"unauthorized"}`, w.Body.String())
	})

	t.Run("guesses are rate limited", func(t *testing.T) {
		t.Parallel()
		handler := MakeGetCacheStatsHandler(getCacheStats, retainedEvents, newTestAdminDeps(t, testAdminToken, newFakeClock()))

		for range 3 {
			w := httptest.NewRecorder()
			handler(w, newAdminRequest("GET", "/v1/admin/cache", "guess"))
			require.Equal(t, http.StatusUnauthorized, w.Code)
		}

		// Even the correct token is rejected until the window moves on
		w := httptest.NewRecorder()
		handler(w, newAdminRequest("GET", "/v1/admin/cache", testAdminToken))
		require.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestInvalidateTenantHandler(t *testing.T) {
	t.Parallel()

	invalidateTenant := func(ctx context.Context, tenantID string) (int, error) {
		if err := domain.ValidateTenantID(tenantID); err != nil {
			return 0, err
		}
		return 3, nil
	}

	handler := MakeInvalidateTenantHandler(invalidateTenant, newTestAdminDeps(t, testAdminToken, newFakeClock()))

	t.Run("removed", func(t *testing.T) {
		req := newAdminRequest("POST", "/v1/admin/tenants/demo/invalidate", testAdminToken)
		req.SetPathValue("tenantID", "demo")
		w := httptest.NewRecorder()
		handler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"removed":3}`, w.Body.String())
	})

	t.Run("invalid tenant", func(t *testing.T) {
		req := newAdminRequest("POST", "/v1/admin/tenants/x/invalidate", testAdminToken)
		req.SetPathValue("tenantID", "a:b")
		w := httptest.NewRecorder()
		handler(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
