package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/domain"
)

// A fetch is shared by every caller waiting on the same key, so it is not bound to any one request
const fetchTimeout = 5 * time.Second

type GetTenantSettings func(ctx context.Context, tenantID string) (domain.TenantSettings, error)
type ListTenantProducts func(ctx context.Context, tenantID string, onlyAvailable bool) ([]domain.Product, error)
type GetTenantLiveStatus func(ctx context.Context, tenantID string) (domain.LiveStatus, error)

type tenantSettingsProvider interface {
	GetSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error)
}

type tenantProductsProvider interface {
	ListProducts(ctx context.Context, tenantID string, onlyAvailable bool) ([]domain.Product, error)
}

type tenantLiveStatusProvider interface {
	GetLiveStatus(ctx context.Context, tenantID string) (domain.LiveStatus, error)
}

func fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	// Ignore cancellations from the request context, other callers may be waiting for the result
	return context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
}

func BuildGetTenantSettingsWithCache(c *cache.Cache, provider tenantSettingsProvider, ttl time.Duration) GetTenantSettings {
	return func(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
		if err := domain.ValidateTenantID(tenantID); err != nil {
			return domain.TenantSettings{}, err
		}

		settings, err := cache.GetOrFetch(ctx, c, SettingsKey(tenantID), ttl, func() (domain.TenantSettings, error) {
			fetchCtx, cancel := fetchContext(ctx)
			defer cancel()
			return provider.GetSettings(fetchCtx, tenantID)
		})
		if err != nil {
			// NOTE: TenantDataProvider implementations handle their own error reporting
			return domain.TenantSettings{}, fmt.Errorf("failed to cache.GetOrFetch tenant settings: %w", err)
		}

		return settings, nil
	}
}

func BuildListTenantProductsWithCache(c *cache.Cache, provider tenantProductsProvider, ttl time.Duration) ListTenantProducts {
	return func(ctx context.Context, tenantID string, onlyAvailable bool) ([]domain.Product, error) {
		if err := domain.ValidateTenantID(tenantID); err != nil {
			return nil, err
		}

		products, err := cache.GetOrFetch(ctx, c, ProductsKey(tenantID, onlyAvailable), ttl, func() ([]domain.Product, error) {
			fetchCtx, cancel := fetchContext(ctx)
			defer cancel()
			return provider.ListProducts(fetchCtx, tenantID, onlyAvailable)
		})
		if err != nil {
			// NOTE: TenantDataProvider implementations handle their own error reporting
			return nil, fmt.Errorf("failed to cache.GetOrFetch tenant products: %w", err)
		}

		return products, nil
	}
}

func BuildGetTenantLiveStatusWithCache(c *cache.Cache, provider tenantLiveStatusProvider, ttl time.Duration) GetTenantLiveStatus {
	return func(ctx context.Context, tenantID string) (domain.LiveStatus, error) {
		if err := domain.ValidateTenantID(tenantID); err != nil {
			return domain.LiveStatus{}, err
		}

		status, err := cache.GetOrFetch(ctx, c, StatusKey(tenantID), ttl, func() (domain.LiveStatus, error) {
			fetchCtx, cancel := fetchContext(ctx)
			defer cancel()
			return provider.GetLiveStatus(fetchCtx, tenantID)
		})
		if err != nil {
			// NOTE: TenantDataProvider implementations handle their own error reporting
			return domain.LiveStatus{}, fmt.Errorf("failed to cache.GetOrFetch tenant live status: %w", err)
		}

		return status, nil
	}
}
