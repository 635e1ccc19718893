package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/domain"
	"github.com/tavolo/tavolo/internal/idempotency"
	"github.com/tavolo/tavolo/internal/logging"
)

// InvalidateTenant drops every cached entry of the tenant and returns how many were removed
type InvalidateTenant func(ctx context.Context, tenantID string) (int, error)

func BuildInvalidateTenant(c *cache.Cache) InvalidateTenant {
	return func(ctx context.Context, tenantID string) (int, error) {
		if err := domain.ValidateTenantID(tenantID); err != nil {
			return 0, err
		}
		return c.InvalidatePattern(ctx, tenantKeyPrefix(tenantID)), nil
	}
}

func invalidateForEvent(ctx context.Context, c *cache.Cache, event domain.DataChangeEvent) {
	switch event.Type {
	case domain.EventSettingsUpdated:
		c.Invalidate(ctx, SettingsKey(event.TenantID))
	case domain.EventProductsUpdated:
		c.InvalidatePattern(ctx, productsKeyPrefix(event.TenantID))
	case domain.EventStatusUpdated:
		c.Invalidate(ctx, StatusKey(event.TenantID))
	case domain.EventTenantUpdated:
		c.InvalidatePattern(ctx, tenantKeyPrefix(event.TenantID))
	default:
		panic(fmt.Sprintf("logic error: unhandled event type %q", event.Type))
	}
}

// HandleDataChange applies a data change event once, reporting false for repeated deliveries
type HandleDataChange func(ctx context.Context, event domain.DataChangeEvent) (bool, error)

// BuildHandleDataChange invalidates the cache entries affected by each event.
//
// Settings are fetched again right away, so the next reader does not wait for the datastore.
// If that fails the event is released, and a redelivery is handled in full.
func BuildHandleDataChange(c *cache.Cache, guard *idempotency.Guard, getTenantSettings GetTenantSettings) HandleDataChange {
	return func(ctx context.Context, event domain.DataChangeEvent) (bool, error) {
		if err := event.Validate(); err != nil {
			return false, err
		}

		isNew, err := guard.MarkIfNew(ctx, event.ID)
		if err != nil {
			return false, fmt.Errorf("failed to mark event: %w", err)
		}
		if !isNew {
			return false, nil
		}

		invalidateForEvent(ctx, c, event)
		logging.FromContext(ctx).InfoContext(ctx, "Applied data change", "eventID", event.ID, "eventType", string(event.Type), "tenantID", event.TenantID)

		if event.Type != domain.EventSettingsUpdated && event.Type != domain.EventTenantUpdated {
			return true, nil
		}

		_, err = getTenantSettings(ctx, event.TenantID)
		if errors.Is(err, domain.ErrTenantNotFound) {
			// The tenant was removed, there is nothing to refresh
			return true, nil
		}
		if err != nil {
			guard.Release(ctx, event.ID)
			return false, fmt.Errorf("failed to refresh tenant settings: %w", err)
		}

		return true, nil
	}
}
