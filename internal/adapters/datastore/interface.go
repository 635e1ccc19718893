package datastore

import (
	"context"

	"github.com/tavolo/tavolo/internal/domain"
)

type TenantDataProvider interface {
	// Raises domain.ErrTenantNotFound if there are no settings for the given tenant
	//
	// Raises domain.ErrTemporarilyUnavailable if the datastore returns an error believed to be intermittent. The call may be retried later.
	GetSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error)

	// Products are ordered by name. A tenant without products returns an empty list.
	ListProducts(ctx context.Context, tenantID string, onlyAvailable bool) ([]domain.Product, error)

	// Raises domain.ErrTenantNotFound if there is no live status for the given tenant
	GetLiveStatus(ctx context.Context, tenantID string) (domain.LiveStatus, error)
}
