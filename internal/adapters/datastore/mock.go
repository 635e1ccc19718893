package datastore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tavolo/tavolo/internal/config"
	"github.com/tavolo/tavolo/internal/domain"
)

// mockedTenantDataProvider serves generated data for any tenant id, for local development
type mockedTenantDataProvider struct {
	nowFunc func() time.Time
}

func (m *mockedTenantDataProvider) GetSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	if strings.HasPrefix(tenantID, "missing") {
		return domain.TenantSettings{}, domain.ErrTenantNotFound
	}
	return domain.TenantSettings{
		TenantID:        tenantID,
		Name:            fmt.Sprintf("Trattoria %s", tenantID),
		Currency:        "EUR",
		Timezone:        "Europe/Rome",
		AcceptingOrders: true,
		UpdatedAt:       m.nowFunc(),
	}, nil
}

func (m *mockedTenantDataProvider) ListProducts(ctx context.Context, tenantID string, onlyAvailable bool) ([]domain.Product, error) {
	products := []domain.Product{
		{ID: tenantID + "-1", TenantID: tenantID, Name: "Lasagna", Category: "mains", PriceCents: 1450, Available: true},
		{ID: tenantID + "-2", TenantID: tenantID, Name: "Margherita", Category: "pizza", PriceCents: 1100, Available: true},
		{ID: tenantID + "-3", TenantID: tenantID, Name: "Tiramisu", Category: "desserts", PriceCents: 650, Available: false},
	}
	if onlyAvailable {
		products = slices.DeleteFunc(products, func(p domain.Product) bool {
			return !p.Available
		})
	}
	return products, nil
}

func (m *mockedTenantDataProvider) GetLiveStatus(ctx context.Context, tenantID string) (domain.LiveStatus, error) {
	if strings.HasPrefix(tenantID, "missing") {
		return domain.LiveStatus{}, domain.ErrTenantNotFound
	}
	now := m.nowFunc()
	queueLength := now.Second() % 7
	return domain.LiveStatus{
		TenantID:             tenantID,
		Open:                 true,
		QueueLength:          queueLength,
		EstimatedWaitMinutes: 4 * queueLength,
		UpdatedAt:            now,
	}, nil
}

func NewRESTOrMock(config config.Config, httpClient HttpClient, nowFunc func() time.Time) (TenantDataProvider, error) {
	if config.DatastoreURL() != "" {
		return NewREST(httpClient, config.DatastoreURL(), config.DatastoreAPIKey())
	}
	if config.IsDevelopment() {
		return &mockedTenantDataProvider{nowFunc: nowFunc}, nil
	}
	return nil, fmt.Errorf("missing datastore url in non-development environment")
}
