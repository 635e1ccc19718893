package domaintest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tavolo/tavolo/internal/domain"
)

func NewTenantID(t *testing.T) string {
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	return id.String()
}

func NewTenantSettings(tenantID string, updatedAt time.Time) domain.TenantSettings {
	return domain.TenantSettings{
		TenantID:        tenantID,
		Name:            "Trattoria " + tenantID,
		Currency:        "EUR",
		Timezone:        "Europe/Rome",
		AcceptingOrders: true,
		UpdatedAt:       updatedAt,
	}
}

type productsBuilder struct {
	tenantID string
	products []domain.Product
}

func (pb *productsBuilder) WithProduct(name string, priceCents int64, available bool) *productsBuilder {
	pb.products = append(pb.products, domain.Product{
		ID:         fmt.Sprintf("%s-%d", pb.tenantID, len(pb.products)+1),
		TenantID:   pb.tenantID,
		Name:       name,
		Category:   "mains",
		PriceCents: priceCents,
		Available:  available,
	})
	return pb
}

func (pb *productsBuilder) Build() []domain.Product {
	// Make a copy, so further mutations to the builder don't affect the returned products
	return append([]domain.Product(nil), pb.products...)
}

func NewProductsBuilder(tenantID string) *productsBuilder {
	return &productsBuilder{tenantID: tenantID}
}

func NewLiveStatus(tenantID string, queueLength int, updatedAt time.Time) domain.LiveStatus {
	return domain.LiveStatus{
		TenantID:             tenantID,
		Open:                 true,
		QueueLength:          queueLength,
		EstimatedWaitMinutes: 5 * queueLength,
		UpdatedAt:            updatedAt,
	}
}
