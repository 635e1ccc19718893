package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Tenant ids are used as cache key segments and in datastore filters
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTenantID)
	}
	if len(tenantID) > 64 {
		return fmt.Errorf("%w: too long", ErrInvalidTenantID)
	}
	if strings.ContainsFunc(tenantID, func(r rune) bool {
		return r == ':' || r == '/' || r == ',' || unicode.IsSpace(r) || unicode.IsControl(r)
	}) {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidTenantID, tenantID)
	}
	return nil
}

type TenantSettings struct {
	TenantID        string
	Name            string
	Currency        string
	Timezone        string
	AcceptingOrders bool
	UpdatedAt       time.Time
}

type Product struct {
	ID         string
	TenantID   string
	Name       string
	Category   string
	PriceCents int64
	Available  bool
}

// LiveStatus changes often while the tenant is open and is only cached briefly
type LiveStatus struct {
	TenantID             string
	Open                 bool
	QueueLength          int
	EstimatedWaitMinutes int
	UpdatedAt            time.Time
}
