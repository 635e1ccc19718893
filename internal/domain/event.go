package domain

import (
	"fmt"
	"strings"
)

type EventType string

const (
	EventSettingsUpdated EventType = "settings.updated"
	EventProductsUpdated EventType = "products.updated"
	EventStatusUpdated   EventType = "status.updated"
	// The tenant changed in a way that may affect all of its data
	EventTenantUpdated EventType = "tenant.updated"
)

// DataChangeEvent is sent by the datastore when tenant data changes.
// Deliveries are at least once, so the same ID may arrive several times.
type DataChangeEvent struct {
	ID       string
	Type     EventType
	TenantID string
}

func (e DataChangeEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if err := ValidateTenantID(e.TenantID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	switch e.Type {
	case EventSettingsUpdated, EventProductsUpdated, EventStatusUpdated, EventTenantUpdated:
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
}
