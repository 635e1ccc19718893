package domain

import "errors"

var (
	ErrTenantNotFound         = errors.New("tenant not found")
	ErrInvalidTenantID        = errors.New("invalid tenant id")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrUnknownEventType       = errors.New("unknown event type")
	ErrInvalidEvent           = errors.New("invalid event")
)
