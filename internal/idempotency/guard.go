package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/logging"
)

var ErrInvalidEventID = errors.New("invalid event id")

type seenEvent struct {
	firstSeenAt time.Time
}

// Guard remembers event ids for a retention period so repeated deliveries are handled once
type Guard struct {
	seen    *cache.Store
	nowFunc func() time.Time
}

func NewGuard(retention time.Duration, nowFunc func() time.Time) *Guard {
	return &Guard{
		seen:    cache.NewStore(retention, nowFunc),
		nowFunc: nowFunc,
	}
}

// MarkIfNew reports whether eventID has not been seen within the retention period, and marks it seen.
//
// Of any number of concurrent calls with the same id, exactly one returns true.
func (g *Guard) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return false, ErrInvalidEventID
	}

	isNew := g.seen.SetIfAbsent(eventID, seenEvent{firstSeenAt: g.nowFunc()}, 0)
	metrics.recordEvent(ctx, !isNew)

	if !isNew {
		logging.FromContext(ctx).InfoContext(ctx, "Discarding duplicate event", "eventID", eventID)
	}

	return isNew, nil
}

// Release forgets eventID so the next delivery is handled again.
// Use this when handling a newly marked event failed.
func (g *Guard) Release(ctx context.Context, eventID string) {
	g.seen.Delete(eventID)
	logging.FromContext(ctx).InfoContext(ctx, "Released event for redelivery", "eventID", eventID)
}

// Len is the number of event ids currently retained
func (g *Guard) Len() int {
	return g.seen.Len()
}
