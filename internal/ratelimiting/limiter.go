package ratelimiting

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/logging"
	"golang.org/x/time/rate"
)

const keyNamespace = "ratelimit"

var ErrInvalidIdentifier = errors.New("invalid rate limit identifier")

type Decision struct {
	Allowed   bool
	Remaining int
	// When the oldest admission counted against the identifier leaves the window
	ResetAt time.Time
}

// CounterStore records admissions per key.
//
// Admit must check and record in one atomic step: two concurrent calls must never both be
// admitted when only one slot remains.
type CounterStore interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error)
}

type Limit int
type Window time.Duration

// SlidingWindowLimiter admits at most limit operations per identifier within any window
// ending now.
//
// If the counter store is missing or failing, every check is allowed. Availability of the
// guarded operation is preferred over strict enforcement.
type SlidingWindowLimiter struct {
	name    string
	limit   int
	window  time.Duration
	store   CounterStore
	nowFunc func() time.Time

	failOpenLog *rate.Sometimes
}

func NewSlidingWindowLimiter(name string, limit Limit, window Window, store CounterStore, nowFunc func() time.Time) *SlidingWindowLimiter {
	if name == "" || strings.Contains(name, ":") {
		panic("ratelimiting: limiter name must be a single non-empty key segment")
	}
	if limit <= 0 || window <= 0 {
		panic("ratelimiting: limit and window must be positive")
	}

	return &SlidingWindowLimiter{
		name:    name,
		limit:   int(limit),
		window:  time.Duration(window),
		store:   store,
		nowFunc: nowFunc,

		failOpenLog: &rate.Sometimes{First: 1, Interval: 1 * time.Minute},
	}
}

func (l *SlidingWindowLimiter) Name() string {
	return l.name
}

func (l *SlidingWindowLimiter) Limit() int {
	return l.limit
}

func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

// Check records an operation for identifier if it is within the quota.
//
// The only error returned is ErrInvalidIdentifier. Counter store failures are logged and
// the operation is allowed.
func (l *SlidingWindowLimiter) Check(ctx context.Context, identifier string) (Decision, error) {
	if strings.TrimSpace(identifier) == "" {
		return Decision{}, ErrInvalidIdentifier
	}

	now := l.nowFunc()

	if l.store == nil {
		metrics.recordFailOpen(ctx, l.name, "not_configured")
		l.failOpenLog.Do(func() {
			logging.FromContext(ctx).WarnContext(ctx, "No rate limit counter store configured, allowing request", "limiter", l.name)
		})
		return l.failOpen(now), nil
	}

	decision, err := l.store.Admit(ctx, cache.Key(keyNamespace, l.name, identifier), l.limit, l.window, now)
	if err != nil {
		metrics.recordFailOpen(ctx, l.name, "store_error")
		l.failOpenLog.Do(func() {
			logging.FromContext(ctx).WarnContext(ctx,
				"Rate limit counter store failed, allowing request",
				"limiter", l.name,
				"error", err.Error(),
			)
		})
		return l.failOpen(now), nil
	}

	metrics.recordDecision(ctx, l.name, decision.Allowed)

	return decision, nil
}

func (l *SlidingWindowLimiter) failOpen(now time.Time) Decision {
	return Decision{
		Allowed:   true,
		Remaining: l.limit,
		ResetAt:   now,
	}
}
