package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tavolo/tavolo/internal/logging"
	"golang.org/x/sync/singleflight"
)

var (
	ErrTypeMismatch  = errors.New("cached value has unexpected type")
	ErrProducerPanic = errors.New("producer panicked")
)

type flight struct {
	detached bool
}

// Cache memoizes the results of expensive producers by key and makes sure that at most one
// producer runs per key at a time. Concurrent callers for the same missing key share the
// result of that single call. Failed calls are never cached.
//
// Create one Cache at process start and pass it to everything that needs it.
type Cache struct {
	store *Store
	group singleflight.Group

	flights map[string]*flight
	mutex   sync.Mutex
}

type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

func New(store *Store) *Cache {
	return &Cache{
		store:   store,
		flights: make(map[string]*flight),
	}
}

// GetOrFetch returns the live value for key, or calls producer to create it.
//
// A non-positive ttl uses the store's default TTL. Producer errors are returned as-is to every
// caller that waited on that call. A caller whose context ends stops waiting, but the producer
// call keeps running and its result is still stored.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func() (T, error)) (T, error) {
	var empty T

	if err := ValidateKey(key); err != nil {
		return empty, err
	}

	if value, ok := c.store.Get(key); ok {
		metrics.recordLookup(ctx, "hit")
		logging.FromContext(ctx).DebugContext(ctx, "Getting cache entry", "key", key, "cache", "hit")
		return typed[T](key, value)
	}

	metrics.recordLookup(ctx, "miss")
	resultChan := c.group.DoChan(key, func() (any, error) {
		return c.fetch(ctx, key, ttl, func() (any, error) {
			data, err := producer()
			return data, err
		})
	})

	select {
	case result := <-resultChan:
		if result.Err != nil {
			return empty, result.Err
		}
		return typed[T](key, result.Val)
	case <-ctx.Done():
		return empty, ctx.Err()
	}
}

func (c *Cache) fetch(ctx context.Context, key string, ttl time.Duration, produce func() (any, error)) (any, error) {
	// A call that finished between our lookup and joining the group has already stored the value
	if value, ok := c.store.Get(key); ok {
		return value, nil
	}

	f := c.startFlight(key)

	logging.FromContext(ctx).InfoContext(ctx, "Getting cache entry", "key", key, "cache", "miss")
	metrics.recordProducerCall(ctx)

	value, err := callProducer(produce)
	if err != nil {
		metrics.recordProducerError(ctx)
		c.finishFlight(key, f, nil, 0, false)
		return nil, err
	}

	c.finishFlight(key, f, value, ttl, true)
	return value, nil
}

func (c *Cache) startFlight(key string) *flight {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	f := &flight{}
	c.flights[key] = f
	return f
}

func (c *Cache) finishFlight(key string, f *flight, value any, ttl time.Duration, store bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// The entry was invalidated while the producer was running, the result may be stale
	if store && !f.detached {
		c.store.Set(key, value, ttl)
	}

	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

// Must be called with c.mutex held
func (c *Cache) detachLocked(key string) {
	if f, ok := c.flights[key]; ok {
		f.detached = true
		delete(c.flights, key)
	}
	c.group.Forget(key)
}

// Invalidate removes the entry for key. The next GetOrFetch calls the producer again.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store.Delete(key)
	c.detachLocked(key)

	metrics.recordInvalidated(ctx, 1)
}

// InvalidatePattern removes every entry whose key starts with prefix and returns the number removed
func (c *Cache) InvalidatePattern(ctx context.Context, prefix string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := c.store.DeleteWhere(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})

	for key := range c.flights {
		if strings.HasPrefix(key, prefix) {
			c.detachLocked(key)
		}
	}

	metrics.recordInvalidated(ctx, removed)
	logging.FromContext(ctx).InfoContext(ctx, "Invalidated cache entries", "prefix", prefix, "removed", removed)

	return removed
}

func (c *Cache) Clear(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	size := c.store.Len()
	c.store.Clear()

	for key := range c.flights {
		c.detachLocked(key)
	}

	metrics.recordInvalidated(ctx, size)
}

// Stats is meant for diagnostics and tests
func (c *Cache) Stats() Stats {
	keys := c.store.Keys()
	return Stats{
		Size: len(keys),
		Keys: keys,
	}
}

func callProducer(produce func() (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()

	return produce()
}

func typed[T any](key string, value any) (T, error) {
	var empty T
	if value == nil {
		return empty, nil
	}

	data, ok := value.(T)
	if !ok {
		return empty, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, key, value)
	}

	return data, nil
}
