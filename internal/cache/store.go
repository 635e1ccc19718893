package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const defaultSweepInterval = 1 * time.Minute

type storeEntry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

// Expired entries are never returned, the boundary itself counts as expired
func (e storeEntry) expiredAt(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Store is a concurrency safe map from string keys to values with a per entry expiry.
//
// Expiry is evaluated against nowFunc, so tests can move time freely. Expired entries are
// reclaimed lazily when looked up, and by an opportunistic sweep that runs from the mutating
// operations at most once per sweep interval.
type Store struct {
	items      *ttlcache.Cache[string, storeEntry]
	defaultTTL time.Duration
	nowFunc    func() time.Time

	sweepInterval time.Duration
	lastSweep     time.Time

	mutex sync.Mutex
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	capacity      uint64
	sweepInterval time.Duration
}

// Bound the number of entries. When full, the least recently used entry is evicted.
func WithCapacity(capacity uint64) StoreOption {
	return func(o *storeOptions) {
		o.capacity = capacity
	}
}

// Run the opportunistic sweep at most once per interval. Zero sweeps on every mutation.
func WithSweepInterval(interval time.Duration) StoreOption {
	return func(o *storeOptions) {
		if interval >= 0 {
			o.sweepInterval = interval
		}
	}
}

func NewStore(defaultTTL time.Duration, nowFunc func() time.Time, opts ...StoreOption) *Store {
	if defaultTTL <= 0 {
		panic("cache: default TTL must be positive")
	}

	options := storeOptions{
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(&options)
	}

	// Items never expire inside ttlcache, its TTL runs on the wall clock.
	// Expiry is decided by storeEntry.expiredAt on nowFunc alone.
	ttlOptions := []ttlcache.Option[string, storeEntry]{
		ttlcache.WithDisableTouchOnHit[string, storeEntry](),
	}
	if options.capacity > 0 {
		ttlOptions = append(ttlOptions, ttlcache.WithCapacity[string, storeEntry](options.capacity))
	}

	return &Store{
		items:         ttlcache.New[string, storeEntry](ttlOptions...),
		defaultTTL:    defaultTTL,
		nowFunc:       nowFunc,
		sweepInterval: options.sweepInterval,
		lastSweep:     nowFunc(),
	}
}

func (s *Store) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Get returns the value stored for key, if there is one that has not expired
func (s *Store) Get(key string) (any, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.getLocked(key, s.nowFunc())
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// Set inserts or replaces the entry for key. A non-positive ttl uses the default TTL.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.nowFunc()
	s.setLocked(key, value, ttl, now)
	s.sweepIfDueLocked(now)
}

// SetIfAbsent inserts the entry only if there is no live entry for key.
// Reports whether the value was inserted.
func (s *Store) SetIfAbsent(key string, value any, ttl time.Duration) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.nowFunc()
	s.sweepIfDueLocked(now)

	if _, ok := s.getLocked(key, now); ok {
		return false
	}

	s.setLocked(key, value, ttl, now)
	return true
}

func (s *Store) Delete(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items.Delete(key)
}

// DeleteWhere removes every entry whose key matches and returns how many were removed.
// Entries that had already expired are reclaimed too, but not counted.
func (s *Store) DeleteWhere(match func(key string) bool) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.nowFunc()
	removed := 0
	for _, key := range s.items.Keys() {
		item := s.items.Get(key)
		if item == nil {
			continue
		}

		expired := item.Value().expiredAt(now)
		if match(key) {
			s.items.Delete(key)
			if !expired {
				removed++
			}
		} else if expired {
			s.items.Delete(key)
		}
	}
	s.lastSweep = now

	return removed
}

func (s *Store) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items.DeleteAll()
}

// Sweep removes all expired entries and returns how many were removed
func (s *Store) Sweep() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.sweepLocked(s.nowFunc())
}

// Keys returns the live keys in sorted order
func (s *Store) Keys() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.nowFunc()
	keys := make([]string, 0, s.items.Len())
	for _, key := range s.items.Keys() {
		if _, ok := s.getLocked(key, now); ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	return keys
}

func (s *Store) Len() int {
	return len(s.Keys())
}

func (s *Store) getLocked(key string, now time.Time) (storeEntry, bool) {
	item := s.items.Get(key)
	if item == nil {
		return storeEntry{}, false
	}

	entry := item.Value()
	if entry.expiredAt(now) {
		s.items.Delete(key)
		return storeEntry{}, false
	}

	return entry, true
}

func (s *Store) setLocked(key string, value any, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.items.Set(key, storeEntry{value: value, createdAt: now, ttl: ttl}, ttlcache.NoTTL)
}

func (s *Store) sweepIfDueLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.sweepLocked(now)
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for _, key := range s.items.Keys() {
		item := s.items.Get(key)
		if item == nil {
			continue
		}
		if item.Value().expiredAt(now) {
			s.items.Delete(key)
			removed++
		}
	}
	s.lastSweep = now

	return removed
}
