package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type windowLog struct {
	admitted []time.Time
	window   time.Duration
	lastUsed time.Time
	// Set once the log is removed from the store, holders must look it up again
	retired bool
	mutex   sync.Mutex
}

func insertSortedOrder(arr []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(arr, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(arr, i, t)
}

// Drop admissions that are a full window or more in the past
func (w *windowLog) trim(now time.Time, window time.Duration) {
	expired := 0
	for _, admittedAt := range w.admitted {
		if now.Sub(admittedAt) < window {
			break
		}
		expired++
	}
	w.admitted = w.admitted[expired:]
}

// MemoryCounterStore keeps a log of admission times per key in process memory.
//
// A log is dropped once it has not been used for idleTTL, or for its own window if that is
// longer. Idleness is measured on the times passed to Admit, never on the wall clock.
type MemoryCounterStore struct {
	logs    *ttlcache.Cache[string, *windowLog]
	idleTTL time.Duration

	lastPrune  time.Time
	pruneMutex sync.Mutex
}

func NewMemoryCounterStore(idleTTL time.Duration) *MemoryCounterStore {
	if idleTTL <= 0 {
		panic("ratelimiting: idle TTL must be positive")
	}

	return &MemoryCounterStore{
		// Logs never expire inside ttlcache, its TTL runs on the wall clock
		logs:    ttlcache.New[string, *windowLog](),
		idleTTL: idleTTL,
	}
}

func (s *MemoryCounterStore) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	decision := s.admit(key, limit, window, now)
	s.pruneIfDue(now)
	return decision, nil
}

func (s *MemoryCounterStore) admit(key string, limit int, window time.Duration, now time.Time) Decision {
	for {
		item, _ := s.logs.GetOrSet(key, &windowLog{})
		log := item.Value()

		log.mutex.Lock()
		if log.retired {
			log.mutex.Unlock()
			continue
		}
		decision := log.admit(limit, window, now)
		log.mutex.Unlock()

		return decision
	}
}

// Must be called with w.mutex held
func (w *windowLog) admit(limit int, window time.Duration, now time.Time) Decision {
	w.window = window
	if now.After(w.lastUsed) {
		w.lastUsed = now
	}

	w.trim(now, window)

	if len(w.admitted) >= limit {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   w.admitted[0].Add(window),
		}
	}

	w.admitted = insertSortedOrder(w.admitted, now)

	return Decision{
		Allowed:   true,
		Remaining: limit - len(w.admitted),
		ResetAt:   w.admitted[0].Add(window),
	}
}

// Drops idle logs, at most once per idleTTL
func (s *MemoryCounterStore) pruneIfDue(now time.Time) {
	s.pruneMutex.Lock()
	if !s.lastPrune.IsZero() && now.Sub(s.lastPrune) < s.idleTTL {
		s.pruneMutex.Unlock()
		return
	}
	s.lastPrune = now
	s.pruneMutex.Unlock()

	for _, key := range s.logs.Keys() {
		item := s.logs.Get(key)
		if item == nil {
			continue
		}

		log := item.Value()
		log.mutex.Lock()
		if !log.retired && now.Sub(log.lastUsed) >= max(s.idleTTL, log.window) {
			log.retired = true
			s.logs.Delete(key)
		}
		log.mutex.Unlock()
	}
}

func (s *MemoryCounterStore) logCount() int {
	return s.logs.Len()
}
