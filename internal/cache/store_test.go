package cache_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tavolo/tavolo/internal/cache"
)

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("get missing", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(time.Minute, newFakeClock().Now)

		value, ok := store.Get("settings:demo")
		require.False(t, ok)
		require.Nil(t, value)
	})

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(time.Minute, newFakeClock().Now)

		store.Set("settings:demo", "value", 0)

		value, ok := store.Get("settings:demo")
		require.True(t, ok)
		require.Equal(t, "value", value)
	})

	t.Run("expiry boundary is inclusive", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		store.Set("status:demo", 1, 10*time.Second)

		clock.advance(10*time.Second - time.Nanosecond)
		_, ok := store.Get("status:demo")
		require.True(t, ok)

		clock.advance(time.Nanosecond)
		_, ok = store.Get("status:demo")
		require.False(t, ok)
	})

	t.Run("expiry follows the injected clock only", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(50*time.Millisecond, newFakeClock().Now)

		store.Set("status:demo", 1, 0)
		require.True(t, store.SetIfAbsent("event:1", true, 0))

		time.Sleep(100 * time.Millisecond)

		value, ok := store.Get("status:demo")
		require.True(t, ok)
		require.Equal(t, 1, value)
		require.False(t, store.SetIfAbsent("event:1", true, 0))
		require.Equal(t, []string{"event:1", "status:demo"}, store.Keys())
	})

	t.Run("non-positive ttl uses the default", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		store.Set("a", 1, 0)
		store.Set("b", 2, -time.Second)

		clock.advance(59 * time.Second)
		require.Equal(t, []string{"a", "b"}, store.Keys())

		clock.advance(time.Second)
		require.Empty(t, store.Keys())
	})

	t.Run("set replaces value and resets creation time", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		store.Set("key", "old", 10*time.Second)
		clock.advance(8 * time.Second)
		store.Set("key", "new", 10*time.Second)
		clock.advance(8 * time.Second)

		value, ok := store.Get("key")
		require.True(t, ok)
		require.Equal(t, "new", value)
	})

	t.Run("last writer wins on ttl", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		store.Set("key", "long", time.Hour)
		store.Set("key", "short", time.Second)
		clock.advance(time.Second)

		_, ok := store.Get("key")
		require.False(t, ok)
	})

	t.Run("set if absent", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		require.True(t, store.SetIfAbsent("evt-1", "first", time.Minute))
		require.False(t, store.SetIfAbsent("evt-1", "second", time.Minute))

		value, ok := store.Get("evt-1")
		require.True(t, ok)
		require.Equal(t, "first", value)

		clock.advance(time.Minute)
		require.True(t, store.SetIfAbsent("evt-1", "third", time.Minute))
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(time.Minute, newFakeClock().Now)

		store.Set("key", 1, 0)
		store.Delete("key")
		store.Delete("missing")

		_, ok := store.Get("key")
		require.False(t, ok)
	})

	t.Run("delete where", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(time.Minute, newFakeClock().Now)

		store.Set("tenant:demo:settings", 1, 0)
		store.Set("tenant:demo:products", 2, 0)
		store.Set("tenant:other:settings", 3, 0)

		removed := store.DeleteWhere(func(key string) bool {
			return strings.HasPrefix(key, "tenant:demo")
		})
		require.Equal(t, 2, removed)
		require.Equal(t, []string{"tenant:other:settings"}, store.Keys())
	})

	t.Run("delete where does not count expired entries", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		store.Set("a:expired", 1, time.Second)
		store.Set("a:live", 2, time.Hour)
		store.Set("b:expired", 3, time.Second)
		clock.advance(time.Second)

		removed := store.DeleteWhere(func(key string) bool {
			return strings.HasPrefix(key, "a:")
		})
		require.Equal(t, 1, removed)
		require.Empty(t, store.Keys())
		require.Equal(t, 0, store.Sweep())
	})

	t.Run("clear", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(time.Minute, newFakeClock().Now)

		store.Set("a", 1, 0)
		store.Set("b", 2, 0)
		store.Clear()

		require.Equal(t, 0, store.Len())
	})

	t.Run("keys are sorted and exclude expired entries", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		store.Set("c", 1, time.Hour)
		store.Set("a", 1, time.Hour)
		store.Set("b", 1, time.Second)
		clock.advance(time.Second)

		require.Equal(t, []string{"a", "c"}, store.Keys())
		require.Equal(t, 2, store.Len())
	})

	t.Run("sweep", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now)

		store.Set("short1", 1, time.Second)
		store.Set("short2", 1, time.Second)
		store.Set("long", 1, time.Hour)
		clock.advance(time.Second)

		require.Equal(t, 2, store.Sweep())
		require.Equal(t, 0, store.Sweep())
		require.Equal(t, []string{"long"}, store.Keys())
	})

	t.Run("set runs an opportunistic sweep", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := cache.NewStore(time.Minute, clock.Now, cache.WithSweepInterval(10*time.Second))

		store.Set("short", 1, time.Second)
		clock.advance(10 * time.Second)
		store.Set("other", 1, time.Hour)

		// The expired entry is already gone, so an explicit sweep finds nothing
		require.Equal(t, 0, store.Sweep())
	})

	t.Run("capacity", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(time.Minute, newFakeClock().Now, cache.WithCapacity(2))

		store.Set("a", 1, 0)
		store.Set("b", 2, 0)
		store.Set("c", 3, 0)

		require.Equal(t, 2, store.Len())
		_, ok := store.Get("c")
		require.True(t, ok)
	})

	t.Run("concurrent access", func(t *testing.T) {
		t.Parallel()
		store := cache.NewStore(time.Minute, time.Now)

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Go(func() {
				key := fmt.Sprintf("key%d", i%5)
				store.Set(key, i, 0)
				store.Get(key)
				store.SetIfAbsent(fmt.Sprintf("unique%d", i), i, 0)
				store.Keys()
			})
		}
		wg.Wait()

		require.Equal(t, 55, store.Len())
	})
}
