package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/restcache/restcache/logger"
	"github.com/restcache/restcache/types"
)

func testLogger() types.Logger {
	return logger.NewZapWrapper(zap.NewNop())
}

func newTestMemoryBackend(t *testing.T, config map[string]interface{}) types.CacheBackend {
	t.Helper()

	backend, err := NewMemoryBackend(&types.CacheConfig{
		Enabled: true,
		Type:    TypeMemory,
		Config:  config,
	}, testLogger())
	require.NoError(t, err)

	return backend
}

func TestMemoryGetSetDelete(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	require.NoError(t, backend.Set("user:1", "alice", time.Minute))

	value, ok := backend.Get("user:1")
	require.True(t, ok)
	assert.Equal(t, "alice", value)

	assert.True(t, backend.Delete("user:1"))
	assert.False(t, backend.Delete("user:1"))

	_, ok = backend.Get("user:1")
	assert.False(t, ok)
}

func TestMemorySetEmptyKey(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	err := backend.Set("", "v", time.Minute)
	assert.ErrorIs(t, err, types.ErrCacheKeyEmpty)
}

func TestMemoryExpiredEntryIsAMiss(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	require.NoError(t, backend.Set("short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := backend.Get("short")
	assert.False(t, ok)

	stats := backend.Stats()
	assert.Equal(t, 0, stats.ItemCount)
	assert.Equal(t, uint64(1), stats.MissCount)
}

func TestMemoryCounters(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	require.NoError(t, backend.Set("a", 1, time.Minute))
	backend.Get("a")
	backend.Get("a")
	backend.Get("absent")

	stats := backend.Stats()
	assert.Equal(t, uint64(2), stats.HitCount)
	assert.Equal(t, uint64(1), stats.MissCount)
	assert.Equal(t, uint64(1), stats.SetCount)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestMemoryEvictsDownToTarget(t *testing.T) {
	backend := newTestMemoryBackend(t, map[string]interface{}{
		"max_items":       5,
		"eviction_policy": "lru",
	})

	for _, key := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, backend.Set(key, key, time.Minute))
		time.Sleep(time.Millisecond)
	}

	stats := backend.Stats()
	assert.Equal(t, 4, stats.ItemCount) // 80% of max_items
	assert.Equal(t, uint64(2), stats.EvictionCount)

	// The oldest entries go first under LRU.
	_, ok := backend.Get("a")
	assert.False(t, ok)
	_, ok = backend.Get("f")
	assert.True(t, ok)
}

func TestMemoryTTLEvictionSparesIndexEntries(t *testing.T) {
	backend := newTestMemoryBackend(t, map[string]interface{}{
		"max_items":       2,
		"eviction_policy": "ttl",
	})

	// Invalidation index records live forever; expiring responses must go
	// first.
	require.NoError(t, backend.Set("tag:users", []string{"k1"}, types.NoExpiration))
	require.NoError(t, backend.Set("k1", "v1", time.Minute))
	require.NoError(t, backend.Set("k2", "v2", time.Minute))

	_, ok := backend.Get("tag:users")
	assert.True(t, ok)
}

func TestMemoryClearKeepsCumulativeCounters(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	require.NoError(t, backend.Set("a", 1, time.Minute))
	backend.Get("a")

	require.NoError(t, backend.Clear())

	stats := backend.Stats()
	assert.Equal(t, 0, stats.ItemCount)
	assert.Equal(t, int64(0), stats.TotalSizeBytes)
	assert.Equal(t, uint64(1), stats.HitCount)
	assert.Equal(t, uint64(1), stats.SetCount)
}

func TestMemoryStatsTopKeys(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	require.NoError(t, backend.Set("tiny", "x", time.Minute))
	require.NoError(t, backend.Set("large", string(make([]byte, 4096)), time.Minute))

	backend.Get("tiny")
	backend.Get("tiny")
	backend.Get("large")

	stats := backend.Stats()
	require.NotEmpty(t, stats.LargestKeys)
	require.NotEmpty(t, stats.PopularKeys)
	assert.Equal(t, "large", stats.LargestKeys[0].Key)
	assert.Equal(t, "tiny", stats.PopularKeys[0].Key)
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	require.NoError(t, backend.Set("dead", "v", time.Millisecond))
	require.NoError(t, backend.Set("alive", "v", time.Minute))
	time.Sleep(5 * time.Millisecond)

	sweeper, ok := backend.(types.Sweeper)
	require.True(t, ok)
	assert.Equal(t, 1, sweeper.Sweep())

	_, ok = backend.Get("alive")
	assert.True(t, ok)
}

func TestMemoryLifecycle(t *testing.T) {
	backend := newTestMemoryBackend(t, nil)

	require.NoError(t, backend.Start())
	assert.True(t, backend.IsRunning())
	assert.ErrorIs(t, backend.Start(), types.ErrServerAlreadyRunning)

	require.NoError(t, backend.Stop())
	assert.False(t, backend.IsRunning())
	assert.ErrorIs(t, backend.Stop(), types.ErrServerNotRunning)
}

func TestMemoryRejectsUnknownPolicy(t *testing.T) {
	_, err := NewMemoryBackend(&types.CacheConfig{
		Enabled: true,
		Type:    TypeMemory,
		Config:  map[string]interface{}{"eviction_policy": "nope"},
	}, testLogger())
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrEvictionPolicyUnknown))
}
