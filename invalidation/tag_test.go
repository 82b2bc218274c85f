package invalidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/restcache/restcache/cache"
	"github.com/restcache/restcache/logger"
	"github.com/restcache/restcache/types"
)

func testLogger() types.Logger {
	return logger.NewZapWrapper(zap.NewNop())
}

func newTestBackend(t *testing.T) types.CacheBackend {
	t.Helper()

	backend, err := cache.NewMemoryBackend(&types.CacheConfig{Enabled: true, Type: "memory"}, testLogger())
	require.NoError(t, err)

	return backend
}

func TestTagInvalidation(t *testing.T) {
	backend := newTestBackend(t)
	strategy := NewTagStrategy(backend, testLogger())

	require.NoError(t, backend.Set("user:1", "alice", time.Minute))
	require.NoError(t, backend.Set("user:2", "bob", time.Minute))
	require.NoError(t, backend.Set("post:1", "hello", time.Minute))

	require.NoError(t, strategy.Tag("user:1", []string{"users"}))
	require.NoError(t, strategy.Tag("user:2", []string{"users"}))

	assert.ElementsMatch(t, []string{"user:1", "user:2"}, strategy.KeysForTag("users"))

	require.NoError(t, strategy.InvalidateTag("users"))

	_, ok := backend.Get("user:1")
	assert.False(t, ok)
	_, ok = backend.Get("user:2")
	assert.False(t, ok)
	_, ok = backend.Get("post:1")
	assert.True(t, ok)

	assert.Empty(t, strategy.KeysForTag("users"))
}

func TestTagIsIdempotent(t *testing.T) {
	backend := newTestBackend(t)
	strategy := NewTagStrategy(backend, testLogger())

	require.NoError(t, strategy.Tag("user:1", []string{"users", "users"}))
	require.NoError(t, strategy.Tag("user:1", []string{"users"}))

	assert.Equal(t, []string{"user:1"}, strategy.KeysForTag("users"))
}

func TestInvalidateTagIsIdempotent(t *testing.T) {
	backend := newTestBackend(t)
	strategy := NewTagStrategy(backend, testLogger())

	require.NoError(t, strategy.InvalidateTag("ghost"))
	require.NoError(t, strategy.InvalidateTag("ghost"))
}

func TestInvalidateTagsSequential(t *testing.T) {
	backend := newTestBackend(t)
	strategy := NewTagStrategy(backend, testLogger())

	require.NoError(t, backend.Set("a", 1, time.Minute))
	require.NoError(t, backend.Set("b", 2, time.Minute))
	require.NoError(t, strategy.Tag("a", []string{"x"}))
	require.NoError(t, strategy.Tag("b", []string{"y"}))

	require.NoError(t, strategy.InvalidateTags([]string{"x", "y"}))

	_, ok := backend.Get("a")
	assert.False(t, ok)
	_, ok = backend.Get("b")
	assert.False(t, ok)
}

func TestTagEmptyKeyRejected(t *testing.T) {
	strategy := NewTagStrategy(newTestBackend(t), testLogger())

	assert.ErrorIs(t, strategy.Tag("", []string{"x"}), types.ErrCacheKeyEmpty)
}

func TestTagStrategyCapabilities(t *testing.T) {
	backend := newTestBackend(t)
	strategy := NewTagStrategy(backend, testLogger())

	require.NoError(t, backend.Set("user:1", "alice", time.Minute))
	require.NoError(t, strategy.Bind("user:1", []string{"users"}))
	require.NoError(t, strategy.Invalidate("users"))

	_, ok := backend.Get("user:1")
	assert.False(t, ok)
	assert.Equal(t, "X-Cache-Tags", strategy.MetadataHeader())
}

func TestNewStrategyFactory(t *testing.T) {
	backend := newTestBackend(t)

	strategy, err := NewStrategy(nil, backend, testLogger())
	require.NoError(t, err)
	assert.Nil(t, strategy)

	strategy, err = NewStrategy(&types.InvalidationConfig{Enabled: true, Strategy: StrategyTags}, backend, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &TagStrategy{}, strategy)

	strategy, err = NewStrategy(&types.InvalidationConfig{Enabled: true, Strategy: StrategyDependencies}, backend, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &DependencyStrategy{}, strategy)

	_, err = NewStrategy(&types.InvalidationConfig{Enabled: true, Strategy: "magic"}, backend, testLogger())
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrInvalidationStrategyUnknown))
}
