package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restcache/restcache/types"
)

func evictionItem(key string, idle time.Duration, count uint64, size int64, expiresIn time.Duration) *types.CacheItem {
	now := time.Now()
	return &types.CacheItem{
		Key:            key,
		CreatedAt:      now.Add(-time.Hour),
		ExpiresAt:      now.Add(expiresIn),
		LastAccessedAt: now.Add(-idle),
		AccessCount:    count,
		SizeBytes:      size,
	}
}

func victimKeys(victims []*types.CacheItem) []string {
	keys := make([]string, 0, len(victims))
	for _, item := range victims {
		keys = append(keys, item.Key)
	}
	return keys
}

func TestNewEvictionPolicy(t *testing.T) {
	policy, err := NewEvictionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLRU, policy.Name())

	for _, name := range []string{PolicyLRU, PolicyLFU, PolicyTTL, PolicySize, PolicyHybrid} {
		policy, err := NewEvictionPolicy(name)
		require.NoError(t, err)
		assert.Equal(t, name, policy.Name())
	}

	_, err = NewEvictionPolicy("random")
	require.Error(t, err)
	assert.True(t, types.IsError(err, types.ErrEvictionPolicyUnknown))
}

func TestLRUSelectsOldestAccess(t *testing.T) {
	items := []*types.CacheItem{
		evictionItem("fresh", time.Minute, 0, 1, time.Hour),
		evictionItem("stale", time.Hour, 0, 1, time.Hour),
		evictionItem("middle", 30*time.Minute, 0, 1, time.Hour),
	}

	victims := (&LRUPolicy{}).SelectForEviction(items, 2)
	assert.Equal(t, []string{"stale"}, victimKeys(victims))
}

func TestLFUSelectsLeastUsed(t *testing.T) {
	items := []*types.CacheItem{
		evictionItem("hot", time.Minute, 50, 1, time.Hour),
		evictionItem("cold", time.Minute, 1, 1, time.Hour),
		evictionItem("warm", time.Minute, 10, 1, time.Hour),
	}

	victims := (&LFUPolicy{}).SelectForEviction(items, 1)
	assert.Equal(t, []string{"cold", "warm"}, victimKeys(victims))
}

func TestTTLSelectsSoonestExpiry(t *testing.T) {
	items := []*types.CacheItem{
		evictionItem("later", time.Minute, 0, 1, 2*time.Hour),
		evictionItem("soon", time.Minute, 0, 1, time.Minute),
	}

	victims := (&TTLPolicy{}).SelectForEviction(items, 1)
	assert.Equal(t, []string{"soon"}, victimKeys(victims))
}

func TestTTLTreatsNeverExpiringAsFarthest(t *testing.T) {
	index := evictionItem("tag:users", time.Minute, 0, 1, 0)
	index.ExpiresAt = time.Time{}

	items := []*types.CacheItem{
		index,
		evictionItem("soon", time.Minute, 0, 1, time.Minute),
		evictionItem("later", time.Minute, 0, 1, time.Hour),
	}

	victims := (&TTLPolicy{}).SelectForEviction(items, 1)
	assert.Equal(t, []string{"soon", "later"}, victimKeys(victims))
}

func TestSizeSelectsLargestFirst(t *testing.T) {
	items := []*types.CacheItem{
		evictionItem("small", time.Minute, 0, 10, time.Hour),
		evictionItem("huge", time.Minute, 0, 10000, time.Hour),
		evictionItem("big", time.Minute, 0, 1000, time.Hour),
	}

	victims := (&SizePolicy{}).SelectForEviction(items, 1)
	assert.Equal(t, []string{"huge", "big"}, victimKeys(victims))
}

func TestHybridEvictsColdLargeEntriesFirst(t *testing.T) {
	// Maximal score on every factor: far expiry, long idle, never
	// accessed, at the size window.
	doomed := evictionItem("doomed", 2*time.Hour, 0, 1<<20, 2*time.Hour)
	// Minimal score: imminent expiry, just accessed, hot, tiny.
	kept := evictionItem("kept", 0, 1000, 1, time.Second)

	victims := NewHybridPolicy(DefaultHybridWeights()).
		SelectForEviction([]*types.CacheItem{kept, doomed}, 1)
	assert.Equal(t, []string{"doomed"}, victimKeys(victims))
}

func TestHybridScoresNeverExpiringAsFarthest(t *testing.T) {
	policy := NewHybridPolicy(DefaultHybridWeights())
	now := time.Now()

	expiring := evictionItem("expiring", time.Minute, 0, 1, 30*time.Minute)
	never := evictionItem("never", time.Minute, 0, 1, 0)
	never.ExpiresAt = time.Time{}

	assert.Greater(t, policy.score(never, now), policy.score(expiring, now))
}

func TestSelectForEvictionBounds(t *testing.T) {
	items := []*types.CacheItem{
		evictionItem("a", time.Minute, 0, 1, time.Hour),
		evictionItem("b", time.Hour, 0, 1, time.Hour),
	}
	policy := &LRUPolicy{}

	assert.Empty(t, policy.SelectForEviction(nil, 5))
	assert.Empty(t, policy.SelectForEviction(items, 2))
	assert.Empty(t, policy.SelectForEviction(items, 10))
	assert.Len(t, policy.SelectForEviction(items, 0), 2)
	assert.Len(t, policy.SelectForEviction(items, -3), 2)
}
