package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheItemEstimatesSize(t *testing.T) {
	item := NewCacheItem("greeting", "abc", time.Minute)

	require.Equal(t, "greeting", item.Key)
	assert.Equal(t, int64(5), item.SizeBytes) // "abc" serialized with quotes
	assert.False(t, item.IsExpired())
	assert.Equal(t, uint64(0), item.AccessCount)
}

func TestNewCacheItemUnserializableValueHasZeroSize(t *testing.T) {
	item := NewCacheItem("fn", func() {}, time.Minute)

	assert.Equal(t, int64(0), item.SizeBytes)
}

func TestZeroTTLExpiresImmediately(t *testing.T) {
	item := NewCacheItem("k", "v", 0)

	time.Sleep(time.Millisecond)
	assert.True(t, item.IsExpired())
	assert.Equal(t, time.Duration(0), item.RemainingTTL())
}

func TestNoExpirationNeverExpires(t *testing.T) {
	item := NewCacheItem("k", "v", NoExpiration)

	assert.True(t, item.ExpiresAt.IsZero())
	assert.False(t, item.IsExpired())
	assert.Equal(t, NoExpiration, item.RemainingTTL())
}

func TestAccessBumpsCountAndRecency(t *testing.T) {
	item := NewCacheItem("k", "v", time.Minute)
	before := item.LastAccessedAt

	time.Sleep(time.Millisecond)
	item.Access()
	item.Access()

	assert.Equal(t, uint64(2), item.AccessCount)
	assert.True(t, item.LastAccessedAt.After(before))
}

func TestRemainingTTLIsBounded(t *testing.T) {
	item := NewCacheItem("k", "v", time.Minute)

	remaining := item.RemainingTTL()
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, time.Minute)
}

func TestMetadataSnapshot(t *testing.T) {
	item := NewCacheItem("k", "v", time.Minute)
	item.Access()

	meta := item.Metadata()
	assert.Equal(t, "k", meta.Key)
	assert.Equal(t, uint64(1), meta.AccessCount)
	assert.Equal(t, item.SizeBytes, meta.SizeBytes)
}

func TestHitRate(t *testing.T) {
	assert.Equal(t, float64(0), HitRate(0, 0))
	assert.Equal(t, 0.75, HitRate(3, 1))
	assert.Equal(t, float64(1), HitRate(5, 0))
}
