package types

import (
	"time"

	"github.com/bytedance/sonic"
)

// NoExpiration marks an entry that never expires. A zero TTL produces an
// entry that is already expired on its next read.
const NoExpiration = time.Duration(-1)

// CacheItem is the stored unit of the cache: a value plus the metadata the
// eviction policies and stats reporting work from.
type CacheItem struct {
	Key            string      `json:"key"`
	Value          interface{} `json:"value"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
	LastAccessedAt time.Time   `json:"last_accessed_at"`
	AccessCount    uint64      `json:"access_count"`
	SizeBytes      int64       `json:"size_bytes"`
}

// NewCacheItem never fails: an unserializable value simply reports size 0.
func NewCacheItem(key string, value interface{}, ttl time.Duration) *CacheItem {
	now := time.Now()

	item := &CacheItem{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	if ttl >= 0 {
		item.ExpiresAt = now.Add(ttl)
	}

	if data, err := sonic.ConfigDefault.Marshal(value); err == nil {
		item.SizeBytes = int64(len(data))
	}

	return item
}

func (ci *CacheItem) Access() {
	ci.LastAccessedAt = time.Now()
	ci.AccessCount++
}

func (ci *CacheItem) IsExpired() bool {
	return !ci.ExpiresAt.IsZero() && time.Now().After(ci.ExpiresAt)
}

func (ci *CacheItem) AgeSeconds() float64 {
	return time.Since(ci.CreatedAt).Seconds()
}

func (ci *CacheItem) IdleSeconds() float64 {
	return time.Since(ci.LastAccessedAt).Seconds()
}

func (ci *CacheItem) RemainingTTL() time.Duration {
	if ci.ExpiresAt.IsZero() {
		return NoExpiration
	}
	remaining := time.Until(ci.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Metadata returns a read-only snapshot used by stats and debug endpoints.
func (ci *CacheItem) Metadata() ItemMetadata {
	return ItemMetadata{
		Key:                 ci.Key,
		CreatedAt:           ci.CreatedAt,
		ExpiresAt:           ci.ExpiresAt,
		LastAccessedAt:      ci.LastAccessedAt,
		AccessCount:         ci.AccessCount,
		SizeBytes:           ci.SizeBytes,
		AgeSeconds:          ci.AgeSeconds(),
		IdleSeconds:         ci.IdleSeconds(),
		RemainingTTLSeconds: ci.RemainingTTL().Seconds(),
	}
}

type ItemMetadata struct {
	Key                 string    `json:"key"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	LastAccessedAt      time.Time `json:"last_accessed_at"`
	AccessCount         uint64    `json:"access_count"`
	SizeBytes           int64     `json:"size_bytes"`
	AgeSeconds          float64   `json:"age_seconds"`
	IdleSeconds         float64   `json:"idle_seconds"`
	RemainingTTLSeconds float64   `json:"remaining_ttl_seconds"`
}

// CacheBackend is the key/value contract shared by the in-memory and Redis
// implementations. Backends absorb their own failures: Get degrades to a
// miss and Set/Delete to no-ops, they never surface connectivity errors.
type CacheBackend interface {
	LifecycleManager
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) bool
	Clear() error
	Stats() *CacheStats
}

type CacheBackendCreator func(config *CacheConfig, logger Logger) (CacheBackend, error)

// EvictionPolicy selects victims from a snapshot of live items. Policies are
// stateless; callers apply the deletions.
type EvictionPolicy interface {
	Name() string
	SelectForEviction(items []*CacheItem, targetSize int) []*CacheItem
}

// Invalidatable is the capability any cache-like component implements so
// application code can bust entries by logical pattern instead of raw key.
type Invalidatable interface {
	Invalidate(pattern string) error
}

// Sweeper is implemented by backends that support a forced expiry sweep.
type Sweeper interface {
	Sweep() int
}

// Serializer converts values for backends that store bytes remotely.
type Serializer interface {
	Marshal(value interface{}) ([]byte, error)
	Unmarshal(data []byte, target interface{}) error
}

type CacheStats struct {
	Connected      bool         `json:"connected"`
	ItemCount      int          `json:"item_count"`
	MaxItems       int          `json:"max_items,omitempty"`
	TotalSizeBytes int64        `json:"total_size_bytes,omitempty"`
	MaxSizeBytes   int64        `json:"max_size_bytes,omitempty"`
	HitCount       uint64       `json:"hit_count"`
	MissCount      uint64       `json:"miss_count"`
	SetCount       uint64       `json:"set_count"`
	EvictionCount  uint64       `json:"eviction_count"`
	HitRate        float64      `json:"hit_rate"`
	LargestKeys    []KeySize    `json:"largest_keys,omitempty"`
	PopularKeys    []KeyCount   `json:"popular_keys,omitempty"`
	Server         *ServerStats `json:"server,omitempty"`
}

type KeySize struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

type KeyCount struct {
	Key         string `json:"key"`
	AccessCount uint64 `json:"access_count"`
}

// ServerStats carries remote server info reported by the Redis backend.
type ServerStats struct {
	Version          string `json:"version"`
	UsedMemory       int64  `json:"used_memory"`
	UsedMemoryHuman  string `json:"used_memory_human"`
	ConnectedClients int64  `json:"connected_clients"`
}

// HitRate computes hits / (hits + misses), 0 when nothing was read yet.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
