package cache

import (
	"sort"
	"time"

	"github.com/restcache/restcache/types"
)

const (
	PolicyLRU    = "lru"
	PolicyLFU    = "lfu"
	PolicyTTL    = "ttl"
	PolicySize   = "size"
	PolicyHybrid = "hybrid"
)

// NewEvictionPolicy resolves a policy by name. Unknown names are rejected
// here, at construction time, not on the eviction path.
func NewEvictionPolicy(name string) (types.EvictionPolicy, error) {
	switch name {
	case "", PolicyLRU:
		return &LRUPolicy{}, nil
	case PolicyLFU:
		return &LFUPolicy{}, nil
	case PolicyTTL:
		return &TTLPolicy{}, nil
	case PolicySize:
		return &SizePolicy{}, nil
	case PolicyHybrid:
		return NewHybridPolicy(DefaultHybridWeights()), nil
	default:
		return nil, types.Errorf(types.ErrEvictionPolicyUnknown, "policy: %s", name)
	}
}

// selectWorstFirst sorts a copy of the snapshot so that the best eviction
// candidates come first, then slices off enough of them to leave targetSize
// items behind. targetSize <= 0 evicts everything.
func selectWorstFirst(items []*types.CacheItem, targetSize int, worse func(a, b *types.CacheItem) bool) []*types.CacheItem {
	if len(items) == 0 {
		return nil
	}

	keep := targetSize
	if keep < 0 {
		keep = 0
	}
	if keep >= len(items) {
		return nil
	}

	sorted := make([]*types.CacheItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return worse(sorted[i], sorted[j])
	})

	return sorted[:len(items)-keep]
}

// LRUPolicy evicts the items with the oldest last access first.
type LRUPolicy struct{}

func (p *LRUPolicy) Name() string { return PolicyLRU }

func (p *LRUPolicy) SelectForEviction(items []*types.CacheItem, targetSize int) []*types.CacheItem {
	return selectWorstFirst(items, targetSize, func(a, b *types.CacheItem) bool {
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	})
}

// LFUPolicy evicts the least frequently accessed items first.
type LFUPolicy struct{}

func (p *LFUPolicy) Name() string { return PolicyLFU }

func (p *LFUPolicy) SelectForEviction(items []*types.CacheItem, targetSize int) []*types.CacheItem {
	return selectWorstFirst(items, targetSize, func(a, b *types.CacheItem) bool {
		return a.AccessCount < b.AccessCount
	})
}

// TTLPolicy evicts the items closest to expiry first.
type TTLPolicy struct{}

func (p *TTLPolicy) Name() string { return PolicyTTL }

func (p *TTLPolicy) SelectForEviction(items []*types.CacheItem, targetSize int) []*types.CacheItem {
	return selectWorstFirst(items, targetSize, expiresBefore)
}

// expiresBefore orders items by expiry with the zero time sorting last: a
// zero ExpiresAt means the entry never expires, so it is the farthest
// possible from expiry, not the closest.
func expiresBefore(a, b *types.CacheItem) bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	if b.ExpiresAt.IsZero() {
		return true
	}
	return a.ExpiresAt.Before(b.ExpiresAt)
}

// SizePolicy evicts the largest items first.
type SizePolicy struct{}

func (p *SizePolicy) Name() string { return PolicySize }

func (p *SizePolicy) SelectForEviction(items []*types.CacheItem, targetSize int) []*types.CacheItem {
	return selectWorstFirst(items, targetSize, func(a, b *types.CacheItem) bool {
		return a.SizeBytes > b.SizeBytes
	})
}

// HybridWeights parameterizes the hybrid score. The defaults mirror the
// tuning this policy has always shipped with; they are not load-bearing and
// can be overridden per backend.
type HybridWeights struct {
	TTL        float64       `json:"ttl"`
	Recency    float64       `json:"recency"`
	Frequency  float64       `json:"frequency"`
	Size       float64       `json:"size"`
	TimeWindow time.Duration `json:"time_window"`
	SizeWindow int64         `json:"size_window"`
}

func DefaultHybridWeights() HybridWeights {
	return HybridWeights{
		TTL:        0.3,
		Recency:    0.3,
		Frequency:  0.2,
		Size:       0.2,
		TimeWindow: time.Hour,
		SizeWindow: 1 << 20,
	}
}

// HybridPolicy scores every item from remaining TTL, recency, access
// frequency and size, each factor clamped to [0,1] against the configured
// normalization window, and evicts the highest scores first.
type HybridPolicy struct {
	weights HybridWeights
}

func NewHybridPolicy(weights HybridWeights) *HybridPolicy {
	return &HybridPolicy{weights: weights}
}

func (p *HybridPolicy) Name() string { return PolicyHybrid }

func (p *HybridPolicy) SelectForEviction(items []*types.CacheItem, targetSize int) []*types.CacheItem {
	now := time.Now()

	scores := make(map[*types.CacheItem]float64, len(items))
	for _, item := range items {
		scores[item] = p.score(item, now)
	}

	return selectWorstFirst(items, targetSize, func(a, b *types.CacheItem) bool {
		return scores[a] > scores[b]
	})
}

func (p *HybridPolicy) score(item *types.CacheItem, now time.Time) float64 {
	window := p.weights.TimeWindow.Seconds()

	// A zero ExpiresAt never expires and scores as the farthest from expiry.
	ttlFactor := 1.0
	if !item.ExpiresAt.IsZero() {
		ttlFactor = clamp01(item.ExpiresAt.Sub(now).Seconds() / window)
	}
	recencyFactor := clamp01(now.Sub(item.LastAccessedAt).Seconds() / window)
	frequencyFactor := clamp01(1 / float64(item.AccessCount+1))
	sizeFactor := clamp01(float64(item.SizeBytes) / float64(p.weights.SizeWindow))

	return p.weights.TTL*ttlFactor +
		p.weights.Recency*recencyFactor +
		p.weights.Frequency*frequencyFactor +
		p.weights.Size*sizeFactor
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
