package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/restcache/restcache/types"
	"github.com/restcache/restcache/utils"
)

const (
	// Expired entries are swept lazily from the write path at most this often.
	cleanupInterval = 5 * time.Minute

	// After a capacity overflow the backend evicts down to this share of
	// MaxItems.
	evictionTargetRatio = 0.8

	statsTopN = 10
)

type MemoryConfig struct {
	MaxItems       int            `yaml:"max_items" json:"max_items"`
	MaxSizeBytes   int64          `yaml:"max_size_bytes" json:"max_size_bytes"`
	EvictionPolicy string         `yaml:"eviction_policy" json:"eviction_policy"`
	HybridWeights  *HybridWeights `yaml:"hybrid_weights" json:"hybrid_weights"`
}

// MemoryBackend keeps the whole cache behind one coarse mutex. Every public
// operation is O(items touched); only the bounded periodic sweep and the
// stats scan walk the full map.
type MemoryBackend struct {
	logger types.Logger
	config *MemoryConfig
	policy types.EvictionPolicy

	mu              sync.Mutex
	data            map[string]*types.CacheItem
	currentSize     int64
	hits            uint64
	misses          uint64
	sets            uint64
	evictions       uint64
	lastCleanupTime time.Time

	state int32
}

func NewMemoryBackend(config *types.CacheConfig, logger types.Logger) (types.CacheBackend, error) {
	memConfig := &MemoryConfig{
		MaxItems:       1000,
		MaxSizeBytes:   50 << 20,
		EvictionPolicy: PolicyLRU,
	}

	if config != nil && config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, memConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal memory cache config")
		}
	}

	var policy types.EvictionPolicy
	var err error
	if memConfig.EvictionPolicy == PolicyHybrid && memConfig.HybridWeights != nil {
		policy = NewHybridPolicy(*memConfig.HybridWeights)
	} else {
		policy, err = NewEvictionPolicy(memConfig.EvictionPolicy)
		if err != nil {
			return nil, err
		}
	}

	return &MemoryBackend{
		logger:          logger,
		config:          memConfig,
		policy:          policy,
		data:            make(map[string]*types.CacheItem),
		lastCleanupTime: time.Now(),
	}, nil
}

func (m *MemoryBackend) Get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.data[key]
	if !exists {
		m.misses++
		return nil, false
	}

	if item.IsExpired() {
		m.removeLocked(key)
		m.misses++
		return nil, false
	}

	item.Access()
	m.hits++
	return item.Value, true
}

func (m *MemoryBackend) Set(key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	// Size estimation serializes the value, keep it off the critical section.
	item := types.NewCacheItem(key, value, ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, exists := m.data[key]; exists {
		m.currentSize -= old.SizeBytes
	}
	m.data[key] = item
	m.currentSize += item.SizeBytes
	m.sets++

	m.evictLocked()
	m.cleanupLocked(false)

	return nil
}

func (m *MemoryBackend) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists {
		return false
	}

	m.removeLocked(key)
	return true
}

// Clear drops all entries. Hit/miss/set/eviction counters are cumulative
// process-lifetime stats and survive a clear.
func (m *MemoryBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := len(m.data)
	m.data = make(map[string]*types.CacheItem)
	m.currentSize = 0

	m.logger.Debug("Memory cache cleared", zap.Int("cleared_entries", cleared))
	return nil
}

func (m *MemoryBackend) Stats() *types.CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]*types.CacheItem, 0, len(m.data))
	for _, item := range m.data {
		items = append(items, item)
	}

	largest := make([]types.KeySize, 0, statsTopN)
	sort.SliceStable(items, func(i, j int) bool { return items[i].SizeBytes > items[j].SizeBytes })
	for i := 0; i < len(items) && i < statsTopN; i++ {
		largest = append(largest, types.KeySize{Key: items[i].Key, SizeBytes: items[i].SizeBytes})
	}

	popular := make([]types.KeyCount, 0, statsTopN)
	sort.SliceStable(items, func(i, j int) bool { return items[i].AccessCount > items[j].AccessCount })
	for i := 0; i < len(items) && i < statsTopN; i++ {
		popular = append(popular, types.KeyCount{Key: items[i].Key, AccessCount: items[i].AccessCount})
	}

	return &types.CacheStats{
		Connected:      true,
		ItemCount:      len(m.data),
		MaxItems:       m.config.MaxItems,
		TotalSizeBytes: m.currentSize,
		MaxSizeBytes:   m.config.MaxSizeBytes,
		HitCount:       m.hits,
		MissCount:      m.misses,
		SetCount:       m.sets,
		EvictionCount:  m.evictions,
		HitRate:        types.HitRate(m.hits, m.misses),
		LargestKeys:    largest,
		PopularKeys:    popular,
	}
}

// Sweep forces an expiry sweep regardless of the lazy interval and returns
// the number of entries removed.
func (m *MemoryBackend) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanupLocked(true)
}

func (m *MemoryBackend) Start() error {
	if !atomic.CompareAndSwapInt32(&m.state, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	m.logger.Info("Memory cache started",
		zap.Int("max_items", m.config.MaxItems),
		zap.Int64("max_size_bytes", m.config.MaxSizeBytes),
		zap.String("eviction_policy", m.policy.Name()))
	return nil
}

func (m *MemoryBackend) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.state, 1, 0) {
		return types.ErrServerNotRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)
	g.Go(m.Clear)

	if err := g.Wait(); err != nil {
		m.logger.Error("Error during memory cache shutdown", zap.Error(err))
		return err
	}

	m.logger.Info("Memory cache stopped")
	return nil
}

func (m *MemoryBackend) IsRunning() bool {
	return atomic.LoadInt32(&m.state) == 1
}

func (m *MemoryBackend) removeLocked(key string) {
	if item, exists := m.data[key]; exists {
		m.currentSize -= item.SizeBytes
		delete(m.data, key)
	}
}

func (m *MemoryBackend) evictLocked() {
	withinItems := m.config.MaxItems <= 0 || len(m.data) <= m.config.MaxItems
	withinSize := m.config.MaxSizeBytes <= 0 || m.currentSize <= m.config.MaxSizeBytes
	if withinItems && withinSize {
		return
	}

	items := make([]*types.CacheItem, 0, len(m.data))
	for _, item := range m.data {
		items = append(items, item)
	}

	targetSize := int(evictionTargetRatio * float64(m.config.MaxItems))
	if targetSize < 1 {
		targetSize = 1
	}

	victims := m.policy.SelectForEviction(items, targetSize)
	for _, victim := range victims {
		m.removeLocked(victim.Key)
		m.evictions++
	}

	if len(victims) > 0 {
		m.logger.Debug("Evicted cache entries",
			zap.Int("evicted", len(victims)),
			zap.String("policy", m.policy.Name()))
	}
}

func (m *MemoryBackend) cleanupLocked(force bool) int {
	now := time.Now()
	if !force && now.Sub(m.lastCleanupTime) < cleanupInterval {
		return 0
	}
	m.lastCleanupTime = now

	removed := 0
	for key, item := range m.data {
		if item.IsExpired() {
			m.removeLocked(key)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Debug("Expiry sweep completed", zap.Int("expired_entries", removed))
	}

	return removed
}
