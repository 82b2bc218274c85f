package cache

import (
	"time"

	"github.com/restcache/restcache/types"
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

var customBackendCreators = make(map[string]types.CacheBackendCreator)

// RegisterBackend lets applications plug in their own backend type next to
// the built-in memory and redis ones.
func RegisterBackend(name string, creator types.CacheBackendCreator) {
	customBackendCreators[name] = creator
}

// NewCacheBackend resolves the configured backend and wraps it with the
// metrics decorator. Unknown types and disabled configs fail here, never at
// request time.
func NewCacheBackend(config *types.CacheConfig, logger types.Logger, metrics types.MetricsManager) (types.CacheBackend, error) {
	if config == nil || !config.Enabled {
		return nil, types.ErrCacheIsDisabled
	}

	var impl types.CacheBackend
	var err error

	switch config.Type {
	case TypeMemory:
		impl, err = NewMemoryBackend(config, logger)
	case TypeRedis:
		impl, err = NewRedisBackend(config, logger)
	default:
		creator, exists := customBackendCreators[config.Type]
		if !exists {
			return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", config.Type)
		}
		impl, err = creator(config, logger)
	}

	if err != nil {
		return nil, err
	}

	if metrics == nil {
		return impl, nil
	}

	return newInstrumentedBackend(impl, metrics), nil
}

// instrumentedBackend records per-operation counters and latencies around
// any backend implementation.
type instrumentedBackend struct {
	impl    types.CacheBackend
	metrics types.MetricsManager
}

func newInstrumentedBackend(impl types.CacheBackend, metrics types.MetricsManager) types.CacheBackend {
	return &instrumentedBackend{impl: impl, metrics: metrics}
}

func (ib *instrumentedBackend) Get(key string) (interface{}, bool) {
	start := time.Now()
	value, exists := ib.impl.Get(key)

	result := "miss"
	if exists {
		result = "hit"
	}
	ib.record("get", result, start)

	return value, exists
}

func (ib *instrumentedBackend) Set(key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := ib.impl.Set(key, value, ttl)
	ib.record("set", resultOf(err), start)
	return err
}

func (ib *instrumentedBackend) Delete(key string) bool {
	start := time.Now()
	deleted := ib.impl.Delete(key)

	result := "absent"
	if deleted {
		result = "deleted"
	}
	ib.record("delete", result, start)

	return deleted
}

func (ib *instrumentedBackend) Clear() error {
	start := time.Now()
	err := ib.impl.Clear()
	ib.record("clear", resultOf(err), start)
	return err
}

func (ib *instrumentedBackend) Stats() *types.CacheStats {
	return ib.impl.Stats()
}

// Sweep passes through so the janitor can still reach a wrapped backend.
func (ib *instrumentedBackend) Sweep() int {
	if sweeper, ok := ib.impl.(types.Sweeper); ok {
		return sweeper.Sweep()
	}
	return 0
}

func (ib *instrumentedBackend) Start() error {
	return ib.impl.Start()
}

func (ib *instrumentedBackend) Stop() error {
	return ib.impl.Stop()
}

func (ib *instrumentedBackend) IsRunning() bool {
	return ib.impl.IsRunning()
}

func (ib *instrumentedBackend) record(operation, result string, start time.Time) {
	ib.metrics.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	}).Inc()

	ib.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	).ObserveDuration(start)
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
