package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/restcache/restcache/types"
	"github.com/restcache/restcache/utils"
)

const clearBatchSize = 100

type RedisConfig struct {
	Host               string        `yaml:"host" json:"host"`
	Port               int           `yaml:"port" json:"port"`
	Password           string        `yaml:"password" json:"password"`
	DB                 int           `yaml:"db" json:"db"`
	PoolSize           int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConnections int           `yaml:"min_idle_connections" json:"min_idle_connections"`
	DialTimeout        time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout" json:"write_timeout"`
	KeyPrefix          string        `yaml:"key_prefix" json:"key_prefix"`
}

// RedisBackend delegates storage to a shared Redis instance. An unreachable
// server never surfaces as an error to callers: reads degrade to misses,
// writes and deletes to logged no-ops. Reconnection is whatever the next
// call manages, there is no retry loop.
type RedisBackend struct {
	ctx        context.Context
	logger     types.Logger
	config     *RedisConfig
	client     *redis.Client
	serializer types.Serializer

	hits    uint64
	misses  uint64
	sets    uint64
	started int32
}

// redisEntry is the stored envelope. Logical expiry travels with the value
// so a zero-TTL entry reads as expired even before Redis drops it.
type redisEntry struct {
	Value     interface{} `json:"value"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func NewRedisBackend(config *types.CacheConfig, logger types.Logger) (types.CacheBackend, error) {
	redisConfig := &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		DB:                 0,
		PoolSize:           10,
		MinIdleConnections: 2,
		DialTimeout:        5 * time.Second,
		ReadTimeout:        3 * time.Second,
		WriteTimeout:       3 * time.Second,
		KeyPrefix:          "restcache",
	}

	if config != nil && config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, redisConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis cache config")
		}
	}

	backend := &RedisBackend{
		ctx:        context.Background(),
		logger:     logger,
		config:     redisConfig,
		serializer: &SonicSerializer{},
	}

	backend.client = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		MinIdleConns: redisConfig.MinIdleConnections,
		DialTimeout:  redisConfig.DialTimeout,
		ReadTimeout:  redisConfig.ReadTimeout,
		WriteTimeout: redisConfig.WriteTimeout,
	})

	if err := backend.ping(); err != nil {
		logger.Warn("Redis unreachable at startup, operating degraded",
			zap.String("addr", fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port)),
			zap.Error(err))
	}

	return backend, nil
}

// WithSerializer swaps the wire codec, returning the backend for chaining.
func (r *RedisBackend) WithSerializer(serializer types.Serializer) *RedisBackend {
	if serializer != nil {
		r.serializer = serializer
	}
	return r
}

func (r *RedisBackend) Get(key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}

	data, err := r.client.Get(r.ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if !types.IsError(err, redis.Nil) {
			r.logger.Warn("Failed to get cache entry from redis", zap.String("key", key), zap.Error(err))
		}
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	var entry redisEntry
	if err := r.serializer.Unmarshal(data, &entry); err != nil {
		r.logger.Warn("Failed to decode cache entry, dropping it", zap.String("key", key), zap.Error(err))
		r.client.Del(r.ctx, r.fullKey(key))
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		r.Delete(key)
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	atomic.AddUint64(&r.hits, 1)
	return entry.Value, true
}

func (r *RedisBackend) Set(key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	now := time.Now()
	entry := redisEntry{
		Value:     value,
		CreatedAt: now,
	}
	if ttl >= 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	data, err := r.serializer.Marshal(entry)
	if err != nil {
		r.logger.Warn("Failed to encode cache entry, skipping store", zap.String("key", key), zap.Error(err))
		return nil
	}

	var expiration time.Duration
	switch {
	case ttl > 0:
		expiration = ttl
	case ttl == 0:
		// Logically already expired; a minimal server-side expiry keeps
		// the dead entry from lingering.
		expiration = time.Second
	}

	if err := r.client.Set(r.ctx, r.fullKey(key), data, expiration).Err(); err != nil {
		r.logger.Warn("Failed to set cache entry in redis", zap.String("key", key), zap.Error(err))
		return nil
	}

	atomic.AddUint64(&r.sets, 1)
	return nil
}

func (r *RedisBackend) Delete(key string) bool {
	if key == "" {
		return false
	}

	deleted, err := r.client.Del(r.ctx, r.fullKey(key)).Result()
	if err != nil {
		r.logger.Warn("Failed to delete cache entry from redis", zap.String("key", key), zap.Error(err))
		return false
	}

	return deleted > 0
}

// Clear scans the backend's namespace and deletes in bounded batches so a
// large cache never produces an oversized DEL.
func (r *RedisBackend) Clear() error {
	var cursor uint64
	var batch []string

	for {
		keys, next, err := r.client.Scan(r.ctx, cursor, r.config.KeyPrefix+":*", clearBatchSize).Result()
		if err != nil {
			r.logger.Warn("Failed to scan redis keys for clear", zap.Error(err))
			return nil
		}

		batch = append(batch, keys...)
		for len(batch) >= clearBatchSize {
			r.deleteBatch(batch[:clearBatchSize])
			batch = batch[clearBatchSize:]
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(batch) > 0 {
		r.deleteBatch(batch)
	}

	return nil
}

func (r *RedisBackend) Stats() *types.CacheStats {
	hits := atomic.LoadUint64(&r.hits)
	misses := atomic.LoadUint64(&r.misses)

	stats := &types.CacheStats{
		HitCount:  hits,
		MissCount: misses,
		SetCount:  atomic.LoadUint64(&r.sets),
		HitRate:   types.HitRate(hits, misses),
	}

	if err := r.ping(); err != nil {
		stats.Connected = false
		return stats
	}

	stats.Connected = true
	stats.ItemCount = r.countKeys()

	info, err := r.client.Info(r.ctx, "server", "memory", "clients").Result()
	if err != nil {
		r.logger.Warn("Failed to fetch redis info", zap.Error(err))
		return stats
	}

	fields := parseRedisInfo(info)
	stats.Server = &types.ServerStats{
		Version:          fields["redis_version"],
		UsedMemoryHuman:  fields["used_memory_human"],
		UsedMemory:       parseInfoInt(fields["used_memory"]),
		ConnectedClients: parseInfoInt(fields["connected_clients"]),
	}

	return stats
}

func (r *RedisBackend) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}
	r.logger.Info("Redis cache started", zap.String("key_prefix", r.config.KeyPrefix))
	return nil
}

func (r *RedisBackend) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close redis client", zap.Error(err))
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Info("Redis cache stopped")
	return nil
}

func (r *RedisBackend) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

func (r *RedisBackend) fullKey(key string) string {
	if r.config.KeyPrefix == "" {
		return key
	}
	return r.config.KeyPrefix + ":" + key
}

func (r *RedisBackend) ping() error {
	ctx, cancel := context.WithTimeout(r.ctx, r.config.DialTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) deleteBatch(keys []string) {
	if err := r.client.Del(r.ctx, keys...).Err(); err != nil {
		r.logger.Warn("Failed to delete redis key batch", zap.Int("batch_size", len(keys)), zap.Error(err))
	}
}

func (r *RedisBackend) countKeys() int {
	var cursor uint64
	count := 0

	for {
		keys, next, err := r.client.Scan(r.ctx, cursor, r.config.KeyPrefix+":*", clearBatchSize).Result()
		if err != nil {
			r.logger.Warn("Failed to count redis keys", zap.Error(err))
			return count
		}

		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count
		}
	}
}

func parseRedisInfo(info string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(info, "\r\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.IndexByte(line, ':'); idx > 0 {
			fields[line[:idx]] = line[idx+1:]
		}
	}
	return fields
}

func parseInfoInt(value string) int64 {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
