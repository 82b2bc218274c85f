package middleware

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/restcache/restcache/invalidation"
	"github.com/restcache/restcache/types"
)

const (
	headerCacheTTL        = "X-Cache-TTL"
	headerCacheInvalidate = "X-Cache-Invalidate"

	defaultCompressionThreshold = 1024
)

// autoVaryHeaders are mixed into the key when present on the request, so
// content-negotiated and per-user responses never collide.
var autoVaryHeaders = []string{"accept", "accept-encoding", "accept-language", "authorization"}

// AdvancedCacheMiddleware extends the base middleware with per-endpoint
// TTLs, automatic vary detection, payload compression, strategy-driven
// invalidation and collapse of concurrent identical misses.
type AdvancedCacheMiddleware struct {
	*CacheMiddleware

	strategy             invalidation.Strategy
	autoVary             bool
	compression          bool
	compressionThreshold int
	exactTTLs            map[string]time.Duration
	wildcardTTLs         []prefixTTL
	group                singleflight.Group
}

type prefixTTL struct {
	prefix string
	ttl    time.Duration
}

func NewAdvancedCacheMiddleware(config *types.MiddlewareConfig, backend types.CacheBackend, strategy invalidation.Strategy, logger types.Logger) (*AdvancedCacheMiddleware, error) {
	base, err := NewCacheMiddleware(config, backend, logger)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &types.MiddlewareConfig{}
	}

	m := &AdvancedCacheMiddleware{
		CacheMiddleware:      base,
		strategy:             strategy,
		autoVary:             config.AutoVary,
		compression:          config.Compression,
		compressionThreshold: config.CompressionThreshold,
		exactTTLs:            make(map[string]time.Duration),
	}

	if m.compressionThreshold <= 0 {
		m.compressionThreshold = defaultCompressionThreshold
	}

	for pattern, seconds := range config.EndpointTTLs {
		ttl := time.Duration(seconds) * time.Second
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			m.wildcardTTLs = append(m.wildcardTTLs, prefixTTL{prefix: prefix, ttl: ttl})
			continue
		}
		m.exactTTLs[pattern] = ttl
	}
	sort.Slice(m.wildcardTTLs, func(i, j int) bool {
		return len(m.wildcardTTLs[i].prefix) > len(m.wildcardTTLs[j].prefix)
	})

	return m, nil
}

func (m *AdvancedCacheMiddleware) Name() string {
	return "cache_advanced"
}

func (m *AdvancedCacheMiddleware) Process(req *types.Request, next types.Handler) (*types.Response, error) {
	if next == nil {
		return nil, types.ErrHandlerIsNil
	}
	if req == nil || !m.shouldCacheRequest(req) {
		resp, err := next(req)
		if err == nil && resp != nil {
			m.applyInvalidateHeader(resp)
		}
		return resp, err
	}

	ttl := m.endpointTTL(req.Path)
	key := buildCacheKey(req, m.effectiveVary(req))

	if resp, ok := m.lookup(key); ok {
		m.stamp(resp, cacheStateHit, ttl)
		return resp, nil
	}

	value, err, shared := m.group.Do(key, func() (interface{}, error) {
		return m.fill(req, next, key, ttl)
	})
	if err != nil {
		return nil, err
	}

	resp, _ := value.(*types.Response)
	if resp != nil && shared {
		resp = resp.Copy()
	}
	return resp, nil
}

// Invalidate busts entries by logical pattern through the configured
// strategy, falling back to a direct key delete without one.
func (m *AdvancedCacheMiddleware) Invalidate(pattern string) error {
	if m.strategy != nil {
		return m.strategy.Invalidate(pattern)
	}
	return m.CacheMiddleware.Invalidate(pattern)
}

// fill runs the downstream handler once per in-flight key and stores the
// result. Invalidation patterns emitted by the handler are applied before
// the response is stored, so a handler can bust stale entries and cache its
// own output in one pass.
func (m *AdvancedCacheMiddleware) fill(req *types.Request, next types.Handler, key string, ttl time.Duration) (*types.Response, error) {
	resp, err := next(req)
	if err != nil || resp == nil {
		return resp, err
	}

	m.applyInvalidateHeader(resp)

	if !m.shouldCacheResponse(resp) {
		return resp, nil
	}

	if override, ok := headerTTL(resp); ok {
		ttl = override
	}

	m.storeCompressed(key, resp, ttl)
	m.bindLabels(key, resp)
	m.stamp(resp, cacheStateMiss, ttl)

	return resp, nil
}

func (m *AdvancedCacheMiddleware) lookup(key string) (*types.Response, bool) {
	value, ok := m.backend.Get(key)
	if !ok {
		return nil, false
	}

	entry, ok := decodeCachedResponse(value)
	if !ok {
		m.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
		m.backend.Delete(key)
		return nil, false
	}

	if entry.Compressed {
		body, err := decompressPayload(entry.Body)
		if err != nil {
			m.logger.Warn("cached payload decompression failed",
				zap.String("key", key),
				zap.Error(err))
			m.backend.Delete(key)
			return nil, false
		}
		entry.Body = body
	}

	return entry.response(), true
}

func (m *AdvancedCacheMiddleware) storeCompressed(key string, resp *types.Response, ttl time.Duration) {
	entry := newCachedResponse(resp)

	if m.compression && len(entry.Body) > m.compressionThreshold {
		if packed, err := compressPayload(entry.Body); err == nil {
			entry.Body = packed
			entry.Compressed = true
		} else {
			m.logger.Warn("payload compression failed, storing uncompressed",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	if err := m.backend.Set(key, entry, ttl); err != nil {
		m.logger.Warn("response cache store failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (m *AdvancedCacheMiddleware) bindLabels(key string, resp *types.Response) {
	if m.strategy == nil {
		return
	}

	labels := splitList(resp.Header(m.strategy.MetadataHeader()))
	if len(labels) == 0 {
		return
	}

	if err := m.strategy.Bind(key, labels); err != nil {
		m.logger.Warn("cache label binding failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// applyInvalidateHeader runs on every downstream response, cacheable or
// not, so write endpoints can bust entries their side effects made stale.
func (m *AdvancedCacheMiddleware) applyInvalidateHeader(resp *types.Response) {
	for _, pattern := range splitList(resp.Header(headerCacheInvalidate)) {
		if err := m.Invalidate(pattern); err != nil {
			m.logger.Warn("header-driven invalidation failed",
				zap.String("pattern", pattern),
				zap.Error(err))
		}
	}
}

func (m *AdvancedCacheMiddleware) effectiveVary(req *types.Request) []string {
	if !m.autoVary {
		return m.varyHeaders
	}

	vary := append([]string(nil), m.varyHeaders...)
	for _, name := range autoVaryHeaders {
		if _, ok := req.Header(name); ok {
			vary = append(vary, name)
		}
	}
	return normalizeHeaderNames(vary)
}

// endpointTTL resolves the TTL for a path: exact match first, then the
// longest matching wildcard prefix, then the default.
func (m *AdvancedCacheMiddleware) endpointTTL(path string) time.Duration {
	if ttl, ok := m.exactTTLs[path]; ok {
		return ttl
	}

	for _, wc := range m.wildcardTTLs {
		if strings.HasPrefix(path, wc.prefix) {
			return wc.ttl
		}
	}

	return m.defaultTTL
}

func headerTTL(resp *types.Response) (time.Duration, bool) {
	raw := resp.Header(headerCacheTTL)
	if raw == "" {
		return 0, false
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
