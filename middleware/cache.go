package middleware

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/restcache/restcache/types"
	"github.com/restcache/restcache/utils"
)

const (
	headerCache        = "X-Cache"
	headerCacheControl = "Cache-Control"

	cacheStateHit  = "HIT"
	cacheStateMiss = "MISS"
)

// cachedResponse is the stored shape of a response. A remote backend hands
// it back through its serializer as a generic value, so decoding tolerates
// both the typed pointer and a re-marshaled blob.
type cachedResponse struct {
	Status     int               `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	Compressed bool              `json:"compressed,omitempty"`
}

func newCachedResponse(resp *types.Response) *cachedResponse {
	headers := make(map[string]string, len(resp.Headers))
	for key, value := range resp.Headers {
		headers[key] = value
	}

	return &cachedResponse{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    append([]byte(nil), resp.Body...),
	}
}

func decodeCachedResponse(value interface{}) (*cachedResponse, bool) {
	switch v := value.(type) {
	case *cachedResponse:
		clone := *v
		return &clone, true
	case cachedResponse:
		return &v, true
	default:
		raw, err := utils.Marshal(value)
		if err != nil {
			return nil, false
		}
		var entry cachedResponse
		if err := utils.Unmarshal(raw, &entry); err != nil {
			return nil, false
		}
		if entry.Status == 0 {
			return nil, false
		}
		return &entry, true
	}
}

func (c *cachedResponse) response() *types.Response {
	resp := types.NewResponse(c.Status, append([]byte(nil), c.Body...))
	for key, value := range c.Headers {
		resp.SetHeader(key, value)
	}
	return resp
}

// CacheMiddleware caches successful responses for a configured method set
// and replays them on key match. Backend failures degrade to pass-through;
// downstream errors propagate uncached.
type CacheMiddleware struct {
	backend types.CacheBackend
	logger  types.Logger

	defaultTTL         time.Duration
	methods            map[string]struct{}
	ignorePaths        []string
	varyHeaders        []string
	cacheControlHeader bool
}

func NewCacheMiddleware(config *types.MiddlewareConfig, backend types.CacheBackend, logger types.Logger) (*CacheMiddleware, error) {
	if backend == nil {
		return nil, types.NewErrorf("cache middleware requires a backend")
	}
	if config == nil {
		config = &types.MiddlewareConfig{}
	}

	m := &CacheMiddleware{
		backend:            backend,
		logger:             logger,
		defaultTTL:         time.Duration(config.DefaultTTL) * time.Second,
		cacheControlHeader: config.CacheControlHeader,
		ignorePaths:        append([]string(nil), config.IgnorePaths...),
	}

	if m.defaultTTL <= 0 {
		m.defaultTTL = time.Minute
	}

	methods := config.Methods
	if len(methods) == 0 {
		methods = []string{"GET"}
	}
	m.methods = make(map[string]struct{}, len(methods))
	for _, method := range methods {
		m.methods[strings.ToUpper(method)] = struct{}{}
	}

	vary := config.VaryHeaders
	if len(vary) == 0 {
		vary = []string{"accept", "accept-encoding"}
	}
	m.varyHeaders = normalizeHeaderNames(vary)

	return m, nil
}

func (m *CacheMiddleware) Name() string {
	return "cache"
}

func (m *CacheMiddleware) Process(req *types.Request, next types.Handler) (*types.Response, error) {
	if next == nil {
		return nil, types.ErrHandlerIsNil
	}
	if req == nil || !m.shouldCacheRequest(req) {
		return next(req)
	}

	key := buildCacheKey(req, m.varyHeaders)
	if resp, ok := m.lookup(key); ok {
		m.stamp(resp, cacheStateHit, m.defaultTTL)
		return resp, nil
	}

	resp, err := next(req)
	if err != nil || resp == nil {
		return resp, err
	}

	if m.shouldCacheResponse(resp) {
		m.store(key, resp, m.defaultTTL)
		m.stamp(resp, cacheStateMiss, m.defaultTTL)
	}

	return resp, nil
}

// Invalidate drops the entry stored under the given key. The advanced
// variant overrides this with strategy-aware pattern invalidation.
func (m *CacheMiddleware) Invalidate(pattern string) error {
	m.backend.Delete(pattern)
	return nil
}

func (m *CacheMiddleware) Stats() *types.CacheStats {
	return m.backend.Stats()
}

func (m *CacheMiddleware) Clear() error {
	return m.backend.Clear()
}

func (m *CacheMiddleware) shouldCacheRequest(req *types.Request) bool {
	if _, ok := m.methods[req.Method]; !ok {
		return false
	}

	for _, prefix := range m.ignorePaths {
		if strings.HasPrefix(req.Path, prefix) {
			return false
		}
	}

	if cc, ok := req.Header(headerCacheControl); ok {
		lowered := strings.ToLower(cc)
		if strings.Contains(lowered, "no-cache") || strings.Contains(lowered, "no-store") {
			return false
		}
	}

	return true
}

func (m *CacheMiddleware) shouldCacheResponse(resp *types.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	cc := strings.ToLower(resp.Header(headerCacheControl))
	if strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store") {
		return false
	}

	return true
}

func (m *CacheMiddleware) lookup(key string) (*types.Response, bool) {
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

	return entry.response(), true
}

func (m *CacheMiddleware) store(key string, resp *types.Response, ttl time.Duration) {
	if err := m.backend.Set(key, newCachedResponse(resp), ttl); err != nil {
		m.logger.Warn("response cache store failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (m *CacheMiddleware) stamp(resp *types.Response, state string, ttl time.Duration) {
	resp.SetHeader(headerCache, state)
	if m.cacheControlHeader && ttl > 0 {
		resp.SetHeader(headerCacheControl, fmt.Sprintf("max-age=%d", int(ttl.Seconds())))
	}
}
