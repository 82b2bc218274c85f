package server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/restcache/restcache/types"
)

// handleAdmin serves the built-in endpoints. Returns false when the request
// belongs to the application routing table.
func (s *HTTPServer) handleAdmin(ctx *fasthttp.RequestCtx) bool {
	method := string(ctx.Method())
	path := string(ctx.Path())

	switch {
	case method == fasthttp.MethodGet && path == "/health":
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})

	case method == fasthttp.MethodGet && path == "/metrics":
		if s.metricsHandler == nil {
			writeError(ctx, fasthttp.StatusNotFound, types.ErrRouteNotFound)
			return true
		}
		s.metricsHandler(ctx)

	case method == fasthttp.MethodGet && path == "/cache/stats":
		if s.admin == nil {
			writeError(ctx, fasthttp.StatusNotFound, types.ErrRouteNotFound)
			return true
		}
		writeJSON(ctx, fasthttp.StatusOK, s.admin.Stats())

	case method == fasthttp.MethodPost && path == "/cache/clear":
		if s.admin == nil {
			writeError(ctx, fasthttp.StatusNotFound, types.ErrRouteNotFound)
			return true
		}
		if err := s.admin.Clear(); err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, err)
			return true
		}
		s.logger.Info("cache cleared via admin endpoint")
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "cleared"})

	case method == fasthttp.MethodPost && path == "/cache/invalidate":
		if s.admin == nil {
			writeError(ctx, fasthttp.StatusNotFound, types.ErrRouteNotFound)
			return true
		}
		pattern := string(ctx.QueryArgs().Peek("pattern"))
		if pattern == "" {
			writeError(ctx, fasthttp.StatusBadRequest, types.NewErrorf("pattern query parameter is required"))
			return true
		}
		if err := s.admin.Invalidate(pattern); err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, err)
			return true
		}
		s.logger.Info("cache invalidated via admin endpoint", zap.String("pattern", pattern))
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "invalidated", "pattern": pattern})

	default:
		return false
	}

	return true
}
