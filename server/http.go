package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/restcache/restcache/types"
	"github.com/restcache/restcache/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const headerRequestID = "X-Request-ID"

// CacheAdmin is the surface the admin endpoints drive. Both cache
// middlewares satisfy it.
type CacheAdmin interface {
	Stats() *types.CacheStats
	Clear() error
	Invalidate(pattern string) error
}

// HTTPServer is the thin host harness: it adapts fasthttp requests into the
// engine's request shape, routes application handlers through the cache
// middleware and exposes the cache admin endpoints. It is not a routing
// framework; lookup is exact method plus path.
type HTTPServer struct {
	config     *types.ServerConfig
	logger     types.Logger
	middleware types.Middleware
	admin      CacheAdmin

	server   *fasthttp.Server
	listener net.Listener
	state    atomic.Value

	routes   map[string]types.Handler
	routesMu sync.RWMutex

	metricsHandler fasthttp.RequestHandler
}

func NewHTTPServer(config *types.ServerConfig, middleware types.Middleware, admin CacheAdmin, logger types.Logger) *HTTPServer {
	if config == nil {
		config = &types.ServerConfig{Host: "0.0.0.0", Port: 8080}
	}

	s := &HTTPServer{
		config:     config,
		logger:     logger,
		middleware: middleware,
		admin:      admin,
		routes:     make(map[string]types.Handler),
	}
	s.state.Store(StateStopped)

	return s
}

// SetMetricsHandler installs the /metrics endpoint handler.
func (s *HTTPServer) SetMetricsHandler(handler fasthttp.RequestHandler) {
	s.metricsHandler = handler
}

// Handle registers an application handler for an exact method and path.
func (s *HTTPServer) Handle(method, path string, handler types.Handler) error {
	if handler == nil {
		return types.ErrHandlerIsNil
	}

	s.routesMu.Lock()
	defer s.routesMu.Unlock()
	s.routes[method+" "+path] = handler

	return nil
}

func (s *HTTPServer) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	s.server = &fasthttp.Server{
		Handler:         s.mainHandler,
		ReadTimeout:     time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(s.config.IdleTimeout) * time.Second,
		CloseOnShutdown: true,
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.state.Store(StateStopped)
		return types.WrapError(err, "http listener failed")
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil {
			s.logger.Error("http server failed", zap.Error(err))
			s.state.Store(StateStopped)
		}
	}()

	s.state.CompareAndSwap(StateStarting, StateRunning)
	s.logger.Info("http server started", zap.String("address", addr))

	return nil
}

func (s *HTTPServer) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}
	defer s.state.Store(StateStopped)

	timeout := time.Duration(s.config.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.logger.Warn("failed to close listener", zap.Error(err))
			}
		}

		done := make(chan error, 1)
		go func() { done <- s.server.Shutdown() }()

		select {
		case err := <-done:
			return err
		case <-time.After(timeout):
			return types.NewErrorf("shutdown timed out after %s", timeout)
		}
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("http server stopped with error", zap.Error(err))
		return err
	}

	s.logger.Info("http server stopped gracefully")
	return nil
}

func (s *HTTPServer) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}

func (s *HTTPServer) mainHandler(ctx *fasthttp.RequestCtx) {
	requestID := string(ctx.Request.Header.Peek(headerRequestID))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.Response.Header.Set(headerRequestID, requestID)

	if s.handleAdmin(ctx) {
		return
	}

	method := string(ctx.Method())
	path := string(ctx.Path())

	s.routesMu.RLock()
	handler, ok := s.routes[method+" "+path]
	s.routesMu.RUnlock()
	if !ok {
		writeError(ctx, fasthttp.StatusNotFound, types.ErrRouteNotFound)
		return
	}

	req := adaptRequest(ctx)

	var (
		resp *types.Response
		err  error
	)
	if s.middleware != nil {
		resp, err = s.middleware.Process(req, handler)
	} else {
		resp, err = handler(req)
	}
	if err != nil {
		s.logger.Error("handler failed",
			zap.String("request_id", requestID),
			zap.String("path", path),
			zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, err)
		return
	}
	if resp == nil {
		writeError(ctx, fasthttp.StatusInternalServerError, types.NewErrorf("handler returned no response"))
		return
	}

	writeResponse(ctx, resp)
}

// adaptRequest copies the parts of the fasthttp request the engine reads.
// Query parameters keep their wire order.
func adaptRequest(ctx *fasthttp.RequestCtx) *types.Request {
	req := types.NewRequest(string(ctx.Method()), string(ctx.Path()))

	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		req.AddQueryParam(string(key), string(value))
	})
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		req.SetHeader(string(key), string(value))
	})

	return req
}

func writeResponse(ctx *fasthttp.RequestCtx, resp *types.Response) {
	ctx.SetStatusCode(resp.StatusCode)
	for key, value := range resp.Headers {
		ctx.Response.Header.Set(key, value)
	}
	ctx.SetBody(resp.Body)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, value interface{}) {
	data, err := utils.Marshal(value)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, err)
		return
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func writeError(ctx *fasthttp.RequestCtx, status int, err error) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(fmt.Sprintf(`{"error":%q}`, err.Error()))
}
