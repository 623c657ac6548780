package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/observability"
)

// defaultMaxHeaderBytes bounds request header size.
const defaultMaxHeaderBytes = 1 << 20

// ginModeOnce ensures gin.SetMode is only called once to avoid race
// conditions.
var ginModeOnce sync.Once

// Server is the gateway HTTP listener.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	handler    *Handler
	cfg        *config.ServerConfig
	global     *rate.Limiter
	logger     observability.Logger

	mu      sync.Mutex
	running bool
}

// ServerOption is a functional option for the server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the gateway HTTP server around the request handler.
func NewServer(cfg *config.ServerConfig, handler *Handler, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig().Server
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:  gin.New(),
		handler: handler,
		cfg:     cfg,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = cfg.GlobalRPS
		}
		s.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}

	s.engine.Use(gin.Recovery())
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Everything else goes through the pipeline.
	s.engine.NoRoute(s.dispatch)
}

func (s *Server) dispatch(c *gin.Context) {
	if s.global != nil && !s.global.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{
				"message": "Server is at capacity",
				"code":    "RATE_LIMIT_EXCEEDED",
			},
		})
		return
	}

	s.handler.Handle(c)
}

// Engine returns the underlying gin engine, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the listener until it fails or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    s.cfg.ReadTimeout.Duration(),
		WriteTimeout:   s.cfg.WriteTimeout.Duration(),
		IdleTimeout:    s.cfg.IdleTimeout.Duration(),
		MaxHeaderBytes: defaultMaxHeaderBytes,
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", addr),
		observability.Duration("read_timeout", s.cfg.ReadTimeout.Duration()),
		observability.Duration("write_timeout", s.cfg.WriteTimeout.Duration()))

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

// IsRunning reports whether the listener is active.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
