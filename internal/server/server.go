// Package server sets up the HTTP server with all routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/callback"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/circuitbreaker"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/config"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/health"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/honeypot"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/idgen"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/intel"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/logging"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/metrics"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/ratelimit"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/session"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/traces"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/validation"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg        *config.Config
	store      *session.Store
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	dispatcher *callback.Dispatcher
	service    *honeypot.Service
	timer      *honeypot.Timer
	responder  honeypot.Responder
	health     *health.Checker
	router     *gin.Engine
	httpSrv    *http.Server
	logger     *slog.Logger

	cancelRunCtx   context.CancelFunc
	shutdownTraces func(context.Context) error

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithResponder swaps the reply generator (for testing).
func WithResponder(r honeypot.Responder) Option {
	return func(s *Server) {
		s.responder = r
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		responder: honeypot.NewPersona(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Tracing (no-op when no OTLP endpoint is configured)
	shutdown, err := traces.Init(context.Background(), cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.shutdownTraces = shutdown

	s.store = session.New(cfg.MaxSessions, cfg.MaxHistory)
	s.limiter = ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
	s.breaker = circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown)
	s.breaker.OnTransition(func(from, to circuitbreaker.State) {
		s.logger.Warn("circuit breaker transition",
			"from", from.String(),
			"to", to.String(),
		)
	})

	s.dispatcher = callback.NewDispatcher(s.store, s.breaker, callback.Config{
		URL:                  cfg.CallbackURL,
		Timeout:              cfg.CallbackTimeout,
		MaxAttempts:          cfg.CallbackRetries,
		BaseDelay:            time.Second,
		ScoreThreshold:       cfg.ScoreThreshold,
		InteractionThreshold: cfg.InteractionThreshold,
	}, s.logger)

	scorer := intel.NewScorer(intel.DefaultKeywords(), intel.DefaultExtractors())
	s.service = honeypot.NewService(s.store, s.limiter, scorer, s.dispatcher, s.breaker, s.responder, s.logger)
	s.timer = honeypot.NewTimer(s.store, s.limiter, cfg.CleanupInterval, cfg.SessionTTL, s.logger)

	s.health = health.NewChecker(s.store, s.breaker, s.timer, cfg.MaxSessions)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "An unexpected error occurred",
		})
	}))

	// Request size limit
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.New()
		}

		ctx := logging.WithLogger(c.Request.Context(), s.logger.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	honeypot.NewHandler(s.service, s.cfg.APIKey).RegisterRoutes(s.router)
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.health.Check()

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until a shutdown signal or a fatal error.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"callback_url", s.cfg.CallbackURL,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Cleanup timer for expired sessions and stale rate-limit state
	go s.timer.Start(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.timer.Stop()
	s.logger.Info("cleanup timer stopped")

	// Let in-flight callback deliveries finish before exiting.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer drainCancel()
	if err := s.dispatcher.Drain(drainCtx); err != nil {
		s.logger.Warn("callback drain timed out", "error", err)
	} else {
		s.logger.Info("callback dispatcher drained")
	}

	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Warn("trace exporter shutdown error", "error", err)
		}
	}

	s.logger.Info("shutdown complete")
	return nil
}

// Router exposes the gin engine (for testing).
func (s *Server) Router() *gin.Engine {
	return s.router
}
