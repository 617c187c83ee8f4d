// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/taker007/crypto-guardian/internal/chains"
	"github.com/taker007/crypto-guardian/internal/config"
	"github.com/taker007/crypto-guardian/internal/denylist"
	"github.com/taker007/crypto-guardian/internal/health"
	"github.com/taker007/crypto-guardian/internal/logging"
	"github.com/taker007/crypto-guardian/internal/metrics"
	"github.com/taker007/crypto-guardian/internal/ratelimit"
	"github.com/taker007/crypto-guardian/internal/scan"
	"github.com/taker007/crypto-guardian/internal/security"
	"github.com/taker007/crypto-guardian/internal/signals"
	"github.com/taker007/crypto-guardian/internal/simulation"
	"github.com/taker007/crypto-guardian/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Scanner runs one transaction analysis. Satisfied by *scan.Service;
// tests inject fakes.
type Scanner interface {
	Scan(ctx context.Context, req scan.Request) (*scan.Response, error)
}

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	chains       *chains.Registry
	simClient    *simulation.Client
	scanner      Scanner
	denylist     denylist.Store
	checks       *health.Registry
	rateLimiter  *ratelimit.Limiter
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithScanner sets a custom scan pipeline (for testing)
func WithScanner(sc Scanner) Option {
	return func(s *Server) {
		s.scanner = sc
	}
}

// WithDenylist sets a custom denylist store (for testing)
func WithDenylist(store denylist.Store) Option {
	return func(s *Server) {
		s.denylist = store
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		chains: chains.NewRegistry(cfg.RPCEndpoints),
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set scanner/denylist/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if s.denylist == nil {
		if cfg.DatabaseURL != "" {
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}

			// Configure connection pool
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)

			// Test connection
			if err := db.Ping(); err != nil {
				return nil, fmt.Errorf("failed to connect to database: %w", err)
			}

			s.db = db
			s.denylist = denylist.NewPostgresStore(db)
			s.logger.Info("using PostgreSQL denylist", "url", maskDSN(cfg.DatabaseURL))
		} else {
			s.denylist = denylist.NewMemoryStore()
			s.logger.Info("using in-memory denylist (data will not persist)")
		}
	}

	// Chain simulation client and calldata signal extraction, shared by
	// every scan. The client holds one RPC connection per chain.
	if s.scanner == nil {
		s.simClient = simulation.NewClient(s.chains,
			simulation.WithTimeout(cfg.SimTimeout),
			simulation.WithLogger(s.logger),
		)
		extractor := signals.NewExtractor(s.simClient,
			signals.WithHighValueThreshold(cfg.HighValueETH),
			signals.WithExtractorLogger(s.logger),
		)
		s.scanner = scan.NewService(s.simClient, extractor,
			scan.WithDenylist(s.denylist),
			scan.WithBudget(cfg.ScanBudget),
		)
	}

	s.logger.Info("scan pipeline configured",
		"chains", len(cfg.RPCEndpoints),
		"sim_timeout", cfg.SimTimeout,
		"scan_budget", cfg.ScanBudget,
		"high_value_eth", cfg.HighValueETH,
	)

	s.setupHealthChecks()

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Health checks
// -----------------------------------------------------------------------------

func (s *Server) setupHealthChecks() {
	s.checks = health.NewRegistry()

	// RPC connectivity: a cheap eth_getCode against the first configured
	// chain. Skipped when the scanner is injected (no live client).
	if s.simClient != nil {
		s.checks.Register("rpc", func(ctx context.Context) health.Status {
			configured := s.chains.List()
			if len(configured) == 0 {
				return health.Status{Healthy: false, Detail: "no chains configured"}
			}
			probe := configured[0]
			if _, err := s.simClient.GetCode(ctx, probe.ChainID, "0x0000000000000000000000000000000000000000"); err != nil {
				return health.Status{Healthy: false, Detail: probe.Name + ": " + err.Error()}
			}
			return health.Status{Healthy: true, Detail: probe.Name}
		})
	}

	if s.db != nil {
		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Healthy: false, Detail: err.Error()}
			}
			return health.Status{Healthy: true}
		})
	}
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
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (wallet extensions call from arbitrary origins)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
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

		// Log level based on status code
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
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :address URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.AddressParamMiddleware())

	v1.POST("/scan", s.scanHandler)
	v1.GET("/chains", s.chainsHandler)
	v1.GET("/denylist/:address", s.denylistLookupHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	allHealthy, statuses := s.checks.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
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

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Crypto Guardian",
		"description": "Pre-signature transaction risk analysis",
		"version":     "0.1.0",
		"chains":      len(s.cfg.RPCEndpoints),
	})
}

// scanHandler handles POST /v1/scan
func (s *Server) scanHandler(c *gin.Context) {
	var req scan.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAddress("from", req.From),
		validation.ValidAddress("to", req.To),
		validation.ValidCalldata("data", req.Data, s.cfg.MaxCalldataBytes),
		validation.ValidQuantity("value", req.Value),
		validation.ValidQuantity("gas", req.Gas),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	if _, ok := s.chains.Endpoint(req.ChainID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unsupported_chain",
			"message": fmt.Sprintf("chain %s is not configured", req.ChainID),
		})
		return
	}

	req.From = validation.SanitizeAddress(req.From)
	req.To = validation.SanitizeAddress(req.To)

	resp, err := s.scanner.Scan(c.Request.Context(), req)
	if err != nil {
		logging.L(c.Request.Context()).Warn("scan rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// chainsHandler lists the chains this deployment can simulate against
func (s *Server) chainsHandler(c *gin.Context) {
	list := s.chains.List()
	c.JSON(http.StatusOK, gin.H{
		"chains": list,
		"count":  len(list),
	})
}

// denylistLookupHandler handles GET /v1/denylist/:address
func (s *Server) denylistLookupHandler(c *gin.Context) {
	ctx := c.Request.Context()
	addr := denylist.Normalize(c.Param("address"))

	entries, err := s.denylist.Lookup(ctx, addr)
	if err != nil {
		if errors.Is(err, denylist.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"address": addr,
				"listed":  false,
				"entries": []*denylist.Entry{},
			})
			return
		}
		logging.L(ctx).Error("denylist lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to query denylist",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": addr,
		"listed":  true,
		"entries": entries,
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
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

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Periodic runtime metrics sampling
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				metrics.SampleRuntime()
			}
		}
	}()

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
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

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Close per-chain RPC connections
	if s.simClient != nil {
		s.simClient.Close()
		s.logger.Info("simulation client closed")
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
