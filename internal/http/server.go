// Package http serves the dashboard JSON API on top of the refresher's
// in-memory snapshot.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"sahayak/internal/cache"
	"sahayak/internal/core"
	"sahayak/internal/log"
	"sahayak/internal/middleware/ratelimit"
	"sahayak/internal/middleware/security"
	"sahayak/internal/middleware/trace"
	"sahayak/internal/services"
)

// Dashboard is the read side of the refresher plus its change trigger.
type Dashboard interface {
	Current() services.Snapshot
	Ready() bool
	Notify(kind core.ChangeKind) error
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration

	// Scoped aggregates are memoized per fingerprint and scope.
	ScopeCacheSize int
	ScopeCacheTTL  time.Duration
	SweepInterval  time.Duration

	RefreshLimit   ratelimit.Config
	TrustedProxies []string
	Headers        security.HeadersConfig
}

// DefaultServerConfig returns the settings used when a field is left zero.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8081",
		RequestTimeout: 10 * time.Second,
		ScopeCacheSize: 128,
		ScopeCacheTTL:  5 * time.Minute,
		SweepInterval:  10 * time.Minute,
		RefreshLimit:   ratelimit.DefaultConfig(),
		TrustedProxies: security.DefaultTrustedProxies,
		Headers:        security.DefaultHeadersConfig(),
	}
}

type Server struct {
	http.Server
	dash   Dashboard
	logger *log.Logger
	now    func() time.Time

	scoped  cache.Cache[core.AggregateResult]
	sweeper *cache.Sweeper
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	ips     *security.ClientIPResolver

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Zero config fields take their defaults.
func NewServer(cfg ServerConfig, dash Dashboard, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Discard()
	}
	cfg = withDefaults(cfg)

	ips, err := security.NewClientIPResolver(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	scoped := cache.NewLRUCache[core.AggregateResult](cfg.ScopeCacheSize, cfg.ScopeCacheTTL)
	s := &Server{
		dash:    dash,
		logger:  logger.WithComponent(log.ComponentHTTP),
		now:     time.Now,
		scoped:  scoped,
		sweeper: cache.NewSweeper(logger),
		limiter: ratelimit.NewLimiter(cfg.RefreshLimit),
		ips:     ips,
	}
	s.tracer = trace.NewMiddleware(logger, ips.ClientIP)
	s.sweeper.Register(scoped)
	s.sweeper.Start(cfg.SweepInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/aggregates", s.handleAggregates)
	mux.HandleFunc("GET /api/aggregates/daily", s.handleDaily)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/years", s.handleYears)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.Handle("POST /api/refresh", s.limiter.Middleware(ips.ClientIP, s.handleRateLimited)(
		http.HandlerFunc(s.handleRefresh)))

	var handler http.Handler = mux
	handler = http.TimeoutHandler(handler, cfg.RequestTimeout, `{"error":"request timed out"}`)
	handler = security.NewHeadersMiddleware(cfg.Headers).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func withDefaults(cfg ServerConfig) ServerConfig {
	d := DefaultServerConfig()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.ScopeCacheSize <= 0 {
		cfg.ScopeCacheSize = d.ScopeCacheSize
	}
	if cfg.ScopeCacheTTL <= 0 {
		cfg.ScopeCacheTTL = d.ScopeCacheTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}
	if cfg.RefreshLimit == (ratelimit.Config{}) {
		cfg.RefreshLimit = d.RefreshLimit
	}
	if cfg.TrustedProxies == nil {
		cfg.TrustedProxies = d.TrustedProxies
	}
	if cfg.Headers == (security.HeadersConfig{}) {
		cfg.Headers = d.Headers
	}
	return cfg
}

// Metrics returns the request counters of the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.Metrics()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.sweeper.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.dash.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
