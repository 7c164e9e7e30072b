package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solxr/service/auth"
	"github.com/brojonat/solxr/service/cache"
	"github.com/brojonat/solxr/service/config"
	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/metrics"
	"github.com/brojonat/solxr/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP front end of the strategy engine.
type Server struct {
	addr      string
	cfg       *config.Config
	engine    *engine.Engine
	cache     *cache.QueryCache
	scheduler temporal.Scheduler
	replay    auth.ReplayGuard
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The cache is optional - if nil, queries always hit the store.
// The scheduler is optional - if nil, rounds only close through governance.
// The metrics is optional - if nil, the /metrics endpoint is not served.
// Signatures are remembered in process until WithReplayGuard says otherwise.
func New(addr string, cfg *config.Config, e *engine.Engine, qc *cache.QueryCache, scheduler temporal.Scheduler, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		cfg:       cfg,
		engine:    e,
		cache:     qc,
		scheduler: scheduler,
		replay:    auth.NewMemoryGuard(),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithReplayGuard replaces the in-process signature memory, typically with
// one shared by every server replica.
func (s *Server) WithReplayGuard(g auth.ReplayGuard) *Server {
	s.replay = g
	return s
}

// Handler builds the routing tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var skew time.Duration
	if s.cfg != nil {
		skew = s.cfg.SignatureMaxSkew
	}
	sign := func(h http.Handler) http.Handler {
		return requireSignature(skew, s.replay, s.now, s.logger, h)
	}
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Setup
	route("POST /api/v1/token/initialize", "/api/v1/token/initialize", sign(handleInitializeToken(s.engine, s.logger)))
	route("POST /api/v1/editions/initialize", "/api/v1/editions/initialize", sign(handleInitializeEditions(s.engine, s.logger)))

	// Treasury
	route("POST /api/v1/invest", "/api/v1/invest", sign(handleInvest(s.engine, s.logger)))
	route("POST /api/v1/airdrop", "/api/v1/airdrop", sign(handleAirdrop(s.engine, s.logger)))
	route("GET /api/v1/balances/{wallet}", "/api/v1/balances/{wallet}", handleGetBalance(s.engine, s.cache, s.logger))
	route("GET /api/v1/strategy", "/api/v1/strategy", handleGetStrategy(s.engine, s.cache, s.logger))

	// Premium rounds
	route("POST /api/v1/rounds", "/api/v1/rounds", sign(handleOpenRound(s.engine, s.scheduler, s.logger)))
	route("POST /api/v1/rounds/close", "/api/v1/rounds/close", sign(handleCloseRound(s.engine, s.scheduler, s.logger)))
	route("POST /api/v1/rounds/{id}/buy", "/api/v1/rounds/{id}/buy", sign(handleBuyRound(s.engine, s.logger)))
	route("GET /api/v1/rounds/{id}", "/api/v1/rounds/{id}", handleGetRound(s.engine, s.cache, s.logger))
	route("GET /api/v1/rounds/{id}/participants/{wallet}", "/api/v1/rounds/{id}/participants/{wallet}", handleGetRoundParticipant(s.engine, s.cache, s.logger))

	// Offerings
	route("POST /api/v1/offerings/{kind}", "/api/v1/offerings/{kind}", sign(handleCreateOffering(s.engine, s.logger)))
	route("POST /api/v1/offerings/{kind}/{id}/buy", "/api/v1/offerings/{kind}/{id}/buy", sign(handleBuyEdition(s.engine, s.logger)))
	route("POST /api/v1/offerings/{kind}/{id}/editions/{edition}/redeem", "/api/v1/offerings/{kind}/{id}/editions/{edition}/redeem", sign(handleRedeem(s.engine, s.logger)))
	route("POST /api/v1/offerings/{kind}/{id}/editions/{edition}/transfer", "/api/v1/offerings/{kind}/{id}/editions/{edition}/transfer", sign(handleTransferEdition(s.engine, s.logger)))
	route("GET /api/v1/offerings/{kind}/{id}", "/api/v1/offerings/{kind}/{id}", handleGetOffering(s.engine, s.cache, s.logger))
	route("GET /api/v1/offerings/{kind}/{id}/participants/{wallet}", "/api/v1/offerings/{kind}/{id}/participants/{wallet}", handleGetParticipant(s.engine, s.cache, s.logger))
	route("GET /api/v1/offerings/{kind}/{id}/editions/{edition}", "/api/v1/offerings/{kind}/{id}/editions/{edition}", handleGetEdition(s.engine, s.cache, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cache == nil {
		s.logger.Warn("query cache not configured, queries read the store directly")
	}
	if s.scheduler == nil {
		s.logger.Warn("round scheduler not configured, rounds close only through governance")
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Solxr-Wallet, X-Solxr-Timestamp, X-Solxr-Nonce, X-Solxr-Signature, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
