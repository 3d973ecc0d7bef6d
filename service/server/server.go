package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brojonat/brtgate/service/brt"
	"github.com/brojonat/brtgate/service/config"
	"github.com/brojonat/brtgate/service/metrics"
	"github.com/brojonat/brtgate/service/nats"
)

// Ledger is the set of ledger operations the HTTP API exposes.
// *brt.Client implements it.
type Ledger interface {
	GetBlock(ctx context.Context, index uint64, expand bool) (*brt.Block, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetTotalSupply(ctx context.Context) string
	GetNetworkFee(ctx context.Context) (sdkmath.Int, error)
	GetTransaction(ctx context.Context, hash string) (*brt.Transaction, error)
	GetAddressBalance(ctx context.Context, address brt.Address) (string, error)
	GetAddressTransactions(ctx context.Context, address brt.Address) (map[string]*brt.Transaction, error)
	IsAddressValid(address brt.Address) bool
	IsTransactionIDValid(hash string) bool
	GenerateAddress() (brt.Address, *brt.Keypair, error)
	SignTransaction(ctx context.Context, input brt.Account, output brt.Recipient, fee sdkmath.Int) (*brt.SignedTransaction, error)
	SubmitTransaction(ctx context.Context, signed *brt.SignedTransaction) (string, error)
}

// Server represents the HTTP server for the ledger gateway.
type Server struct {
	addr       string
	network    string
	rpcTimeout time.Duration
	ledger     Ledger
	publisher  nats.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The publisher is optional - if nil, submission events are not published.
// The metrics is optional - if nil, the metrics endpoint is not available.
func New(cfg *config.Config, ledger Ledger, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:       cfg.ServerAddr,
		network:    cfg.Network,
		rpcTimeout: cfg.RPCTimeout,
		ledger:     ledger,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
}

// Handler builds the routing tree. It is exposed so tests can mount the API
// on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		h = timeoutMiddleware(s.rpcTimeout)(h)
		if s.metrics != nil {
			h = metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
		}
		mux.Handle(pattern, h)
	}

	// Ledger routes
	route("GET /api/v1/height", "/api/v1/height", handleGetHeight(s.ledger, s.logger))
	route("GET /api/v1/fee", "/api/v1/fee", handleGetFee(s.ledger, s.logger))
	route("GET /api/v1/supply", "/api/v1/supply", handleGetSupply(s.ledger))
	route("GET /api/v1/blocks/{index}", "/api/v1/blocks", handleGetBlock(s.ledger, s.logger))

	// Transaction routes
	route("GET /api/v1/transactions/{hash}", "/api/v1/transactions", handleGetTransaction(s.ledger, s.logger))
	route("POST /api/v1/transactions/sign", "/api/v1/transactions/sign", handleSignTransaction(s.ledger, s.logger))
	route("POST /api/v1/transactions/submit", "/api/v1/transactions/submit", handleSubmitTransaction(s.ledger, s.publisher, s.network, s.logger))

	// Address routes
	route("POST /api/v1/addresses", "/api/v1/addresses", handleGenerateAddress(s.ledger, s.logger))
	route("GET /api/v1/addresses/{address}/balance", "/api/v1/addresses/balance", handleGetAddressBalance(s.ledger, s.logger))
	route("GET /api/v1/addresses/{address}/transactions", "/api/v1/addresses/transactions", handleGetAddressTransactions(s.ledger, s.logger))
	route("GET /api/v1/addresses/{address}/valid", "/api/v1/addresses/valid", handleIsAddressValid(s.ledger))

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
	if s.publisher == nil {
		s.logger.Warn("NATS publisher not configured, submission events disabled")
	}
	if s.metrics != nil {
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.rpcTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "network", s.network)
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

// timeoutMiddleware bounds the node calls made while serving a request.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
