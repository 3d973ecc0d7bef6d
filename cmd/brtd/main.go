package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brojonat/brtgate/service/brt"
	"github.com/brojonat/brtgate/service/config"
	"github.com/brojonat/brtgate/service/keys"
	"github.com/brojonat/brtgate/service/metrics"
	"github.com/brojonat/brtgate/service/nats"
	"github.com/brojonat/brtgate/service/server"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"network", cfg.Network,
	)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewMetrics(prometheus.DefaultRegisterer)
	}

	// Initialize ledger node client
	gateway := brt.NewGateway(cfg.RPCURL, brt.GatewayOptions{
		HTTPClient: &http.Client{Timeout: cfg.RPCTimeout},
		User:       cfg.RPCUser,
		Password:   cfg.RPCPassword,
	})
	defer gateway.Close()

	ledger := brt.NewClient(gateway, keys.NewProvider(), keys.NewSigner(), brt.EndpointLabel(cfg.RPCURL), m, logger)
	logger.Info("initialized ledger RPC client", "url", cfg.RPCURL)

	// NATS is optional: without it submissions are not published
	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		p, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	}

	// Check the node once so a bad URL shows up in the startup logs
	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.RPCTimeout)
	if height, err := ledger.GetBlockNumber(startCtx); err != nil {
		logger.Warn("ledger node not reachable at startup", "error", err)
	} else {
		logger.Info("connected to ledger node", "height", height)
	}
	startCancel()

	httpServer := server.New(cfg, ledger, publisher, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
