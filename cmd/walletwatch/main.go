package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/walletwatch/service/activity"
	"github.com/brojonat/walletwatch/service/config"
	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metadata"
	"github.com/brojonat/walletwatch/service/metrics"
	natspkg "github.com/brojonat/walletwatch/service/nats"
	"github.com/brojonat/walletwatch/service/pipeline"
	"github.com/brojonat/walletwatch/service/presenter"
	"github.com/brojonat/walletwatch/service/server"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var version = "dev"

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting walletwatch",
		"version", version,
		"wallets", len(cfg.TrackedWallets),
		"server_addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)
	server.Version = version

	if err := run(cfg, logger); err != nil {
		logger.Error("walletwatch exited with error", "error", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until shutdown. Deferred cleanup, including
// the NATS publisher flush, completes before run returns.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// nil uses the default registry
	metricsCollector := metrics.NewMetrics(nil)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Ledger access
	rpcClient := solana.NewClient(solana.NewRPCClient(cfg.RPCURL), solana.EndpointLabel(cfg.RPCURL), metricsCollector, logger)
	logger.Info("initialized solana RPC client", "endpoint", solana.EndpointLabel(cfg.RPCURL))

	// Token metadata and prices
	httpClient := &http.Client{Timeout: 30 * time.Second}
	prices := metadata.ChainPriceClient{
		metadata.NewJupiterPriceClient(cfg.PriceAPIURL, httpClient),
		metadata.NewDexScreenerPriceClient(cfg.DexScreenerAPIURL, httpClient),
	}
	resolver := metadata.NewResolver(
		rpcClient,
		metadata.NewOffChainFetcher(httpClient),
		prices,
		metadata.ResolverConfig{
			Metadata:     metadata.CachePolicy{TTL: cfg.MetadataCacheTTL, MaxEntries: cfg.MetadataCacheSize},
			PriceTTL:     cfg.PriceTTL,
			RPCTimeout:   cfg.RPCTimeout,
			FetchTimeout: cfg.MetadataFetchTimeout,
			PriceTimeout: cfg.PriceTimeout,
		},
		metricsCollector,
		logger,
	)

	fetcher := activity.NewFetcher(rpcClient, resolver, activity.NewClassifier(), cfg.RPCTimeout, metricsCollector, logger)
	enricher := enrich.NewEnricher(
		resolver,
		metadata.NewSOLPriceOracle(resolver, cfg.SOLFallbackPrice),
		enrich.NewPositionTracker(),
		metricsCollector,
		logger,
	)

	// Optional NATS publishing and SSE
	var publisher natspkg.Publisher
	var activitySource server.ActivitySource
	if cfg.NATSURL != "" {
		p, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize NATS publisher: %w", err)
		}
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("failed to close NATS publisher", "error", err)
			}
		}()
		publisher = p

		src, err := server.NewStreamSource(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize SSE stream source: %w", err)
		}
		activitySource = src
	} else {
		logger.Warn("NATS_URL not set, activity publishing and streaming disabled")
	}

	var reportOut io.Writer
	if cfg.ReportOutput == config.ReportStdout {
		reportOut = os.Stdout
	}

	pipe := pipeline.New(
		pipeline.Config{
			Concurrency:   cfg.PipelineConcurrency,
			DedupCapacity: cfg.DedupCapacity,
			Output:        reportOut,
		},
		activity.NewNormalizer(activity.NewBalanceTracker(cfg.BalanceTracking), logger),
		fetcher,
		enricher,
		presenter.New(presenter.ColorEnabled(os.Stdout)),
		publisher,
		metricsCollector,
		logger,
	)

	stream, err := solana.NewAccountStream(cfg.WSURL, cfg.TrackedWallets, rpcClient, cfg.KeepaliveInterval, cfg.RPCTimeout, metricsCollector, logger)
	if err != nil {
		return fmt.Errorf("failed to create account stream: %w", err)
	}

	events := make(chan *solana.UpdateEvent, 256)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := stream.Run(ctx, events); err != nil && ctx.Err() == nil {
			logger.Error("account stream stopped", "error", err)
		}
	}()

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := pipe.Run(ctx, events); err != nil && ctx.Err() == nil {
			logger.Error("pipeline stopped", "error", err)
		}
	}()

	httpServer := server.New(cfg.ServerAddr, server.Deps{
		Fetcher:  fetcher,
		Enricher: enricher,
		Tokens:   resolver,
		Activity: activitySource,
	}, metricsCollector, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Warn("live activity page disabled", "error", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	logger.Info("walletwatch initialized, watching wallets", "wallets", cfg.TrackedWallets)

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	cancel()
	<-streamDone
	<-pipelineDone

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown metrics server", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
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
