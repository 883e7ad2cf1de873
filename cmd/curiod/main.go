package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"curioledger/config"
	"curioledger/core"
	"curioledger/gateway"
	"curioledger/gateway/middleware"
	"curioledger/observability/logging"
	"curioledger/observability/otel"
	"curioledger/storage"
)

func main() {
	configFile := flag.String("config", "./curiod.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("curiod", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := func(context.Context) error { return nil }
	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdownTelemetry, err = otel.Init(ctx, otel.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", "error", err)
			os.Exit(1)
		}
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open database", "error", err, "dir", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	routing, err := cfg.RoutingPolicy()
	if err != nil {
		logger.Error("invalid lease routing policy", "error", err)
		os.Exit(1)
	}
	node, err := core.NewNode(db, core.Options{Routing: routing})
	if err != nil {
		logger.Error("failed to build node", "error", err)
		os.Exit(1)
	}

	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("invalid owner address", "error", err)
		os.Exit(1)
	}
	platform, err := cfg.Platform()
	if err != nil {
		logger.Error("invalid platform address", "error", err)
		os.Exit(1)
	}
	unitPrice, err := cfg.GenesisUnitPrice()
	if err != nil {
		logger.Error("invalid genesis unit price", "error", err)
		os.Exit(1)
	}
	if err := node.ApplyGenesis(core.Genesis{
		Owner:         owner,
		Platform:      platform,
		UnitPrice:     unitPrice,
		CommissionBps: cfg.Genesis.CommissionBps,
		RoyaltyBps:    cfg.Genesis.RoyaltyBps,
		BaseURI:       cfg.Genesis.BaseURI,
	}); err != nil {
		logger.Error("failed to apply genesis", "error", err)
		os.Exit(1)
	}

	var authenticator *middleware.Authenticator
	if cfg.Auth.Enabled {
		secret, err := cfg.Auth.Secret()
		if err != nil {
			logger.Error("failed to resolve auth secret", "error", err)
			os.Exit(1)
		}
		authenticator = middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:  true,
			Secret:   secret,
			Audience: cfg.Auth.Audience,
		}, logger)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer limiter.Close()
	handler := gateway.NewRouter(gateway.NewServer(node), gateway.RouterConfig{
		Authenticator: authenticator,
		RateLimiter:   limiter,
		Observability: middleware.NewObservability(cfg.Telemetry.ServiceName, logger),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", cfg.ListenAddress, "routing", routing.String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", "error", err)
	}
	logger.Info("curiod stopped")
}
