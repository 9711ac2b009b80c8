package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vahan/internal/amqp"
	"vahan/internal/backend"
	"vahan/internal/cli"
	"vahan/internal/config"
	apphttp "vahan/internal/http"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Backend configuration failed", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	b := result.Backend
	srv := apphttp.NewServer(":"+cfg.Port, b, b, b, b, b)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for dataset refresh notifications so cached views never serve
	// stale data after the worker replaces the dataset. The dashboard still
	// works without AMQP; caches then simply expire on their own TTL.
	if cfg.AMQPURL != "" {
		go consumeRefreshNotifications(ctx, cfg, srv, logger)
	} else {
		logger.Info("AMQP disabled - view caches rely on TTL expiry only")
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting vahan dashboard", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// consumeRefreshNotifications keeps a consumer on the refreshed queue alive
// for the life of the process, re-dialing when the broker connection drops.
func consumeRefreshNotifications(ctx context.Context, cfg *config.Config, srv *apphttp.Server, logger *slog.Logger) {
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPIngestQueue, cfg.AMQPRefreshedQueue)
	if err != nil {
		logger.Warn("AMQP unavailable - view caches rely on TTL expiry only", "error", err)
		return
	}
	defer client.Close()

	handle := func(ctx context.Context, msg *amqp.DatasetRefreshedMessage) error {
		logger.InfoContext(ctx, "Dataset refreshed", "files", len(msg.Files), "records", msg.Records)
		srv.InvalidateViewCaches()
		return nil
	}

	for {
		err := client.ConsumeDatasetRefreshed(ctx, handle)
		if err == nil || ctx.Err() != nil {
			return
		}
		logger.Warn("Refresh notification consumer stopped", "error", err)
		if err := client.Redial(ctx, cfg.AMQPURL); err != nil {
			return
		}
	}
}
