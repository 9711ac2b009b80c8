package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vahan/internal/amqp"
	"vahan/internal/cli"
	"vahan/internal/services"
	"vahan/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting vahan-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// The worker always writes to SQLite; the dashboard chooses its own
	// read backend independently.
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// AMQP client for consuming ingest requests and publishing refresh
	// notifications (optional).
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPIngestQueue, cfg.AMQPRefreshedQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - relying on periodic rescans only")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var publisher services.RefreshedPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	service := services.NewIngestService(repo, publisher, cfg.DataDir)
	ingestWorker := worker.NewIngestWorker(service)

	// On startup, pick up files dropped while the worker was down.
	if err := ingestWorker.StartupRefresh(ctx); err != nil {
		logger.Error("Startup refresh failed", "error", err)
		// Don't exit - the periodic rescan will retry
	}

	// Consume ingest requests, re-dialing when the broker connection drops.
	if amqpClient != nil {
		go func() {
			for {
				err := amqpClient.ConsumeDatasetIngest(ctx, ingestWorker.HandleIngestMessage)
				if err == nil || ctx.Err() != nil {
					return
				}
				logger.Error("Message consumption failed", "error", err)
				if err := amqpClient.Redial(ctx, cfg.AMQPURL); err != nil {
					cancel()
					return
				}
			}
		}()
	}

	// Periodic rescan catches lost messages and out-of-band file drops.
	ticker := time.NewTicker(cfg.RescanInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ingestWorker.Rescan(ctx); err != nil {
					logger.Error("Periodic rescan failed", "error", err)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight refreshes a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
