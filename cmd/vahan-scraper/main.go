package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"vahan/internal/amqp"
	"vahan/internal/cli"
	"vahan/internal/scraper"
)

func main() {
	once := flag.Bool("once", false, "scrape a single time and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting vahan-scraper")

	cfg := cli.LoadAndValidateConfig(logger)

	reportMap, err := cfg.Reports()
	if err != nil {
		logger.Error("Invalid SCRAPE_REPORTS", "error", err)
		os.Exit(1)
	}
	if len(reportMap) == 0 {
		logger.Error("No reports configured - set SCRAPE_REPORTS to name=url pairs")
		os.Exit(1)
	}

	names := make([]string, 0, len(reportMap))
	for name := range reportMap {
		names = append(names, name)
	}
	sort.Strings(names)

	reports := make([]scraper.Report, 0, len(names))
	for _, name := range names {
		reports = append(reports, scraper.Report{Name: name, URL: reportMap[name]})
	}

	// AMQP publisher so the worker ingests new files immediately instead of
	// waiting for its next rescan (optional).
	var publisher scraper.IngestPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPIngestQueue, cfg.AMQPRefreshedQueue)
		if err != nil {
			logger.Warn("AMQP unavailable - files will be picked up by the worker's rescan", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	s := scraper.New(reports, cfg.DataDir, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := s.Run(ctx); err != nil {
		logger.Error("Scrape run failed", "error", err)
		os.Exit(1)
	}
	if *once {
		logger.Info("Single scrape complete")
		return
	}

	ticker := time.NewTicker(cfg.ScrapeInterval)
	defer ticker.Stop()

	logger.Info("Scraping on interval", "interval", cfg.ScrapeInterval.String(), "reports", len(reports))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Scraper stopped")
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				logger.Error("Scrape run failed", "error", err)
			}
		}
	}
}
