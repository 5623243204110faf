// Package main provides the cinesync command, a single entry point meant for
// unattended scheduled execution (cron). It scrapes the cinema site, writes
// the master spreadsheet and exits non-zero only when the sink rejected
// every write.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cinesync/internal/config"
	"cinesync/internal/crawler"
	"cinesync/internal/logger"
	"cinesync/internal/normalizer"
	"cinesync/internal/pipeline"
	"cinesync/internal/poster"
	"cinesync/internal/report"
	"cinesync/internal/sink"
	"cinesync/internal/writer"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	credentials := flag.String("credentials", "", "Override sink.credentials_path")
	maxConcurrency := flag.Int("max-concurrency", 0, "Override scrape.max_concurrency")
	batchSize := flag.Int("batch-size", 0, "Override sink.batch_size")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cinesync: %v\n", err)
		return 1
	}

	if *credentials != "" {
		cfg.Sink.CredentialsPath = *credentials
	}

	if *maxConcurrency > 0 {
		cfg.Scrape.MaxConcurrency = *maxConcurrency
	}

	if *batchSize > 0 {
		cfg.Sink.BatchSize = *batchSize
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "cinesync: %v\n", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logging.Level)
	log.Info("starting scrape run", "config", cfg.String())

	// Already-flushed batches stay durable on interrupt; unflushed records
	// are lost and picked up again by the next scheduled run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The sink handle is acquired once per run and passed down explicitly.
	sheet, err := sink.OpenSheets(ctx, cfg.Sink.CredentialsPath, cfg.Sink.SpreadsheetID, cfg.Sink.Worksheet)
	if err != nil {
		log.Error("failed to open sink", "error", err)
		return 1
	}

	scraper := crawler.NewScraperWithConfig(&cfg.Retry)
	parser := crawler.NewParser(cfg.Scrape.BaseURL)
	client := crawler.NewClient(scraper, parser, log, cfg.Scrape.MaxDays, cfg.Scrape.RequestDelay())

	transformer := normalizer.NewTransformer(cfg.Sink.CellLimit, cfg.Sink.TruncationMarker)

	var downloader *poster.Downloader
	if cfg.Posters.Enabled {
		downloader = poster.NewDownloader(cfg.Posters.Dir, cfg.Retry.GetTimeout())
	}

	w := writer.NewWriter(sheet, cfg.Sink.BatchSize, &cfg.Retry, log)

	sum, runErr := pipeline.New(cfg, log, client, transformer, downloader, w).Run(ctx)

	fmt.Println(report.Render(sum))

	if runErr != nil {
		log.Error("run failed", "error", runErr)
		return 1
	}

	return 0
}
