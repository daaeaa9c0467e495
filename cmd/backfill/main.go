package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ringnet/hazardcore/internal/config"
	"github.com/ringnet/hazardcore/internal/ingestion"
	"github.com/ringnet/hazardcore/internal/logging"
	"github.com/ringnet/hazardcore/internal/observability"
	"github.com/ringnet/hazardcore/internal/repository"
)

func main() {
	_ = godotenv.Load()

	currentYear := time.Now().UTC().Year()
	startYear := flag.Int("start", currentYear-5, "first year to ingest (inclusive)")
	endYear := flag.Int("end", currentYear, "last year to ingest (inclusive)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	store, err := repository.NewSQLiteStore(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	var providers []ingestion.Provider
	if cfg.Sources.USGSEnabled {
		providers = append(providers, ingestion.NewUSGSClient(
			cfg.Sources.USGSFeedURL, cfg.Sources.USGSQueryURL, cfg.Fetch.Timeout))
	}
	if cfg.Sources.GDACSEnabled {
		providers = append(providers, ingestion.NewGDACSClient(
			cfg.Sources.GDACSURL, cfg.Fetch.Timeout))
	}
	if len(providers) == 0 {
		logging.Fatalf("No sources enabled, nothing to backfill")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := ingestion.NewFetcher(providers, store, observability.NewMetrics(),
		cfg.Fetch.Timeout, cfg.Fetch.MaxAttempts)

	slog.Info("backfill starting", "start", *startYear, "end", *endYear, "providers", len(providers))

	report, err := fetcher.FetchRange(ctx, *startYear, *endYear)
	if err != nil {
		logging.Fatalf("Backfill failed: %v", err)
	}

	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Printf("%d: FAILED: %v\n", res.Year, res.Err)
			continue
		}
		fmt.Printf("%d: fetched=%d inserted=%d duplicates=%d\n",
			res.Year, res.Fetched, res.Inserted, res.Duplicates)
	}

	if report.Failed() {
		slog.Error("backfill finished with failed years")
		os.Exit(1)
	}
	slog.Info("backfill complete")
}
