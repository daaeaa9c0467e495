package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/observability"
	"github.com/ringnet/hazardcore/internal/repository"
)

// Fetcher pulls historical hazard data year by year and writes it through
// the store's idempotent upsert. One failing year never aborts the range.
type Fetcher struct {
	providers   []Provider
	store       repository.HazardRepository
	metrics     *observability.Metrics
	timeout     time.Duration
	maxAttempts uint64
}

func NewFetcher(providers []Provider, store repository.HazardRepository, metrics *observability.Metrics, timeout time.Duration, maxAttempts int) *Fetcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Fetcher{
		providers:   providers,
		store:       store,
		metrics:     metrics,
		timeout:     timeout,
		maxAttempts: uint64(maxAttempts),
	}
}

// YearResult is the outcome of ingesting a single year across all providers.
type YearResult struct {
	Year       int
	Fetched    int
	Inserted   int
	Duplicates int
	Err        error
}

type Report struct {
	StartYear, EndYear int
	Results            []YearResult
}

// Failed reports whether any year in the range failed.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// FetchRange ingests every year in [startYear, endYear]. Each provider-year
// is retried with exponential backoff up to the configured attempt count;
// after that the failure is recorded in the year's result and the fetch
// moves on.
func (f *Fetcher) FetchRange(ctx context.Context, startYear, endYear int) (Report, error) {
	if startYear > endYear {
		return Report{}, fmt.Errorf("invalid year range: %d > %d", startYear, endYear)
	}

	report := Report{StartYear: startYear, EndYear: endYear}
	for year := startYear; year <= endYear; year++ {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Results = append(report.Results, f.fetchYear(ctx, year))
	}
	return report, nil
}

func (f *Fetcher) fetchYear(ctx context.Context, year int) YearResult {
	result := YearResult{Year: year}
	var errs []error

	for _, p := range f.providers {
		start := time.Now()
		records, err := f.fetchWithRetry(ctx, p, year)
		f.metrics.FetchDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			slog.Error("year fetch failed after retries",
				"provider", p.Name(), "year", year, "error", err)
			f.metrics.FetchYearFailures.Inc()
			errs = append(errs, fmt.Errorf("%s year %d: %w", p.Name(), year, err))
			continue
		}

		valid := records[:0]
		for _, h := range records {
			if verr := h.Validate(); verr != nil {
				slog.Warn("skipping invalid upstream record",
					"provider", p.Name(), "year", year, "source_id", h.SourceID, "error", verr)
				continue
			}
			valid = append(valid, h)
		}

		inserted, err := f.store.BatchUpsertHazards(ctx, valid)
		if err != nil {
			slog.Error("batch upsert failed",
				"provider", p.Name(), "year", year, "count", len(valid), "error", err)
			errs = append(errs, fmt.Errorf("%s year %d store: %w", p.Name(), year, err))
			continue
		}

		result.Fetched += len(valid)
		result.Inserted += inserted
		result.Duplicates += len(valid) - inserted
		f.metrics.RecordsIngested.WithLabelValues(p.Name()).Add(float64(inserted))
		f.metrics.RecordsDuplicate.WithLabelValues(p.Name()).Add(float64(len(valid) - inserted))

		slog.Info("year ingested",
			"provider", p.Name(), "year", year,
			"fetched", len(valid), "inserted", inserted)
	}

	result.Err = errors.Join(errs...)
	return result
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, p Provider, year int) ([]*models.HazardRecord, error) {
	var records []*models.HazardRecord

	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		var err error
		records, err = p.FetchYear(attemptCtx, year)
		if err != nil {
			slog.Warn("fetch attempt failed", "provider", p.Name(), "year", year, "error", err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.maxAttempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return records, nil
}
