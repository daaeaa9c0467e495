package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/observability"
	"github.com/ringnet/hazardcore/internal/repository"
)

// stubProvider serves canned records per year and can be made to fail a
// fixed number of times to exercise the retry policy.
type stubProvider struct {
	name      string
	byYear    map[int][]*models.HazardRecord
	failYears map[int]error
	failFirst int // fail this many calls before succeeding
	calls     int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchYear(ctx context.Context, year int) ([]*models.HazardRecord, error) {
	p.calls++
	if p.failFirst > 0 {
		p.failFirst--
		return nil, errors.New("upstream 503")
	}
	if err, ok := p.failYears[year]; ok {
		return nil, err
	}
	return p.byYear[year], nil
}

func quakesFor(year, n int) []*models.HazardRecord {
	records := make([]*models.HazardRecord, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d-ev%d", year, i)
		records = append(records, &models.HazardRecord{
			ID:         "stub_" + id,
			Type:       models.HazardTypeEarthquake,
			SourceID:   id,
			Source:     "stub",
			Title:      "quake " + id,
			Location:   models.Location{Latitude: 35, Longitude: 139},
			OccurredAt: time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			Magnitude:  5.0,
			Severity:   models.SeverityModerate,
		})
	}
	return records
}

func newTestFetcher(t *testing.T, providers ...Provider) (*Fetcher, *repository.SQLiteStore) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	metrics := observability.NewMetricsForTesting()
	return NewFetcher(providers, store, metrics, time.Second, 3), store
}

func TestFetcher_FetchRange_RerunIsIdempotent(t *testing.T) {
	provider := &stubProvider{
		name:   "stub",
		byYear: map[int][]*models.HazardRecord{2020: quakesFor(2020, 5)},
	}
	fetcher, store := newTestFetcher(t, provider)
	ctx := context.Background()

	report, err := fetcher.FetchRange(ctx, 2020, 2020)
	require.NoError(t, err)
	require.False(t, report.Failed())
	assert.Equal(t, 5, report.Results[0].Inserted)

	// Same range again: same five upstream events, zero new records.
	report, err = fetcher.FetchRange(ctx, 2020, 2020)
	require.NoError(t, err)
	require.False(t, report.Failed())
	assert.Equal(t, 0, report.Results[0].Inserted)
	assert.Equal(t, 5, report.Results[0].Duplicates)

	stored, err := store.ListHazards(ctx, repository.Filter{})
	require.NoError(t, err)
	assert.Len(t, stored, 5, "re-running the range must not duplicate records")
}

func TestFetcher_FetchRange_PartialFailureContinues(t *testing.T) {
	provider := &stubProvider{
		name: "stub",
		byYear: map[int][]*models.HazardRecord{
			2019: quakesFor(2019, 2),
			2021: quakesFor(2021, 3),
		},
		failYears: map[int]error{2020: errors.New("gateway timeout")},
	}
	fetcher, store := newTestFetcher(t, provider)
	ctx := context.Background()

	report, err := fetcher.FetchRange(ctx, 2019, 2021)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.NoError(t, report.Results[0].Err)
	assert.Error(t, report.Results[1].Err, "2020 should be recorded as failed")
	assert.NoError(t, report.Results[2].Err, "2021 must still run after 2020 fails")
	assert.True(t, report.Failed())

	stored, err := store.ListHazards(ctx, repository.Filter{})
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestFetcher_FetchRange_RetriesTransientFailures(t *testing.T) {
	provider := &stubProvider{
		name:      "stub",
		byYear:    map[int][]*models.HazardRecord{2022: quakesFor(2022, 1)},
		failFirst: 2, // two failures, third attempt succeeds
	}
	fetcher, _ := newTestFetcher(t, provider)

	report, err := fetcher.FetchRange(context.Background(), 2022, 2022)
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.Equal(t, 1, report.Results[0].Inserted)
	assert.Equal(t, 3, provider.calls)
}

func TestFetcher_FetchRange_BoundedRetries(t *testing.T) {
	provider := &stubProvider{
		name:      "stub",
		byYear:    map[int][]*models.HazardRecord{2022: quakesFor(2022, 1)},
		failFirst: 5, // more failures than the attempt budget
	}
	fetcher, _ := newTestFetcher(t, provider)

	report, err := fetcher.FetchRange(context.Background(), 2022, 2022)
	require.NoError(t, err)
	assert.True(t, report.Failed())
	assert.Equal(t, 3, provider.calls, "one initial attempt plus two retries")
}

func TestFetcher_FetchRange_SkipsInvalidUpstreamRecords(t *testing.T) {
	bad := quakesFor(2020, 1)[0]
	bad.Location.Latitude = 400 // corrupt upstream coordinates

	provider := &stubProvider{
		name: "stub",
		byYear: map[int][]*models.HazardRecord{
			2020: append(quakesFor(2020, 2), bad),
		},
	}

	// quakesFor reuses source ids, so regenerate distinct ones for the bad record.
	bad.SourceID = "2020-bad"
	bad.ID = "stub_2020-bad"

	fetcher, store := newTestFetcher(t, provider)
	ctx := context.Background()

	report, err := fetcher.FetchRange(ctx, 2020, 2020)
	require.NoError(t, err)
	assert.False(t, report.Failed())

	stored, err := store.ListHazards(ctx, repository.Filter{})
	require.NoError(t, err)
	assert.Len(t, stored, 2, "the malformed record must never be persisted")
}

func TestFetcher_FetchRange_InvalidRange(t *testing.T) {
	fetcher, _ := newTestFetcher(t, &stubProvider{name: "stub"})

	_, err := fetcher.FetchRange(context.Background(), 2022, 2020)
	assert.Error(t, err)
}
