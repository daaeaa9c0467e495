package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ringnet/hazardcore/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIngestPool_ProcessesAllRecords(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, h *models.HazardRecord) error {
		processed.Add(1)
		return nil
	}

	pool := NewIngestPool(2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		pool.Submit(&models.HazardRecord{ID: "usgs_a", Type: models.HazardTypeEarthquake})
	}

	time.Sleep(50 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 records processed, got %d", processed.Load())
	}
}

func TestIngestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, h *models.HazardRecord) error {
		processed.Add(1)
		return nil
	}

	pool := NewIngestPool(4, 100, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 100; i++ {
		go pool.Submit(&models.HazardRecord{ID: "gdacs_b", Type: models.HazardTypeFlood})
	}

	time.Sleep(100 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 records processed, got %d", processed.Load())
	}
}

func TestIngestPool_GracefulShutdown(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, h *models.HazardRecord) error {
		time.Sleep(10 * time.Millisecond)
		processed.Add(1)
		return nil
	}

	pool := NewIngestPool(2, 50, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 20; i++ {
		pool.Submit(&models.HazardRecord{ID: "usgs_c"})
	}

	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("processed %d records before shutdown", processed.Load())
}
