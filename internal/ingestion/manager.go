package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ringnet/hazardcore/internal/config"
	"github.com/ringnet/hazardcore/internal/events"
	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/observability"
	"github.com/ringnet/hazardcore/internal/repository"
	"github.com/ringnet/hazardcore/internal/worker"
)

type pollFunc func(ctx context.Context) ([]*models.HazardRecord, error)

// Manager runs the live-feed pollers and drains their records through a
// bounded worker pool into the store, announcing fresh inserts on the bus.
type Manager struct {
	cfg     *config.Config
	store   repository.HazardRepository
	bus     *events.Bus
	metrics *observability.Metrics
	pool    *worker.IngestPool
	wg      sync.WaitGroup
}

func NewManager(cfg *config.Config, store repository.HazardRepository, bus *events.Bus, metrics *observability.Metrics) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		metrics: metrics,
	}
}

func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, h *models.HazardRecord) error {
		inserted, err := m.store.UpsertHazard(ctx, h)
		if err != nil {
			slog.Error("error upserting hazard", "id", h.ID, "type", h.Type, "error", err)
			m.metrics.IngestErrors.WithLabelValues(h.Source).Inc()
			return err
		}
		if !inserted {
			m.metrics.RecordsDuplicate.WithLabelValues(h.Source).Inc()
			return nil
		}

		m.metrics.RecordsIngested.WithLabelValues(h.Source).Inc()
		if m.bus != nil {
			m.bus.Publish(h)
		}

		slog.Info("added hazard", "id", h.ID, "type", h.Type, "source", h.Source, "severity", h.Severity)
		return nil
	}

	m.pool = worker.NewIngestPool(m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.Start(ctx)

	if m.cfg.Sources.USGSEnabled {
		usgs := NewUSGSClient(m.cfg.Sources.USGSFeedURL, m.cfg.Sources.USGSQueryURL, m.cfg.Fetch.Timeout)
		m.wg.Add(1)
		go m.runPoller(ctx, usgs.Name(), usgs.Poll, m.cfg.Sources.USGSPollInterval)
	}

	if m.cfg.Sources.GDACSEnabled {
		gdacs := NewGDACSClient(m.cfg.Sources.GDACSURL, m.cfg.Fetch.Timeout)
		m.wg.Add(1)
		go m.runPoller(ctx, gdacs.Name(), gdacs.Poll, m.cfg.Sources.GDACSPollInterval)
	}
}

func (m *Manager) runPoller(ctx context.Context, source string, poll pollFunc, interval time.Duration) {
	defer m.wg.Done()
	slog.Info("starting poller", "source", source, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx, source, poll)

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller shutting down", "source", source)
			return
		case <-ticker.C:
			m.poll(ctx, source, poll)
		}
	}
}

func (m *Manager) poll(ctx context.Context, source string, poll pollFunc) {
	slog.Debug("polling", "source", source)

	records, err := poll(ctx)
	if err != nil {
		slog.Error("poll failed", "source", source, "error", err)
		m.metrics.IngestErrors.WithLabelValues(source).Inc()
		return
	}

	for _, h := range records {
		m.pool.Submit(h)
	}

	slog.Debug("poll complete", "source", source, "count", len(records))
}

func (m *Manager) Stop() {
	m.wg.Wait()
	m.pool.Stop()
	slog.Info("ingestion manager stopped")
}
