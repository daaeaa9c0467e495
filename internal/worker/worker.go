package worker

import (
	"context"
	"sync"

	"github.com/ringnet/hazardcore/internal/models"
)

// ProcessFunc handles one hazard record pulled off the ingest queue.
type ProcessFunc func(ctx context.Context, h *models.HazardRecord) error

// IngestPool is a bounded pool draining hazard records from the pollers and
// the historical fetcher into the store.
type IngestPool struct {
	numWorkers int
	jobs       chan *models.HazardRecord
	processor  ProcessFunc
	wg         sync.WaitGroup
}

func NewIngestPool(numWorkers int, bufferSize int, processor ProcessFunc) *IngestPool {
	return &IngestPool{
		numWorkers: numWorkers,
		jobs:       make(chan *models.HazardRecord, bufferSize),
		processor:  processor,
	}
}

func (p *IngestPool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *IngestPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-p.jobs:
			if !ok {
				return
			}
			p.processor(ctx, h)
		}
	}
}

func (p *IngestPool) Submit(h *models.HazardRecord) {
	p.jobs <- h
}

func (p *IngestPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
