package ingestion

import (
	"context"

	"github.com/ringnet/hazardcore/internal/models"
)

// Provider is an upstream hazard data source. The exact provider shape
// (URL, pagination, field mapping) lives entirely in the adapter so the
// fetcher never hard-codes one upstream's contract.
type Provider interface {
	Name() string
	// FetchYear retrieves every hazard the provider knows about for the
	// given calendar year, already normalized into HazardRecords.
	FetchYear(ctx context.Context, year int) ([]*models.HazardRecord, error)
}
