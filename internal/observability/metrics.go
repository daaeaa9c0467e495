package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for ingestion and
// notification dispatch.
type Metrics struct {
	RecordsIngested   *prometheus.CounterVec // labels: source
	RecordsDuplicate  *prometheus.CounterVec // labels: source
	IngestErrors      *prometheus.CounterVec // labels: source
	FetchYearFailures prometheus.Counter
	FetchDuration     prometheus.Histogram

	NotificationsCreated prometheus.Counter
	NotificationsSkipped prometheus.Counter
	DeliveryErrors       prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsIngested,
		m.RecordsDuplicate,
		m.IngestErrors,
		m.FetchYearFailures,
		m.FetchDuration,
		m.NotificationsCreated,
		m.NotificationsSkipped,
		m.DeliveryErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazardcore",
			Name:      "records_ingested_total",
			Help:      "Fresh hazard records written to the store, by source.",
		}, []string{"source"}),
		RecordsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazardcore",
			Name:      "records_duplicate_total",
			Help:      "Upserts that matched an existing (type, source_id) key, by source.",
		}, []string{"source"}),
		IngestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazardcore",
			Name:      "ingest_errors_total",
			Help:      "Failed polls or store writes, by source.",
		}, []string{"source"}),
		FetchYearFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardcore",
			Name:      "fetch_year_failures_total",
			Help:      "Historical fetch years that failed after all retries.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazardcore",
			Name:      "fetch_year_duration_seconds",
			Help:      "Duration of one provider-year historical fetch, retries included.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		NotificationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardcore",
			Name:      "notifications_created_total",
			Help:      "Notification records created by the dispatcher.",
		}),
		NotificationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardcore",
			Name:      "notifications_skipped_total",
			Help:      "Dispatch attempts skipped because the (user, hazard) pair already existed.",
		}),
		DeliveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazardcore",
			Name:      "delivery_errors_total",
			Help:      "Failed hand-offs to the external delivery collaborator.",
		}),
	}
}
