package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the engine-level metrics shared by every pipeline run.
type Metrics struct {
	// Pipeline metrics
	RunStatus            *prometheus.GaugeVec
	ItemsProcessed       *prometheus.CounterVec
	ItemsSucceeded       *prometheus.CounterVec
	ItemsFailed          *prometheus.CounterVec
	EntitiesCreated      *prometheus.CounterVec
	RelationshipsCreated *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	StageDuration        *prometheus.HistogramVec
	ErrorsTotal          *prometheus.CounterVec

	// Advanced relationship metrics
	AdvancedRelationships *prometheus.CounterVec

	// Source metrics
	SourceConnected *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all engine metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RunStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "kgraph",
				Subsystem: "pipeline",
				Name:      "run_status",
				Help:      "Pipeline run status (0=idle, 1=connecting, 2=processing, 3=applying_relationships, 4=disconnecting, 5=completed, 6=failed)",
			},
			[]string{"source_type"},
		),

		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kgraph",
				Subsystem: "items",
				Name:      "processed_total",
				Help:      "Total number of items processed",
			},
			[]string{"source_type"},
		),

		ItemsSucceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kgraph",
				Subsystem: "items",
				Name:      "succeeded_total",
				Help:      "Total number of items that completed all stages",
			},
			[]string{"source_type"},
		),

		ItemsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kgraph",
				Subsystem: "items",
				Name:      "failed_total",
				Help:      "Total number of items that failed a stage",
			},
			[]string{"source_type"},
		),

		EntitiesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kgraph",
				Subsystem: "graph",
				Name:      "entities_created_total",
				Help:      "Total number of entity nodes written",
			},
			[]string{"source_type"},
		),

		RelationshipsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kgraph",
				Subsystem: "graph",
				Name:      "relationships_created_total",
				Help:      "Total number of relationship edges written",
			},
			[]string{"source_type"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kgraph",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "End-to-end pipeline run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"source_type", "status"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kgraph",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Per-item stage duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source_type", "stage"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kgraph",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		AdvancedRelationships: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kgraph",
				Subsystem: "graph",
				Name:      "advanced_relationships_total",
				Help:      "Total number of derived relationship edges by family",
			},
			[]string{"family", "ontology"},
		),

		SourceConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "kgraph",
				Subsystem: "source",
				Name:      "connected",
				Help:      "Source connection status (0=disconnected, 1=connected)",
			},
			[]string{"source_type"},
		),
	}
}

// RecordRunStatus updates the pipeline run status gauge.
func (c *Metrics) RecordRunStatus(sourceType string, status int) {
	c.RunStatus.WithLabelValues(sourceType).Set(float64(status))
}

// RecordItemProcessed increments the processed counter and the succeeded
// or failed counter for the item's outcome.
func (c *Metrics) RecordItemProcessed(sourceType string, succeeded bool) {
	c.ItemsProcessed.WithLabelValues(sourceType).Inc()
	if succeeded {
		c.ItemsSucceeded.WithLabelValues(sourceType).Inc()
	} else {
		c.ItemsFailed.WithLabelValues(sourceType).Inc()
	}
}

// RecordEntitiesCreated adds to the entity node counter.
func (c *Metrics) RecordEntitiesCreated(sourceType string, count int) {
	c.EntitiesCreated.WithLabelValues(sourceType).Add(float64(count))
}

// RecordRelationshipsCreated adds to the relationship edge counter.
func (c *Metrics) RecordRelationshipsCreated(sourceType string, count int) {
	c.RelationshipsCreated.WithLabelValues(sourceType).Add(float64(count))
}

// RecordRunDuration records one completed run.
func (c *Metrics) RecordRunDuration(sourceType, status string, duration time.Duration) {
	c.RunDuration.WithLabelValues(sourceType, status).Observe(duration.Seconds())
}

// RecordStageDuration records one per-item stage timing.
func (c *Metrics) RecordStageDuration(sourceType, stage string, duration time.Duration) {
	c.StageDuration.WithLabelValues(sourceType, stage).Observe(duration.Seconds())
}

// RecordError increments the error counter.
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordAdvancedRelationships adds derived edges for one family.
func (c *Metrics) RecordAdvancedRelationships(family, ontology string, count int) {
	c.AdvancedRelationships.WithLabelValues(family, ontology).Add(float64(count))
}

// RecordSourceStatus updates the source connection gauge.
func (c *Metrics) RecordSourceStatus(sourceType string, connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.SourceConnected.WithLabelValues(sourceType).Set(value)
}
