// Package relationships derives additional graph edges from already
// persisted nodes, driven by the advancedRelationships block of an
// ontology. Four independent families are supported: temporal ordering,
// hierarchical containment, weighted similarity, and raw complex-pattern
// queries. Families run only when their ontology block enables them, and
// a failing family never aborts the others.
package relationships

import (
	"context"
	"log/slog"
	"time"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/metric"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// ApplyResult counts the edges each family created during one apply.
type ApplyResult struct {
	Temporal     int `json:"temporal"`
	Hierarchical int `json:"hierarchical"`
	Similarity   int `json:"similarity"`
	Complex      int `json:"complex"`
}

// Total returns the number of edges created across all families.
func (r ApplyResult) Total() int {
	return r.Temporal + r.Hierarchical + r.Similarity + r.Complex
}

// Engine derives relationships over a graph store.
type Engine struct {
	store    graph.Store
	registry *ontology.Registry
	logger   *slog.Logger
	metrics  *metric.Metrics // optional
}

// NewEngine builds an Engine. metrics may be nil.
func NewEngine(store graph.Store, registry *ontology.Registry, logger *slog.Logger, metrics *metric.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, registry: registry, logger: logger, metrics: metrics}
}

// ApplyOntologyConfiguration runs every enabled family of the named
// ontology's advanced-relationship configuration. Family failures are
// logged and skipped; the returned error is non-nil only when the
// ontology itself is unknown.
func (e *Engine) ApplyOntologyConfiguration(ctx context.Context, ontologyName string) (*ApplyResult, error) {
	def, ok := e.registry.Definition(ontologyName)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrOntologyNotFound, "Engine", "ApplyOntologyConfiguration", "lookup ontology "+ontologyName)
	}

	result := &ApplyResult{}
	if def.Advanced == nil {
		e.logger.Debug("ontology has no advanced relationship configuration", "ontology", ontologyName)
		return result, nil
	}

	started := time.Now()
	cfg := def.Advanced

	if cfg.Temporal != nil && cfg.Temporal.Enabled {
		count, err := e.applyTemporal(ctx, cfg.Temporal)
		if err != nil {
			e.logger.Warn("temporal relationship derivation failed", "ontology", ontologyName, "error", err)
		}
		result.Temporal = count
		e.recordFamily("temporal", ontologyName, count)
	}

	if cfg.Hierarchical != nil && cfg.Hierarchical.Enabled {
		count, err := e.applyHierarchical(ctx, cfg.Hierarchical)
		if err != nil {
			e.logger.Warn("hierarchical relationship derivation failed", "ontology", ontologyName, "error", err)
		}
		result.Hierarchical = count
		e.recordFamily("hierarchical", ontologyName, count)
	}

	if cfg.Similarity != nil && cfg.Similarity.Enabled {
		count, err := e.applySimilarity(ctx, cfg.Similarity)
		if err != nil {
			e.logger.Warn("similarity relationship derivation failed", "ontology", ontologyName, "error", err)
		}
		result.Similarity = count
		e.recordFamily("similarity", ontologyName, count)
	}

	if cfg.Complex != nil && cfg.Complex.Enabled {
		count, err := e.applyComplex(ctx, cfg.Complex)
		if err != nil {
			e.logger.Warn("complex pattern derivation failed", "ontology", ontologyName, "error", err)
		}
		result.Complex = count
		e.recordFamily("complex", ontologyName, count)
	}

	e.logger.Info("advanced relationships applied",
		"ontology", ontologyName,
		"temporal", result.Temporal,
		"hierarchical", result.Hierarchical,
		"similarity", result.Similarity,
		"complex", result.Complex,
		"duration", time.Since(started))
	return result, nil
}

func (e *Engine) recordFamily(family, ontologyName string, count int) {
	if e.metrics != nil && count > 0 {
		e.metrics.RecordAdvancedRelationships(family, ontologyName, count)
	}
}

// createEdge writes one derived edge, validating the relationship type
// before it reaches the backend.
func (e *Engine) createEdge(ctx context.Context, relType, fromID, toID string, confidence float64, props map[string]any) error {
	if !graph.ValidIdentifier(relType) {
		return errors.WrapInvalid(errors.ErrLabelNotAllowed, "Engine", "createEdge", "validate relationship type "+relType)
	}
	if fromID == toID {
		return errors.WrapInvalid(errors.ErrInvalidData, "Engine", "createEdge", "self edge "+fromID)
	}
	return e.store.CreateEdge(ctx, graph.EdgeWrite{
		Type:       relType,
		FromID:     fromID,
		ToID:       toID,
		Confidence: confidence,
		Properties: props,
	})
}
