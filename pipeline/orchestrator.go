// Package pipeline runs the end-to-end ingestion flow: connect to a
// source, consume its items one at a time, normalize and extract each
// item, detect which ontologies it touches, persist the extracted graph,
// then derive advanced relationships once per detected ontology.
//
// A run is single-threaded and cooperative: items are processed strictly
// in fetch order, Stop is honored between items, and one failing item
// never aborts the batch. Concurrent runs over different sources are
// independent; they share only the read-only ontology registry.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kohr2/dashboard-killer-graph-sub005/enrich"
	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/metric"
	"github.com/kohr2/dashboard-killer-graph-sub005/normalize"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
	"github.com/kohr2/dashboard-killer-graph-sub005/relationships"
)

// Options carries the optional orchestrator dependencies.
type Options struct {
	// Extractor turns item text into entities and relationships. A
	// no-op extractor is used when nil.
	Extractor extract.Extractor
	// Engine derives advanced relationships after processing. Skipped
	// when nil.
	Engine *relationships.Engine
	// Enrichers resolves enrichment service names declared by entity
	// schemas. Skipped when nil.
	Enrichers *enrich.Registry
	// Detector overrides the default ontology detector.
	Detector *ontology.Detector
	// Metrics records run observability. Skipped when nil.
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// Orchestrator drives pipeline runs. One orchestrator runs one source at
// a time; Run returns ErrAlreadyRunning while a run is in flight.
type Orchestrator struct {
	registry   *ontology.Registry
	writer     *graph.Writer
	normalizer *normalize.Normalizer
	detector   *ontology.Detector
	extractor  extract.Extractor
	engine     *relationships.Engine
	enrichers  *enrich.Registry
	metrics    *metric.Metrics
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewOrchestrator builds an Orchestrator over the registry and writer.
func NewOrchestrator(registry *ontology.Registry, writer *graph.Writer, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = extract.Noop{}
	}
	detector := opts.Detector
	if detector == nil {
		detector = ontology.NewDetector(registry, logger)
	}
	return &Orchestrator{
		registry:   registry,
		writer:     writer,
		normalizer: normalize.New(logger),
		detector:   detector,
		extractor:  extractor,
		engine:     opts.Engine,
		enrichers:  opts.Enrichers,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// Stop requests cooperative cancellation: the current item finishes, then
// the run winds down through its normal disconnect path.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) stopRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

// Run processes every item of source once. The returned Result is always
// non-nil; the error is non-nil only for connection failures, fetch
// failures with zero succeeded items, and a concurrent Run call.
func (o *Orchestrator) Run(ctx context.Context, source Source) (*Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrAlreadyRunning, "Orchestrator", "Run", "start run")
	}
	o.running = true
	o.stopped = false
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	result := &Result{
		RunID:              uuid.NewString(),
		SourceID:           source.ID(),
		SourceType:         source.Type(),
		State:              StateIdle,
		DetectedOntologies: []string{},
		StartedAt:          time.Now().UTC(),
	}
	logger := o.logger.With("run_id", result.RunID, "source_id", result.SourceID)
	detected := map[string]struct{}{}

	o.setState(result, StateConnecting)
	if err := source.Connect(ctx); err != nil {
		o.finish(result, StateFailed)
		o.recordError("Orchestrator", err)
		return result, errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrSourceConnection, err),
			"Orchestrator", "Run", "connect source "+result.SourceID)
	}
	if o.metrics != nil {
		o.metrics.RecordSourceStatus(result.SourceType, true)
	}

	o.setState(result, StateProcessing)
	var fetchErr error
	for {
		if o.stopRequested() {
			logger.Warn("stop requested, ending run before next item")
			break
		}
		raw, err := source.Fetch(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrSourceExhausted) {
				break
			}
			fetchErr = err
			logger.Error("source fetch failed", "error", err)
			break
		}

		itemID, itemErr := o.processItem(ctx, result, detected, raw)
		result.ItemsProcessed++
		if itemErr != nil {
			result.ItemsFailed++
			result.Errors = append(result.Errors, errors.NewItemError(itemID, itemErr))
			logger.Warn("item failed", "item_id", itemID, "error", itemErr)
			o.recordError("Orchestrator", itemErr)
		} else {
			result.ItemsSucceeded++
		}
		if o.metrics != nil {
			o.metrics.RecordItemProcessed(result.SourceType, itemErr == nil)
		}
	}

	if fetchErr != nil && result.ItemsSucceeded == 0 {
		o.disconnect(ctx, source, logger)
		o.finish(result, StateFailed)
		o.recordError("Orchestrator", fetchErr)
		return result, errors.Wrap(fetchErr, "Orchestrator", "Run", "fetch from source "+result.SourceID)
	}

	for name := range detected {
		result.DetectedOntologies = append(result.DetectedOntologies, name)
	}
	sort.Strings(result.DetectedOntologies)

	if result.ItemsSucceeded > 0 && o.engine != nil {
		o.setState(result, StateApplying)
		for _, name := range result.DetectedOntologies {
			applied, err := o.engine.ApplyOntologyConfiguration(ctx, name)
			if err != nil {
				logger.Warn("advanced relationship application failed", "ontology", name, "error", err)
				continue
			}
			result.DerivedRelationships += applied.Total()
		}
	}

	o.setState(result, StateDisconnecting)
	o.disconnect(ctx, source, logger)

	result.Success = result.ItemsSucceeded > 0
	o.finish(result, StateCompleted)
	logger.Info("run finished",
		"processed", result.ItemsProcessed,
		"succeeded", result.ItemsSucceeded,
		"failed", result.ItemsFailed,
		"entities", result.EntitiesCreated,
		"relationships", result.RelationshipsCreated,
		"derived", result.DerivedRelationships,
		"ontologies", result.DetectedOntologies,
		"success", result.Success,
		"duration", result.Duration)
	return result, nil
}

// processItem runs one item through normalize, extract, detect, enrich,
// and persist. Panics in any stage are converted into item errors so the
// batch continues.
func (o *Orchestrator) processItem(ctx context.Context, result *Result, detected map[string]struct{}, raw []byte) (itemID string, err error) {
	itemID = "unknown"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("item processing panicked: %v", r)
		}
	}()

	stageStart := time.Now()
	data, err := o.normalizer.Normalize(result.SourceID, result.SourceType, raw)
	if err != nil {
		return itemID, err
	}
	itemID = data.ID
	o.recordStage(result.SourceType, "normalize", stageStart)

	stageStart = time.Now()
	extracted, err := o.extractor.Extract(ctx, data.Text())
	if err != nil {
		return itemID, err
	}
	o.recordStage(result.SourceType, "extract", stageStart)

	for _, name := range o.detector.Detect(extracted.Entities, data) {
		detected[name] = struct{}{}
	}

	stageStart = time.Now()
	nodeIDs := make(map[string]string, len(extracted.Entities))
	persisted := 0
	for _, entity := range extracted.Entities {
		entity = o.enrichEntity(ctx, entity)
		nodeID, err := o.writer.WriteEntity(ctx, entity, data)
		if err != nil {
			if errors.IsInvalid(err) {
				o.logger.Debug("entity skipped", "item_id", itemID, "type", entity.Type, "error", err)
				continue
			}
			return itemID, err
		}
		persisted++
		nodeIDs[entity.Value] = nodeID
		if entity.ID != "" {
			nodeIDs[entity.ID] = nodeID
		}
	}
	result.EntitiesCreated += persisted

	for _, rel := range extracted.Relationships {
		if err := o.writer.WriteRelationship(ctx, rel, nodeIDs); err != nil {
			if errors.IsInvalid(err) {
				o.logger.Debug("relationship skipped", "item_id", itemID, "type", rel.Type, "error", err)
				continue
			}
			return itemID, err
		}
		result.RelationshipsCreated++
	}
	o.recordStage(result.SourceType, "persist", stageStart)

	if o.metrics != nil {
		o.metrics.RecordEntitiesCreated(result.SourceType, persisted)
	}
	return itemID, nil
}

// enrichEntity applies the schema-declared enrichment plugin when one is
// registered. Enrichment failures keep the original entity.
func (o *Orchestrator) enrichEntity(ctx context.Context, entity extract.Entity) extract.Entity {
	if o.enrichers == nil {
		return entity
	}
	service := o.registry.GetEnrichmentServiceName(entity)
	if service == "" {
		return entity
	}
	plugin, ok := o.enrichers.Resolve(service)
	if !ok {
		o.logger.Debug("enrichment service not registered", "service", service, "type", entity.Type)
		return entity
	}
	enriched, err := plugin.Enrich(ctx, entity)
	if err != nil {
		o.logger.Warn("enrichment failed", "service", service, "type", entity.Type, "error", err)
		return entity
	}
	return enriched
}

func (o *Orchestrator) disconnect(ctx context.Context, source Source, logger *slog.Logger) {
	if err := source.Disconnect(ctx); err != nil {
		// never fails the run
		logger.Warn("source disconnect failed", "error", err)
	}
	if o.metrics != nil {
		o.metrics.RecordSourceStatus(source.Type(), false)
	}
}

func (o *Orchestrator) setState(result *Result, state State) {
	result.State = state
	if o.metrics != nil {
		o.metrics.RecordRunStatus(result.SourceType, statusCode[state])
	}
}

func (o *Orchestrator) finish(result *Result, state State) {
	o.setState(result, state)
	result.Duration = time.Since(result.StartedAt)
	if o.metrics != nil {
		o.metrics.RecordRunDuration(result.SourceType, string(state), result.Duration)
		o.metrics.RecordRelationshipsCreated(result.SourceType, result.RelationshipsCreated)
	}
}

func (o *Orchestrator) recordStage(sourceType, stage string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStageDuration(sourceType, stage, time.Since(start))
	}
}

func (o *Orchestrator) recordError(component string, err error) {
	if o.metrics != nil {
		o.metrics.RecordError(component, errors.Classify(err).String())
	}
}
