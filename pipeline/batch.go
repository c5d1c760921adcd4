package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// SourceResult pairs a source with the outcome of its run.
type SourceResult struct {
	SourceID string  `json:"source_id"`
	Result   *Result `json:"result,omitempty"`
	Err      error   `json:"-"`
}

// BatchRunner runs several sources concurrently, one orchestrator per
// source. Orchestrators share the registry and the graph writer; every
// other piece of run state is per-source.
type BatchRunner struct {
	registry    *ontology.Registry
	writer      *graph.Writer
	opts        Options
	concurrency int
	logger      *slog.Logger
}

// NewBatchRunner builds a BatchRunner with the given worker pool size.
// Concurrency below 1 is clamped to 1.
func NewBatchRunner(registry *ontology.Registry, writer *graph.Writer, concurrency int, opts Options) *BatchRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{
		registry:    registry,
		writer:      writer,
		opts:        opts,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RunAll processes every source and returns one SourceResult per source,
// ordered by source ID. Individual run failures are captured in their
// SourceResult; RunAll itself fails only when the worker pool cannot be
// created.
func (b *BatchRunner) RunAll(ctx context.Context, sources []Source) ([]SourceResult, error) {
	if len(sources) == 0 {
		return []SourceResult{}, nil
	}

	pool, err := ants.NewPool(b.concurrency)
	if err != nil {
		return nil, errors.Wrap(err, "BatchRunner", "RunAll", "create worker pool")
	}
	defer pool.Release()

	results := make([]SourceResult, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		i, source := i, source
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			orch := NewOrchestrator(b.registry, b.writer, b.opts)
			result, err := orch.Run(ctx, source)
			results[i] = SourceResult{SourceID: source.ID(), Result: result, Err: err}
			if err != nil {
				b.logger.Error("source run failed", "source_id", source.ID(), "error", err)
			}
		})
		if submitErr != nil {
			wg.Done()
			results[i] = SourceResult{
				SourceID: source.ID(),
				Err:      errors.Wrap(submitErr, "BatchRunner", "RunAll", "submit source "+source.ID()),
			}
		}
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].SourceID < results[j].SourceID })
	return results, nil
}
