package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

// Runner is the unit of work a Scheduler triggers. Orchestrator satisfies
// it through a bound source; tests inject fakes.
type Runner interface {
	Run(ctx context.Context, source Source) (*Result, error)
}

// Scheduler triggers recurring ingestion runs on cron expressions.
// Overlapping triggers for the same entry are skipped, not queued.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler builds a stopped Scheduler. Expressions use the standard
// five-field cron format.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		entries: map[string]cron.EntryID{},
	}
}

// Schedule registers a recurring run of source through runner. The entry
// is keyed by the source ID; scheduling the same source twice replaces
// the previous entry.
func (s *Scheduler) Schedule(expr string, runner Runner, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(expr, func() {
		result, err := runner.Run(context.Background(), source)
		if err != nil {
			s.logger.Error("scheduled run failed", "source_id", source.ID(), "error", err)
			return
		}
		s.logger.Info("scheduled run finished",
			"source_id", source.ID(),
			"processed", result.ItemsProcessed,
			"succeeded", result.ItemsSucceeded,
			"success", result.Success)
	})
	if err != nil {
		return errors.WrapInvalid(err, "Scheduler", "Schedule", "parse cron expression "+expr)
	}
	if prev, ok := s.entries[source.ID()]; ok {
		s.cron.Remove(prev)
	}
	s.entries[source.ID()] = id
	return nil
}

// Unschedule removes the entry for sourceID, if any.
func (s *Scheduler) Unschedule(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[sourceID]; ok {
		s.cron.Remove(id)
		delete(s.entries, sourceID)
	}
}

// Start begins triggering entries in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts triggering and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
