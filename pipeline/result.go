package pipeline

import (
	"time"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

// State is one phase of a pipeline run.
type State string

// Run states, in order of progression.
const (
	StateIdle          = State("idle")
	StateConnecting    = State("connecting")
	StateProcessing    = State("processing")
	StateApplying      = State("applying_advanced_relationships")
	StateDisconnecting = State("disconnecting")
	StateCompleted     = State("completed")
	StateFailed        = State("failed")
)

// statusCode maps states onto the run status gauge.
var statusCode = map[State]int{
	StateIdle:          0,
	StateConnecting:    1,
	StateProcessing:    2,
	StateApplying:      3,
	StateDisconnecting: 4,
	StateCompleted:     5,
	StateFailed:        6,
}

// Result is the outcome of one pipeline run. Item-level failures are
// collected in Errors; a run with at least one succeeded item reports
// Success regardless of other item failures.
type Result struct {
	RunID                string              `json:"run_id"`
	SourceID             string              `json:"source_id"`
	SourceType           string              `json:"source_type"`
	State                State               `json:"state"`
	ItemsProcessed       int                 `json:"items_processed"`
	ItemsSucceeded       int                 `json:"items_succeeded"`
	ItemsFailed          int                 `json:"items_failed"`
	EntitiesCreated      int                 `json:"entities_created"`
	RelationshipsCreated int                 `json:"relationships_created"`
	DerivedRelationships int                 `json:"derived_relationships"`
	DetectedOntologies   []string            `json:"detected_ontologies"`
	Errors               []*errors.ItemError `json:"errors,omitempty"`
	StartedAt            time.Time           `json:"started_at"`
	Duration             time.Duration       `json:"duration"`
	Success              bool                `json:"success"`
}
