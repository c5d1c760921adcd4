package pipeline

import (
	"context"
	"encoding/json"
)

// Source is one connectable stream of raw items. Fetch yields each item
// exactly once per run and returns errors.ErrSourceExhausted when the
// sequence ends; the sequence is single-pass and non-restartable.
type Source interface {
	// ID identifies this source instance, e.g. a mailbox or directory.
	ID() string

	// Type is the source kind ("email", "document", "api", ...), used
	// for ontology fallback detection and metric labels.
	Type() string

	// Connect prepares the source for fetching.
	Connect(ctx context.Context) error

	// Fetch returns the next raw item.
	Fetch(ctx context.Context) (json.RawMessage, error)

	// Disconnect releases the source. Safe to call after a failed
	// Connect.
	Disconnect(ctx context.Context) error

	// HealthCheck reports whether the source is reachable.
	HealthCheck(ctx context.Context) error
}
