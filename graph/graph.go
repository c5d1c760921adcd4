// Package graph defines the property-graph store contract used by the
// ingestion pipeline and the relationship engine, plus the label-safe
// write path that composes multi-label nodes.
//
// Stores are append-only from the core's perspective: nodes are upserted
// by id with an explicit label set and property bag, edges are created by
// type and properties, and nothing is deleted.
package graph

import (
	"context"
	"time"
)

// NodeWrite is one upsert-by-id node write.
type NodeWrite struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"` // primary label first
	Properties map[string]any `json:"properties,omitempty"`
}

// EdgeWrite is one edge creation.
type EdgeWrite struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	Confidence float64        `json:"confidence,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Node is a stored multi-label node.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// PrimaryLabel returns the node's first label.
func (n *Node) PrimaryLabel() string {
	if len(n.Labels) == 0 {
		return ""
	}
	return n.Labels[0]
}

// HasLabel reports whether the node carries label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Edge is a stored directed edge.
type Edge struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	Confidence float64        `json:"confidence,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store is the graph persistence contract. Implementations must be safe
// for use by concurrent pipeline runs.
type Store interface {
	// UpsertNode creates or replaces the node with write.ID. On update
	// the label set is replaced and properties are merged.
	UpsertNode(ctx context.Context, write NodeWrite) error

	// CreateEdge appends one edge. Duplicate (type, from, to) triples
	// replace the previous edge of that shape.
	CreateEdge(ctx context.Context, write EdgeWrite) error

	// GetNode returns the node with id, or errors.ErrNodeNotFound.
	GetNode(ctx context.Context, id string) (*Node, error)

	// NodesByLabel returns all nodes carrying label, ordered by id.
	NodesByLabel(ctx context.Context, label string) ([]*Node, error)

	// EdgesFrom returns the outgoing edges of a node, ordered by creation.
	EdgesFrom(ctx context.Context, nodeID string) ([]*Edge, error)

	// RawQuery executes a backend-native query verbatim with named
	// parameters. Backends without a query engine return
	// errors.ErrQueryNotSupported.
	RawQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// Close releases backend resources.
	Close() error
}
