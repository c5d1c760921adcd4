// Package memstore provides an in-memory graph.Store for tests and
// single-process runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
)

// Store keeps nodes and edges in maps guarded by one RWMutex.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*graph.Node
	edges map[string]*graph.Edge // keyed by type|from|to
	order []string               // edge keys in creation order
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes: make(map[string]*graph.Node),
		edges: make(map[string]*graph.Edge),
	}
}

func edgeKey(w graph.EdgeWrite) string {
	return w.Type + "|" + w.FromID + "|" + w.ToID
}

// UpsertNode implements graph.Store. Updates replace labels and merge
// properties.
func (s *Store) UpsertNode(_ context.Context, write graph.NodeWrite) error {
	if write.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "memstore", "UpsertNode", "validate node id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.nodes[write.ID]
	if !ok {
		props := make(map[string]any, len(write.Properties))
		for k, v := range write.Properties {
			props[k] = v
		}
		s.nodes[write.ID] = &graph.Node{
			ID:         write.ID,
			Labels:     append([]string(nil), write.Labels...),
			Properties: props,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return nil
	}
	existing.Labels = append([]string(nil), write.Labels...)
	for k, v := range write.Properties {
		existing.Properties[k] = v
	}
	existing.UpdatedAt = now
	return nil
}

// CreateEdge implements graph.Store.
func (s *Store) CreateEdge(_ context.Context, write graph.EdgeWrite) error {
	if write.Type == "" || write.FromID == "" || write.ToID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "memstore", "CreateEdge", "validate edge")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey(write)
	id := write.ID
	if id == "" {
		id = uuid.NewString()
	}
	props := make(map[string]any, len(write.Properties))
	for k, v := range write.Properties {
		props[k] = v
	}
	if _, ok := s.edges[key]; !ok {
		s.order = append(s.order, key)
	}
	s.edges[key] = &graph.Edge{
		ID:         id,
		Type:       write.Type,
		FromID:     write.FromID,
		ToID:       write.ToID,
		Confidence: write.Confidence,
		Properties: props,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

// GetNode implements graph.Store.
func (s *Store) GetNode(_ context.Context, id string) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrNodeNotFound, "memstore", "GetNode", "lookup "+id)
	}
	return cloneNode(node), nil
}

// NodesByLabel implements graph.Store.
func (s *Store) NodesByLabel(_ context.Context, label string) ([]*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*graph.Node
	for _, node := range s.nodes {
		if node.HasLabel(label) {
			out = append(out, cloneNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EdgesFrom implements graph.Store.
func (s *Store) EdgesFrom(_ context.Context, nodeID string) ([]*graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*graph.Edge
	for _, key := range s.order {
		edge := s.edges[key]
		if edge.FromID == nodeID {
			out = append(out, cloneEdge(edge))
		}
	}
	return out, nil
}

// RawQuery implements graph.Store. The in-memory backend has no query
// engine.
func (s *Store) RawQuery(_ context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
	return nil, errors.WrapInvalid(errors.ErrQueryNotSupported, "memstore", "RawQuery", "execute query")
}

// Close implements graph.Store.
func (s *Store) Close() error { return nil }

// NodeCount returns the number of stored nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of stored edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

func cloneNode(n *graph.Node) *graph.Node {
	props := make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v
	}
	return &graph.Node{
		ID:         n.ID,
		Labels:     append([]string(nil), n.Labels...),
		Properties: props,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func cloneEdge(e *graph.Edge) *graph.Edge {
	props := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	return &graph.Edge{
		ID:         e.ID,
		Type:       e.Type,
		FromID:     e.FromID,
		ToID:       e.ToID,
		Confidence: e.Confidence,
		Properties: props,
		CreatedAt:  e.CreatedAt,
	}
}
