// Package extract defines the entity-extraction contract between the
// ingestion pipeline and NLP backends, together with the extracted entity
// and relationship types those backends produce.
package extract

import (
	"context"
)

// Entity is one extracted entity. Entities are produced by an extractor
// and consumed once by the persistence path.
type Entity struct {
	ID         string         `json:"id,omitempty"`
	Value      string         `json:"value"`
	Type       string         `json:"type"`
	Label      string         `json:"label,omitempty"` // primary graph label; defaults to Type
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}

// GraphLabel returns the entity's primary graph label, falling back to its
// type when no explicit label was set.
func (e Entity) GraphLabel() string {
	if e.Label != "" {
		return e.Label
	}
	return e.Type
}

// Relationship is one extracted relationship between two entity values.
type Relationship struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Result is the output of one extraction call.
type Result struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Extractor extracts entities and relationships from text. The pipeline
// supplies a Noop extractor when none is injected.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}

// Noop is the default extractor; it extracts nothing.
type Noop struct{}

// Extract returns an empty result.
func (Noop) Extract(_ context.Context, _ string) (*Result, error) {
	return &Result{Entities: []Entity{}, Relationships: []Relationship{}}, nil
}
