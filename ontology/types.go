// Package ontology provides the schema registry for the ingestion engine.
// Ontologies are named, versioned bundles of entity and relationship schema
// definitions plus optional advanced-relationship rules. Definitions are
// loaded once at startup (from files, a directory, or in-memory objects)
// and held immutably for the process lifetime.
package ontology

import (
	"encoding/json"
	"strings"
)

// Definition is one loaded ontology: a named, versioned bundle of entity
// and relationship schemas plus optional advanced-relationship rules.
type Definition struct {
	Name          string                        `json:"name"`
	Version       string                        `json:"version,omitempty"`
	Description   string                        `json:"description,omitempty"`
	Entities      map[string]EntitySchema       `json:"entities"`
	Relationships map[string]RelationshipSchema `json:"relationships,omitempty"`
	Advanced      *AdvancedConfig               `json:"advancedRelationships,omitempty"`
}

// EntitySchema describes one entity type: its key properties, optional
// parent type for hierarchies, and optional enrichment linkage.
type EntitySchema struct {
	Description   string          `json:"description,omitempty"`
	KeyProperties []string        `json:"keyProperties,omitempty"`
	VectorIndex   bool            `json:"vectorIndex,omitempty"`
	ParentType    string          `json:"parentType,omitempty"`
	Enrichment    *EnrichmentSpec `json:"enrichment,omitempty"`
}

// EnrichmentSpec names the external enrichment service for an entity type.
// The core only resolves the name; invocation is external.
type EnrichmentSpec struct {
	Service string `json:"service"`
}

// RelationshipSchema describes one relationship type between entity types.
// Domain and range accept either a single string or an array in JSON.
type RelationshipSchema struct {
	Domain      TypeList `json:"domain"`
	Range       TypeList `json:"range"`
	Description string   `json:"description,omitempty"`
}

// TypeList is a list of entity type names that unmarshals from either a
// single JSON string or an array of strings.
type TypeList []string

// UnmarshalJSON accepts "Person" or ["Person","Organization"].
func (tl *TypeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*tl = TypeList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*tl = TypeList(many)
	return nil
}

// MarshalJSON emits a single string for one-element lists to round-trip
// the compact form.
func (tl TypeList) MarshalJSON() ([]byte, error) {
	if len(tl) == 1 {
		return json.Marshal(tl[0])
	}
	return json.Marshal([]string(tl))
}

// String joins the list with " | " for schema rendering.
func (tl TypeList) String() string {
	return strings.Join(tl, " | ")
}

// AdvancedConfig gates the four independent relationship-derivation
// families. Each family is individually enable/disable-able.
type AdvancedConfig struct {
	Temporal     *TemporalConfig     `json:"temporal,omitempty"`
	Hierarchical *HierarchicalConfig `json:"hierarchical,omitempty"`
	Similarity   *SimilarityConfig   `json:"similarity,omitempty"`
	Complex      *ComplexConfig      `json:"complex,omitempty"`
}

// TemporalConfig derives ordering edges between same-type entities that
// share timestamp-bearing properties.
type TemporalConfig struct {
	Enabled  bool              `json:"enabled"`
	Patterns []TemporalPattern `json:"patterns,omitempty"`
}

// TemporalPattern names one temporal derivation rule.
type TemporalPattern struct {
	Name             string   `json:"name"`
	EntityTypes      []string `json:"entityTypes"`
	RelationshipType string   `json:"relationshipType"`
	Confidence       float64  `json:"confidence"`
	// TimeProperty overrides the default timestamp property lookup
	// ("timestamp", "date", "created_at" in that order).
	TimeProperty string `json:"timeProperty,omitempty"`
}

// HierarchicalConfig builds bounded-depth parent/child trees.
type HierarchicalConfig struct {
	Enabled    bool                    `json:"enabled"`
	Structures []HierarchicalStructure `json:"structures,omitempty"`
}

// HierarchicalStructure names one parent→child tree. MaxLevels caps
// recursion depth when child types themselves declare parent types.
type HierarchicalStructure struct {
	ParentType       string `json:"parentType"`
	ChildType        string `json:"childType"`
	RelationshipType string `json:"relationshipType"`
	MaxLevels        int    `json:"maxLevels"`
}

// SimilarityConfig links entities of one type whose weighted factor score
// reaches a threshold.
type SimilarityConfig struct {
	Enabled    bool                  `json:"enabled"`
	Algorithms []SimilarityAlgorithm `json:"algorithms,omitempty"`
}

// SimilarityAlgorithm scores entity pairs of EntityType across Factors;
// an edge is created when score >= Threshold.
type SimilarityAlgorithm struct {
	EntityType       string             `json:"entityType"`
	Factors          []SimilarityFactor `json:"factors"`
	Threshold        float64            `json:"threshold"`
	RelationshipType string             `json:"relationshipType,omitempty"`
}

// FactorKind selects the comparator for one similarity factor.
type FactorKind string

const (
	// FactorFuzzy compares strings with Jaro-Winkler similarity.
	FactorFuzzy FactorKind = "fuzzy"
	// FactorNumeric compares numbers by relative distance.
	FactorNumeric FactorKind = "numeric"
	// FactorExact scores 1 for equal values, 0 otherwise.
	FactorExact FactorKind = "exact"
)

// SimilarityFactor weights one property comparison.
type SimilarityFactor struct {
	Property string     `json:"property"`
	Weight   float64    `json:"weight"`
	Kind     FactorKind `json:"kind"`
}

// ComplexConfig holds raw, named, parametrized queries for patterns the
// declarative families cannot express. Queries run verbatim against the
// graph store.
type ComplexConfig struct {
	Enabled  bool             `json:"enabled"`
	Patterns []ComplexPattern `json:"patterns,omitempty"`
}

// ComplexPattern is one named raw query.
type ComplexPattern struct {
	Name       string         `json:"name"`
	Query      string         `json:"query"`
	Confidence float64        `json:"confidence"`
	Enabled    bool           `json:"enabled"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Validate checks structural requirements on a definition before loading.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errEmptyName
	}
	return nil
}
