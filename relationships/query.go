package relationships

import (
	"context"
	"fmt"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

// Pattern families and analysis types accepted by the query surface.
const (
	FamilyTemporal     = "temporal"
	FamilyHierarchical = "hierarchical"
	FamilySimilarity   = "similarity"
	FamilyComplex      = "complex"

	AnalysisTemporalSequences   = "temporal_sequences"
	AnalysisHierarchyStatistics = "hierarchy_statistics"
	AnalysisSimilarityClusters  = "similarity_clusters"
)

// PatternInfo describes one configured derivation rule.
type PatternInfo struct {
	Family string `json:"family"`
	Name   string `json:"name"`
	Config any    `json:"config"`
}

// AnalysisResult is the outcome of one graph analysis run.
type AnalysisResult struct {
	Ontology string         `json:"ontology"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
}

// QueryOntologyPatterns lists the configured patterns of one family for
// the named ontology. Unknown ontologies return ErrOntologyNotFound,
// unknown families ErrUnknownPatternType. An ontology without the family
// configured returns an empty list.
func (e *Engine) QueryOntologyPatterns(ontologyName, family string) ([]PatternInfo, error) {
	def, ok := e.registry.Definition(ontologyName)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrOntologyNotFound, "Engine", "QueryOntologyPatterns", "lookup ontology "+ontologyName)
	}

	out := []PatternInfo{}
	cfg := def.Advanced
	switch family {
	case FamilyTemporal:
		if cfg != nil && cfg.Temporal != nil {
			for _, p := range cfg.Temporal.Patterns {
				out = append(out, PatternInfo{Family: family, Name: p.Name, Config: p})
			}
		}
	case FamilyHierarchical:
		if cfg != nil && cfg.Hierarchical != nil {
			for _, s := range cfg.Hierarchical.Structures {
				name := fmt.Sprintf("%s->%s", s.ParentType, s.ChildType)
				out = append(out, PatternInfo{Family: family, Name: name, Config: s})
			}
		}
	case FamilySimilarity:
		if cfg != nil && cfg.Similarity != nil {
			for _, a := range cfg.Similarity.Algorithms {
				out = append(out, PatternInfo{Family: family, Name: a.EntityType, Config: a})
			}
		}
	case FamilyComplex:
		if cfg != nil && cfg.Complex != nil {
			for _, p := range cfg.Complex.Patterns {
				out = append(out, PatternInfo{Family: family, Name: p.Name, Config: p})
			}
		}
	default:
		return nil, errors.WrapInvalid(errors.ErrUnknownPatternType, "Engine", "QueryOntologyPatterns", "resolve family "+family)
	}
	return out, nil
}

// ExecuteOntologyAnalysis runs one read-only analysis over the derived
// edges of the named ontology.
func (e *Engine) ExecuteOntologyAnalysis(ctx context.Context, ontologyName, analysisType string) (*AnalysisResult, error) {
	def, ok := e.registry.Definition(ontologyName)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrOntologyNotFound, "Engine", "ExecuteOntologyAnalysis", "lookup ontology "+ontologyName)
	}

	result := &AnalysisResult{Ontology: ontologyName, Type: analysisType, Data: map[string]any{}}
	cfg := def.Advanced

	switch analysisType {
	case AnalysisTemporalSequences:
		if cfg == nil || cfg.Temporal == nil {
			return result, nil
		}
		for _, pattern := range cfg.Temporal.Patterns {
			relType := pattern.RelationshipType
			if relType == "" {
				relType = "FOLLOWED_BY"
			}
			count, err := e.countEdges(ctx, pattern.EntityTypes, relType)
			if err != nil {
				return nil, errors.Wrap(err, "Engine", "ExecuteOntologyAnalysis", "count temporal edges")
			}
			result.Data[pattern.Name] = count
		}

	case AnalysisHierarchyStatistics:
		if cfg == nil || cfg.Hierarchical == nil {
			return result, nil
		}
		for _, structure := range cfg.Hierarchical.Structures {
			relType := structure.RelationshipType
			if relType == "" {
				relType = "HAS_CHILD"
			}
			count, err := e.countEdges(ctx, []string{structure.ParentType}, relType)
			if err != nil {
				return nil, errors.Wrap(err, "Engine", "ExecuteOntologyAnalysis", "count hierarchy edges")
			}
			result.Data[fmt.Sprintf("%s->%s", structure.ParentType, structure.ChildType)] = count
		}

	case AnalysisSimilarityClusters:
		if cfg == nil || cfg.Similarity == nil {
			return result, nil
		}
		for _, algo := range cfg.Similarity.Algorithms {
			relType := algo.RelationshipType
			if relType == "" {
				relType = "SIMILAR_TO"
			}
			clusters, err := e.similarityClusters(ctx, algo.EntityType, relType)
			if err != nil {
				return nil, errors.Wrap(err, "Engine", "ExecuteOntologyAnalysis", "build similarity clusters")
			}
			result.Data[algo.EntityType] = clusters
		}

	default:
		return nil, errors.WrapInvalid(errors.ErrUnknownAnalysisType, "Engine", "ExecuteOntologyAnalysis", "resolve analysis "+analysisType)
	}
	return result, nil
}

// countEdges totals outgoing edges of relType from nodes of the given
// labels.
func (e *Engine) countEdges(ctx context.Context, labels []string, relType string) (int, error) {
	count := 0
	for _, label := range labels {
		nodes, err := e.store.NodesByLabel(ctx, label)
		if err != nil {
			return 0, err
		}
		for _, node := range nodes {
			edges, err := e.store.EdgesFrom(ctx, node.ID)
			if err != nil {
				return 0, err
			}
			for _, edge := range edges {
				if edge.Type == relType {
					count++
				}
			}
		}
	}
	return count, nil
}

// similarityClusters groups nodes connected by relType edges into
// components and returns each component's member ids.
func (e *Engine) similarityClusters(ctx context.Context, label, relType string) ([][]string, error) {
	nodes, err := e.store.NodesByLabel(ctx, label)
	if err != nil {
		return nil, err
	}

	parent := make(map[string]string, len(nodes))
	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, node := range nodes {
		parent[node.ID] = node.ID
	}
	for _, node := range nodes {
		edges, err := e.store.EdgesFrom(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if edge.Type != relType {
				continue
			}
			if _, ok := parent[edge.ToID]; ok {
				union(node.ID, edge.ToID)
			}
		}
	}

	groups := map[string][]string{}
	for _, node := range nodes {
		root := find(node.ID)
		groups[root] = append(groups[root], node.ID)
	}
	clusters := make([][]string, 0, len(groups))
	for _, members := range groups {
		if len(members) > 1 {
			clusters = append(clusters, members)
		}
	}
	return clusters, nil
}
