package relationships

import (
	"context"
	"sort"

	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
	"github.com/kohr2/dashboard-killer-graph-sub005/pkg/timestamp"
)

// defaultTimeProperties is the lookup order used when a temporal pattern
// does not name a time property.
var defaultTimeProperties = []string{"timestamp", "date", "created_at"}

type timedNode struct {
	node *graph.Node
	at   int64 // unix millis
}

// applyTemporal chains same-type nodes in timestamp order. Each pattern
// runs once; nodes without a parseable timestamp are skipped.
func (e *Engine) applyTemporal(ctx context.Context, cfg *ontology.TemporalConfig) (int, error) {
	created := 0
	for _, pattern := range cfg.Patterns {
		relType := pattern.RelationshipType
		if relType == "" {
			relType = "FOLLOWED_BY"
		}
		for _, entityType := range pattern.EntityTypes {
			nodes, err := e.store.NodesByLabel(ctx, entityType)
			if err != nil {
				return created, err
			}

			timed := make([]timedNode, 0, len(nodes))
			for _, node := range nodes {
				at := nodeTimestamp(node, pattern.TimeProperty)
				if timestamp.IsZero(at) {
					continue
				}
				timed = append(timed, timedNode{node: node, at: at})
			}
			sort.Slice(timed, func(i, j int) bool {
				if timed[i].at == timed[j].at {
					return timed[i].node.ID < timed[j].node.ID
				}
				return timed[i].at < timed[j].at
			})

			for i := 0; i+1 < len(timed); i++ {
				err := e.createEdge(ctx, relType, timed[i].node.ID, timed[i+1].node.ID, pattern.Confidence, map[string]any{
					"pattern":    pattern.Name,
					"derived":    true,
					"gap_millis": timestamp.Between(timed[i].at, timed[i+1].at).Milliseconds(),
				})
				if err != nil {
					e.logger.Warn("temporal edge skipped", "pattern", pattern.Name, "error", err)
					continue
				}
				created++
			}
		}
	}
	return created, nil
}

// nodeTimestamp extracts the pattern's time property, falling back to the
// default property order. Returns 0 when no property parses.
func nodeTimestamp(node *graph.Node, timeProperty string) int64 {
	candidates := defaultTimeProperties
	if timeProperty != "" {
		candidates = []string{timeProperty}
	}
	for _, prop := range candidates {
		value, ok := node.Properties[prop]
		if !ok {
			continue
		}
		if at := timestamp.Parse(value); !timestamp.IsZero(at) {
			return at
		}
	}
	return 0
}
