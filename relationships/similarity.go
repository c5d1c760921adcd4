package relationships

import (
	"context"
	"math"
	"reflect"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// applySimilarity scores every node pair of each algorithm's entity type
// and links pairs whose weighted factor score reaches the threshold. The
// edge direction follows node id order so reruns stay idempotent.
func (e *Engine) applySimilarity(ctx context.Context, cfg *ontology.SimilarityConfig) (int, error) {
	created := 0
	for _, algo := range cfg.Algorithms {
		relType := algo.RelationshipType
		if relType == "" {
			relType = "SIMILAR_TO"
		}
		nodes, err := e.store.NodesByLabel(ctx, algo.EntityType)
		if err != nil {
			return created, err
		}

		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				score, ok := similarityScore(nodes[i], nodes[j], algo.Factors)
				if !ok || score < algo.Threshold {
					continue
				}
				err := e.createEdge(ctx, relType, nodes[i].ID, nodes[j].ID, score, map[string]any{
					"derived": true,
					"score":   score,
				})
				if err != nil {
					e.logger.Warn("similarity edge skipped", "from", nodes[i].ID, "to", nodes[j].ID, "error", err)
					continue
				}
				created++
			}
		}
	}
	return created, nil
}

// similarityScore computes the weight-normalized factor score for a pair.
// Factors missing on either node are excluded from the score. ok is false
// when no factor was comparable.
func similarityScore(a, b *graph.Node, factors []ontology.SimilarityFactor) (float64, bool) {
	var total, weightSum float64
	for _, factor := range factors {
		av, aok := a.Properties[factor.Property]
		bv, bok := b.Properties[factor.Property]
		if !aok || !bok {
			continue
		}
		score, comparable := factorScore(av, bv, factor.Kind)
		if !comparable {
			continue
		}
		total += score * factor.Weight
		weightSum += factor.Weight
	}
	if weightSum == 0 {
		return 0, false
	}
	return total / weightSum, true
}

func factorScore(a, b any, kind ontology.FactorKind) (float64, bool) {
	switch kind {
	case ontology.FactorFuzzy:
		as, aok := a.(string)
		bs, bok := b.(string)
		if !aok || !bok {
			return 0, false
		}
		return smetrics.JaroWinkler(strings.ToLower(as), strings.ToLower(bs), 0.7, 4), true

	case ontology.FactorNumeric:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return 0, false
		}
		if af == bf {
			return 1, true
		}
		denom := math.Max(math.Abs(af), math.Abs(bf))
		return 1 - math.Abs(af-bf)/denom, true

	case ontology.FactorExact:
		// Property bags hold arbitrary decoded JSON, so == can panic on
		// slices and maps. DeepEqual compares every shape safely.
		if reflect.DeepEqual(a, b) {
			return 1, true
		}
		return 0, true

	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
