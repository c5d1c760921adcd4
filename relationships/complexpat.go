package relationships

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// applyComplex runs each enabled raw pattern query verbatim against the
// store. Result rows carrying from_id and to_id columns become edges; the
// edge type comes from a rel_type column when present, otherwise from the
// uppercased pattern name. Backends without a query engine skip the whole
// family.
func (e *Engine) applyComplex(ctx context.Context, cfg *ontology.ComplexConfig) (int, error) {
	created := 0
	for _, pattern := range cfg.Patterns {
		if !pattern.Enabled {
			continue
		}
		rows, err := e.store.RawQuery(ctx, pattern.Query, pattern.Parameters)
		if err != nil {
			if stderrors.Is(err, errors.ErrQueryNotSupported) {
				e.logger.Info("store has no query engine, skipping complex patterns")
				return created, nil
			}
			e.logger.Warn("complex pattern failed", "pattern", pattern.Name, "error", err)
			continue
		}

		defaultType := patternRelType(pattern.Name)
		for _, row := range rows {
			fromID, _ := row["from_id"].(string)
			toID, _ := row["to_id"].(string)
			if fromID == "" || toID == "" {
				continue
			}
			relType := defaultType
			if override, ok := row["rel_type"].(string); ok && override != "" {
				relType = override
			}
			err := e.createEdge(ctx, relType, fromID, toID, pattern.Confidence, map[string]any{
				"pattern": pattern.Name,
				"derived": true,
			})
			if err != nil {
				e.logger.Warn("complex edge skipped", "pattern", pattern.Name, "error", err)
				continue
			}
			created++
		}
	}
	return created, nil
}

// patternRelType turns a pattern name like "co-investment" into an edge
// type like CO_INVESTMENT.
func patternRelType(name string) string {
	relType := strings.ToUpper(strings.TrimSpace(name))
	relType = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(relType)
	return relType
}
