package relationships

import (
	"context"
	"strings"

	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// applyHierarchical links parent nodes to child nodes for each configured
// structure. A child matches a parent when its "parent" property, or a
// property named after the lowercased parent type, equals the parent's
// value. When MaxLevels allows, the walk continues into entity types that
// declare the previous child type as their schema parentType.
func (e *Engine) applyHierarchical(ctx context.Context, cfg *ontology.HierarchicalConfig) (int, error) {
	created := 0
	for _, structure := range cfg.Structures {
		relType := structure.RelationshipType
		if relType == "" {
			relType = "HAS_CHILD"
		}
		maxLevels := structure.MaxLevels
		if maxLevels <= 0 {
			maxLevels = 1
		}

		parentType := structure.ParentType
		childType := structure.ChildType
		for level := 1; level <= maxLevels; level++ {
			count, err := e.linkLevel(ctx, relType, parentType, childType, level)
			if err != nil {
				return created, err
			}
			created += count

			next := e.childTypeOf(childType)
			if next == "" {
				break
			}
			parentType, childType = childType, next
		}
	}
	return created, nil
}

// childTypeOf finds an entity type whose schema declares parentType as its
// parent, continuing a hierarchy walk one level down.
func (e *Engine) childTypeOf(parentType string) string {
	for _, entityType := range e.registry.GetAllEntityTypes() {
		schema, ok := e.registry.EntitySchema(entityType)
		if ok && schema.ParentType == parentType {
			return entityType
		}
	}
	return ""
}

func (e *Engine) linkLevel(ctx context.Context, relType, parentType, childType string, level int) (int, error) {
	parents, err := e.store.NodesByLabel(ctx, parentType)
	if err != nil {
		return 0, err
	}
	if len(parents) == 0 {
		return 0, nil
	}
	children, err := e.store.NodesByLabel(ctx, childType)
	if err != nil {
		return 0, err
	}

	byValue := make(map[string]*graph.Node, len(parents))
	for _, parent := range parents {
		if value, ok := parent.Properties["value"].(string); ok && value != "" {
			byValue[strings.ToLower(value)] = parent
		}
	}

	created := 0
	parentKeys := []string{"parent", strings.ToLower(parentType)}
	for _, child := range children {
		parent := matchParent(child, byValue, parentKeys)
		if parent == nil {
			continue
		}
		err := e.createEdge(ctx, relType, parent.ID, child.ID, 1.0, map[string]any{
			"derived": true,
			"level":   level,
		})
		if err != nil {
			e.logger.Warn("hierarchical edge skipped", "parent", parent.ID, "child", child.ID, "error", err)
			continue
		}
		created++
	}
	return created, nil
}

func matchParent(child *graph.Node, byValue map[string]*graph.Node, keys []string) *graph.Node {
	for _, key := range keys {
		ref, ok := child.Properties[key].(string)
		if !ok || ref == "" {
			continue
		}
		if parent, ok := byValue[strings.ToLower(ref)]; ok && parent.ID != child.ID {
			return parent
		}
	}
	return nil
}
