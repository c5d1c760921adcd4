package ontology

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

var errEmptyName = stderrors.New("ontology definition has no name")

// Registry merges entity and relationship schemas from all loaded
// ontologies and exposes lookup, key-property, enrichment-service, and
// schema-introspection APIs.
//
// The registry is populated once at startup and is read-only thereafter;
// concurrent pipeline runs may share it without synchronization. Loading
// after runs have started is not supported.
type Registry struct {
	logger *slog.Logger

	defs  map[string]*Definition
	order []string // ontology names in load order

	// Flattened type indexes. Conflicts across separately loaded
	// ontologies resolve last-loaded-wins.
	entityTypes   map[string]entityEntry
	relationTypes map[string]relationEntry
}

type entityEntry struct {
	schema   EntitySchema
	ontology string
}

type relationEntry struct {
	schema   RelationshipSchema
	ontology string
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:        logger,
		defs:          make(map[string]*Definition),
		entityTypes:   make(map[string]entityEntry),
		relationTypes: make(map[string]relationEntry),
	}
}

// LoadFromObjects merges in-memory definitions into the registry. Later
// entries overwrite earlier ones with the same type name.
func (r *Registry) LoadFromObjects(defs []*Definition) error {
	for _, def := range defs {
		if def == nil {
			continue
		}
		if err := r.merge(def); err != nil {
			return errors.WrapInvalid(err, "Registry", "LoadFromObjects", "merge definition")
		}
	}
	return nil
}

// Plugin supplies one ontology definition, typically compiled into the
// binary by a domain package.
type Plugin interface {
	Name() string
	Definition() (*Definition, error)
}

// LoadFromPlugins merges definitions supplied by plugins, in order.
func (r *Registry) LoadFromPlugins(plugins []Plugin) error {
	for _, p := range plugins {
		if p == nil {
			continue
		}
		def, err := p.Definition()
		if err != nil {
			return errors.WrapInvalid(err, "Registry", "LoadFromPlugins",
				fmt.Sprintf("plugin %s definition", p.Name()))
		}
		if err := r.merge(def); err != nil {
			return errors.WrapInvalid(err, "Registry", "LoadFromPlugins",
				fmt.Sprintf("merge plugin %s", p.Name()))
		}
	}
	return nil
}

func (r *Registry) merge(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	if _, reloaded := r.defs[def.Name]; !reloaded {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def

	for typeName, schema := range def.Entities {
		if prev, ok := r.entityTypes[typeName]; ok && prev.ontology != def.Name {
			r.logger.Debug("entity type overridden",
				"type", typeName,
				"previous_ontology", prev.ontology,
				"ontology", def.Name)
		}
		r.entityTypes[typeName] = entityEntry{schema: schema, ontology: def.Name}
	}
	for relName, schema := range def.Relationships {
		if prev, ok := r.relationTypes[relName]; ok && prev.ontology != def.Name {
			r.logger.Debug("relationship type overridden",
				"type", relName,
				"previous_ontology", prev.ontology,
				"ontology", def.Name)
		}
		r.relationTypes[relName] = relationEntry{schema: schema, ontology: def.Name}
	}

	r.logger.Info("ontology loaded",
		"ontology", def.Name,
		"version", def.Version,
		"entity_types", len(def.Entities),
		"relationship_types", len(def.Relationships))
	return nil
}

// Names returns loaded ontology names in load order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definition returns a loaded ontology by name.
func (r *Registry) Definition(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// GetAllEntityTypes returns all known entity type names across all loaded
// ontologies, sorted for determinism.
func (r *Registry) GetAllEntityTypes() []string {
	types := make([]string, 0, len(r.entityTypes))
	for name := range r.entityTypes {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// GetAllRelationshipTypes returns all known relationship type names across
// all loaded ontologies, sorted for determinism.
func (r *Registry) GetAllRelationshipTypes() []string {
	types := make([]string, 0, len(r.relationTypes))
	for name := range r.relationTypes {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// HasEntityType reports whether typeName is registered.
func (r *Registry) HasEntityType(typeName string) bool {
	_, ok := r.entityTypes[typeName]
	return ok
}

// EntitySchema returns the merged schema for typeName.
func (r *Registry) EntitySchema(typeName string) (EntitySchema, bool) {
	entry, ok := r.entityTypes[typeName]
	return entry.schema, ok
}

// EntityTypeOntology returns the name of the ontology that (last) defined
// typeName, or "" when unknown.
func (r *Registry) EntityTypeOntology(typeName string) string {
	return r.entityTypes[typeName].ontology
}

// GetKeyProperties returns the configured key properties for an entity
// type. Unknown types yield an empty slice, never an error.
func (r *Registry) GetKeyProperties(typeName string) []string {
	entry, ok := r.entityTypes[typeName]
	if !ok || len(entry.schema.KeyProperties) == 0 {
		return []string{}
	}
	props := make([]string, len(entry.schema.KeyProperties))
	copy(props, entry.schema.KeyProperties)
	return props
}

// Labeled is anything carrying a primary graph label, typically an
// extracted entity.
type Labeled interface {
	GraphLabel() string
}

// GetEnrichmentServiceName resolves the enrichment service configured for
// an entity via its label. Returns "" when the entity is nil, the label is
// empty, the label matches no known entity type, or the type declares no
// enrichment.
func (r *Registry) GetEnrichmentServiceName(entity Labeled) string {
	if entity == nil {
		return ""
	}
	label := entity.GraphLabel()
	if label == "" {
		return ""
	}
	entry, ok := r.entityTypes[label]
	if !ok || entry.schema.Enrichment == nil {
		return ""
	}
	return entry.schema.Enrichment.Service
}

// SchemaRepresentation renders the merged schema in a fixed markdown-like
// format. The output is byte-identical across repeated calls given
// unchanged registry state.
func (r *Registry) SchemaRepresentation() string {
	var b strings.Builder

	entityNames := r.GetAllEntityTypes()
	fmt.Fprintf(&b, "## Entities (%d)\n", len(entityNames))
	if len(entityNames) == 0 {
		b.WriteString("- _None loaded_\n")
	}
	for _, name := range entityNames {
		schema := r.entityTypes[name].schema
		if schema.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", name, schema.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}

	b.WriteString("\n")

	relationNames := r.GetAllRelationshipTypes()
	fmt.Fprintf(&b, "## Relationships (%d)\n", len(relationNames))
	if len(relationNames) == 0 {
		b.WriteString("- _None loaded_\n")
	}
	for _, name := range relationNames {
		schema := r.relationTypes[name].schema
		line := fmt.Sprintf("- %s (%s → %s)", name, schema.Domain.String(), schema.Range.String())
		if schema.Description != "" {
			line += ": " + schema.Description
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}
