package graph

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/normalize"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// identPattern bounds every label and property key that reaches a store.
// Backends interpolate labels into statements, so nothing outside this
// shape may pass.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is safe to use as a label or
// property key.
func ValidIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

// Writer turns extracted entities and relationships into store writes.
// Labels are checked against the ontology registry before they reach the
// backend, and the label bridge expands each primary label into its full
// multi-label set.
type Writer struct {
	store    Store
	registry *ontology.Registry
	bridge   *ontology.LabelBridge
	logger   *slog.Logger
}

// NewWriter builds a Writer over store.
func NewWriter(store Store, registry *ontology.Registry, bridge *ontology.LabelBridge, logger *slog.Logger) *Writer {
	if bridge == nil {
		bridge = ontology.DefaultLabelBridge()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, registry: registry, bridge: bridge, logger: logger}
}

// NodeID derives the deterministic node id for an entity, so repeated
// mentions of the same value upsert the same node.
func NodeID(label, value string) string {
	return label + ":" + slug(value)
}

func slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
			}
			prev = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// WriteEntity upserts the node for ent and returns its id. The entity's
// graph label must be registered in the ontology registry; unknown or
// malformed labels return errors.ErrLabelNotAllowed so callers can skip
// the entity without failing the item.
func (w *Writer) WriteEntity(ctx context.Context, ent extract.Entity, item *normalize.Data) (string, error) {
	label := ent.GraphLabel()
	if !ValidIdentifier(label) {
		return "", errors.WrapInvalid(errors.ErrLabelNotAllowed, "Writer", "WriteEntity", "validate label "+label)
	}
	if !w.registry.HasEntityType(label) {
		return "", errors.WrapInvalid(errors.ErrLabelNotAllowed, "Writer", "WriteEntity", "whitelist label "+label)
	}

	labels := w.bridge.LabelsFor(label)
	kept := labels[:0]
	for _, l := range labels {
		if ValidIdentifier(l) {
			kept = append(kept, l)
		} else {
			w.logger.Debug("dropping bridged label", "label", l, "primary", label)
		}
	}

	id := ent.ID
	if id == "" {
		id = NodeID(label, ent.Value)
	}

	props := map[string]any{
		"value":      ent.Value,
		"confidence": ent.Confidence,
	}
	for k, v := range ent.Properties {
		if !ValidIdentifier(k) {
			w.logger.Debug("dropping property with unsafe key", "key", k, "label", label)
			continue
		}
		props[k] = v
	}
	if item != nil {
		props["source_type"] = item.SourceType
		props["source_id"] = item.SourceID
		props["item_id"] = item.ID
		if !item.Metadata.Timestamp.IsZero() {
			props["ingested_at"] = item.Metadata.Timestamp.UTC().Format(time.RFC3339)
		}
	}

	if err := w.store.UpsertNode(ctx, NodeWrite{ID: id, Labels: kept, Properties: props}); err != nil {
		return "", errors.Wrap(err, "Writer", "WriteEntity", "upsert "+label+" node")
	}
	return id, nil
}

// WriteRelationship creates the edge for rel. nodeIDs maps the
// extractor's entity references (entity ID or value) to stored node ids;
// relationships whose endpoints were not persisted are rejected with
// errors.ErrInvalidData.
func (w *Writer) WriteRelationship(ctx context.Context, rel extract.Relationship, nodeIDs map[string]string) error {
	relType := strings.ToUpper(strings.TrimSpace(rel.Type))
	if !ValidIdentifier(relType) {
		return errors.WrapInvalid(errors.ErrLabelNotAllowed, "Writer", "WriteRelationship", "validate type "+rel.Type)
	}
	from, ok := nodeIDs[rel.From]
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidData, "Writer", "WriteRelationship", "resolve source "+rel.From)
	}
	to, ok := nodeIDs[rel.To]
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidData, "Writer", "WriteRelationship", "resolve target "+rel.To)
	}

	props := map[string]any{}
	for k, v := range rel.Properties {
		if ValidIdentifier(k) {
			props[k] = v
		}
	}

	write := EdgeWrite{
		ID:         rel.ID,
		Type:       relType,
		FromID:     from,
		ToID:       to,
		Confidence: rel.Confidence,
		Properties: props,
	}
	if write.ID == "" {
		write.ID = uuid.NewString()
	}
	if err := w.store.CreateEdge(ctx, write); err != nil {
		return errors.Wrap(err, "Writer", "WriteRelationship", "create "+relType+" edge")
	}
	return nil
}
