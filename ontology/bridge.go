package ontology

// LabelBridge maps a primary entity type to additional graph labels
// contributed by a cross-domain mapping, so one node can represent an
// entity's membership in multiple ontologies simultaneously (e.g. a
// financial Investor is also an Organization and a FinancialActor).
//
// The bridge never mutates the registry; it is consumed by the node-write
// path when composing a node's label set.
type LabelBridge struct {
	mappings map[string][]string
}

// NewLabelBridge creates an empty bridge.
func NewLabelBridge() *LabelBridge {
	return &LabelBridge{mappings: make(map[string][]string)}
}

// DefaultLabelBridge returns the built-in cross-domain mapping between the
// financial and CRM ontologies.
func DefaultLabelBridge() *LabelBridge {
	b := NewLabelBridge()
	b.Register("Investor", "Organization", "FinancialActor")
	b.Register("Fund", "Organization", "FinancialActor")
	b.Register("FinancialInstitution", "Organization", "FinancialActor")
	b.Register("Contact", "Person")
	return b
}

// Register adds (or extends) the additional labels for a primary type.
// Registration order is preserved; duplicates are dropped.
func (b *LabelBridge) Register(primaryType string, labels ...string) {
	existing := b.mappings[primaryType]
	for _, label := range labels {
		if label == primaryType || contains(existing, label) {
			continue
		}
		existing = append(existing, label)
	}
	b.mappings[primaryType] = existing
}

// AdditionalLabelsForType returns the extra labels the bridge contributes
// for a primary type, in registration order. Unknown types yield an empty
// slice.
func (b *LabelBridge) AdditionalLabelsForType(primaryType string) []string {
	labels, ok := b.mappings[primaryType]
	if !ok {
		return []string{}
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// LabelsFor composes the full persisted label set for a node: the primary
// type first, then bridge labels, deduplicated.
func (b *LabelBridge) LabelsFor(primaryType string) []string {
	labels := []string{primaryType}
	for _, extra := range b.mappings[primaryType] {
		if !contains(labels, extra) {
			labels = append(labels, extra)
		}
	}
	return labels
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
