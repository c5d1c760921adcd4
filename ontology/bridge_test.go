package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelBridge_AdditionalLabels(t *testing.T) {
	b := NewLabelBridge()
	b.Register("Investor", "Organization", "FinancialActor")

	assert.Equal(t, []string{"Organization", "FinancialActor"}, b.AdditionalLabelsForType("Investor"))
	assert.Equal(t, []string{}, b.AdditionalLabelsForType("Unknown"))
}

func TestLabelBridge_LabelsFor(t *testing.T) {
	b := NewLabelBridge()
	b.Register("Investor", "Organization", "FinancialActor")

	// Primary label first, bridge labels after, deduplicated.
	assert.Equal(t, []string{"Investor", "Organization", "FinancialActor"}, b.LabelsFor("Investor"))
	assert.Equal(t, []string{"Contact"}, b.LabelsFor("Contact"))
}

func TestLabelBridge_RegisterDedupes(t *testing.T) {
	b := NewLabelBridge()
	b.Register("Investor", "Organization")
	b.Register("Investor", "Organization", "FinancialActor")
	// Self-mapping is dropped.
	b.Register("Investor", "Investor")

	assert.Equal(t, []string{"Organization", "FinancialActor"}, b.AdditionalLabelsForType("Investor"))
}

func TestDefaultLabelBridge(t *testing.T) {
	b := DefaultLabelBridge()
	assert.Equal(t, []string{"Investor", "Organization", "FinancialActor"}, b.LabelsFor("Investor"))
	assert.Equal(t, []string{"Contact", "Person"}, b.LabelsFor("Contact"))
}
