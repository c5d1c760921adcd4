package ontology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const financialJSON = `{
  "name": "financial",
  "version": "1.0.0",
  "description": "Financial domain",
  "entities": {
    "Investor": {
      "description": "An investing organization",
      "keyProperties": ["name"],
      "enrichment": {"service": "company-registry"}
    }
  },
  "relationships": {
    "INVESTS_IN": {"domain": "Investor", "range": ["Fund", "Deal"], "description": "Capital commitment"}
  },
  "advancedRelationships": {
    "temporal": {
      "enabled": true,
      "patterns": [
        {"name": "deal-flow", "entityTypes": ["Deal"], "relationshipType": "PRECEDES", "confidence": 0.8}
      ]
    }
  }
}`

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "financial.json")
	require.NoError(t, os.WriteFile(path, []byte(financialJSON), 0o644))

	r := NewRegistry(testLogger())
	require.NoError(t, r.LoadFromFile(path))

	assert.True(t, r.HasEntityType("Investor"))
	def, ok := r.Definition("financial")
	require.True(t, ok)
	require.NotNil(t, def.Advanced)
	require.NotNil(t, def.Advanced.Temporal)
	assert.True(t, def.Advanced.Temporal.Enabled)
	require.Len(t, def.Advanced.Temporal.Patterns, 1)
	assert.Equal(t, "deal-flow", def.Advanced.Temporal.Patterns[0].Name)

	// Domain accepts a bare string, range an array.
	rel, ok := def.Relationships["INVESTS_IN"]
	require.True(t, ok)
	assert.Equal(t, TypeList{"Investor"}, rel.Domain)
	assert.Equal(t, TypeList{"Fund", "Deal"}, rel.Range)
}

func TestLoadFromDirectory_LexicalOrder(t *testing.T) {
	dir := t.TempDir()
	// b.json loads after a.json, so its Investor definition wins.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(
		`{"name":"a","entities":{"Investor":{"enrichment":{"service":"first"}}}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(
		`{"name":"b","entities":{"Investor":{"enrichment":{"service":"second"}}}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not json"), 0o644))

	r := NewRegistry(testLogger())
	require.NoError(t, r.LoadFromDirectory(dir))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, "second", r.entityTypes["Investor"].schema.Enrichment.Service)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	r := NewRegistry(testLogger())
	assert.Error(t, r.LoadFromFile(path))
	assert.Error(t, r.LoadFromFile(filepath.Join(dir, "missing.json")))
}

func TestParseDefinition_RequiresName(t *testing.T) {
	_, err := ParseDefinition([]byte(`{"entities":{}}`))
	assert.Error(t, err)
}
