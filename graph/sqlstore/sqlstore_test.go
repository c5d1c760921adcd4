package sqlstore_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph/sqlstore"
)

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertAndGetNode(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID:         "Investor:acme",
		Labels:     []string{"Investor", "Organization"},
		Properties: map[string]any{"value": "Acme", "confidence": 0.9},
	}))

	node, err := store.GetNode(ctx, "Investor:acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"Investor", "Organization"}, node.Labels)
	assert.Equal(t, "Acme", node.Properties["value"])
}

func TestUpsertReplacesLabelsMergesProperties(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID: "n1", Labels: []string{"Person"}, Properties: map[string]any{"a": "1", "b": "2"},
	}))
	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID: "n1", Labels: []string{"Contact"}, Properties: map[string]any{"b": "3"},
	}))

	node, err := store.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact"}, node.Labels)
	assert.Equal(t, "1", node.Properties["a"])
	assert.Equal(t, "3", node.Properties["b"])

	people, err := store.NodesByLabel(ctx, "Person")
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestGetNodeMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.GetNode(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNodeNotFound))
}

func TestEdgesFromAndDuplicateReplacement(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{ID: "a", Labels: []string{"Person"}}))
	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{ID: "b", Labels: []string{"Person"}}))

	require.NoError(t, store.CreateEdge(ctx, graph.EdgeWrite{Type: "KNOWS", FromID: "a", ToID: "b", Confidence: 0.4}))
	require.NoError(t, store.CreateEdge(ctx, graph.EdgeWrite{Type: "KNOWS", FromID: "a", ToID: "b", Confidence: 0.8}))

	edges, err := store.EdgesFrom(ctx, "a")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "KNOWS", edges[0].Type)
	assert.InDelta(t, 0.8, edges[0].Confidence, 1e-9)
}

func TestRawQueryNamedParams(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID: "Person:jane", Labels: []string{"Person"}, Properties: map[string]any{"value": "Jane"},
	}))
	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID: "Organization:acme", Labels: []string{"Organization"}, Properties: map[string]any{"value": "Acme"},
	}))

	rows, err := store.RawQuery(ctx, `
		SELECT n.id AS id
		FROM nodes n
		JOIN node_labels nl ON nl.node_id = n.id
		WHERE nl.label = :label
		ORDER BY n.id`, map[string]any{"label": "Person"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Person:jane", rows[0]["id"])
}

func TestRawQueryEmptyStatement(t *testing.T) {
	store := openStore(t)

	_, err := store.RawQuery(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidData))
}
