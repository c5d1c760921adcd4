package memstore_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph/memstore"
)

func TestUpsertNodeMergesProperties(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID:         "Person:jane",
		Labels:     []string{"Person"},
		Properties: map[string]any{"value": "Jane", "role": "analyst"},
	}))
	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID:         "Person:jane",
		Labels:     []string{"Person", "Contact"},
		Properties: map[string]any{"role": "partner"},
	}))

	node, err := store.GetNode(ctx, "Person:jane")
	require.NoError(t, err)
	assert.Equal(t, []string{"Person", "Contact"}, node.Labels)
	assert.Equal(t, "Jane", node.Properties["value"])
	assert.Equal(t, "partner", node.Properties["role"])
	assert.Equal(t, 1, store.NodeCount())
}

func TestGetNodeMissing(t *testing.T) {
	store := memstore.New()

	_, err := store.GetNode(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNodeNotFound))
}

func TestNodesByLabelOrdered(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	for _, id := range []string{"Person:zed", "Person:amy", "Organization:acme"} {
		label := "Person"
		if id == "Organization:acme" {
			label = "Organization"
		}
		require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{ID: id, Labels: []string{label}}))
	}

	people, err := store.NodesByLabel(ctx, "Person")
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "Person:amy", people[0].ID)
	assert.Equal(t, "Person:zed", people[1].ID)
}

func TestDuplicateEdgeReplaced(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	first := graph.EdgeWrite{Type: "KNOWS", FromID: "a", ToID: "b", Confidence: 0.5}
	second := graph.EdgeWrite{Type: "KNOWS", FromID: "a", ToID: "b", Confidence: 0.9}
	require.NoError(t, store.CreateEdge(ctx, first))
	require.NoError(t, store.CreateEdge(ctx, second))

	edges, err := store.EdgesFrom(ctx, "a")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.InDelta(t, 0.9, edges[0].Confidence, 1e-9)
	assert.Equal(t, 1, store.EdgeCount())
}

func TestRawQueryNotSupported(t *testing.T) {
	store := memstore.New()

	_, err := store.RawQuery(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrQueryNotSupported))
}

func TestGetNodeReturnsCopy(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID: "n1", Labels: []string{"Person"}, Properties: map[string]any{"value": "x"},
	}))

	node, err := store.GetNode(ctx, "n1")
	require.NoError(t, err)
	node.Properties["value"] = "mutated"

	again, err := store.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "x", again.Properties["value"])
}
