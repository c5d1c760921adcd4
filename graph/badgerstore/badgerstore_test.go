package badgerstore_test

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph/badgerstore"
)

func openStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	store, err := badgerstore.Open("", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertAndGetNode(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{
		ID:         "Contact:jane",
		Labels:     []string{"Contact", "Person"},
		Properties: map[string]any{"value": "Jane"},
	}))

	node, err := store.GetNode(ctx, "Contact:jane")
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact", "Person"}, node.Labels)
	assert.Equal(t, "Jane", node.Properties["value"])
}

func TestLabelIndexFollowsRelabel(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{ID: "n1", Labels: []string{"Person"}}))
	require.NoError(t, store.UpsertNode(ctx, graph.NodeWrite{ID: "n1", Labels: []string{"Contact"}}))

	people, err := store.NodesByLabel(ctx, "Person")
	require.NoError(t, err)
	assert.Empty(t, people)

	contacts, err := store.NodesByLabel(ctx, "Contact")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "n1", contacts[0].ID)
}

func TestGetNodeMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.GetNode(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNodeNotFound))
}

func TestEdgesFrom(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEdge(ctx, graph.EdgeWrite{Type: "KNOWS", FromID: "a", ToID: "b", Confidence: 0.6}))
	require.NoError(t, store.CreateEdge(ctx, graph.EdgeWrite{Type: "WORKS_FOR", FromID: "a", ToID: "c"}))
	require.NoError(t, store.CreateEdge(ctx, graph.EdgeWrite{Type: "KNOWS", FromID: "b", ToID: "a"}))

	edges, err := store.EdgesFrom(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestDuplicateEdgeReplaced(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEdge(ctx, graph.EdgeWrite{Type: "KNOWS", FromID: "a", ToID: "b", Confidence: 0.2}))
	require.NoError(t, store.CreateEdge(ctx, graph.EdgeWrite{Type: "KNOWS", FromID: "a", ToID: "b", Confidence: 0.9}))

	edges, err := store.EdgesFrom(ctx, "a")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.InDelta(t, 0.9, edges[0].Confidence, 1e-9)
}

func TestRawQueryNotSupported(t *testing.T) {
	store := openStore(t)

	_, err := store.RawQuery(context.Background(), "MATCH (n) RETURN n", nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrQueryNotSupported))
}
