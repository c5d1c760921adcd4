package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
)

func upperPlugin() Plugin {
	return Func{
		ServiceName: "upper",
		Fn: func(_ context.Context, entity extract.Entity) (extract.Entity, error) {
			entity.Properties = map[string]any{"normalized": true}
			return entity, nil
		},
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(upperPlugin()))

	p, ok := r.Resolve("upper")
	require.True(t, ok)

	out, err := p.Enrich(context.Background(), extract.Entity{Value: "acme"})
	require.NoError(t, err)
	assert.Equal(t, true, out.Properties["normalized"])

	_, ok = r.Resolve("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(upperPlugin()))
	assert.Error(t, r.Register(upperPlugin()))
}

func TestRegistry_RejectsUnnamed(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Func{ServiceName: ""}))
	assert.Error(t, r.Register(nil))
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Func{ServiceName: "b", Fn: passthrough}))
	require.NoError(t, r.Register(Func{ServiceName: "a", Fn: passthrough}))
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func passthrough(_ context.Context, e extract.Entity) (extract.Entity, error) {
	return e, nil
}
