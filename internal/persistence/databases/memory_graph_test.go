package databases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onemcp/internal/graph"
)

func newTestGraph(t *testing.T) GraphDriver {
	t.Helper()
	d := NewMemoryGraph("test-handbook")
	require.NoError(t, d.Initialize(context.Background()))
	return d
}

func TestMemoryGraphLifecycle(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryGraph("hb")
	assert.False(t, d.IsInitialized())
	require.ErrorIs(t, d.ClearAll(ctx), ErrNotInitialized)

	require.NoError(t, d.Initialize(ctx))
	require.NoError(t, d.Initialize(ctx), "initialize is idempotent")
	assert.True(t, d.IsInitialized())
	require.NoError(t, d.EnsureGraphExists(ctx))

	require.NoError(t, d.Shutdown(ctx))
	assert.False(t, d.IsInitialized())
	_, err := d.StoreEdge(ctx, graph.Edge{})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestStoreNodeUpsertReplacesInFull(t *testing.T) {
	ctx := context.Background()
	d := newTestGraph(t)
	op := graph.Node{Key: "op|listsales", Kind: graph.KindOperation, OperationID: "listSales", Category: "Retrieve"}
	require.NoError(t, d.StoreNode(ctx, op))

	// replacing drops fields the new document does not carry
	op2 := graph.Node{Key: "op|listsales", Kind: graph.KindOperation, OperationID: "listSales"}
	require.NoError(t, d.StoreNode(ctx, op2))
	got, ok, err := d.GetNode(ctx, "op|listsales")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.Category)

	nodes, edges, err := d.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, edges)
}

func TestStoreEdgeValidatesEndpoints(t *testing.T) {
	ctx := context.Background()
	d := newTestGraph(t)
	require.NoError(t, d.StoreNode(ctx, graph.Node{Key: "entity|sale", Kind: graph.KindEntity, Name: "Sale"}))

	stored, err := d.StoreEdge(ctx, graph.Edge{FromKey: "entity|sale", ToKey: "op|doesnotexist", Type: "HAS_OPERATION"})
	require.NoError(t, err, "missing endpoints must not raise")
	assert.False(t, stored)

	require.NoError(t, d.StoreNode(ctx, graph.Node{Key: "op|listsales", Kind: graph.KindOperation, OperationID: "listSales"}))
	stored, err = d.StoreEdge(ctx, graph.Edge{FromKey: "entity|sale", ToKey: "op|listsales", Type: "has_operation"})
	require.NoError(t, err)
	assert.True(t, stored)

	// duplicate triple upserts rather than duplicating
	stored, err = d.StoreEdge(ctx, graph.Edge{FromKey: "entity|sale", ToKey: "op|listsales", Type: "HAS_OPERATION"})
	require.NoError(t, err)
	assert.True(t, stored)
	_, edges, err := d.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, edges)
}

func TestQueryByEntityGroupsByEdgeType(t *testing.T) {
	ctx := context.Background()
	d := newTestGraph(t)
	require.NoError(t, d.StoreNode(ctx, graph.Node{Key: "entity|sale", Kind: graph.KindEntity, Name: "Sale"}))
	require.NoError(t, d.StoreNode(ctx, graph.Node{Key: "op|listsales", Kind: graph.KindOperation, OperationID: "listSales"}))
	require.NoError(t, d.StoreNode(ctx, graph.Node{Key: "op|createsale", Kind: graph.KindOperation, OperationID: "createSale"}))
	require.NoError(t, d.StoreNode(ctx, graph.Node{Key: "doc|pricing", Kind: graph.KindDocumentation, Title: "Pricing", Content: "x"}))

	for _, e := range []graph.Edge{
		{FromKey: "entity|sale", ToKey: "op|listsales", Type: "HAS_OPERATION"},
		{FromKey: "entity|sale", ToKey: "op|createsale", Type: "HAS_OPERATION"},
		{FromKey: "doc|pricing", ToKey: "entity|sale", Type: "MENTIONS"},
	} {
		stored, err := d.StoreEdge(ctx, e)
		require.NoError(t, err)
		require.True(t, stored)
	}

	n, err := d.QueryByEntity(ctx, "entity|sale")
	require.NoError(t, err)
	require.True(t, n.Found)
	assert.Equal(t, "Sale", n.Center.Name)
	assert.Equal(t, []string{"HAS_OPERATION", "MENTIONS"}, n.EdgeTypes)
	require.Len(t, n.ByEdgeType["HAS_OPERATION"], 2)
	assert.Equal(t, "listSales", n.ByEdgeType["HAS_OPERATION"][0].OperationID, "write order is preserved")
	require.Len(t, n.ByEdgeType["MENTIONS"], 1)
	assert.Equal(t, "Pricing", n.ByEdgeType["MENTIONS"][0].Title, "inbound edges are incident too")
}

func TestClearAllResets(t *testing.T) {
	ctx := context.Background()
	d := newTestGraph(t)
	require.NoError(t, d.StoreNode(ctx, graph.Node{Key: "entity|sale", Kind: graph.KindEntity}))
	require.NoError(t, d.EnsureGraphExists(ctx))
	require.NoError(t, d.ClearAll(ctx))
	nodes, edges, err := d.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, nodes)
	assert.Zero(t, edges)
}

func TestRegistryResolve(t *testing.T) {
	d, err := Resolve(DriverMemory, Options{Handbook: "hb"})
	require.NoError(t, err)
	require.NotNil(t, d)

	_, err = Resolve("no-such-driver", Options{})
	assert.Error(t, err)

	_, err = Resolve(DriverPostgres, Options{Handbook: "hb"})
	assert.Error(t, err, "postgres driver requires a DSN")
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "onemcp_my_handbook", Namespace("My Handbook"))
}
