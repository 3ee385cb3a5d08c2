package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onemcp/internal/graph"
	"onemcp/internal/persistence/databases"
)

func seedGraph(t *testing.T) databases.GraphDriver {
	t.Helper()
	ctx := context.Background()
	d := databases.NewMemoryGraph("retrieval-test")
	require.NoError(t, d.Initialize(ctx))

	nodes := []graph.Node{
		{Key: "entity|sale", Kind: graph.KindEntity, Name: "Sale", Description: "A completed purchase.", ServiceSlug: "sales"},
		{Key: "field|sale_amount", Kind: graph.KindField, Name: "amount", FieldType: "number",
			Description: "Total in cents.", OwningEntityKey: "entity|sale", ServiceSlug: "sales"},
		{Key: "op|listsales", Kind: graph.KindOperation, OperationID: "listSales", Method: "GET",
			Path: "/sales", Summary: "List sales", Category: "Retrieve", ServiceSlug: "sales"},
		{Key: "op|createsale", Kind: graph.KindOperation, OperationID: "createSale", Method: "POST",
			Path: "/sales", Summary: "Create a sale", Category: "Create", ServiceSlug: "sales"},
		{Key: "example|listsales_basic", Kind: graph.KindExample, Name: "basic",
			Description: "List the first page.", ResponseBody: `[{"id":1}]`, ResponseStatus: "200",
			OwningOperationKey: "op|listsales", ServiceSlug: "sales"},
		{Key: "doc|pricing_rules", Kind: graph.KindDocumentation, Title: "Pricing rules",
			Content: "Prices include tax.", DocType: "concept", ServiceSlug: "sales"},
	}
	for _, n := range nodes {
		require.NoError(t, d.StoreNode(ctx, n))
	}
	edges := []graph.Edge{
		{FromKey: "entity|sale", ToKey: "op|listsales", Type: graph.EdgeHasOperation},
		{FromKey: "entity|sale", ToKey: "op|createsale", Type: graph.EdgeHasOperation},
		{FromKey: "entity|sale", ToKey: "field|sale_amount", Type: graph.EdgeHasField},
		{FromKey: "op|listsales", ToKey: "example|listsales_basic", Type: graph.EdgeHasExample},
		{FromKey: "doc|pricing_rules", ToKey: "entity|sale", Type: graph.EdgeMentions},
		{FromKey: "doc|pricing_rules", ToKey: "op|listsales", Type: graph.EdgeDescribes},
		{FromKey: "doc|pricing_rules", ToKey: "op|createsale", Type: graph.EdgeDescribes},
	}
	for _, e := range edges {
		stored, err := d.StoreEdge(ctx, e)
		require.NoError(t, err)
		require.True(t, stored)
	}
	return d
}

func TestRetrieveUnknownEntityPreservesRequest(t *testing.T) {
	s := &Service{Driver: seedGraph(t)}
	resp, err := s.Retrieve(context.Background(), Request{Context: []ContextItem{
		{Entity: "X", Operations: []string{}, Confidence: 0.4, Referral: "indirect"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Flattened, 1)
	g := resp.Flattened[0]
	assert.Equal(t, "X", g.Entity)
	assert.Equal(t, 0.4, g.Confidence)
	assert.Equal(t, "indirect", g.Referral)
	assert.Empty(t, g.Items)
	assert.Empty(t, resp.OperationOriented)
}

func TestRetrieveFiltersByCategory(t *testing.T) {
	s := &Service{Driver: seedGraph(t)}
	resp, err := s.Retrieve(context.Background(), Request{Context: []ContextItem{
		{Entity: "Sale", Operations: []string{"Retrieve"}},
	}})
	require.NoError(t, err)

	require.Len(t, resp.OperationOriented, 1)
	og := resp.OperationOriented[0]
	assert.Equal(t, "GET /sales", og.Operation)
	require.NotEmpty(t, og.Items)
	assert.Equal(t, "signature", og.Items[0].Type)
	assert.Equal(t, "GET /sales — List sales", og.Items[0].Content)
	assert.Equal(t, "/sales", og.Items[0].Ref)
}

func TestRetrieveEmptyCategoriesMatchAll(t *testing.T) {
	s := &Service{Driver: seedGraph(t)}
	resp, err := s.Retrieve(context.Background(), Request{Context: []ContextItem{
		{Entity: "Sale"},
	}})
	require.NoError(t, err)
	assert.Len(t, resp.OperationOriented, 2, "one group per eligible operation")
}

func TestRetrieveFlattenedOrder(t *testing.T) {
	s := &Service{Driver: seedGraph(t)}
	resp, err := s.Retrieve(context.Background(), Request{Context: []ContextItem{
		{Entity: "Sale", Operations: []string{"Retrieve"}},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Flattened, 1)
	items := resp.Flattened[0].Items

	var types []string
	for _, it := range items {
		types = append(types, it.Type)
	}
	assert.Equal(t, []string{"entity", "doc", "field", "signature", "example"}, types)

	assert.Equal(t, "/sales/entities/sale", items[0].Ref)
	assert.Equal(t, "A completed purchase.", items[0].Content)
	assert.Equal(t, "Prices include tax.", items[1].Content)
	assert.Equal(t, "/entities/sale/fields/amount", items[2].Ref)
	assert.Contains(t, items[4].Content, "**basic**")
	assert.Contains(t, items[4].Content, "**Response:**")
	assert.NotContains(t, items[4].Content, "**Request:**", "blank request section is omitted")
}

func TestRetrieveDocDedupAcrossOperations(t *testing.T) {
	s := &Service{Driver: seedGraph(t)}
	resp, err := s.Retrieve(context.Background(), Request{Context: []ContextItem{
		{Entity: "Sale"},
	}})
	require.NoError(t, err)

	docCount := 0
	for _, og := range resp.OperationOriented {
		for _, it := range og.Items {
			if it.Type == "doc" {
				docCount++
			}
		}
	}
	assert.Equal(t, 1, docCount, "a shared doc appears once, under the first group")
	require.NotEmpty(t, resp.OperationOriented)
	hasDoc := false
	for _, it := range resp.OperationOriented[0].Items {
		if it.Type == "doc" {
			hasDoc = true
		}
	}
	assert.True(t, hasDoc)
}

func TestRetrieveDuplicateRequestItemsKeepOneOperationGroup(t *testing.T) {
	s := &Service{Driver: seedGraph(t)}
	resp, err := s.Retrieve(context.Background(), Request{Context: []ContextItem{
		{Entity: "Sale", Operations: []string{"Retrieve"}},
		{Entity: "Sale", Operations: []string{"Retrieve"}},
	}})
	require.NoError(t, err)
	assert.Len(t, resp.Flattened, 2)
	assert.Len(t, resp.OperationOriented, 1)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	_, ok := c.Get(context.Background(), Request{})
	assert.False(t, ok)
	assert.NotPanics(t, func() { c.Set(context.Background(), Request{}, Response{}) })
}
