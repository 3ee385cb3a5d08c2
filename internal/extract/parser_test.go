package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCleanJSON(t *testing.T) {
	raw := `{"entities":[{"name":"Sale"}],"operations":[]}`
	o := Parse(raw)
	assert.Equal(t, StatusSuccess, o.Status)
	require.NotNil(t, o.Doc)
	assert.Len(t, o.Doc["entities"], 1)
}

func TestParseFencedProse(t *testing.T) {
	raw := "Here is the extraction you asked for:\n```json\n{\"entities\":[{\"name\":\"Sale\"}]}\n```\nLet me know if you need more."
	o := Parse(raw)
	assert.Equal(t, StatusSuccess, o.Status)
	assert.Len(t, o.Doc["entities"], 1)
}

func TestParseTruncatedMidString(t *testing.T) {
	raw := `{"entities":[{"name":"Sale","description":"foo`
	o := Parse(raw)
	require.Equal(t, StatusPartial, o.Status)
	ents := o.Doc["entities"].([]any)
	require.Len(t, ents, 1)
	ent := ents[0].(map[string]any)
	assert.Equal(t, "foo", ent["description"], "description ends where the stream cut")
}

func TestParseTruncatedAfterComma(t *testing.T) {
	raw := `{"entities":[{"name":"Sale"},{"name":"Refund"},`
	o := Parse(raw)
	require.Equal(t, StatusPartial, o.Status)
	ents := o.Doc["entities"].([]any)
	assert.Len(t, ents, 2, "entities before the cutoff survive")
}

func TestParseInvalidEscape(t *testing.T) {
	raw := `{"entities":[{"name":"Sale","description":"a\ b"}]}`
	o := Parse(raw)
	require.NotEqual(t, StatusFailed, o.Status)
	ents := o.Doc["entities"].([]any)
	ent := ents[0].(map[string]any)
	assert.Equal(t, "a b", ent["description"])
}

func TestParseNoJSON(t *testing.T) {
	o := Parse("I could not produce a useful answer.")
	assert.True(t, o.Failed())
	assert.NotEmpty(t, o.Raw)
	assert.NotEmpty(t, o.Diagnostics)
}

func TestRepairJSONMonotone(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"a":1,"b":[1,2,3],"c":{"d":"x\ny"}}`,
		`{"s":"quote \" backslash \\ slash \/ unicode é"}`,
	}
	for _, in := range inputs {
		require.True(t, json.Valid([]byte(in)))
		assert.Equal(t, in, RepairJSON(in), "valid JSON must pass through unchanged")
	}
}

func TestAggressiveRepairTrailingComma(t *testing.T) {
	fixed := AggressiveRepair(`{"a":[1,2,],}`)
	assert.True(t, json.Valid([]byte(fixed)), "got %q", fixed)
}

func TestMapSynthesizesKeys(t *testing.T) {
	doc := map[string]any{
		"entities": []any{
			map[string]any{"name": "Sale", "description": "a sale"},
		},
		"fields": []any{
			map[string]any{"name": "amount", "entity": "Sale", "fieldType": "number"},
		},
		"operations": []any{
			map[string]any{"operationId": "listSales", "method": "get", "path": "/sales", "category": "Retrieve"},
			map[string]any{"method": "get", "path": "/broken"}, // dropped: no operationId
		},
		"examples": []any{
			map[string]any{"name": "basic", "operation": "listSales", "responseStatus": float64(200),
				"requestBody": map[string]any{"limit": float64(10)}},
		},
		"documentations": []any{
			map[string]any{"title": "Pricing rules", "content": "Pricing is simple.", "docType": "concept"},
			map[string]any{"title": "Empty", "content": "   "}, // discarded: blank content
		},
		"relationships": []any{
			map[string]any{"from": "entity|sale", "to": "op|listsales", "type": "has_operation"},
		},
	}
	m := Map(doc, "sales")

	require.Len(t, m.Entities, 1)
	assert.Equal(t, "entity|sale", m.Entities[0].Key)
	assert.Equal(t, "sales", m.Entities[0].ServiceSlug)

	require.Len(t, m.Fields, 1)
	assert.Equal(t, "field|sale_amount", m.Fields[0].Key)
	assert.Equal(t, "entity|sale", m.Fields[0].OwningEntityKey)

	require.Len(t, m.Operations, 1)
	assert.Equal(t, "op|listsales", m.Operations[0].Key)
	assert.Equal(t, "GET", m.Operations[0].Method)
	assert.Equal(t, "Retrieve", m.Operations[0].Category)

	require.Len(t, m.Examples, 1)
	assert.Equal(t, "example|listsales_basic", m.Examples[0].Key)
	assert.Equal(t, "op|listsales", m.Examples[0].OwningOperationKey)
	assert.Equal(t, "200", m.Examples[0].ResponseStatus)
	assert.JSONEq(t, `{"limit":10}`, m.Examples[0].RequestBody)

	require.Len(t, m.Documentations, 1)
	assert.Equal(t, "doc|pricing_rules", m.Documentations[0].Key)

	require.Len(t, m.Edges, 1)
	assert.Equal(t, "HAS_OPERATION", m.Edges[0].Type)

	// one dropped operation, one discarded documentation
	assert.Len(t, m.Diagnostics, 2)
}
