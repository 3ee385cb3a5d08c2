package openapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesSpec = `
openapi: 3.0.3
info:
  title: Sales API
  version: 1.2.0
tags:
  - name: Sale
    description: Sales records
  - name: Refund
paths:
  /sales:
    get:
      operationId: listSales
      summary: List sales
      tags: [Sale]
      responses:
        "200":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/SaleList"
    post:
      operationId: createSale
      summary: Create a sale
      tags: [Sale]
      requestBody:
        content:
          application/json:
            schema:
              $ref: "#/components/schemas/Sale"
      responses:
        "201":
          description: created
  /refunds:
    post:
      operationId: createRefund
      summary: Create a refund
      tags: [Refund]
      responses:
        "201":
          description: created
components:
  schemas:
    Sale:
      type: object
      properties:
        amount:
          $ref: "#/components/schemas/Money"
    SaleList:
      type: array
      items:
        $ref: "#/components/schemas/Sale"
    Money:
      type: object
      properties:
        currency:
          type: string
    Unrelated:
      type: object
`

func TestParseAndSummary(t *testing.T) {
	doc, err := Parse([]byte(salesSpec))
	require.NoError(t, err)
	s := doc.Summary()
	assert.Equal(t, "Sales API", s.Title)
	assert.Equal(t, "1.2.0", s.Version)
	assert.Equal(t, 3, s.OperationCount)
	assert.Equal(t, 4, s.SchemaCount)
	assert.Equal(t, 2, s.TagCount)
	assert.Equal(t, []string{"Sale", "Refund"}, doc.TagNames())
}

func TestOperationsOrder(t *testing.T) {
	doc, err := Parse([]byte(salesSpec))
	require.NoError(t, err)
	ops := doc.Operations()
	require.Len(t, ops, 3)
	// paths alphabetical, then method order within a path
	assert.Equal(t, "POST /refunds", ops[0].Method+" "+ops[0].Path)
	assert.Equal(t, "GET /sales", ops[1].Method+" "+ops[1].Path)
	assert.Equal(t, "POST /sales", ops[2].Method+" "+ops[2].Path)
	assert.Equal(t, "listSales", ops[1].OperationID)
	assert.Equal(t, []string{"Sale"}, ops[1].Tags)
}

func TestChunkOperationsSelfContained(t *testing.T) {
	doc, err := Parse([]byte(salesSpec))
	require.NoError(t, err)
	chunks := ChunkOperations(doc, 1)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.NotEmpty(t, c.ChunkID)
		assert.Len(t, c.Operations, 1)
		text, err := c.Serialize()
		require.NoError(t, err)
		assert.Contains(t, text, "Sales API", "chunk %d keeps info", i)
	}

	// the /sales GET chunk carries its transitive schema closure
	var salesGet string
	for _, c := range chunks {
		if c.Operations[0].OperationID == "listSales" {
			s, err := c.Serialize()
			require.NoError(t, err)
			salesGet = s
		}
	}
	require.NotEmpty(t, salesGet)
	assert.Contains(t, salesGet, "SaleList")
	assert.Contains(t, salesGet, "Money", "closure must be transitive")
	assert.NotContains(t, salesGet, "Unrelated")
}

func TestChunkOperationsSharedComponentsDuplicated(t *testing.T) {
	doc, err := Parse([]byte(salesSpec))
	require.NoError(t, err)
	chunks := ChunkOperations(doc, 1)
	count := 0
	for _, c := range chunks {
		s, err := c.Serialize()
		require.NoError(t, err)
		if strings.Contains(s, "Money") {
			count++
		}
	}
	assert.Equal(t, 2, count, "both Sale chunks restate the shared schema")
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(":\n  - ]["))
	assert.Error(t, err)
	_, err = Parse([]byte(""))
	assert.Error(t, err)
}
