package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGraphExtraction(t *testing.T) {
	msgs, err := Render(TemplateGraphExtraction, Context{
		Instructions: "Prefer terse descriptions.",
		OpenAPI:      "paths:\n  /sales: {}",
		Docs:         "Sales settle invoices.",
		Tags:         []string{"Sale", "Refund"},
		Summary:      "Sales API v1 (3 operations)",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `"relationships"`)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Sale, Refund")
	assert.Contains(t, msgs[1].Content, "/sales")
	assert.Contains(t, msgs[1].Content, "Prefer terse descriptions.")
}

func TestRenderOmitsBlankSections(t *testing.T) {
	msgs, err := Render(TemplateGraphExtraction, Context{OpenAPI: "paths: {}"})
	require.NoError(t, err)
	assert.NotContains(t, msgs[1].Content, "Declared tags")
	assert.NotContains(t, msgs[1].Content, "Related documentation")
	assert.NotContains(t, msgs[1].Content, "Handbook instructions")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("nope", Context{})
	assert.Error(t, err)
}
