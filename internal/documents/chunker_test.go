package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `# Billing

Billing covers invoices and payments.

## Invoices

An invoice is issued per order. Invoices carry line items and tax totals.

Paying an invoice settles the balance.

## Payments

Payments reference invoices.

` + "```json\n{\"amount\": 10}\n```" + `

Refunds reverse payments.
`

func TestChunkFileCoverage(t *testing.T) {
	c := Chunker{Params: Params{MinTokens: 5, MaxTokens: 40, OverlapTokens: 4}}
	chunks := c.ChunkFile("billing.md", sampleDoc)
	require.NotEmpty(t, chunks)

	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Body())
		joined.WriteString("\n")
	}
	// every visible word survives, in order
	assert.Equal(t, strings.Fields(sampleDoc), strings.Fields(joined.String()))
}

func TestChunkFileSizeBounds(t *testing.T) {
	c := Chunker{Params: Params{MinTokens: 5, MaxTokens: 20, OverlapTokens: 0}}
	chunks := c.ChunkFile("billing.md", sampleDoc)
	for _, ch := range chunks {
		if ch.Oversize {
			continue
		}
		assert.LessOrEqual(t, HeuristicTokenizer{}.Count(ch.Body()), 20, "chunk %s", ch.ID)
	}
}

func TestChunkFileFenceAtomic(t *testing.T) {
	fence := "```\n" + strings.Repeat("x := 1\n", 200) + "```"
	c := Chunker{Params: Params{MinTokens: 10, MaxTokens: 50, OverlapTokens: 0}}
	chunks := c.ChunkFile("code.md", "intro\n\n"+fence+"\n\noutro\n")
	var fenced []Chunk
	for _, ch := range chunks {
		if strings.Contains(ch.Body(), "x := 1") {
			fenced = append(fenced, ch)
		}
	}
	require.Len(t, fenced, 1, "code fence must never be split")
	assert.True(t, fenced[0].Oversize)
}

func TestChunkFileHeadingPath(t *testing.T) {
	c := Chunker{Params: Params{MinTokens: 1, MaxTokens: 30, OverlapTokens: 0}}
	chunks := c.ChunkFile("billing.md", sampleDoc)
	var paths [][]string
	for _, ch := range chunks {
		paths = append(paths, ch.SectionPath)
	}
	assert.Contains(t, paths, []string{"Billing", "Invoices"})
	assert.Contains(t, paths, []string{"Billing", "Payments"})
}

func TestChunkFileOverlapPrefix(t *testing.T) {
	c := Chunker{Params: Params{MinTokens: 1, MaxTokens: 15, OverlapTokens: 3}}
	chunks := c.ChunkFile("billing.md", sampleDoc)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prefix := chunks[i].Content[:len(chunks[i].Content)-len(chunks[i].Body())]
		if prefix == "" {
			continue
		}
		assert.True(t, strings.HasSuffix(chunks[i-1].Body()+"\n", prefix),
			"overlap must be the tail of the previous chunk")
	}
}

func TestChunkFileMalformedNeverFails(t *testing.T) {
	c := Chunker{Params: Params{MinTokens: 100, MaxTokens: 400, OverlapTokens: 10}}
	chunks := c.ChunkFile("broken.md", "```unterminated\nno closing fence")
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "no closing fence")
}

func TestChunkFileEmpty(t *testing.T) {
	c := Chunker{}
	assert.Empty(t, c.ChunkFile("empty.md", "   \n\n"))
}

func TestChunkIDStable(t *testing.T) {
	c := Chunker{Params: Params{MinTokens: 5, MaxTokens: 40, OverlapTokens: 4}}
	a := c.ChunkFile("billing.md", sampleDoc)
	b := c.ChunkFile("billing.md", sampleDoc)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}

func TestAdaptiveParams(t *testing.T) {
	p := AdaptiveParams(10_000, 0)
	assert.Equal(t, 700, p.MaxTokens)
	assert.Equal(t, 210, p.MinTokens)
	assert.Equal(t, 84, p.OverlapTokens)

	p = AdaptiveParams(100_000, 0)
	assert.Equal(t, 500, p.MaxTokens)

	p = AdaptiveParams(300_000, 0)
	assert.Equal(t, 350, p.MaxTokens)

	// 5% shrink per 10 entities above 10, capped at 50%
	p = AdaptiveParams(10_000, 30)
	assert.Equal(t, 630, p.MaxTokens)
	p = AdaptiveParams(10_000, 1000)
	assert.Equal(t, 350, p.MaxTokens)

	// clamped into [200, 800]
	p = AdaptiveParams(300_000, 1000)
	assert.Equal(t, 200, p.MaxTokens)
	assert.Equal(t, 100, p.MinTokens)
}

func TestLegacyParams(t *testing.T) {
	assert.Equal(t, Params{MinTokens: 150, MaxTokens: 450, OverlapTokens: 40}, LegacyParams())
}
