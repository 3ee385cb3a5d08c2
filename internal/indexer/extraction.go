package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"onemcp/internal/extract"
	"onemcp/internal/llm"
	"onemcp/internal/openapi"
	"onemcp/internal/prompt"
)

var errMalformedResponse = errors.New("malformed model response")

const correctiveFollowUp = `The previous response could not be parsed as JSON. Respond again with the
single JSON object only: no prose, no code fences, every string terminated and
every bracket closed.`

// extractService runs chunked or whole-spec extraction and aggregates the
// per-chunk results. Per-chunk failures never escalate; an error is returned
// only when nothing at all was extracted, which sends the caller down the
// rule-based fallback path.
func (c *Coordinator) extractService(ctx context.Context, hb *Handbook, doc *openapi.Document, slug string) (extract.Mapped, int, error) {
	type chunkInput struct {
		id   string
		text string
	}
	var inputs []chunkInput
	if c.Config.Indexing.Chunking.EnabledFor("openapi") {
		for _, chunk := range openapi.ChunkOperations(doc, c.MaxOpsPerChunk) {
			text, err := chunk.Serialize()
			if err != nil {
				log.Warn().Err(err).Str("chunk", chunk.ChunkID).Msg("chunk_serialize_skipped")
				continue
			}
			inputs = append(inputs, chunkInput{id: slug + "_" + chunk.ChunkID, text: text})
		}
	} else {
		text, err := doc.Serialize()
		if err != nil {
			return extract.Mapped{}, 0, fmt.Errorf("serialize spec %s: %w", slug, err)
		}
		inputs = append(inputs, chunkInput{id: slug + "_whole", text: text})
	}
	if len(inputs) == 0 {
		return extract.Mapped{}, 0, fmt.Errorf("no extractable chunks for %s", slug)
	}

	summary := doc.Summary()
	summaryLine := fmt.Sprintf("%s %s (%d operations, %d schemas)",
		summary.Title, summary.Version, summary.OperationCount, summary.SchemaCount)

	var (
		mu      sync.Mutex
		results = make([]extract.Mapped, 0, len(inputs))
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	limit := c.Config.Indexing.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, in := range inputs {
		in := in
		g.Go(func() error {
			m, err := c.extractChunk(gctx, hb, in.id, in.text, summaryLine, doc.TagNames(), slug)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				failed++
				return nil // per-chunk failures are absorbed
			}
			results = append(results, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return extract.Mapped{}, failed, err
	}
	if len(results) == 0 {
		return extract.Mapped{}, failed, fmt.Errorf("all %d chunks failed for %s", len(inputs), slug)
	}

	var combined extract.Mapped
	for _, m := range results {
		combined.Entities = append(combined.Entities, m.Entities...)
		combined.Fields = append(combined.Fields, m.Fields...)
		combined.Operations = append(combined.Operations, m.Operations...)
		combined.Examples = append(combined.Examples, m.Examples...)
		combined.Documentations = append(combined.Documentations, m.Documentations...)
		combined.Edges = append(combined.Edges, m.Edges...)
		combined.Diagnostics = append(combined.Diagnostics, m.Diagnostics...)
	}
	return combined, failed, nil
}

// extractChunk renders the prompt for one chunk, invokes the model with
// tools disabled, and parses the result. A malformed response earns one
// corrective follow-up before the chunk is given up on.
func (c *Coordinator) extractChunk(ctx context.Context, hb *Handbook, chunkID, specText, summaryLine string, tags []string, slug string) (extract.Mapped, error) {
	msgs, err := prompt.Render(prompt.TemplateGraphExtraction, prompt.Context{
		Instructions: hb.Instructions,
		OpenAPI:      specText,
		Tags:         tags,
		Summary:      summaryLine,
	})
	if err != nil {
		return extract.Mapped{}, err
	}
	c.Artifacts.WritePrompt(chunkID, renderMessages(msgs))

	raw, err := c.chat(ctx, msgs)
	if err != nil {
		c.Artifacts.WriteError(chunkID, err, "")
		return extract.Mapped{}, err
	}
	c.Artifacts.WriteResponse(chunkID, raw)

	outcome := extract.Parse(raw)
	if outcome.Failed() {
		retryMsgs := append(append([]llm.Message(nil), msgs...),
			llm.Assistant(raw), llm.User(correctiveFollowUp))
		raw2, err2 := c.chat(ctx, retryMsgs)
		if err2 == nil {
			c.Artifacts.WriteResponse(chunkID+"_retry", raw2)
			outcome = extract.Parse(raw2)
		} else if errors.Is(err2, context.Canceled) {
			return extract.Mapped{}, err2
		}
	}
	if outcome.Failed() {
		c.Artifacts.WriteError(chunkID, errMalformedResponse, outcome.Raw)
		log.Warn().Str("chunk", chunkID).Msg("chunk_malformed_skipped")
		return extract.Mapped{}, errMalformedResponse
	}
	for _, d := range outcome.Diagnostics {
		log.Trace().Str("chunk", chunkID).Str("stage", d.Stage).Msg(d.Message)
	}

	m := extract.Map(outcome.Doc, slug)
	for _, d := range m.Diagnostics {
		log.Debug().Str("chunk", chunkID).Str("reason", d.Message).Msg("extraction_item_skipped")
	}
	return m, nil
}

// chat invokes the provider with tools disabled, retrying once on a
// transient failure.
func (c *Coordinator) chat(ctx context.Context, msgs []llm.Message) (string, error) {
	opts := llm.ChatOptions{Cacheable: true}
	resp, err := c.Provider.Chat(ctx, msgs, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		log.Warn().Err(err).Msg("llm_chat_retry")
		resp, err = c.Provider.Chat(ctx, msgs, opts)
		if err != nil {
			return "", fmt.Errorf("llm chat failed: %w", err)
		}
	}
	return resp.Content, nil
}

func renderMessages(msgs []llm.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString("## ")
		sb.WriteString(m.Role)
		sb.WriteString("\n\n")
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
