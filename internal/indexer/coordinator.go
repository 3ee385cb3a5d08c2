package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"onemcp/internal/artifacts"
	"onemcp/internal/config"
	"onemcp/internal/extract"
	"onemcp/internal/graph"
	"onemcp/internal/llm"
	"onemcp/internal/openapi"
	"onemcp/internal/persistence/databases"
	"onemcp/internal/progress"
)

// ErrCancelled wraps a cancellation surfaced during indexing. Partial state
// is left as-is; the next run with clear-on-startup resets it.
var ErrCancelled = errors.New("indexing cancelled")

// Coordinator drives the end-to-end graph build for one handbook. It
// exclusively owns graph mutations; retrieval holds a read handle.
type Coordinator struct {
	Driver    databases.GraphDriver
	Provider  llm.Provider
	Config    config.Config
	Progress  progress.Sink
	Artifacts *artifacts.Store

	// MaxOpsPerChunk bounds operations per OpenAPI chunk (default 8).
	MaxOpsPerChunk int
}

// ServiceSummary counts what one OpenAPI service contributed.
type ServiceSummary struct {
	Service        string
	Entities       int
	Fields         int
	Operations     int
	Examples       int
	Documentations int
	Edges          int
	SkippedEdges   int
	FailedChunks   int
	Fallback       bool
}

// Summary is the per-handbook indexing result.
type Summary struct {
	Handbook     string
	Services     []ServiceSummary
	DocNodes     int
	DocEdges     int
	SkippedEdges int
}

func (c *Coordinator) sink() progress.Sink {
	if c.Progress != nil {
		return c.Progress
	}
	return progress.Discard{}
}

// IndexHandbook builds the graph for one handbook: clear, per-service
// extraction, documentation extraction, graph registration.
func (c *Coordinator) IndexHandbook(ctx context.Context, hb *Handbook) (Summary, error) {
	sink := c.sink()
	token := "index:" + graph.Slug(hb.Name)
	total := float64(len(hb.SpecFiles) + 1)
	publish := func(completed float64, status progress.Status, msg string) {
		sink.Publish(ctx, progress.Event{
			ID: token, Label: "indexing " + hb.Name,
			Completed: completed, Total: total,
			Message: msg, Status: status,
		})
	}

	summary := Summary{Handbook: hb.Name}
	publish(0, progress.StatusPending, "initializing")

	if !c.Driver.IsInitialized() {
		if err := c.Driver.Initialize(ctx); err != nil {
			publish(0, progress.StatusFailed, "driver initialization failed")
			return summary, fmt.Errorf("index handbook %s: %w", hb.Name, err)
		}
	}
	if c.Config.Indexing.ClearOnStartupEnabled() {
		if err := c.Driver.ClearAll(ctx); err != nil {
			publish(0, progress.StatusFailed, "clear failed")
			return summary, fmt.Errorf("clear namespace for %s: %w", hb.Name, err)
		}
	}

	var harvested []graph.Node
	for i, specPath := range hb.SpecFiles {
		if err := ctx.Err(); err != nil {
			publish(float64(i), progress.StatusCancelled, "cancelled")
			log.Warn().Str("handbook", hb.Name).Msg("indexing_cancelled")
			return summary, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		svc := ServiceName(specPath)
		publish(float64(i), progress.StatusRunning, "indexing service "+svc)

		svcSum, entities, err := c.indexService(ctx, hb, specPath)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				publish(float64(i), progress.StatusCancelled, "cancelled")
				return summary, fmt.Errorf("%w: %v", ErrCancelled, err)
			}
			publish(float64(i), progress.StatusFailed, "service "+svc+" failed")
			return summary, err
		}
		summary.Services = append(summary.Services, svcSum)
		summary.SkippedEdges += svcSum.SkippedEdges
		harvested = append(harvested, entities...)
	}

	publish(float64(len(hb.SpecFiles)), progress.StatusRunning, "indexing documentation")
	docNodes, docEdges, err := c.indexDocuments(ctx, hb, harvested)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
			publish(total-1, progress.StatusCancelled, "cancelled")
			return summary, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		publish(total-1, progress.StatusFailed, "documentation extraction failed")
		return summary, err
	}
	summary.DocNodes = docNodes
	summary.DocEdges = docEdges

	if err := c.Driver.EnsureGraphExists(ctx); err != nil {
		publish(total, progress.StatusFailed, "graph registration failed")
		return summary, fmt.Errorf("ensure graph for %s: %w", hb.Name, err)
	}

	publish(total, progress.StatusCompleted, "done")
	log.Info().
		Str("handbook", hb.Name).
		Int("services", len(summary.Services)).
		Int("doc_nodes", summary.DocNodes).
		Int("doc_edges", summary.DocEdges).
		Int("skipped_edges", summary.SkippedEdges).
		Msg("index_handbook_done")
	return summary, nil
}

// indexService extracts one OpenAPI service and persists its subgraph.
func (c *Coordinator) indexService(ctx context.Context, hb *Handbook, specPath string) (ServiceSummary, []graph.Node, error) {
	svc := ServiceName(specPath)
	slug := graph.Slug(svc)

	data, err := os.ReadFile(specPath)
	if err != nil {
		return ServiceSummary{}, nil, fmt.Errorf("read spec %s: %w", specPath, err)
	}
	doc, err := openapi.Parse(data)
	if err != nil {
		// a spec that does not parse is skipped, not fatal for the handbook
		log.Error().Err(err).Str("service", svc).Msg("spec_parse_skipped")
		return ServiceSummary{Service: svc}, nil, nil
	}

	mapped, failedChunks, extractErr := c.extractService(ctx, hb, doc, slug)
	fallback := false
	if extractErr != nil {
		if errors.Is(extractErr, context.Canceled) {
			return ServiceSummary{}, nil, extractErr
		}
		log.Warn().Err(extractErr).Str("service", svc).Msg("extraction_fallback")
		mapped = ruleBasedExtraction(doc, slug)
		fallback = true
	}

	sum, err := c.persistService(ctx, svc, mapped)
	if err != nil {
		return ServiceSummary{}, nil, fmt.Errorf("persist service %s: %w", svc, err)
	}
	sum.FailedChunks = failedChunks
	sum.Fallback = fallback

	log.Info().
		Str("service", svc).
		Int("entities", sum.Entities).
		Int("fields", sum.Fields).
		Int("operations", sum.Operations).
		Int("examples", sum.Examples).
		Int("documentations", sum.Documentations).
		Int("edges", sum.Edges).
		Int("skipped_edges", sum.SkippedEdges).
		Int("failed_chunks", sum.FailedChunks).
		Bool("fallback", sum.Fallback).
		Msg("index_service_done")
	return sum, mapped.Entities, nil
}

// persistService writes one service's nodes and edges in referential order:
// entities, fields, operations, examples, documentations, then edges. Edge
// dedup happens in memory before any edge write.
func (c *Coordinator) persistService(ctx context.Context, svc string, m extract.Mapped) (ServiceSummary, error) {
	sum := ServiceSummary{Service: svc}
	valid := map[string]bool{}
	seen := map[string]bool{}

	writeNodes := func(nodes []graph.Node, count *int) error {
		for _, n := range nodes {
			if n.Key == "" || seen[n.Key] {
				continue
			}
			seen[n.Key] = true
			if err := c.Driver.StoreNode(ctx, n); err != nil {
				return err
			}
			valid[n.Key] = true
			*count++
		}
		return nil
	}
	for _, batch := range []struct {
		nodes []graph.Node
		count *int
	}{
		{m.Entities, &sum.Entities},
		{m.Fields, &sum.Fields},
		{m.Operations, &sum.Operations},
		{m.Examples, &sum.Examples},
		{m.Documentations, &sum.Documentations},
	} {
		if err := writeNodes(batch.nodes, batch.count); err != nil {
			return ServiceSummary{}, err
		}
	}

	written := map[string]bool{}
	for _, e := range c.serviceEdges(m) {
		e = e.Normalize()
		if e.Type == "" {
			sum.SkippedEdges++
			log.Debug().Str("from", e.FromKey).Str("to", e.ToKey).Str("reason", "empty-type").Msg("edge_skipped")
			continue
		}
		if !valid[e.FromKey] || !valid[e.ToKey] {
			sum.SkippedEdges++
			log.Debug().Str("from", e.FromKey).Str("to", e.ToKey).Str("type", e.Type).
				Str("reason", "missing-endpoint").Msg("edge_skipped")
			continue
		}
		if written[e.Triple()] {
			continue
		}
		stored, err := c.Driver.StoreEdge(ctx, e)
		if err != nil {
			return ServiceSummary{}, err
		}
		if stored {
			written[e.Triple()] = true
			sum.Edges++
		} else {
			sum.SkippedEdges++
		}
	}
	return sum, nil
}

// serviceEdges orders synthesized edges before extractor-emitted ones so the
// synthesis path stays authoritative under triple dedup.
func (c *Coordinator) serviceEdges(m extract.Mapped) []graph.Edge {
	var edges []graph.Edge
	for _, f := range m.Fields {
		if f.OwningEntityKey != "" {
			edges = append(edges, graph.Edge{FromKey: f.OwningEntityKey, ToKey: f.Key, Type: graph.EdgeHasField})
		}
	}
	for _, ex := range m.Examples {
		if ex.OwningOperationKey != "" {
			edges = append(edges, graph.Edge{FromKey: ex.OwningOperationKey, ToKey: ex.Key, Type: graph.EdgeHasExample})
		}
	}
	for _, ent := range m.Entities {
		for _, opKey := range ent.AssociatedOperationKeys {
			edges = append(edges, graph.Edge{FromKey: ent.Key, ToKey: opKey, Type: graph.EdgeHasOperation})
		}
	}
	for _, op := range m.Operations {
		if op.PrimaryEntityKey != "" {
			edges = append(edges, graph.Edge{FromKey: op.PrimaryEntityKey, ToKey: op.Key, Type: graph.EdgeHasOperation})
		}
	}
	for _, doc := range m.Documentations {
		for _, rel := range doc.RelatedKeys {
			edges = append(edges, graph.Edge{FromKey: doc.Key, ToKey: rel, Type: graph.EdgeDescribes})
		}
	}
	return append(edges, m.Edges...)
}
