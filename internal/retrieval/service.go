package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"onemcp/internal/graph"
	"onemcp/internal/persistence/databases"
)

// ContextItem names one entity the caller wants context for, optionally
// narrowed to operation categories. Confidence and referral are caller hints
// preserved through retrieval as metadata.
type ContextItem struct {
	Entity     string   `json:"entity"`
	Operations []string `json:"operations"`
	Confidence float64  `json:"confidence,omitempty"`
	Referral   string   `json:"referral,omitempty"`
}

// Request is the retrieval query.
type Request struct {
	Context []ContextItem `json:"context"`
}

// Item is one typed context element with its reference.
type Item struct {
	Type    string `json:"type"` // entity | doc | field | signature | example
	Content string `json:"content"`
	Ref     string `json:"ref"`
}

// EntityGroup is the flattened-by-entity view for one request item.
type EntityGroup struct {
	Entity              string   `json:"entity"`
	RequestedOperations []string `json:"requestedOperations"`
	Confidence          float64  `json:"confidence,omitempty"`
	Referral            string   `json:"referral,omitempty"`
	Items               []Item   `json:"items"`
}

// OperationGroup groups context by operation display name.
type OperationGroup struct {
	Operation string `json:"operation"`
	Items     []Item `json:"items"`
}

// Response is the assembled context bundle.
type Response struct {
	Flattened         []EntityGroup    `json:"flattened"`
	OperationOriented []OperationGroup `json:"operationOriented"`
}

// Service resolves context requests against the graph. It holds a shared
// read handle and never mutates persisted state.
type Service struct {
	Driver databases.GraphDriver
	Cache  *Cache
}

// Retrieve assembles entity- and operation-oriented context bundles for the
// request.
func (s *Service) Retrieve(ctx context.Context, req Request) (Response, error) {
	if resp, ok := s.Cache.Get(ctx, req); ok {
		return resp, nil
	}

	resp := Response{}
	// documentation dedup is per view, tracked across the whole response
	entityDocsSeen := map[string]bool{}
	opDocsSeen := map[string]bool{}
	opGroupSeen := map[string]bool{}

	for _, item := range req.Context {
		group := EntityGroup{
			Entity:              item.Entity,
			RequestedOperations: item.Operations,
			Confidence:          item.Confidence,
			Referral:            item.Referral,
			Items:               []Item{},
		}

		entityKey := graph.Key(graph.KindEntity, item.Entity)
		n, err := s.Driver.QueryByEntity(ctx, entityKey)
		if err != nil {
			return Response{}, fmt.Errorf("query entity %s: %w", item.Entity, err)
		}
		if !n.Found {
			resp.Flattened = append(resp.Flattened, group)
			continue
		}
		entity := n.Center

		group.Items = append(group.Items, Item{
			Type:    "entity",
			Content: entityContent(entity),
			Ref:     entityRef(entity),
		})
		for _, doc := range neighborsOfKind(n, graph.KindDocumentation) {
			if entityDocsSeen[graph.CanonicalID(doc.Key)] {
				continue
			}
			entityDocsSeen[graph.CanonicalID(doc.Key)] = true
			group.Items = append(group.Items, Item{Type: "doc", Content: doc.Content, Ref: docRef(doc)})
		}
		for _, f := range neighborsOfKind(n, graph.KindField) {
			group.Items = append(group.Items, Item{
				Type:    "field",
				Content: fieldContent(f),
				Ref:     "/entities/" + graph.Slug(entity.Name) + "/fields/" + graph.Slug(f.Name),
			})
		}

		ops := matchingOperations(n, item.Operations)
		for _, op := range ops {
			opHop, err := s.Driver.QueryByEntity(ctx, op.Key)
			if err != nil {
				return Response{}, fmt.Errorf("query operation %s: %w", op.Key, err)
			}
			examples := neighborsOfKind(opHop, graph.KindExample)
			opDocs := neighborsOfKind(opHop, graph.KindDocumentation)

			group.Items = append(group.Items, Item{
				Type:    "signature",
				Content: op.OperationSignature(),
				Ref:     opRef(op),
			})
			for _, ex := range examples {
				group.Items = append(group.Items, Item{Type: "example", Content: exampleContent(ex), Ref: opRef(op)})
			}

			if opGroupSeen[op.Key] {
				continue
			}
			opGroupSeen[op.Key] = true
			og := OperationGroup{Operation: op.DisplayName(), Items: []Item{
				{Type: "signature", Content: op.OperationSignature(), Ref: opRef(op)},
			}}
			for _, ex := range examples {
				og.Items = append(og.Items, Item{Type: "example", Content: exampleContent(ex), Ref: opRef(op)})
			}
			for _, doc := range opDocs {
				if opDocsSeen[graph.CanonicalID(doc.Key)] {
					continue
				}
				opDocsSeen[graph.CanonicalID(doc.Key)] = true
				og.Items = append(og.Items, Item{Type: "doc", Content: doc.Content, Ref: docRef(doc)})
			}
			resp.OperationOriented = append(resp.OperationOriented, og)
		}

		resp.Flattened = append(resp.Flattened, group)
	}

	s.Cache.Set(ctx, req, resp)
	return resp, nil
}

// matchingOperations filters the entity's HAS_OPERATION neighbors by the
// requested category labels; an empty request matches every operation.
func matchingOperations(n databases.Neighborhood, requested []string) []graph.Node {
	want := map[string]bool{}
	for _, r := range requested {
		if r = strings.TrimSpace(r); r != "" {
			want[strings.ToLower(r)] = true
		}
	}
	var out []graph.Node
	for _, node := range n.ByEdgeType[graph.EdgeHasOperation] {
		if node.Kind != graph.KindOperation {
			continue
		}
		if len(want) > 0 && !want[strings.ToLower(node.Category)] {
			continue
		}
		out = append(out, node)
	}
	return out
}

// neighborsOfKind collects one-hop neighbors of a kind across edge types in
// stable group order. Documentation reaches entities via DESCRIBES and
// MENTIONS only.
func neighborsOfKind(n databases.Neighborhood, kind graph.NodeKind) []graph.Node {
	var out []graph.Node
	seen := map[string]bool{}
	for _, edgeType := range n.EdgeTypes {
		if kind == graph.KindDocumentation &&
			edgeType != graph.EdgeDescribes && edgeType != graph.EdgeMentions {
			continue
		}
		if kind == graph.KindField && edgeType != graph.EdgeHasField {
			continue
		}
		if kind == graph.KindExample && edgeType != graph.EdgeHasExample {
			continue
		}
		for _, node := range n.ByEdgeType[edgeType] {
			if node.Kind != kind || seen[node.Key] {
				continue
			}
			seen[node.Key] = true
			out = append(out, node)
		}
	}
	return out
}

func entityContent(e graph.Node) string {
	if e.Description != "" {
		return e.Description
	}
	return e.Name
}

func entityRef(e graph.Node) string {
	return "/" + e.ServiceSlug + "/entities/" + graph.Slug(e.Name)
}

func fieldContent(f graph.Node) string {
	content := f.Name
	if f.FieldType != "" {
		content += " (" + f.FieldType + ")"
	}
	if f.Description != "" {
		content += ": " + f.Description
	}
	return content
}

func docRef(d graph.Node) string {
	if d.SourceFile != "" {
		return "/" + strings.TrimPrefix(d.SourceFile, "/")
	}
	return "/docs/" + graph.Slug(d.Title)
}

// opRef returns the operation's path with a leading slash guaranteed.
func opRef(op graph.Node) string {
	p := op.Path
	if p == "" {
		p = graph.Slug(op.OperationID)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// exampleContent renders an example deterministically; blank sections are
// omitted.
func exampleContent(ex graph.Node) string {
	var sb strings.Builder
	if ex.Name != "" {
		sb.WriteString("**" + ex.Name + "**\n")
	}
	if ex.Description != "" {
		sb.WriteString("\n" + ex.Description + "\n")
	}
	if strings.TrimSpace(ex.RequestBody) != "" {
		sb.WriteString("\n**Request:**\n```json\n" + ex.RequestBody + "\n```\n")
	}
	if strings.TrimSpace(ex.ResponseBody) != "" {
		sb.WriteString("\n**Response:**\n```json\n" + ex.ResponseBody + "\n```\n")
	}
	content := strings.TrimSuffix(sb.String(), "\n")
	if content == "" {
		log.Debug().Str("key", ex.Key).Msg("empty_example_content")
	}
	return content
}
