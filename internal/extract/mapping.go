package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"onemcp/internal/graph"
)

// Mapped is the typed graph extracted from one model response.
type Mapped struct {
	Entities       []graph.Node
	Fields         []graph.Node
	Operations     []graph.Node
	Examples       []graph.Node
	Documentations []graph.Node
	Edges          []graph.Edge
	Diagnostics    []Diagnostic
}

// Nodes returns every mapped node in persistence order.
func (m Mapped) Nodes() []graph.Node {
	out := make([]graph.Node, 0,
		len(m.Entities)+len(m.Fields)+len(m.Operations)+len(m.Examples)+len(m.Documentations))
	out = append(out, m.Entities...)
	out = append(out, m.Fields...)
	out = append(out, m.Operations...)
	out = append(out, m.Examples...)
	out = append(out, m.Documentations...)
	return out
}

// Map converts a decoded extraction document into graph nodes and edges.
// Items missing required attributes are dropped with a diagnostic; missing
// keys are synthesized from the displayed name or the owning node.
func Map(doc map[string]any, serviceSlug string) Mapped {
	var m Mapped
	skip := func(kind, reason string) {
		m.Diagnostics = append(m.Diagnostics, Diagnostic{Stage: "map", Message: kind + ": " + reason})
	}

	for _, item := range items(doc, "entities") {
		name := str(item, "name")
		key := str(item, "key")
		if name == "" && key == "" {
			skip("entity", "missing name")
			continue
		}
		if key == "" {
			key = graph.Key(graph.KindEntity, name)
		}
		m.Entities = append(m.Entities, graph.Node{
			Key:                     key,
			Kind:                    graph.KindEntity,
			Name:                    name,
			Description:             str(item, "description"),
			ServiceSlug:             serviceSlug,
			AssociatedOperationKeys: strs(item, "associatedOperationKeys", "associatedOperations"),
			Source:                  str(item, "source"),
			Attributes:              strMap(item, "attributes"),
			Domain:                  str(item, "domain"),
		})
	}

	for _, item := range items(doc, "fields") {
		name := str(item, "name")
		owner := ownerKey(item, graph.KindEntity, "owningEntityKey", "entityKey", "entity")
		if name == "" {
			skip("field", "missing name")
			continue
		}
		if owner == "" {
			skip("field", fmt.Sprintf("%s: missing owning entity", name))
			continue
		}
		key := str(item, "key")
		if key == "" {
			key = graph.ChildKey(graph.KindField, owner, name)
		}
		m.Fields = append(m.Fields, graph.Node{
			Key:             key,
			Kind:            graph.KindField,
			Name:            name,
			Description:     str(item, "description"),
			ServiceSlug:     serviceSlug,
			FieldType:       str(item, "fieldType", "type"),
			OwningEntityKey: owner,
		})
	}

	for _, item := range items(doc, "operations") {
		opID := str(item, "operationId", "operationID", "name")
		if opID == "" {
			skip("operation", "missing operationId")
			continue
		}
		key := str(item, "key")
		if key == "" {
			key = graph.Key(graph.KindOperation, opID)
		}
		m.Operations = append(m.Operations, graph.Node{
			Key:              key,
			Kind:             graph.KindOperation,
			Name:             opID,
			Description:      str(item, "description"),
			ServiceSlug:      serviceSlug,
			OperationID:      opID,
			Method:           strings.ToUpper(str(item, "method")),
			Path:             str(item, "path"),
			Summary:          str(item, "summary"),
			Tags:             strs(item, "tags"),
			Signature:        str(item, "signature"),
			ExampleKeys:      strs(item, "exampleKeys"),
			DocumentationURI: str(item, "documentationUri"),
			RequestSchema:    coerceString(item["requestSchema"]),
			ResponseSchema:   coerceString(item["responseSchema"]),
			Category:         str(item, "category"),
			PrimaryEntityKey: ownerKey(item, graph.KindEntity, "primaryEntityKey", "primaryEntity"),
		})
	}

	for _, item := range items(doc, "examples") {
		name := str(item, "name")
		owner := ownerKey(item, graph.KindOperation, "owningOperationKey", "operationKey", "operation")
		if owner == "" {
			skip("example", fmt.Sprintf("%s: missing owning operation", name))
			continue
		}
		key := str(item, "key")
		if key == "" {
			key = graph.ChildKey(graph.KindExample, owner, name)
		}
		m.Examples = append(m.Examples, graph.Node{
			Key:                key,
			Kind:               graph.KindExample,
			Name:               name,
			Description:        str(item, "description"),
			ServiceSlug:        serviceSlug,
			Summary:            str(item, "summary"),
			RequestBody:        coerceString(item["requestBody"]),
			ResponseBody:       coerceString(item["responseBody"]),
			ResponseStatus:     coerceString(item["responseStatus"]),
			OwningOperationKey: owner,
		})
	}

	for _, item := range items(doc, "documentations") {
		title := str(item, "title", "name")
		content := str(item, "content")
		if strings.TrimSpace(content) == "" {
			skip("documentation", fmt.Sprintf("%s: blank content", title))
			continue
		}
		key := str(item, "key")
		if key == "" {
			key = graph.Key(graph.KindDocumentation, title)
		}
		docType := str(item, "docType", "type")
		if docType == "" {
			docType = "concept"
		}
		m.Documentations = append(m.Documentations, graph.Node{
			Key:         key,
			Kind:        graph.KindDocumentation,
			ServiceSlug: serviceSlug,
			Title:       title,
			Content:     content,
			DocType:     docType,
			SourceFile:  str(item, "sourceFile"),
			RelatedKeys: strs(item, "relatedKeys"),
			Metadata:    strMap(item, "metadata"),
		})
	}

	for _, item := range items(doc, "relationships") {
		from := str(item, "fromKey", "from", "source")
		to := str(item, "toKey", "to", "target")
		typ := strings.ToUpper(strings.TrimSpace(str(item, "edgeType", "type", "relationship")))
		if from == "" || to == "" || typ == "" {
			skip("relationship", "missing endpoint or type")
			continue
		}
		m.Edges = append(m.Edges, graph.Edge{
			FromKey:     from,
			ToKey:       to,
			Type:        typ,
			Properties:  anyMap(item, "properties"),
			Description: str(item, "description"),
			Strength:    num(item, "strength"),
		})
	}

	return m
}

func items(doc map[string]any, key string) []map[string]any {
	list, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := item[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func strs(item map[string]any, keys ...string) []string {
	for _, k := range keys {
		list, ok := item[k].([]any)
		if !ok {
			continue
		}
		var out []string
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func strMap(item map[string]any, key string) map[string]string {
	m, ok := item[key].(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = coerceString(v)
	}
	return out
}

func anyMap(item map[string]any, key string) map[string]any {
	m, ok := item[key].(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return m
}

func num(item map[string]any, key string) float64 {
	if f, ok := item[key].(float64); ok {
		return f
	}
	return 0
}

// ownerKey resolves a reference to another node. Values that already carry a
// kind separator pass through; bare names are slugged under the given kind.
func ownerKey(item map[string]any, kind graph.NodeKind, keys ...string) string {
	v := str(item, keys...)
	if v == "" {
		return ""
	}
	if strings.Contains(v, graph.KeySeparator) {
		return v
	}
	return graph.Key(kind, v)
}

// coerceString renders any JSON value as a string: strings pass through,
// structured values serialize back to JSON, numbers drop float noise.
func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", t)
	}
}
