package indexer

import (
	"strings"

	"onemcp/internal/extract"
	"onemcp/internal/graph"
	"onemcp/internal/openapi"
)

// ruleBasedExtraction is the LLM-free path: entities from the spec's tags,
// operations from the enumerated path/method pairs, and a HAS_OPERATION edge
// from each tag entity to every operation carrying that tag.
func ruleBasedExtraction(doc *openapi.Document, serviceSlug string) extract.Mapped {
	var m extract.Mapped

	entityByTag := map[string]string{}
	for _, tag := range doc.Tags {
		key := graph.Key(graph.KindEntity, tag.Name)
		entityByTag[tag.Name] = key
		m.Entities = append(m.Entities, graph.Node{
			Key:         key,
			Kind:        graph.KindEntity,
			Name:        tag.Name,
			Description: tag.Description,
			ServiceSlug: serviceSlug,
			Source:      "openapi-tags",
		})
	}

	for _, op := range doc.Operations() {
		opID := op.OperationID
		if opID == "" {
			opID = strings.ToLower(op.Method) + "_" + graph.Slug(op.Path)
		}
		key := graph.Key(graph.KindOperation, opID)
		m.Operations = append(m.Operations, graph.Node{
			Key:         key,
			Kind:        graph.KindOperation,
			Name:        opID,
			ServiceSlug: serviceSlug,
			OperationID: opID,
			Method:      op.Method,
			Path:        op.Path,
			Summary:     op.Summary,
			Description: op.Description,
			Tags:        op.Tags,
			Category:    categoryForMethod(op.Method),
		})
		for _, tag := range op.Tags {
			entityKey, ok := entityByTag[tag]
			if !ok {
				continue
			}
			m.Edges = append(m.Edges, graph.Edge{
				FromKey: entityKey,
				ToKey:   key,
				Type:    graph.EdgeHasOperation,
			})
		}
	}
	return m
}

func categoryForMethod(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return "Retrieve"
	case "POST":
		return "Create"
	case "PUT", "PATCH":
		return "Update"
	case "DELETE":
		return "Delete"
	default:
		return ""
	}
}
