package openapi

import (
	"fmt"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// methodOrder is the enumeration order for operations within one path item.
var methodOrder = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Tag is one entry of the spec's top-level tags list.
type Tag struct {
	Name        string
	Description string
}

// Operation is one path/method pair with the fields the indexer cares about
// plus the raw operation object for serialization.
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	Description string
	Tags        []string
	Raw         map[string]any
}

// SpecSummary condenses a parsed document for prompt context and logging.
type SpecSummary struct {
	Title          string
	Version        string
	OperationCount int
	SchemaCount    int
	TagCount       int
}

// Document is a parsed OpenAPI 3.x file. Parsing is structural, not
// validating: unknown fields ride along in the raw maps.
type Document struct {
	Title   string
	Version string
	Tags    []Tag

	raw        map[string]any
	paths      map[string]map[string]map[string]any
	components map[string]any
}

// Parse decodes an OpenAPI YAML (or JSON, which YAML subsumes) document.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse openapi document: empty input")
	}
	d := &Document{raw: raw, paths: map[string]map[string]map[string]any{}}
	if info, ok := raw["info"].(map[string]any); ok {
		d.Title, _ = info["title"].(string)
		d.Version, _ = info["version"].(string)
	}
	if tags, ok := raw["tags"].([]any); ok {
		for _, t := range tags {
			if m, ok := t.(map[string]any); ok {
				tag := Tag{}
				tag.Name, _ = m["name"].(string)
				tag.Description, _ = m["description"].(string)
				if tag.Name != "" {
					d.Tags = append(d.Tags, tag)
				}
			}
		}
	}
	if comps, ok := raw["components"].(map[string]any); ok {
		d.components = comps
	}
	if paths, ok := raw["paths"].(map[string]any); ok {
		for p, item := range paths {
			pathItem, ok := item.(map[string]any)
			if !ok {
				continue
			}
			methods := map[string]map[string]any{}
			for _, m := range methodOrder {
				if op, ok := pathItem[m].(map[string]any); ok {
					methods[m] = op
				}
			}
			if len(methods) > 0 {
				d.paths[p] = methods
			}
		}
	}
	return d, nil
}

// Summary returns the document's headline counts.
func (d *Document) Summary() SpecSummary {
	s := SpecSummary{Title: d.Title, Version: d.Version, TagCount: len(d.Tags)}
	s.OperationCount = len(d.Operations())
	if schemas, ok := d.components["schemas"].(map[string]any); ok {
		s.SchemaCount = len(schemas)
	}
	return s
}

// Operations enumerates every operation in path-then-method order.
func (d *Document) Operations() []Operation {
	paths := make([]string, 0, len(d.paths))
	for p := range d.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []Operation
	for _, p := range paths {
		for _, m := range methodOrder {
			raw, ok := d.paths[p][m]
			if !ok {
				continue
			}
			op := Operation{Method: strings.ToUpper(m), Path: p, Raw: raw}
			op.OperationID, _ = raw["operationId"].(string)
			op.Summary, _ = raw["summary"].(string)
			op.Description, _ = raw["description"].(string)
			if tags, ok := raw["tags"].([]any); ok {
				for _, t := range tags {
					if s, ok := t.(string); ok {
						op.Tags = append(op.Tags, s)
					}
				}
			}
			out = append(out, op)
		}
	}
	return out
}

// TagNames returns the names from the spec's tags list.
func (d *Document) TagNames() []string {
	out := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		out = append(out, t.Name)
	}
	return out
}

// Serialize renders the whole document back to YAML for prompt embedding,
// falling back to JSON when YAML serialization fails.
func (d *Document) Serialize() (string, error) {
	return marshalSpec(d.raw)
}
