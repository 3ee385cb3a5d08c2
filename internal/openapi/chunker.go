package openapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// DefaultMaxOperationsPerChunk keeps a serialized chunk comfortably inside an
// LLM context window.
const DefaultMaxOperationsPerChunk = 8

// OperationChunk is a self-contained slice of a spec: at most K operations
// plus every component they transitively reference. Shared components are
// duplicated across chunks on purpose.
type OperationChunk struct {
	ChunkID    string
	Operations []Operation

	doc map[string]any
}

// ChunkOperations splits a document into ordered self-contained chunks.
func ChunkOperations(d *Document, maxOps int) []OperationChunk {
	if maxOps <= 0 {
		maxOps = DefaultMaxOperationsPerChunk
	}
	ops := d.Operations()
	var chunks []OperationChunk
	for start := 0; start < len(ops); start += maxOps {
		end := start + maxOps
		if end > len(ops) {
			end = len(ops)
		}
		group := ops[start:end]
		chunk := OperationChunk{
			ChunkID:    fmt.Sprintf("chunk_%03d", len(chunks)+1),
			Operations: group,
			doc:        d.chunkDocument(group),
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Serialize renders the chunk sub-document to YAML, falling back to JSON.
func (c OperationChunk) Serialize() (string, error) {
	return marshalSpec(c.doc)
}

func marshalSpec(doc map[string]any) (string, error) {
	if b, err := yaml.Marshal(doc); err == nil {
		return string(b), nil
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize spec: %w", err)
	}
	return string(b), nil
}

// chunkDocument rebuilds a minimal well-formed spec around one operation
// group: info and tags ride along, paths carry only the group's operations,
// and components hold the transitive reference closure.
func (d *Document) chunkDocument(group []Operation) map[string]any {
	doc := map[string]any{}
	if v, ok := d.raw["openapi"]; ok {
		doc["openapi"] = v
	} else {
		doc["openapi"] = "3.0.0"
	}
	if v, ok := d.raw["info"]; ok {
		doc["info"] = v
	}
	if v, ok := d.raw["tags"]; ok {
		doc["tags"] = v
	}

	paths := map[string]any{}
	for _, op := range group {
		item, ok := paths[op.Path].(map[string]any)
		if !ok {
			item = map[string]any{}
			paths[op.Path] = item
		}
		item[strings.ToLower(op.Method)] = op.Raw
	}
	doc["paths"] = paths

	refs := map[refKey]bool{}
	for _, op := range group {
		d.collectRefs(op.Raw, refs)
	}
	if len(refs) > 0 {
		components := map[string]any{}
		keys := make([]refKey, 0, len(refs))
		for k := range refs {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].section != keys[j].section {
				return keys[i].section < keys[j].section
			}
			return keys[i].name < keys[j].name
		})
		for _, k := range keys {
			section, ok := d.components[k.section].(map[string]any)
			if !ok {
				continue
			}
			def, ok := section[k.name]
			if !ok {
				continue
			}
			target, ok := components[k.section].(map[string]any)
			if !ok {
				target = map[string]any{}
				components[k.section] = target
			}
			target[k.name] = def
		}
		if len(components) > 0 {
			doc["components"] = components
		}
	}
	return doc
}

type refKey struct{ section, name string }

// collectRefs walks a value tree for "$ref" strings and expands the closure
// through the referenced component definitions.
func (d *Document) collectRefs(root any, into map[refKey]bool) {
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, val := range t {
				if k == "$ref" {
					if s, ok := val.(string); ok {
						if key, ok := parseRef(s); ok && !into[key] {
							into[key] = true
							if section, ok := d.components[key.section].(map[string]any); ok {
								walk(section[key.name])
							}
						}
					}
					continue
				}
				walk(val)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(root)
}

func parseRef(ref string) (refKey, bool) {
	const prefix = "#/components/"
	if !strings.HasPrefix(ref, prefix) {
		return refKey{}, false
	}
	rest := strings.TrimPrefix(ref, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return refKey{}, false
	}
	return refKey{section: parts[0], name: parts[1]}, true
}
