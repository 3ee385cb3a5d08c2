package graph

import "strings"

// NodeKind discriminates the node variants stored in a handbook graph.
type NodeKind string

const (
	KindEntity        NodeKind = "entity"
	KindField         NodeKind = "field"
	KindOperation     NodeKind = "op"
	KindExample       NodeKind = "example"
	KindDocumentation NodeKind = "doc"
)

// Edge types written by the indexer. Extractors may emit additional labels;
// any non-empty label is accepted and upper-cased on write.
const (
	EdgeHasOperation = "HAS_OPERATION"
	EdgeHasField     = "HAS_FIELD"
	EdgeHasExample   = "HAS_EXAMPLE"
	EdgeDescribes    = "DESCRIBES"
	EdgeMentions     = "MENTIONS"
	EdgeRelatesTo    = "RELATES_TO"
)

// Node is the tagged variant shared by every node kind. Kind selects which
// payload fields are meaningful; storage stays homogeneous per collection.
type Node struct {
	Key         string   `json:"key"`
	Kind        NodeKind `json:"kind"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	ServiceSlug string   `json:"serviceSlug,omitempty"`

	// Entity payload.
	AssociatedOperationKeys []string          `json:"associatedOperationKeys,omitempty"`
	Source                  string            `json:"source,omitempty"`
	Attributes              map[string]string `json:"attributes,omitempty"`
	Domain                  string            `json:"domain,omitempty"`

	// Field payload.
	FieldType       string `json:"fieldType,omitempty"`
	OwningEntityKey string `json:"owningEntityKey,omitempty"`

	// Operation payload.
	OperationID      string   `json:"operationId,omitempty"`
	Method           string   `json:"method,omitempty"`
	Path             string   `json:"path,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Signature        string   `json:"signature,omitempty"`
	ExampleKeys      []string `json:"exampleKeys,omitempty"`
	DocumentationURI string   `json:"documentationUri,omitempty"`
	RequestSchema    string   `json:"requestSchema,omitempty"`
	ResponseSchema   string   `json:"responseSchema,omitempty"`
	Category         string   `json:"category,omitempty"`
	PrimaryEntityKey string   `json:"primaryEntityKey,omitempty"`

	// Example payload.
	RequestBody        string `json:"requestBody,omitempty"`
	ResponseBody       string `json:"responseBody,omitempty"`
	ResponseStatus     string `json:"responseStatus,omitempty"`
	OwningOperationKey string `json:"owningOperationKey,omitempty"`

	// Documentation payload.
	Title       string            `json:"title,omitempty"`
	Content     string            `json:"content,omitempty"`
	DocType     string            `json:"docType,omitempty"`
	SourceFile  string            `json:"sourceFile,omitempty"`
	RelatedKeys []string          `json:"relatedKeys,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DisplayName returns the human-facing name for a node, used to title
// retrieval groups.
func (n Node) DisplayName() string {
	switch n.Kind {
	case KindOperation:
		if n.Method != "" && n.Path != "" {
			return strings.ToUpper(n.Method) + " " + n.Path
		}
		return n.OperationID
	case KindDocumentation:
		if n.Title != "" {
			return n.Title
		}
	}
	return n.Name
}

// OperationSignature returns the stored signature, defaulting to
// "METHOD path — summary" when the extractor did not emit one.
func (n Node) OperationSignature() string {
	if n.Signature != "" {
		return n.Signature
	}
	sig := strings.ToUpper(n.Method) + " " + n.Path
	if n.Summary != "" {
		sig += " — " + n.Summary
	}
	return sig
}

// Edge is a typed, directed connection between two nodes identified by their
// logical keys.
type Edge struct {
	FromKey     string         `json:"fromKey"`
	ToKey       string         `json:"toKey"`
	Type        string         `json:"edgeType"`
	Properties  map[string]any `json:"properties,omitempty"`
	Description string         `json:"description,omitempty"`
	Strength    float64        `json:"strength,omitempty"`
}

// Normalize upper-cases the edge type label. Empty labels are left for the
// caller to reject.
func (e Edge) Normalize() Edge {
	e.Type = strings.ToUpper(strings.TrimSpace(e.Type))
	return e
}

// Triple returns the uniqueness key for an edge.
func (e Edge) Triple() string {
	return e.FromKey + "\x00" + strings.ToUpper(e.Type) + "\x00" + e.ToKey
}
