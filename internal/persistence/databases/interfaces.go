package databases

import (
	"context"
	"errors"
	"strings"

	"onemcp/internal/graph"
)

// ErrNotInitialized is returned by drivers used before Initialize or after
// Shutdown.
var ErrNotInitialized = errors.New("graph driver not initialized")

// Neighborhood is the one-hop result of QueryByEntity: the center node plus
// every incident node grouped by edge type, in stable traversal order.
type Neighborhood struct {
	Center graph.Node
	Found  bool
	// EdgeTypes lists the group keys in first-seen order.
	EdgeTypes []string
	// ByEdgeType maps an edge type to its adjacent nodes in write order.
	ByEdgeType map[string][]graph.Node
}

// GraphDriver is the storage SPI for one handbook's graph namespace.
//
// StoreEdge must not fail on a missing endpoint: the edge is dropped, logged,
// and reported by a false stored return. Transport errors may surface as
// errors; the coordinator wraps them into an indexing failure.
type GraphDriver interface {
	Initialize(ctx context.Context) error
	IsInitialized() bool
	ClearAll(ctx context.Context) error
	EnsureGraphExists(ctx context.Context) error
	StoreNode(ctx context.Context, n graph.Node) error
	StoreEdge(ctx context.Context, e graph.Edge) (stored bool, err error)
	QueryByEntity(ctx context.Context, key string) (Neighborhood, error)
	GetNode(ctx context.Context, key string) (graph.Node, bool, error)
	Counts(ctx context.Context) (nodes int, edges int, err error)
	Shutdown(ctx context.Context) error
}

// Namespace derives the per-handbook isolation prefix. Separate handbooks
// share no state.
func Namespace(handbook string) string {
	return "onemcp_" + graph.Slug(handbook)
}

// kindOf extracts the node kind from a logical key.
func kindOf(key string) graph.NodeKind {
	if i := strings.Index(key, graph.KeySeparator); i > 0 {
		return graph.NodeKind(key[:i])
	}
	return ""
}
