package databases

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"onemcp/internal/graph"
)

// DriverMemory is the id of the in-memory reference driver.
const DriverMemory = "in-memory"

func init() {
	Register(DriverMemory, func(opts Options) (GraphDriver, error) {
		return NewMemoryGraph(opts.Handbook), nil
	})
}

// memoryGraph is the reference driver: the source of truth for contextual
// matching semantics, and the backend used by tests.
type memoryGraph struct {
	namespace string

	mu          sync.RWMutex
	initialized bool
	graphExists bool
	nodes       map[string]graph.Node
	edges       []graph.Edge
	triples     map[string]bool
}

// NewMemoryGraph builds an uninitialized in-memory driver.
func NewMemoryGraph(handbook string) GraphDriver {
	return &memoryGraph{namespace: Namespace(handbook)}
}

func (m *memoryGraph) Initialize(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	m.reset()
	m.initialized = true
	return nil
}

func (m *memoryGraph) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

func (m *memoryGraph) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	// graphs first, then collections, then recreate
	m.graphExists = false
	m.reset()
	return nil
}

func (m *memoryGraph) EnsureGraphExists(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	m.graphExists = true
	return nil
}

func (m *memoryGraph) StoreNode(_ context.Context, n graph.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	// upsert by key: replace in full
	m.nodes[n.Key] = n
	return nil
}

func (m *memoryGraph) StoreEdge(_ context.Context, e graph.Edge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return false, ErrNotInitialized
	}
	e = e.Normalize()
	if _, ok := m.nodes[e.FromKey]; !ok {
		log.Debug().Str("from", e.FromKey).Str("to", e.ToKey).Str("type", e.Type).
			Str("reason", "missing-endpoint").Msg("edge_skipped")
		return false, nil
	}
	if _, ok := m.nodes[e.ToKey]; !ok {
		log.Debug().Str("from", e.FromKey).Str("to", e.ToKey).Str("type", e.Type).
			Str("reason", "missing-endpoint").Msg("edge_skipped")
		return false, nil
	}
	triple := e.Triple()
	if m.triples[triple] {
		// upsert: replace the stored edge in place
		for i := range m.edges {
			if m.edges[i].Triple() == triple {
				m.edges[i] = e
				break
			}
		}
		return true, nil
	}
	m.triples[triple] = true
	m.edges = append(m.edges, e)
	return true, nil
}

func (m *memoryGraph) QueryByEntity(_ context.Context, key string) (Neighborhood, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return Neighborhood{}, ErrNotInitialized
	}
	n := Neighborhood{ByEdgeType: map[string][]graph.Node{}}
	if center, ok := m.nodes[key]; ok {
		n.Center = center
		n.Found = true
	}
	add := func(edgeType, neighborKey string) {
		node, ok := m.nodes[neighborKey]
		if !ok {
			return
		}
		if _, seen := n.ByEdgeType[edgeType]; !seen {
			n.EdgeTypes = append(n.EdgeTypes, edgeType)
		}
		n.ByEdgeType[edgeType] = append(n.ByEdgeType[edgeType], node)
	}
	for _, e := range m.edges {
		switch key {
		case e.FromKey:
			add(e.Type, e.ToKey)
		case e.ToKey:
			add(e.Type, e.FromKey)
		}
	}
	return n, nil
}

func (m *memoryGraph) GetNode(_ context.Context, key string) (graph.Node, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return graph.Node{}, false, ErrNotInitialized
	}
	n, ok := m.nodes[key]
	return n, ok, nil
}

func (m *memoryGraph) Counts(_ context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return 0, 0, ErrNotInitialized
	}
	return len(m.nodes), len(m.edges), nil
}

func (m *memoryGraph) Shutdown(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	m.nodes = nil
	m.edges = nil
	m.triples = nil
	return nil
}

func (m *memoryGraph) reset() {
	m.nodes = make(map[string]graph.Node)
	m.edges = nil
	m.triples = make(map[string]bool)
}
