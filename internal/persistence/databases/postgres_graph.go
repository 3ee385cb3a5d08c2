package databases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"onemcp/internal/graph"
)

// DriverPostgres is the id of the document-graph driver.
const DriverPostgres = "postgres"

func init() {
	Register(DriverPostgres, func(opts Options) (GraphDriver, error) {
		return NewPostgresGraph(opts.Handbook, opts.DSN)
	})
}

// nodeCollections maps each node kind to its collection suffix. Every kind
// gets its own collection; a single edge collection references all of them.
var nodeCollections = map[graph.NodeKind]string{
	graph.KindEntity:        "entities",
	graph.KindField:         "fields",
	graph.KindOperation:     "operations",
	graph.KindExample:       "examples",
	graph.KindDocumentation: "documentations",
}

// collectionOrder keeps DDL deterministic.
var collectionOrder = []graph.NodeKind{
	graph.KindEntity, graph.KindField, graph.KindOperation, graph.KindExample, graph.KindDocumentation,
}

// pgGraph stores nodes as JSONB documents, one collection per kind, plus one
// edge collection whose rows reference any node collection by logical key.
// Identifiers (primary keys) hold the canonical form; logical keys ride in
// the documents and the edge reference columns.
type pgGraph struct {
	namespace string
	dsn       string

	mu          sync.RWMutex
	pool        *pgxpool.Pool
	initialized bool
}

// NewPostgresGraph builds an unconnected document-graph driver.
func NewPostgresGraph(handbook, dsn string) (GraphDriver, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres graph driver requires a DSN")
	}
	return &pgGraph{namespace: Namespace(handbook), dsn: dsn}, nil
}

func (g *pgGraph) table(suffix string) string { return g.namespace + "_" + suffix }

func (g *pgGraph) nodeTable(kind graph.NodeKind) (string, bool) {
	suffix, ok := nodeCollections[kind]
	if !ok {
		return "", false
	}
	return g.table(suffix), true
}

func (g *pgGraph) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		return nil
	}
	cfg, err := pgxpool.ParseConfig(g.dsn)
	if err != nil {
		return fmt.Errorf("parse graph dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect graph backend: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping graph backend: %w", err)
	}
	if err := g.createTables(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	g.pool = pool
	g.initialized = true
	return nil
}

func (g *pgGraph) createTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, kind := range collectionOrder {
		name, _ := g.nodeTable(kind)
		ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  key TEXT NOT NULL UNIQUE,
  doc JSONB NOT NULL DEFAULT '{}'::jsonb
)`, name)
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	edges := g.table("edges")
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  seq BIGSERIAL,
  id TEXT PRIMARY KEY,
  from_key TEXT NOT NULL,
  edge_type TEXT NOT NULL,
  to_key TEXT NOT NULL,
  doc JSONB NOT NULL DEFAULT '{}'::jsonb,
  UNIQUE (from_key, edge_type, to_key)
)`, edges)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create edge collection: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_from ON %s(from_key)`, edges, edges)); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_to ON %s(to_key)`, edges, edges)); err != nil {
		return err
	}
	graphs := g.table("graphs")
	if _, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  name TEXT PRIMARY KEY,
  edge_definitions JSONB NOT NULL DEFAULT '{}'::jsonb
)`, graphs)); err != nil {
		return fmt.Errorf("create graph registry: %w", err)
	}
	return nil
}

func (g *pgGraph) IsInitialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.initialized
}

func (g *pgGraph) ClearAll(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return ErrNotInitialized
	}
	// graphs first, then collections; dropping the named graph before its
	// edge collection avoids the "collection is part of a graph" failure.
	drops := []string{g.table("graphs"), g.table("edges")}
	for _, kind := range collectionOrder {
		name, _ := g.nodeTable(kind)
		drops = append(drops, name)
	}
	for _, t := range drops {
		if _, err := g.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, t)); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return g.createTables(ctx, g.pool)
}

func (g *pgGraph) EnsureGraphExists(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.initialized {
		return ErrNotInitialized
	}
	defs := map[string]any{"edges": g.table("edges"), "vertices": nodeCollections}
	b, _ := json.Marshal(defs)
	_, err := g.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (name, edge_definitions) VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING`, g.table("graphs")), g.namespace+"_graph", b)
	return err
}

func (g *pgGraph) StoreNode(ctx context.Context, n graph.Node) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.initialized {
		return ErrNotInitialized
	}
	table, ok := g.nodeTable(n.Kind)
	if !ok {
		return fmt.Errorf("unknown node kind %q for key %s", n.Kind, n.Key)
	}
	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", n.Key, err)
	}
	// upsert by key: replace the document in full
	_, err = g.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, key, doc) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc`, table),
		graph.CanonicalID(n.Key), n.Key, doc)
	return err
}

func (g *pgGraph) StoreEdge(ctx context.Context, e graph.Edge) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.initialized {
		return false, ErrNotInitialized
	}
	e = e.Normalize()
	for _, key := range []string{e.FromKey, e.ToKey} {
		ok, err := g.nodeExists(ctx, key)
		if err != nil {
			return false, err
		}
		if !ok {
			log.Debug().Str("from", e.FromKey).Str("to", e.ToKey).Str("type", e.Type).
				Str("reason", "missing-endpoint").Msg("edge_skipped")
			return false, nil
		}
	}
	doc, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode edge: %w", err)
	}
	_, err = g.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, from_key, edge_type, to_key, doc) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (from_key, edge_type, to_key) DO UPDATE SET doc = EXCLUDED.doc`, g.table("edges")),
		graph.CanonicalID(graph.EdgeID(e.FromKey, e.Type, e.ToKey)), e.FromKey, e.Type, e.ToKey, doc)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *pgGraph) nodeExists(ctx context.Context, key string) (bool, error) {
	table, ok := g.nodeTable(kindOf(key))
	if !ok {
		return false, nil
	}
	var exists bool
	err := g.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1)`, table), key).Scan(&exists)
	return exists, err
}

func (g *pgGraph) QueryByEntity(ctx context.Context, key string) (Neighborhood, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.initialized {
		return Neighborhood{}, ErrNotInitialized
	}
	n := Neighborhood{ByEdgeType: map[string][]graph.Node{}}
	if center, ok, err := g.getNode(ctx, key); err != nil {
		return Neighborhood{}, err
	} else if ok {
		n.Center = center
		n.Found = true
	}

	rows, err := g.pool.Query(ctx, fmt.Sprintf(`
SELECT edge_type, from_key, to_key FROM %s
WHERE from_key = $1 OR to_key = $1 ORDER BY seq`, g.table("edges")), key)
	if err != nil {
		return Neighborhood{}, err
	}
	type hop struct{ edgeType, neighbor string }
	var hops []hop
	for rows.Next() {
		var edgeType, from, to string
		if err := rows.Scan(&edgeType, &from, &to); err != nil {
			rows.Close()
			return Neighborhood{}, err
		}
		neighbor := to
		if to == key {
			neighbor = from
		}
		hops = append(hops, hop{edgeType: edgeType, neighbor: neighbor})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Neighborhood{}, err
	}

	for _, h := range hops {
		node, ok, err := g.getNode(ctx, h.neighbor)
		if err != nil {
			return Neighborhood{}, err
		}
		if !ok {
			continue
		}
		if _, seen := n.ByEdgeType[h.edgeType]; !seen {
			n.EdgeTypes = append(n.EdgeTypes, h.edgeType)
		}
		n.ByEdgeType[h.edgeType] = append(n.ByEdgeType[h.edgeType], node)
	}
	return n, nil
}

func (g *pgGraph) GetNode(ctx context.Context, key string) (graph.Node, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.initialized {
		return graph.Node{}, false, ErrNotInitialized
	}
	return g.getNode(ctx, key)
}

func (g *pgGraph) getNode(ctx context.Context, key string) (graph.Node, bool, error) {
	table, ok := g.nodeTable(kindOf(key))
	if !ok {
		return graph.Node{}, false, nil
	}
	var doc []byte
	err := g.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT doc FROM %s WHERE key = $1`, table), key).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return graph.Node{}, false, nil
		}
		return graph.Node{}, false, err
	}
	var n graph.Node
	if err := json.Unmarshal(doc, &n); err != nil {
		return graph.Node{}, false, fmt.Errorf("decode node %s: %w", key, err)
	}
	return n, true, nil
}

func (g *pgGraph) Counts(ctx context.Context) (int, int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.initialized {
		return 0, 0, ErrNotInitialized
	}
	nodes := 0
	for _, kind := range collectionOrder {
		table, _ := g.nodeTable(kind)
		var c int
		if err := g.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&c); err != nil {
			return 0, 0, err
		}
		nodes += c
	}
	var edges int
	if err := g.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s`, g.table("edges"))).Scan(&edges); err != nil {
		return 0, 0, err
	}
	return nodes, edges, nil
}

func (g *pgGraph) Shutdown(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pool != nil {
		g.pool.Close()
		g.pool = nil
	}
	g.initialized = false
	return nil
}
