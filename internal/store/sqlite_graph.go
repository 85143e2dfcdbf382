package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteGraphStore implements GraphStore on a WAL-mode SQLite database,
// one table for nodes and one for edges, keyed the way the spec requires:
// nodes by symbol_id (or "external:<module>/<name>"), edges by the
// (src, type, dst) triple so re-extracting a file is a plain upsert.
type SQLiteGraphStore struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ GraphStore = (*SQLiteGraphStore)(nil)

// NewSQLiteGraphStore opens (creating if necessary) a graph store at path.
// An empty path opens an in-memory database.
func NewSQLiteGraphStore(path string) (*SQLiteGraphStore, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	g := &SQLiteGraphStore{db: db}
	if err := g.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate graph schema: %w", err)
	}
	return g, nil
}

func (g *SQLiteGraphStore) migrate() error {
	_, err := g.db.Exec(`
CREATE TABLE IF NOT EXISTS graph_nodes (
	project_id TEXT NOT NULL,
	id TEXT NOT NULL,
	kind TEXT,
	name TEXT,
	file_path TEXT,
	PRIMARY KEY (project_id, id)
);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_file ON graph_nodes(project_id, file_path);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_name ON graph_nodes(project_id, name);

CREATE TABLE IF NOT EXISTS graph_edges (
	project_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	type TEXT NOT NULL,
	confidence TEXT NOT NULL DEFAULT 'exact',
	PRIMARY KEY (project_id, source_id, target_id, type)
);
CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(project_id, source_id, type);
CREATE INDEX IF NOT EXISTS idx_graph_edges_target ON graph_edges(project_id, target_id, type);
`)
	return err
}

// numNodeCols/nodesBatchSize keep multi-row upserts under SQLite's default
// 999 bind-variable limit.
const numGraphNodeCols = 5
const graphNodesBatchSize = 999 / numGraphNodeCols

const numGraphEdgeCols = 5
const graphEdgesBatchSize = 999 / numGraphEdgeCols

func (g *SQLiteGraphStore) UpsertNodes(ctx context.Context, nodes []*GraphNode) error {
	if len(nodes) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < len(nodes); i += graphNodesBatchSize {
		end := min(i+graphNodesBatchSize, len(nodes))
		if err := g.upsertNodeChunk(ctx, nodes[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (g *SQLiteGraphStore) upsertNodeChunk(ctx context.Context, batch []*GraphNode) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO graph_nodes (project_id, id, kind, name, file_path) VALUES `)

	args := make([]any, 0, len(batch)*numGraphNodeCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?)")
		args = append(args, n.ProjectID, n.ID, n.Kind, n.Name, n.FilePath)
	}
	sb.WriteString(` ON CONFLICT(project_id, id) DO UPDATE SET
		kind=excluded.kind, name=excluded.name, file_path=excluded.file_path`)

	if _, err := g.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert graph nodes: %w", err)
	}
	return nil
}

func (g *SQLiteGraphStore) UpsertEdges(ctx context.Context, edges []*GraphEdge) error {
	if len(edges) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < len(edges); i += graphEdgesBatchSize {
		end := min(i+graphEdgesBatchSize, len(edges))
		if err := g.upsertEdgeChunk(ctx, edges[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (g *SQLiteGraphStore) upsertEdgeChunk(ctx context.Context, batch []*GraphEdge) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO graph_edges (project_id, source_id, target_id, type, confidence) VALUES `)

	args := make([]any, 0, len(batch)*numGraphEdgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?)")
		confidence := e.Confidence
		if confidence == "" {
			confidence = "exact"
		}
		args = append(args, e.ProjectID, e.SourceID, e.TargetID, e.Type, confidence)
	}
	sb.WriteString(` ON CONFLICT(project_id, source_id, target_id, type) DO UPDATE SET confidence=excluded.confidence`)

	if _, err := g.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert graph edges: %w", err)
	}
	return nil
}

func (g *SQLiteGraphStore) DeleteSymbolsByFile(ctx context.Context, projectID, filePath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM graph_edges WHERE project_id = ? AND (
			source_id IN (SELECT id FROM graph_nodes WHERE project_id = ? AND file_path = ?)
			OR target_id IN (SELECT id FROM graph_nodes WHERE project_id = ? AND file_path = ?)
		)`, projectID, projectID, filePath, projectID, filePath); err != nil {
		return fmt.Errorf("failed to delete edges for file: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE project_id = ? AND file_path = ?`, projectID, filePath); err != nil {
		return fmt.Errorf("failed to delete nodes for file: %w", err)
	}

	return tx.Commit()
}

func (g *SQLiteGraphStore) Neighbors(ctx context.Context, projectID, symbolID, edgeType string, direction Direction) ([]*GraphEdge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []*GraphEdge

	if direction == DirectionOutgoing || direction == DirectionBoth {
		out, err := g.queryEdges(ctx, `SELECT project_id, source_id, target_id, type, confidence FROM graph_edges
			WHERE project_id = ? AND source_id = ?`, edgeType, projectID, symbolID)
		if err != nil {
			return nil, err
		}
		edges = append(edges, out...)
	}

	if direction == DirectionIncoming || direction == DirectionBoth {
		in, err := g.queryEdges(ctx, `SELECT project_id, source_id, target_id, type, confidence FROM graph_edges
			WHERE project_id = ? AND target_id = ?`, edgeType, projectID, symbolID)
		if err != nil {
			return nil, err
		}
		edges = append(edges, in...)
	}

	return edges, nil
}

func (g *SQLiteGraphStore) queryEdges(ctx context.Context, baseQuery, edgeType string, args ...any) ([]*GraphEdge, error) {
	query := baseQuery
	if edgeType != "" {
		query += " AND type = ?"
		args = append(args, edgeType)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	return scanGraphEdges(rows)
}

func scanGraphEdges(rows *sql.Rows) ([]*GraphEdge, error) {
	var edges []*GraphEdge
	for rows.Next() {
		e := &GraphEdge{}
		if err := rows.Scan(&e.ProjectID, &e.SourceID, &e.TargetID, &e.Type, &e.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (g *SQLiteGraphStore) GetNode(ctx context.Context, projectID, id string) (*GraphNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	row := g.db.QueryRowContext(ctx, `SELECT project_id, id, kind, name, file_path FROM graph_nodes WHERE project_id = ? AND id = ?`, projectID, id)
	n := &GraphNode{}
	err := row.Scan(&n.ProjectID, &n.ID, &n.Kind, &n.Name, &n.FilePath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return n, nil
}

// NodesByFile returns every node owned by filePath, using the same
// (project_id, file_path) index DeleteSymbolsByFile relies on.
func (g *SQLiteGraphStore) NodesByFile(ctx context.Context, projectID, filePath string) ([]*GraphNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows, err := g.db.QueryContext(ctx,
		`SELECT project_id, id, kind, name, file_path FROM graph_nodes WHERE project_id = ? AND file_path = ?`,
		projectID, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by file: %w", err)
	}
	defer rows.Close()

	var nodes []*GraphNode
	for rows.Next() {
		n := &GraphNode{}
		if err := rows.Scan(&n.ProjectID, &n.ID, &n.Kind, &n.Name, &n.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Traverse performs a breadth-first search from start, following edges of
// typeFilter (all types when empty) in the given direction, up to depth
// hops. A visited set guarantees termination on cyclic graphs.
func (g *SQLiteGraphStore) Traverse(ctx context.Context, projectID, start string, depth int, typeFilter []string, direction Direction) (*GraphTraversal, error) {
	if depth <= 0 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}

	result := &GraphTraversal{}
	visitedNodes := map[string]bool{start: true}
	visitedEdges := map[string]bool{}

	type queueItem struct {
		id  string
		hop int
	}
	queue := []queueItem{{start, 0}}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if item.hop >= depth {
			continue
		}

		var edges []*GraphEdge
		if len(typeFilter) == 0 {
			es, err := g.Neighbors(ctx, projectID, item.id, "", direction)
			if err != nil {
				return nil, err
			}
			edges = es
		} else {
			for _, t := range typeFilter {
				es, err := g.Neighbors(ctx, projectID, item.id, t, direction)
				if err != nil {
					return nil, err
				}
				edges = append(edges, es...)
			}
		}

		for _, e := range edges {
			edgeKey := e.SourceID + "\x00" + e.Type + "\x00" + e.TargetID
			if !visitedEdges[edgeKey] {
				visitedEdges[edgeKey] = true
				result.Edges = append(result.Edges, e)
			}

			next := e.TargetID
			if next == item.id {
				next = e.SourceID
			}
			if visitedNodes[next] {
				continue
			}
			visitedNodes[next] = true

			node, err := g.GetNode(ctx, projectID, next)
			if err != nil {
				return nil, err
			}
			if node == nil {
				node = &GraphNode{ID: next, ProjectID: projectID, Kind: "external"}
			}
			result.Nodes = append(result.Nodes, node)
			queue = append(queue, queueItem{next, item.hop + 1})
		}
	}

	return result, nil
}

func (g *SQLiteGraphStore) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}
