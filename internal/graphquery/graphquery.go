// Package graphquery exposes the graph store's traversal contract to
// callers (chiefly the MCP tool surface) in the shape spec §4.14 wants:
// a start symbol or file path, a bounded depth, optional type and
// direction filters, and a subgraph back.
package graphquery

import (
	"context"
	"fmt"

	"github.com/codeseeker/codeseeker/internal/store"
)

// MaxDepth mirrors the cap store.SQLiteGraphStore.Traverse already
// enforces; declared here too so callers can validate input before it
// ever reaches the store.
const MaxDepth = 3

// Request describes one graph query.
type Request struct {
	ProjectID string
	Start     string // symbol_id; file-path starts go through QueryFile
	Depth     int
	Types     []string
	Direction store.Direction
}

// Result is the subgraph returned to the caller.
type Result struct {
	Nodes []*store.GraphNode
	Edges []*store.GraphEdge
}

// Engine answers graph queries against a GraphStore.
type Engine struct {
	graph store.GraphStore
}

// NewEngine builds a query engine over the given graph store.
func NewEngine(graph store.GraphStore) *Engine {
	return &Engine{graph: graph}
}

// Query resolves req.Start (a symbol_id, looked up directly) and
// traverses outward. Depth is clamped into [1, MaxDepth]; an empty
// Direction defaults to outgoing, matching "what does this symbol call"
// being the more common question than "what calls this symbol".
func (e *Engine) Query(ctx context.Context, req Request) (*Result, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("graphquery: project id is required")
	}
	if req.Start == "" {
		return nil, fmt.Errorf("graphquery: start symbol is required")
	}

	depth := req.Depth
	if depth <= 0 {
		depth = 1
	}
	if depth > MaxDepth {
		depth = MaxDepth
	}

	direction := req.Direction
	if direction == "" {
		direction = store.DirectionOutgoing
	}

	startNode, err := e.graph.GetNode(ctx, req.ProjectID, req.Start)
	if err != nil {
		return nil, fmt.Errorf("graphquery: resolve start node: %w", err)
	}

	traversal, err := e.graph.Traverse(ctx, req.ProjectID, req.Start, depth, req.Types, direction)
	if err != nil {
		return nil, fmt.Errorf("graphquery: traverse: %w", err)
	}

	nodes := traversal.Nodes
	if startNode != nil {
		nodes = append([]*store.GraphNode{startNode}, nodes...)
	}

	return &Result{Nodes: nodes, Edges: traversal.Edges}, nil
}

// QueryFile resolves start as a file path rather than a single symbol:
// every symbol the Language Extractor attributed to that file becomes a
// traversal seed, and the result is the union of each seed's subgraph.
// This is what get_code_relationships and get_file_context use when the
// caller names a file instead of a specific symbol_id.
func (e *Engine) QueryFile(ctx context.Context, projectID, filePath string, depth int, types []string, direction store.Direction) (*Result, error) {
	if projectID == "" {
		return nil, fmt.Errorf("graphquery: project id is required")
	}
	if filePath == "" {
		return nil, fmt.Errorf("graphquery: file path is required")
	}

	seeds, err := e.graph.NodesByFile(ctx, projectID, filePath)
	if err != nil {
		return nil, fmt.Errorf("graphquery: resolve file nodes: %w", err)
	}

	nodes := make(map[string]*store.GraphNode, len(seeds))
	edges := make(map[string]*store.GraphEdge)
	for _, seed := range seeds {
		nodes[seed.ID] = seed

		sub, err := e.Query(ctx, Request{
			ProjectID: projectID,
			Start:     seed.ID,
			Depth:     depth,
			Types:     types,
			Direction: direction,
		})
		if err != nil {
			return nil, err
		}
		for _, n := range sub.Nodes {
			nodes[n.ID] = n
		}
		for _, edge := range sub.Edges {
			edges[edge.SourceID+"|"+edge.TargetID+"|"+edge.Type] = edge
		}
	}

	result := &Result{
		Nodes: make([]*store.GraphNode, 0, len(nodes)),
		Edges: make([]*store.GraphEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		result.Nodes = append(result.Nodes, n)
	}
	for _, edge := range edges {
		result.Edges = append(result.Edges, edge)
	}
	return result, nil
}

// Neighbors answers the narrower one-hop question without a full BFS,
// used by get_code_relationships when depth is omitted.
func (e *Engine) Neighbors(ctx context.Context, projectID, symbolID, edgeType string, direction store.Direction) ([]*store.GraphEdge, error) {
	if direction == "" {
		direction = store.DirectionOutgoing
	}
	return e.graph.Neighbors(ctx, projectID, symbolID, edgeType, direction)
}
