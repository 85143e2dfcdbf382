package store

import "context"

// Direction controls which way an edge traversal follows an edge.
type Direction string

const (
	// DirectionOutgoing follows edges from the start node outward (src -> dst).
	DirectionOutgoing Direction = "outgoing"
	// DirectionIncoming follows edges into the start node (dst -> src).
	DirectionIncoming Direction = "incoming"
	// DirectionBoth follows edges in either direction.
	DirectionBoth Direction = "both"
)

// GraphNode is a symbol or an external reference in the relationship graph.
// ID is either a chunk's symbol_id for an internal definition, or
// "external:<module>/<name>" for a reference that could not be resolved to
// a definition in this project.
type GraphNode struct {
	ID        string
	ProjectID string
	Kind      string // function, class, interface, type, variable, constant, method, external
	Name      string
	FilePath  string // empty for external nodes
}

// GraphEdge is a directed relationship between two graph nodes.
// Confidence records how the relationship was established: "exact" when
// resolved against a known definition, "heuristic" when inferred from a
// name match with no guarantee of correctness.
type GraphEdge struct {
	ProjectID  string
	SourceID   string
	TargetID   string
	Type       string // imports, calls, extends, implements, references
	Confidence string // exact, heuristic
}

// GraphTraversal is the result of a bounded BFS from a start node.
type GraphTraversal struct {
	Nodes []*GraphNode
	Edges []*GraphEdge
}

// GraphStore persists the symbol relationship graph: imports, calls,
// extends/implements, and references edges between internal symbols and
// external references.
type GraphStore interface {
	UpsertNodes(ctx context.Context, nodes []*GraphNode) error
	UpsertEdges(ctx context.Context, edges []*GraphEdge) error

	// DeleteSymbolsByFile removes every node owned by filePath and every
	// edge touching one of those nodes, as either endpoint.
	DeleteSymbolsByFile(ctx context.Context, projectID, filePath string) error

	// Neighbors returns edges attached to symbolID. edgeType filters to a
	// single relationship type when non-empty.
	Neighbors(ctx context.Context, projectID, symbolID, edgeType string, direction Direction) ([]*GraphEdge, error)

	// Traverse performs a cycle-safe, depth-bounded BFS from start,
	// optionally restricted to typeFilter edge types.
	Traverse(ctx context.Context, projectID, start string, depth int, typeFilter []string, direction Direction) (*GraphTraversal, error)

	// GetNode looks up a single node by ID, returning (nil, nil) if absent.
	GetNode(ctx context.Context, projectID, id string) (*GraphNode, error)

	// NodesByFile returns every node owned by filePath.
	NodesByFile(ctx context.Context, projectID, filePath string) ([]*GraphNode, error)

	Close() error
}
