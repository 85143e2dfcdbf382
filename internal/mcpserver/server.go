package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeseeker/codeseeker/internal/async"
	"github.com/codeseeker/codeseeker/internal/config"
	embed "github.com/codeseeker/codeseeker/internal/embedding"
	"github.com/codeseeker/codeseeker/internal/exclusions"
	"github.com/codeseeker/codeseeker/internal/graphquery"
	"github.com/codeseeker/codeseeker/internal/indexer"
	"github.com/codeseeker/codeseeker/internal/search"
	"github.com/codeseeker/codeseeker/internal/store"
	"github.com/codeseeker/codeseeker/internal/telemetry"
	"github.com/codeseeker/codeseeker/internal/watcher"
	"github.com/codeseeker/codeseeker/pkg/version"
)

// Indexer runs a full or incremental indexing pass. Satisfied by
// *indexer.Runner; injected via SetIndexer so this package doesn't need
// to construct one itself.
type Indexer interface {
	Run(ctx context.Context, cfg indexer.RunnerConfig) (*indexer.RunnerResult, error)
}

// ChangeNotifier applies a batch of file system events to the index.
// Satisfied by *indexer.Coordinator.
type ChangeNotifier interface {
	HandleEvents(ctx context.Context, events []watcher.FileEvent) error
}

// Server is the MCP server for CodeSeeker.
// It bridges AI clients (Claude Code, Cursor) with the hybrid search
// engine, the relationship graph, and the indexing pipeline.
type Server struct {
	mcp      *mcp.Server
	engine   search.SearchEngine
	metadata store.MetadataStore
	embedder embed.Embedder // Embedder for capability signaling
	config   *config.Config
	logger   *slog.Logger

	// Project identification for resource operations
	projectID string
	rootPath  string

	// Optional dependencies, set via Set* once the caller has them built.
	indexProgress *async.IndexProgress
	metrics       *telemetry.QueryMetrics
	graphEngine   *graphquery.Engine
	standards     *store.StandardsStore
	exclusionsPol *exclusions.Policy
	indexer       Indexer
	notifier      ChangeNotifier

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceInfo contains information about a resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// NewServer creates a new MCP server.
// The embedder parameter is used for capability signaling - AI clients can query
// the actual embedder state to adjust their search strategies.
// rootPath is used for project detection (go.mod, package.json, etc.).
func NewServer(engine search.SearchEngine, metadata store.MetadataStore, embedder embed.Embedder, cfg *config.Config, rootPath string) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if metadata == nil {
		return nil, errors.New("metadata store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:   engine,
		metadata: metadata,
		embedder: embedder, // May be nil - will report as unavailable
		config:   cfg,
		rootPath: rootPath,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CodeSeeker",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()

	return s, nil
}

// SetIndexProgress sets the index progress tracker for background indexing.
func (s *Server) SetIndexProgress(progress *async.IndexProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexProgress = progress
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// SetGraphEngine wires the relationship graph that backs
// get_code_relationships and get_file_context's neighborhood expansion.
func (s *Server) SetGraphEngine(g *graphquery.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphEngine = g
}

// SetStandards wires the store that backs get_coding_standards.
func (s *Server) SetStandards(st *store.StandardsStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.standards = st
}

// SetExclusions wires the policy that backs manage_index.
func (s *Server) SetExclusions(p *exclusions.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exclusionsPol = p
}

// SetIndexer wires the runner that backs index_project.
func (s *Server) SetIndexer(i Indexer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexer = i
}

// SetChangeNotifier wires the coordinator that backs notify_file_changes.
func (s *Server) SetChangeNotifier(n ChangeNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// SetProjectID records the project_id used to scope graph, standards,
// and exclusion lookups. Search itself stays project-agnostic (the
// underlying engine is already scoped to one project's stores).
func (s *Server) SetProjectID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectID = id
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "CodeSeeker", version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "search_code", Description: toolDescSearchCode},
		{Name: "find_and_read", Description: toolDescFindAndRead},
		{Name: "get_file_context", Description: toolDescGetFileContext},
		{Name: "get_code_relationships", Description: toolDescGetCodeRelationships},
		{Name: "get_coding_standards", Description: toolDescGetCodingStandards},
		{Name: "index_project", Description: toolDescIndexProject},
		{Name: "notify_file_changes", Description: toolDescNotifyFileChanges},
		{Name: "manage_index", Description: toolDescManageIndex},
	}
}

const (
	toolDescSearchCode           = "Finds code by meaning, not just text matching. Fuses keyword and semantic search; snippet length adapts to the intent you pass (fix, analyze, explain, modify, create, overview, general)."
	toolDescFindAndRead          = "Searches for code and returns the actual file content at each match, so you don't need a second round trip to read the file."
	toolDescGetFileContext       = "Returns a file's content plus the other files it's related to via the code graph (imports, calls, extends, implements, references)."
	toolDescGetCodeRelationships = "Traverses the code relationship graph from a file or symbol, returning nodes and edges up to a bounded depth."
	toolDescGetCodingStandards   = "Returns the coding conventions mined from this project's own codebase: validation, error handling, logging, testing, and more."
	toolDescIndexProject         = "Builds or refreshes the code index for a project. Required before search tools return results."
	toolDescNotifyFileChanges    = "Tells the index that specific files changed on disk, so it can update incrementally instead of waiting for the next full pass."
	toolDescManageIndex          = "Excludes or re-includes paths from indexing, or lists the current exclusion rules."
)

// CallTool invokes a tool by name with the given arguments. This is a
// convenience path for callers that aren't going through the MCP SDK
// transport; it accepts loosely-typed args and dispatches to the same
// handlers the SDK registration uses.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_code":
		return s.handleSearchCodeTool(ctx, decodeSearchCodeInput(args))
	case "find_and_read":
		return s.handleFindAndReadTool(ctx, decodeFindAndReadInput(args))
	case "get_file_context":
		return s.handleGetFileContextTool(ctx, decodeGetFileContextInput(args))
	case "get_code_relationships":
		return s.handleGetCodeRelationshipsTool(ctx, decodeGetCodeRelationshipsInput(args))
	case "get_coding_standards":
		return s.handleGetCodingStandardsTool(ctx, decodeGetCodingStandardsInput(args))
	case "index_project":
		return s.handleIndexProjectTool(ctx, decodeIndexProjectInput(args))
	case "notify_file_changes":
		return s.handleNotifyFileChangesTool(ctx, decodeNotifyFileChangesInput(args))
	case "manage_index":
		return s.handleManageIndexTool(ctx, decodeManageIndexInput(args))
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeSearchCodeInput(args map[string]any) SearchCodeInput {
	in := SearchCodeInput{}
	in.Project, _ = args["project"].(string)
	in.Query, _ = args["query"].(string)
	if k, ok := args["k"].(float64); ok {
		in.K = int(k)
	}
	in.Intent, _ = args["intent"].(string)
	return in
}

func decodeFindAndReadInput(args map[string]any) FindAndReadInput {
	in := FindAndReadInput{}
	in.Project, _ = args["project"].(string)
	in.Query, _ = args["query"].(string)
	if k, ok := args["k"].(float64); ok {
		in.K = int(k)
	}
	return in
}

func decodeGetFileContextInput(args map[string]any) GetFileContextInput {
	in := GetFileContextInput{}
	in.Project, _ = args["project"].(string)
	in.FilePath, _ = args["file_path"].(string)
	if d, ok := args["neighborhood_depth"].(float64); ok {
		in.NeighborhoodDepth = int(d)
	}
	return in
}

func decodeGetCodeRelationshipsInput(args map[string]any) GetCodeRelationshipsInput {
	in := GetCodeRelationshipsInput{}
	in.Project, _ = args["project"].(string)
	in.FilepathOrSymbol, _ = args["filepath_or_symbol"].(string)
	if d, ok := args["depth"].(float64); ok {
		in.Depth = int(d)
	}
	in.Direction, _ = args["direction"].(string)
	if types, ok := args["types"].([]interface{}); ok {
		for _, t := range types {
			if str, ok := t.(string); ok {
				in.Types = append(in.Types, str)
			}
		}
	}
	return in
}

func decodeGetCodingStandardsInput(args map[string]any) GetCodingStandardsInput {
	in := GetCodingStandardsInput{}
	in.Project, _ = args["project"].(string)
	in.Category, _ = args["category"].(string)
	return in
}

func decodeIndexProjectInput(args map[string]any) IndexProjectInput {
	in := IndexProjectInput{}
	in.Path, _ = args["path"].(string)
	in.Full, _ = args["full"].(bool)
	return in
}

func decodeNotifyFileChangesInput(args map[string]any) NotifyFileChangesInput {
	in := NotifyFileChangesInput{}
	in.Project, _ = args["project"].(string)
	if paths, ok := args["paths"].([]interface{}); ok {
		for _, p := range paths {
			if str, ok := p.(string); ok {
				in.Paths = append(in.Paths, str)
			}
		}
	}
	in.FullReindex, _ = args["full_reindex"].(bool)
	return in
}

func decodeManageIndexInput(args map[string]any) ManageIndexInput {
	in := ManageIndexInput{}
	in.Project, _ = args["project"].(string)
	in.Action, _ = args["action"].(string)
	if paths, ok := args["paths"].([]interface{}); ok {
		for _, p := range paths {
			if str, ok := p.(string); ok {
				in.Paths = append(in.Paths, str)
			}
		}
	}
	in.Reason, _ = args["reason"].(string)
	return in
}

// handleSearchCodeTool implements search_code (spec §4.13).
func (s *Server) handleSearchCodeTool(ctx context.Context, input SearchCodeInput) (SearchCodeOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return SearchCodeOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	s.mu.RLock()
	progress := s.indexProgress
	s.mu.RUnlock()
	if progress != nil && progress.IsIndexing() {
		return SearchCodeOutput{Reason: "not_indexed"}, nil
	}

	start := time.Now()
	requestID := generateRequestID()
	limit := clampLimit(input.K, 10, 1, 50)

	s.logger.Info("search_code started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("k", limit),
		slog.String("intent", input.Intent))

	opts := search.SearchOptions{
		Limit:  limit,
		Filter: "code",
	}

	results, err := s.engine.Search(ctx, input.Query, opts)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search_code failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return SearchCodeOutput{}, MapError(err)
	}

	s.logger.Info("search_code completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	out := SearchCodeOutput{Results: toCodeResults(results, input.Intent)}
	if len(out.Results) == 0 {
		stats := s.engine.Stats()
		if stats == nil || (stats.BM25Stats == nil && stats.VectorCount == 0) {
			out.Reason = "not_indexed"
		} else {
			out.Reason = "no_matches"
		}
	}
	return out, nil
}

// handleFindAndReadTool implements find_and_read: search_code's matches,
// plus the underlying file bytes, so the caller skips a second read.
func (s *Server) handleFindAndReadTool(ctx context.Context, input FindAndReadInput) (FindAndReadOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return FindAndReadOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	limit := clampLimit(input.K, 10, 1, 50)
	results, err := s.engine.Search(ctx, input.Query, search.SearchOptions{Limit: limit})
	if err != nil {
		return FindAndReadOutput{}, MapError(err)
	}

	out := FindAndReadOutput{Results: make([]FileSnippet, 0, len(results))}
	for _, r := range results {
		if r == nil || r.Chunk == nil {
			continue
		}
		content := r.Chunk.Content
		if content == "" {
			content = r.Chunk.RawContent
		}
		out.Results = append(out.Results, FileSnippet{
			FilePath: r.Chunk.FilePath,
			Start:    r.Chunk.StartLine,
			End:      r.Chunk.EndLine,
			Content:  content,
		})
	}
	if len(out.Results) == 0 {
		out.Reason = "no_matches"
	}
	return out, nil
}

// handleGetFileContextTool implements get_file_context: the file's own
// content, plus distinct file paths reachable via the code graph.
func (s *Server) handleGetFileContextTool(ctx context.Context, input GetFileContextInput) (GetFileContextOutput, error) {
	if input.FilePath == "" {
		return GetFileContextOutput{}, NewInvalidParamsError("file_path parameter is required")
	}
	if !s.isValidPath(input.FilePath) {
		return GetFileContextOutput{}, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", input.FilePath))
	}

	fullPath := s.resolveProjectPath(input.Project, input.FilePath)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return GetFileContextOutput{}, NewInvalidParamsError(fmt.Sprintf("cannot read file: %s", input.FilePath))
	}

	out := GetFileContextOutput{
		FilePath: input.FilePath,
		Content:  string(content),
	}

	s.mu.RLock()
	g := s.graphEngine
	projectID := s.projectID
	s.mu.RUnlock()

	if g == nil || projectID == "" {
		return out, nil
	}

	depth := input.NeighborhoodDepth
	if depth <= 0 {
		depth = 1
	}

	result, err := g.QueryFile(ctx, projectID, input.FilePath, depth, nil, store.DirectionBoth)
	if err != nil {
		s.logger.Warn("get_file_context: graph expansion failed, returning file content only",
			slog.String("error", err.Error()))
		return out, nil
	}

	out.RelatedFiles = relatedFilesFromResult(result, input.FilePath)
	return out, nil
}

// relatedFilesFromResult collapses a graph subgraph into the set of
// distinct file paths reachable from edges, excluding the queried file
// itself, each annotated with the edge types that reached it.
func relatedFilesFromResult(result *graphquery.Result, excludePath string) []RelatedFile {
	nodeByID := make(map[string]*store.GraphNode, len(result.Nodes))
	for _, n := range result.Nodes {
		nodeByID[n.ID] = n
	}

	viaTypes := make(map[string]map[string]struct{})
	addVia := func(path, edgeType string) {
		if path == "" || path == excludePath {
			return
		}
		if viaTypes[path] == nil {
			viaTypes[path] = make(map[string]struct{})
		}
		viaTypes[path][edgeType] = struct{}{}
	}

	for _, e := range result.Edges {
		if src := nodeByID[e.SourceID]; src != nil {
			addVia(src.FilePath, e.Type)
		}
		if dst := nodeByID[e.TargetID]; dst != nil {
			addVia(dst.FilePath, e.Type)
		}
	}

	related := make([]RelatedFile, 0, len(viaTypes))
	for path, types := range viaTypes {
		via := make([]string, 0, len(types))
		for t := range types {
			via = append(via, t)
		}
		related = append(related, RelatedFile{FilePath: path, Via: via})
	}
	return related
}

// handleGetCodeRelationshipsTool implements get_code_relationships
// (spec §4.14): filepath_or_symbol is tried as a symbol_id first, then
// as a file path.
func (s *Server) handleGetCodeRelationshipsTool(ctx context.Context, input GetCodeRelationshipsInput) (GetCodeRelationshipsOutput, error) {
	if input.FilepathOrSymbol == "" {
		return GetCodeRelationshipsOutput{}, NewInvalidParamsError("filepath_or_symbol parameter is required")
	}

	s.mu.RLock()
	g := s.graphEngine
	projectID := s.projectID
	s.mu.RUnlock()

	if g == nil || projectID == "" {
		return GetCodeRelationshipsOutput{}, NewInvalidParamsError("project has not been indexed")
	}

	depth := input.Depth
	if depth <= 0 {
		depth = 1
	}
	direction := store.Direction(input.Direction)
	if direction == "" {
		direction = store.DirectionOutgoing
	}

	result, err := g.Query(ctx, graphquery.Request{
		ProjectID: projectID,
		Start:     input.FilepathOrSymbol,
		Depth:     depth,
		Types:     input.Types,
		Direction: direction,
	})
	if err != nil || len(result.Nodes) == 0 {
		fileResult, fileErr := g.QueryFile(ctx, projectID, input.FilepathOrSymbol, depth, input.Types, direction)
		if fileErr == nil {
			result = fileResult
			err = nil
		}
	}
	if err != nil {
		return GetCodeRelationshipsOutput{}, MapError(err)
	}

	out := GetCodeRelationshipsOutput{
		Nodes: make([]RelationshipNode, 0, len(result.Nodes)),
		Edges: make([]RelationshipEdge, 0, len(result.Edges)),
	}
	for _, n := range result.Nodes {
		out.Nodes = append(out.Nodes, RelationshipNode{ID: n.ID, Kind: n.Kind, Name: n.Name, FilePath: n.FilePath})
	}
	for _, e := range result.Edges {
		out.Edges = append(out.Edges, RelationshipEdge{Source: e.SourceID, Target: e.TargetID, Type: e.Type, Confidence: e.Confidence})
	}
	return out, nil
}

// handleGetCodingStandardsTool implements get_coding_standards.
func (s *Server) handleGetCodingStandardsTool(ctx context.Context, input GetCodingStandardsInput) (GetCodingStandardsOutput, error) {
	s.mu.RLock()
	st := s.standards
	s.mu.RUnlock()

	if st == nil {
		return GetCodingStandardsOutput{Categories: []StandardCategoryOutput{}}, nil
	}

	doc, err := st.Load()
	if err != nil {
		return GetCodingStandardsOutput{}, MapError(err)
	}

	cats := doc.Categories
	if input.Category != "" {
		if c, ok := doc.Category(input.Category); ok {
			cats = []store.StandardCategory{c}
		} else {
			cats = nil
		}
	}

	out := GetCodingStandardsOutput{
		Categories: make([]StandardCategoryOutput, 0, len(cats)),
		UpdatedAt:  doc.UpdatedAt.Format(time.RFC3339),
	}
	for _, c := range cats {
		rules := make([]StandardRuleOutput, 0, len(c.Rules))
		for _, r := range c.Rules {
			rules = append(rules, StandardRuleOutput{
				Description: r.Description,
				Example:     r.Example,
				UsageCount:  r.UsageCount,
				FileCount:   r.FileCount,
				Confidence:  r.Confidence,
			})
		}
		out.Categories = append(out.Categories, StandardCategoryOutput{Category: c.Name, Rules: rules})
	}
	return out, nil
}

// handleIndexProjectTool implements index_project.
func (s *Server) handleIndexProjectTool(ctx context.Context, input IndexProjectInput) (IndexProjectOutput, error) {
	s.mu.RLock()
	idx := s.indexer
	root := s.rootPath
	s.mu.RUnlock()

	if idx == nil {
		return IndexProjectOutput{}, NewInvalidParamsError("indexing is not available on this server")
	}
	if input.Path != "" {
		root = input.Path
	}

	result, err := idx.Run(ctx, indexer.RunnerConfig{RootDir: root})
	if err != nil {
		status := "partial"
		if errors.Is(err, context.Canceled) {
			status = "cancelled"
		}
		out := IndexProjectOutput{Status: status}
		if result != nil {
			out.Files, out.Chunks, out.Warnings, out.Errors = result.Files, result.Chunks, result.Warnings, result.Errors
			out.DurationSeconds = result.Duration.Seconds()
		}
		return out, MapError(err)
	}

	return IndexProjectOutput{
		Status:          "complete",
		Files:           result.Files,
		Chunks:          result.Chunks,
		Warnings:        result.Warnings,
		Errors:          result.Errors,
		DurationSeconds: result.Duration.Seconds(),
	}, nil
}

// handleNotifyFileChangesTool implements notify_file_changes.
func (s *Server) handleNotifyFileChangesTool(ctx context.Context, input NotifyFileChangesInput) (NotifyFileChangesOutput, error) {
	s.mu.RLock()
	notifier := s.notifier
	idx := s.indexer
	root := s.rootPath
	s.mu.RUnlock()

	if input.FullReindex {
		if idx == nil {
			return NotifyFileChangesOutput{}, NewInvalidParamsError("indexing is not available on this server")
		}
		result, err := idx.Run(ctx, indexer.RunnerConfig{RootDir: root})
		if err != nil {
			return NotifyFileChangesOutput{Status: "partial"}, MapError(err)
		}
		return NotifyFileChangesOutput{Status: "complete", FilesAccepted: result.Files}, nil
	}

	if notifier == nil {
		return NotifyFileChangesOutput{}, NewInvalidParamsError("incremental indexing is not available on this server")
	}
	if len(input.Paths) == 0 {
		return NotifyFileChangesOutput{}, NewInvalidParamsError("paths parameter is required unless full_reindex is set")
	}

	events := make([]watcher.FileEvent, 0, len(input.Paths))
	now := time.Now()
	for _, p := range input.Paths {
		if !s.isValidPath(p) {
			continue
		}
		op := watcher.OpModify
		if _, err := os.Stat(s.resolveProjectPath(input.Project, p)); os.IsNotExist(err) {
			op = watcher.OpDelete
		}
		events = append(events, watcher.FileEvent{Path: p, Operation: op, Timestamp: now})
	}

	if err := notifier.HandleEvents(ctx, events); err != nil {
		return NotifyFileChangesOutput{Status: "partial", FilesAccepted: 0}, MapError(err)
	}
	return NotifyFileChangesOutput{Status: "complete", FilesAccepted: len(events)}, nil
}

// handleManageIndexTool implements manage_index.
func (s *Server) handleManageIndexTool(ctx context.Context, input ManageIndexInput) (ManageIndexOutput, error) {
	s.mu.RLock()
	pol := s.exclusionsPol
	s.mu.RUnlock()

	if pol == nil {
		return ManageIndexOutput{}, NewInvalidParamsError("exclusion management is not available on this server")
	}

	switch input.Action {
	case "exclude":
		for _, p := range input.Paths {
			if err := pol.Exclude(p, input.Reason); err != nil {
				return ManageIndexOutput{}, MapError(err)
			}
		}
	case "include":
		for _, p := range input.Paths {
			if err := pol.Include(p, input.Reason); err != nil {
				return ManageIndexOutput{}, MapError(err)
			}
		}
	case "list":
		// no-op, falls through to the List() call below
	default:
		return ManageIndexOutput{}, NewInvalidParamsError("action must be exclude, include, or list")
	}

	excludes, includes, err := pol.List()
	if err != nil {
		return ManageIndexOutput{}, MapError(err)
	}

	return ManageIndexOutput{
		Excludes: toExclusionRuleOutputs(excludes),
		Includes: toExclusionRuleOutputs(includes),
	}, nil
}

func toExclusionRuleOutputs(rules []exclusions.Rule) []ExclusionRuleOutput {
	out := make([]ExclusionRuleOutput, 0, len(rules))
	for _, r := range rules {
		out = append(out, ExclusionRuleOutput{Pattern: r.Pattern, Reason: r.Reason, AddedAt: r.AddedAt.Format(time.RFC3339)})
	}
	return out
}

// resolveProjectPath joins a caller-supplied project root (or the
// server's configured root when empty) with a relative file path.
func (s *Server) resolveProjectPath(project, relPath string) string {
	root := project
	if root == "" {
		s.mu.RLock()
		root = s.rootPath
		s.mu.RUnlock()
	}
	return joinProjectPath(root, relPath)
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{Name: "search_code", Description: toolDescSearchCode}, s.mcpSearchCodeHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "find_and_read", Description: toolDescFindAndRead}, s.mcpFindAndReadHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_file_context", Description: toolDescGetFileContext}, s.mcpGetFileContextHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_code_relationships", Description: toolDescGetCodeRelationships}, s.mcpGetCodeRelationshipsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_coding_standards", Description: toolDescGetCodingStandards}, s.mcpGetCodingStandardsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "index_project", Description: toolDescIndexProject}, s.mcpIndexProjectHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "notify_file_changes", Description: toolDescNotifyFileChanges}, s.mcpNotifyFileChangesHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "manage_index", Description: toolDescManageIndex}, s.mcpManageIndexHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 8))
}

func (s *Server) mcpSearchCodeHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchCodeInput) (*mcp.CallToolResult, SearchCodeOutput, error) {
	out, err := s.handleSearchCodeTool(ctx, input)
	return nil, out, err
}

func (s *Server) mcpFindAndReadHandler(ctx context.Context, _ *mcp.CallToolRequest, input FindAndReadInput) (*mcp.CallToolResult, FindAndReadOutput, error) {
	out, err := s.handleFindAndReadTool(ctx, input)
	return nil, out, err
}

func (s *Server) mcpGetFileContextHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetFileContextInput) (*mcp.CallToolResult, GetFileContextOutput, error) {
	out, err := s.handleGetFileContextTool(ctx, input)
	return nil, out, err
}

func (s *Server) mcpGetCodeRelationshipsHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetCodeRelationshipsInput) (*mcp.CallToolResult, GetCodeRelationshipsOutput, error) {
	out, err := s.handleGetCodeRelationshipsTool(ctx, input)
	return nil, out, err
}

func (s *Server) mcpGetCodingStandardsHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetCodingStandardsInput) (*mcp.CallToolResult, GetCodingStandardsOutput, error) {
	out, err := s.handleGetCodingStandardsTool(ctx, input)
	return nil, out, err
}

func (s *Server) mcpIndexProjectHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexProjectInput) (*mcp.CallToolResult, IndexProjectOutput, error) {
	out, err := s.handleIndexProjectTool(ctx, input)
	return nil, out, err
}

func (s *Server) mcpNotifyFileChangesHandler(ctx context.Context, _ *mcp.CallToolRequest, input NotifyFileChangesInput) (*mcp.CallToolResult, NotifyFileChangesOutput, error) {
	out, err := s.handleNotifyFileChangesTool(ctx, input)
	return nil, out, err
}

func (s *Server) mcpManageIndexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ManageIndexInput) (*mcp.CallToolResult, ManageIndexOutput, error) {
	out, err := s.handleManageIndexTool(ctx, input)
	return nil, out, err
}

// ListResources returns all available resources.
func (s *Server) ListResources(ctx context.Context, cursor string) ([]ResourceInfo, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.metadata.GetChangedFiles(ctx, "", emptyTime)
	if err != nil {
		return nil, "", err
	}

	resources := make([]ResourceInfo, 0, len(files))
	for _, f := range files {
		resources = append(resources, ResourceInfo{
			URI:      fmt.Sprintf("file://%s", f.Path),
			Name:     f.Path,
			MIMEType: mimeTypeForLanguage(f.Language),
		})
	}

	return resources, "", nil // No pagination for now
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunkID string
	if strings.HasPrefix(uri, "chunk://") {
		chunkID = strings.TrimPrefix(uri, "chunk://")
	} else if strings.HasPrefix(uri, "file://") {
		return nil, NewResourceNotFoundError(uri)
	} else {
		return nil, NewResourceNotFoundError(uri)
	}

	chunk, err := s.metadata.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if chunk == nil {
		return nil, NewResourceNotFoundError(uri)
	}

	return &ResourceContent{
		URI:      uri,
		Content:  chunk.Content,
		MIMEType: mimeTypeForLanguage(chunk.Language),
	}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		s.logger.Debug("Using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// mimeTypeForLanguage returns the MIME type for a programming language.
func mimeTypeForLanguage(lang string) string {
	switch strings.ToLower(lang) {
	case "go":
		return "text/x-go"
	case "typescript", "ts":
		return "text/typescript"
	case "javascript", "js":
		return "text/javascript"
	case "python", "py":
		return "text/x-python"
	case "rust", "rs":
		return "text/x-rust"
	case "java":
		return "text/x-java"
	case "c":
		return "text/x-c"
	case "cpp", "c++":
		return "text/x-c++"
	case "markdown", "md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// emptyTime is a zero time value for listing all files.
var emptyTime = time.Time{}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
