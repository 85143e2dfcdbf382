package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeseeker/codeseeker/internal/config"
	embed "github.com/codeseeker/codeseeker/internal/embedding"
	"github.com/codeseeker/codeseeker/internal/exclusions"
	"github.com/codeseeker/codeseeker/internal/graphquery"
	"github.com/codeseeker/codeseeker/internal/indexer"
	"github.com/codeseeker/codeseeker/internal/search"
	"github.com/codeseeker/codeseeker/internal/store"
	"github.com/codeseeker/codeseeker/internal/watcher"
)

// MockSearchEngine implements search.SearchEngine for testing.
type MockSearchEngine struct {
	SearchFn func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error)
	IndexFn  func(ctx context.Context, chunks []*store.Chunk) error
	DeleteFn func(ctx context.Context, chunkIDs []string) error
	StatsFn  func() *search.EngineStats
	CloseFn  func() error
}

func (m *MockSearchEngine) Search(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, opts)
	}
	return []*search.SearchResult{}, nil
}

func (m *MockSearchEngine) Index(ctx context.Context, chunks []*store.Chunk) error {
	if m.IndexFn != nil {
		return m.IndexFn(ctx, chunks)
	}
	return nil
}

func (m *MockSearchEngine) Delete(ctx context.Context, chunkIDs []string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, chunkIDs)
	}
	return nil
}

func (m *MockSearchEngine) Stats() *search.EngineStats {
	if m.StatsFn != nil {
		return m.StatsFn()
	}
	return &search.EngineStats{}
}

func (m *MockSearchEngine) Close() error {
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

// Ensure MockSearchEngine implements search.SearchEngine
var _ search.SearchEngine = (*MockSearchEngine)(nil)

// MockMetadataStore implements store.MetadataStore for testing.
type MockMetadataStore struct {
	Files           []*store.File
	Chunks          []*store.Chunk
	GetFileByPathFn func(ctx context.Context, projectID, path string) (*store.File, error)
}

func (m *MockMetadataStore) SaveProject(_ context.Context, _ *store.Project) error { return nil }
func (m *MockMetadataStore) GetProject(_ context.Context, _ string) (*store.Project, error) {
	return nil, nil
}
func (m *MockMetadataStore) UpdateProjectStats(_ context.Context, _ string, _, _ int) error {
	return nil
}
func (m *MockMetadataStore) RefreshProjectStats(_ context.Context, _ string) error {
	return nil
}
func (m *MockMetadataStore) SaveFiles(_ context.Context, _ []*store.File) error { return nil }
func (m *MockMetadataStore) GetFileByPath(ctx context.Context, projectID, path string) (*store.File, error) {
	if m.GetFileByPathFn != nil {
		return m.GetFileByPathFn(ctx, projectID, path)
	}
	return nil, nil
}
func (m *MockMetadataStore) GetChangedFiles(_ context.Context, _ string, _ time.Time) ([]*store.File, error) {
	return m.Files, nil
}
func (m *MockMetadataStore) ListFiles(_ context.Context, _ string, _ string, limit int) ([]*store.File, string, error) {
	if limit <= 0 || limit > len(m.Files) {
		return m.Files, "", nil
	}
	return m.Files[:limit], "", nil
}
func (m *MockMetadataStore) GetFilePathsByProject(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}
func (m *MockMetadataStore) GetFilesForReconciliation(_ context.Context, _ string) (map[string]*store.File, error) {
	return nil, nil
}
func (m *MockMetadataStore) ListFilePathsUnder(_ context.Context, _, _ string) ([]string, error) {
	return nil, nil
}
func (m *MockMetadataStore) DeleteFile(_ context.Context, _ string) error           { return nil }
func (m *MockMetadataStore) DeleteFilesByProject(_ context.Context, _ string) error { return nil }
func (m *MockMetadataStore) DeleteProject(_ context.Context, _ string) error        { return nil }
func (m *MockMetadataStore) SaveChunks(_ context.Context, _ []*store.Chunk) error   { return nil }
func (m *MockMetadataStore) GetChunk(_ context.Context, id string) (*store.Chunk, error) {
	for _, c := range m.Chunks {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}
func (m *MockMetadataStore) GetChunks(_ context.Context, ids []string) ([]*store.Chunk, error) {
	result := make([]*store.Chunk, 0, len(ids))
	for _, id := range ids {
		for _, c := range m.Chunks {
			if c.ID == id {
				result = append(result, c)
				break
			}
		}
	}
	return result, nil
}
func (m *MockMetadataStore) GetChunksByFile(_ context.Context, _ string) ([]*store.Chunk, error) {
	return m.Chunks, nil
}
func (m *MockMetadataStore) DeleteChunks(_ context.Context, _ []string) error     { return nil }
func (m *MockMetadataStore) DeleteChunksByFile(_ context.Context, _ string) error { return nil }
func (m *MockMetadataStore) SearchSymbols(_ context.Context, _ string, _ int) ([]*store.Symbol, error) {
	return nil, nil
}
func (m *MockMetadataStore) GetState(_ context.Context, _ string) (string, error) {
	return "", nil
}
func (m *MockMetadataStore) SetState(_ context.Context, _, _ string) error { return nil }

func (m *MockMetadataStore) SaveChunkEmbeddings(_ context.Context, _ []string, _ [][]float32, _ string) error {
	return nil
}
func (m *MockMetadataStore) GetAllEmbeddings(_ context.Context) (map[string][]float32, error) {
	return nil, nil
}
func (m *MockMetadataStore) GetEmbeddingStats(_ context.Context) (int, int, error) {
	return 0, 0, nil
}

func (m *MockMetadataStore) SaveIndexCheckpoint(_ context.Context, _ string, _, _ int, _ string) error {
	return nil
}
func (m *MockMetadataStore) LoadIndexCheckpoint(_ context.Context) (*store.IndexCheckpoint, error) {
	return nil, nil
}
func (m *MockMetadataStore) ClearIndexCheckpoint(_ context.Context) error {
	return nil
}

func (m *MockMetadataStore) Close() error { return nil }

// Ensure MockMetadataStore implements store.MetadataStore
var _ store.MetadataStore = (*MockMetadataStore)(nil)

// MockEmbedder implements embed.Embedder for testing.
type MockEmbedder struct {
	DimensionsFn func() int
	ModelNameFn  func() string
	AvailableFn  func(ctx context.Context) bool
}

func (m *MockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, m.Dimensions()), nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = make([]float32, m.Dimensions())
	}
	return result, nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.DimensionsFn != nil {
		return m.DimensionsFn()
	}
	return embed.DefaultDimensions
}

func (m *MockEmbedder) ModelName() string {
	if m.ModelNameFn != nil {
		return m.ModelNameFn()
	}
	return "embeddinggemma-300m"
}

func (m *MockEmbedder) Available(ctx context.Context) bool {
	if m.AvailableFn != nil {
		return m.AvailableFn(ctx)
	}
	return true
}

func (m *MockEmbedder) Close() error         { return nil }
func (m *MockEmbedder) SetBatchIndex(_ int)  {}
func (m *MockEmbedder) SetFinalBatch(_ bool) {}

// Ensure MockEmbedder implements embed.Embedder
var _ embed.Embedder = (*MockEmbedder)(nil)

// MockIndexer implements Indexer for testing index_project.
type MockIndexer struct {
	RunFn func(ctx context.Context, cfg indexer.RunnerConfig) (*indexer.RunnerResult, error)
}

func (m *MockIndexer) Run(ctx context.Context, cfg indexer.RunnerConfig) (*indexer.RunnerResult, error) {
	if m.RunFn != nil {
		return m.RunFn(ctx, cfg)
	}
	return &indexer.RunnerResult{}, nil
}

var _ Indexer = (*MockIndexer)(nil)

// MockChangeNotifier implements ChangeNotifier for testing notify_file_changes.
type MockChangeNotifier struct {
	HandleEventsFn func(ctx context.Context, events []watcher.FileEvent) error
	LastEvents     []watcher.FileEvent
}

func (m *MockChangeNotifier) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	m.LastEvents = events
	if m.HandleEventsFn != nil {
		return m.HandleEventsFn(ctx, events)
	}
	return nil
}

var _ ChangeNotifier = (*MockChangeNotifier)(nil)

// newTestServer creates a server with mock dependencies for testing.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{}
	embedder := &MockEmbedder{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, embedder, cfg, "")
	require.NoError(t, err)
	require.NotNil(t, srv)

	return srv
}

// newTestGraphEngine builds a graph query engine over an in-memory store
// seeded with one edge between two files, for get_file_context and
// get_code_relationships tests.
func newTestGraphEngine(t *testing.T) *graphquery.Engine {
	t.Helper()
	g, err := store.NewSQLiteGraphStore("")
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	ctx := context.Background()
	require.NoError(t, g.UpsertNodes(ctx, []*store.GraphNode{
		{ProjectID: "p1", ID: "main.Run", Name: "Run", Kind: "function", FilePath: "main.go"},
		{ProjectID: "p1", ID: "helper.Do", Name: "Do", Kind: "function", FilePath: "helper.go"},
	}))
	require.NoError(t, g.UpsertEdges(ctx, []*store.GraphEdge{
		{ProjectID: "p1", SourceID: "main.Run", TargetID: "helper.Do", Type: "calls", Confidence: "exact"},
	}))

	return graphquery.NewEngine(g)
}

// =============================================================================
// TS01: Server Initialization
// =============================================================================

func TestServer_New_Success(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")

	require.NoError(t, err)
	require.NotNil(t, srv)
	assert.NotNil(t, srv.MCPServer())
}

func TestServer_New_NilEngine_ReturnsError(t *testing.T) {
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(nil, metadata, &MockEmbedder{}, cfg, "")

	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Contains(t, err.Error(), "search engine")
}

func TestServer_New_NilMetadata_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, nil, &MockEmbedder{}, cfg, "")

	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Contains(t, err.Error(), "metadata")
}

func TestServer_New_NilConfig_UsesDefaults(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{}

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, nil, "")

	require.NoError(t, err)
	require.NotNil(t, srv)
}

// =============================================================================
// TS02: Server Identity
// =============================================================================

func TestServer_Info_ReturnsCorrectValues(t *testing.T) {
	srv := newTestServer(t)

	name, ver := srv.Info()

	assert.Equal(t, "CodeSeeker", name)
	assert.NotEmpty(t, ver)
}

func TestServer_Capabilities_HasToolsAndResources(t *testing.T) {
	srv := newTestServer(t)

	hasTools, hasResources := srv.Capabilities()

	assert.True(t, hasTools, "tools capability should be enabled")
	assert.True(t, hasResources, "resources capability should be enabled")
}

// =============================================================================
// TS03: Tools List
// =============================================================================

func TestServer_ListTools_ReturnsAllEightTools(t *testing.T) {
	srv := newTestServer(t)

	tools := srv.ListTools()

	names := make(map[string]bool, len(tools))
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
		names[tool.Name] = true
	}

	for _, want := range []string{
		"search_code", "find_and_read", "get_file_context", "get_code_relationships",
		"get_coding_standards", "index_project", "notify_file_changes", "manage_index",
	} {
		assert.True(t, names[want], "expected tool %q to be registered", want)
	}
}

// =============================================================================
// TS04: search_code
// =============================================================================

func TestServer_CallTool_SearchCodeRouting(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{
					Chunk: &store.Chunk{
						ID:        "chunk1",
						FilePath:  "src/main.go",
						Content:   "func main() {}",
						StartLine: 1,
						EndLine:   3,
					},
					Score: 0.95,
				},
			}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()
	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search_code", map[string]any{
		"query": "main function",
	})

	require.NoError(t, err)
	out, ok := result.(SearchCodeOutput)
	require.True(t, ok)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "src/main.go", out.Results[0].FilePath)
}

func TestServer_CallTool_SearchCode_EmptyQuery_ReturnsInvalidParams(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": ""})

	require.Error(t, err)
	var mcpErr *MCPError
	if assert.ErrorAs(t, err, &mcpErr) {
		assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	}
}

func TestServer_SearchCode_NoMatches_SetsReason(t *testing.T) {
	engine := &MockSearchEngine{
		StatsFn: func() *search.EngineStats {
			return &search.EngineStats{BM25Stats: &store.IndexStats{DocumentCount: 5}}
		},
	}
	srv, err := NewServer(engine, &MockMetadataStore{}, &MockEmbedder{}, config.NewConfig(), "")
	require.NoError(t, err)

	out, err := srv.handleSearchCodeTool(context.Background(), SearchCodeInput{Query: "nonexistent symbol"})

	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Equal(t, "no_matches", out.Reason)
}

func TestServer_SearchCode_NotIndexed_SetsReason(t *testing.T) {
	engine := &MockSearchEngine{
		StatsFn: func() *search.EngineStats { return &search.EngineStats{} },
	}
	srv, err := NewServer(engine, &MockMetadataStore{}, &MockEmbedder{}, config.NewConfig(), "")
	require.NoError(t, err)

	out, err := srv.handleSearchCodeTool(context.Background(), SearchCodeInput{Query: "anything"})

	require.NoError(t, err)
	assert.Equal(t, "not_indexed", out.Reason)
}

// =============================================================================
// TS05: Unknown Tool
// =============================================================================

func TestServer_CallTool_UnknownTool_ReturnsError(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "nonexistent_tool", nil)

	require.Error(t, err)
	var mcpErr *MCPError
	if assert.ErrorAs(t, err, &mcpErr) {
		assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
	}
}

// =============================================================================
// TS06: find_and_read
// =============================================================================

func TestServer_FindAndRead_ReturnsContent(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{Chunk: &store.Chunk{FilePath: "a.go", Content: "package a", StartLine: 1, EndLine: 1}},
			}, nil
		},
	}
	srv, err := NewServer(engine, &MockMetadataStore{}, &MockEmbedder{}, config.NewConfig(), "")
	require.NoError(t, err)

	out, err := srv.handleFindAndReadTool(context.Background(), FindAndReadInput{Query: "package a"})

	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "package a", out.Results[0].Content)
}

// =============================================================================
// TS07: get_file_context
// =============================================================================

func TestServer_GetFileContext_ReturnsContentAndRelatedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0644))

	srv, err := NewServer(&MockSearchEngine{}, &MockMetadataStore{}, &MockEmbedder{}, config.NewConfig(), dir)
	require.NoError(t, err)
	srv.SetGraphEngine(newTestGraphEngine(t))
	srv.SetProjectID("p1")

	out, err := srv.handleGetFileContextTool(context.Background(), GetFileContextInput{FilePath: "main.go"})

	require.NoError(t, err)
	assert.Equal(t, "package main", out.Content)
	require.Len(t, out.RelatedFiles, 1)
	assert.Equal(t, "helper.go", out.RelatedFiles[0].FilePath)
}

func TestServer_GetFileContext_RejectsPathTraversal(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.handleGetFileContextTool(context.Background(), GetFileContextInput{FilePath: "../../etc/passwd"})

	require.Error(t, err)
}

// =============================================================================
// TS08: get_code_relationships
// =============================================================================

func TestServer_GetCodeRelationships_TraversesFromSymbol(t *testing.T) {
	srv, err := NewServer(&MockSearchEngine{}, &MockMetadataStore{}, &MockEmbedder{}, config.NewConfig(), "")
	require.NoError(t, err)
	srv.SetGraphEngine(newTestGraphEngine(t))
	srv.SetProjectID("p1")

	out, err := srv.handleGetCodeRelationshipsTool(context.Background(), GetCodeRelationshipsInput{
		FilepathOrSymbol: "main.Run",
	})

	require.NoError(t, err)
	assert.Len(t, out.Edges, 1)
}

func TestServer_GetCodeRelationships_TraversesFromFilePath(t *testing.T) {
	srv, err := NewServer(&MockSearchEngine{}, &MockMetadataStore{}, &MockEmbedder{}, config.NewConfig(), "")
	require.NoError(t, err)
	srv.SetGraphEngine(newTestGraphEngine(t))
	srv.SetProjectID("p1")

	out, err := srv.handleGetCodeRelationshipsTool(context.Background(), GetCodeRelationshipsInput{
		FilepathOrSymbol: "main.go",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, out.Nodes)
}

func TestServer_GetCodeRelationships_NotIndexed_ReturnsError(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.handleGetCodeRelationshipsTool(context.Background(), GetCodeRelationshipsInput{FilepathOrSymbol: "x"})

	require.Error(t, err)
}

// =============================================================================
// TS09: get_coding_standards
// =============================================================================

func TestServer_GetCodingStandards_ReturnsMinedCategories(t *testing.T) {
	dir := t.TempDir()
	st := store.NewStandardsStore(dir)
	doc, err := st.Load()
	require.NoError(t, err)
	doc.ReplaceCategory(store.StandardCategory{
		Name:  "error-handling",
		Rules: []store.StandardRule{{Description: "errors wrapped with %w", UsageCount: 10, Confidence: 0.9}},
	})
	require.NoError(t, st.Save(doc))

	srv := newTestServer(t)
	srv.SetStandards(st)

	out, err := srv.handleGetCodingStandardsTool(context.Background(), GetCodingStandardsInput{})

	require.NoError(t, err)
	require.Len(t, out.Categories, 1)
	assert.Equal(t, "error-handling", out.Categories[0].Category)
}

func TestServer_GetCodingStandards_FiltersByCategory(t *testing.T) {
	dir := t.TempDir()
	st := store.NewStandardsStore(dir)
	doc, _ := st.Load()
	doc.ReplaceCategory(store.StandardCategory{Name: "testing"})
	doc.ReplaceCategory(store.StandardCategory{Name: "logging"})
	require.NoError(t, st.Save(doc))

	srv := newTestServer(t)
	srv.SetStandards(st)

	out, err := srv.handleGetCodingStandardsTool(context.Background(), GetCodingStandardsInput{Category: "logging"})

	require.NoError(t, err)
	require.Len(t, out.Categories, 1)
	assert.Equal(t, "logging", out.Categories[0].Category)
}

func TestServer_GetCodingStandards_NoStore_ReturnsEmpty(t *testing.T) {
	srv := newTestServer(t)

	out, err := srv.handleGetCodingStandardsTool(context.Background(), GetCodingStandardsInput{})

	require.NoError(t, err)
	assert.Empty(t, out.Categories)
}

// =============================================================================
// TS10: index_project
// =============================================================================

func TestServer_IndexProject_ReturnsStats(t *testing.T) {
	srv := newTestServer(t)
	srv.SetIndexer(&MockIndexer{
		RunFn: func(ctx context.Context, cfg indexer.RunnerConfig) (*indexer.RunnerResult, error) {
			return &indexer.RunnerResult{Files: 12, Chunks: 40}, nil
		},
	})

	out, err := srv.handleIndexProjectTool(context.Background(), IndexProjectInput{})

	require.NoError(t, err)
	assert.Equal(t, "complete", out.Status)
	assert.Equal(t, 12, out.Files)
	assert.Equal(t, 40, out.Chunks)
}

func TestServer_IndexProject_NoIndexer_ReturnsError(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.handleIndexProjectTool(context.Background(), IndexProjectInput{})

	require.Error(t, err)
}

// =============================================================================
// TS11: notify_file_changes
// =============================================================================

func TestServer_NotifyFileChanges_RoutesThroughNotifier(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "changed.go"), []byte("package p"), 0644))

	srv, err := NewServer(&MockSearchEngine{}, &MockMetadataStore{}, &MockEmbedder{}, config.NewConfig(), dir)
	require.NoError(t, err)
	notifier := &MockChangeNotifier{}
	srv.SetChangeNotifier(notifier)

	out, err := srv.handleNotifyFileChangesTool(context.Background(), NotifyFileChangesInput{
		Paths: []string{"changed.go", "deleted.go"},
	})

	require.NoError(t, err)
	assert.Equal(t, "complete", out.Status)
	require.Len(t, notifier.LastEvents, 2)
	assert.Equal(t, watcher.OpModify, notifier.LastEvents[0].Operation)
	assert.Equal(t, watcher.OpDelete, notifier.LastEvents[1].Operation)
}

func TestServer_NotifyFileChanges_FullReindex_UsesIndexer(t *testing.T) {
	srv := newTestServer(t)
	called := false
	srv.SetIndexer(&MockIndexer{
		RunFn: func(ctx context.Context, cfg indexer.RunnerConfig) (*indexer.RunnerResult, error) {
			called = true
			return &indexer.RunnerResult{Files: 3}, nil
		},
	})

	out, err := srv.handleNotifyFileChangesTool(context.Background(), NotifyFileChangesInput{FullReindex: true})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 3, out.FilesAccepted)
}

func TestServer_NotifyFileChanges_NoPaths_ReturnsError(t *testing.T) {
	srv := newTestServer(t)
	srv.SetChangeNotifier(&MockChangeNotifier{})

	_, err := srv.handleNotifyFileChangesTool(context.Background(), NotifyFileChangesInput{})

	require.Error(t, err)
}

// =============================================================================
// TS12: manage_index
// =============================================================================

func TestServer_ManageIndex_ExcludeThenList(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t)
	srv.SetExclusions(exclusions.NewPolicy(dir))

	_, err := srv.handleManageIndexTool(context.Background(), ManageIndexInput{
		Action: "exclude",
		Paths:  []string{"vendor/**"},
		Reason: "third-party code",
	})
	require.NoError(t, err)

	out, err := srv.handleManageIndexTool(context.Background(), ManageIndexInput{Action: "list"})
	require.NoError(t, err)
	require.Len(t, out.Excludes, 1)
	assert.Equal(t, "vendor/**", out.Excludes[0].Pattern)
}

func TestServer_ManageIndex_UnknownAction_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t)
	srv.SetExclusions(exclusions.NewPolicy(dir))

	_, err := srv.handleManageIndexTool(context.Background(), ManageIndexInput{Action: "delete"})

	require.Error(t, err)
}

// =============================================================================
// TS13: Resources
// =============================================================================

func TestServer_ListResources_ReturnsIndexedFiles(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{
		Files: []*store.File{
			{Path: "src/main.go", Language: "go"},
			{Path: "README.md", Language: "markdown"},
		},
	}
	cfg := config.NewConfig()
	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	resources, cursor, err := srv.ListResources(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, cursor)
	assert.Len(t, resources, 2)

	for _, res := range resources {
		assert.NotEmpty(t, res.URI)
		assert.NotEmpty(t, res.Name)
	}
}

func TestServer_ListResources_Empty(t *testing.T) {
	srv := newTestServer(t)

	resources, _, err := srv.ListResources(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestServer_ReadResource_ReturnsContent(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{
		Chunks: []*store.Chunk{
			{
				ID:       "chunk1",
				FilePath: "src/main.go",
				Content:  "package main\n\nfunc main() {}",
				Language: "go",
			},
		},
	}
	cfg := config.NewConfig()
	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.ReadResource(context.Background(), "chunk://chunk1")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.Content, "func main()")
}

func TestServer_ReadResource_NotFound(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.ReadResource(context.Background(), "chunk://nonexistent")

	require.Error(t, err)
}

// =============================================================================
// TS14: Graceful Shutdown
// =============================================================================

func TestServer_Close_ReleasesResources(t *testing.T) {
	srv := newTestServer(t)

	err := srv.Close()

	assert.NoError(t, err)
}

// =============================================================================
// TS15: Concurrent Requests
// =============================================================================

func TestServer_ConcurrentRequests_RaceSafe(t *testing.T) {
	callCount := 0
	var mu sync.Mutex

	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			mu.Lock()
			callCount++
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			return []*search.SearchResult{}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()
	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "search_code", map[string]any{
				"query": "test query",
			})
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 10, callCount)
}
