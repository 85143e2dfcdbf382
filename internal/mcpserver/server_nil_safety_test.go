package mcpserver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeseeker/codeseeker/internal/config"
	"github.com/codeseeker/codeseeker/internal/search"
	"github.com/codeseeker/codeseeker/internal/store"
)

// Nil Safety Tests - These test that the MCP server handles nil values
// and error conditions gracefully without panicking.

// =============================================================================
// Nil Embedder Tests
// =============================================================================

func TestServer_NilEmbedder_CreatesSuccessfully(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, nil, cfg, "")

	require.NoError(t, err)
	require.NotNil(t, srv)
}

func TestServer_NilEmbedder_SearchStillWorks(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{Chunk: &store.Chunk{ID: "test-1", Content: "Test content", FilePath: "test.go"}, Score: 0.9},
			}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, nil, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": "test query"})

	require.NoError(t, err)
	out, ok := result.(SearchCodeOutput)
	require.True(t, ok)
	assert.Len(t, out.Results, 1)
}

// =============================================================================
// Search Engine Error Handling Tests
// =============================================================================

func TestServer_SearchEngineError_ReturnsErrorNotPanic(t *testing.T) {
	searchErr := errors.New("search engine failure")
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return nil, searchErr
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search_code", map[string]any{"query": "test query"})

	require.Error(t, err, "search engine error should be returned as error")
}

func TestServer_SearchEngineNilResults_ReturnsEmptyGracefully(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return nil, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": "test query"})

	require.NoError(t, err)
	out, ok := result.(SearchCodeOutput)
	require.True(t, ok)
	assert.Empty(t, out.Results)
	assert.Equal(t, "not_indexed", out.Reason)
}

func TestServer_SearchResultsWithNilChunks_FilteredOut(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{Chunk: nil, Score: 0.9},
				{Chunk: &store.Chunk{ID: "valid", Content: "Valid content", FilePath: "test.go"}, Score: 0.8},
				nil,
				{Chunk: nil, Score: 0.7},
			}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": "test query"})

	require.NoError(t, err)
	out, ok := result.(SearchCodeOutput)
	require.True(t, ok)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "test.go", out.Results[0].FilePath)
}

// =============================================================================
// Concurrent Access Tests
// =============================================================================

func TestServer_ConcurrentSearch_NoRace(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{Chunk: &store.Chunk{ID: "test", Content: "Test"}, Score: 0.9},
			}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": "concurrent test"})
			if err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent search failed: %v", err)
	}
}

func TestServer_ConcurrentToolCalls_NoRace(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{}, nil
		},
		StatsFn: func() *search.EngineStats {
			return &search.EngineStats{VectorCount: 100}
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)
	srv.SetStandards(nil)

	var wg sync.WaitGroup
	errCh := make(chan error, 100)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": "test"})
			if err != nil {
				errCh <- err
			}
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "get_coding_standards", nil)
			if err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent tool call failed: %v", err)
	}
}

// =============================================================================
// Context Cancellation Tests
// =============================================================================

func TestServer_CancelledContext_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return []*search.SearchResult{}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = srv.CallTool(ctx, "search_code", map[string]any{"query": "test"})

	require.Error(t, err)
}

// =============================================================================
// Stats Nil Safety Tests
// =============================================================================

func TestServer_NilStats_HandledGracefully(t *testing.T) {
	engine := &MockSearchEngine{
		StatsFn: func() *search.EngineStats { return nil },
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": "test"})

	require.NoError(t, err)
	assert.NotNil(t, result)
}

// =============================================================================
// Invalid Arguments Tests
// =============================================================================

func TestServer_NilArguments_HandledGracefully(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search_code", nil)

	require.Error(t, err, "nil arguments should return error for search_code")
}

func TestServer_EmptyQuery_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search_code", map[string]any{"query": ""})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}

func TestServer_WhitespaceQuery_Rejected(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search_code", map[string]any{"query": "   "})

	require.Error(t, err, "whitespace query should be rejected")
	require.Empty(t, result)
}

func TestServer_WrongArgumentType_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search_code", map[string]any{"query": 123})

	require.Error(t, err)
}

func TestServer_NegativeLimit_HandledGracefully(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{}, nil
		},
	}
	metadata := &MockMetadataStore{}
	cfg := config.NewConfig()

	srv, err := NewServer(engine, metadata, &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search_code", map[string]any{"query": "test", "k": float64(-10)})

	require.NoError(t, err)
}
