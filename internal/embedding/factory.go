package embedding

import (
	"context"
	"os"
	"strings"
)

// NewEmbedder creates the embedder used for indexing and search. CodeSeeker
// ships a single deterministic, offline embedder; this constructor exists so
// callers depend on a stable seam rather than LocalEmbedder directly, and so
// query-embedding caching is applied uniformly.
//
// CODESEEKER_EMBED_CACHE=false disables the query cache (useful for
// benchmarking raw embed cost).
func NewEmbedder(ctx context.Context, dimensions int) (Embedder, error) {
	var embedder Embedder = NewLocalEmbedder(dimensions)

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("CODESEEKER_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// EmbedderInfo describes the active embedder, surfaced by the index_status /
// manage_index MCP tools so clients can see what produced the index.
type EmbedderInfo struct {
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder, unwrapping a cache wrapper
// if present.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	return EmbedderInfo{
		Model:      inner.ModelName(),
		Dimensions: inner.Dimensions(),
		Available:  embedder.Available(ctx),
	}
}
