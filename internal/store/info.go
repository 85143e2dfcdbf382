package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EmbedderInfoInput carries the active embedder's identity into GetIndexInfo
// so it can be compared against what the index was built with.
type EmbedderInfoInput struct {
	Model      string
	Dimensions int
}

// GetIndexInfo gathers index configuration and statistics for the
// `codeseeker index info` / `status --verbose` commands. embedderInput may be
// nil when the current embedder could not be constructed; in that case the
// current/compatible fields are left zero.
func GetIndexInfo(ctx context.Context, metadata MetadataStore, dataDir, projectRoot string, embedderInput *EmbedderInfoInput) (*IndexInfo, error) {
	info := &IndexInfo{
		Location:    dataDir,
		ProjectRoot: projectRoot,
	}

	indexModel, _ := metadata.GetState(ctx, StateKeyIndexModel)
	info.IndexModel = indexModel

	if dimStr, err := metadata.GetState(ctx, StateKeyIndexDimension); err == nil && dimStr != "" {
		var dims int
		if _, scanErr := fmt.Sscanf(dimStr, "%d", &dims); scanErr == nil {
			info.IndexDimensions = dims
		}
	}

	if withEmbed, withoutEmbed, err := metadata.GetEmbeddingStats(ctx); err == nil {
		info.ChunkCount = withEmbed + withoutEmbed
	}

	info.BM25SizeBytes = getDirSize(filepath.Join(dataDir, "bm25"))
	info.VectorSizeBytes = fileSize(filepath.Join(dataDir, "vectors.hnsw"))
	info.IndexSizeBytes = info.BM25SizeBytes + info.VectorSizeBytes + fileSize(filepath.Join(dataDir, "metadata.db"))

	if fi, err := os.Stat(filepath.Join(dataDir, "metadata.db")); err == nil {
		info.CreatedAt = fi.ModTime()
		info.UpdatedAt = fi.ModTime()
	}

	if embedderInput != nil {
		info.CurrentModel = embedderInput.Model
		info.CurrentDimensions = embedderInput.Dimensions
		info.Compatible = info.IndexModel == "" || (info.IndexModel == info.CurrentModel && info.IndexDimensions == info.CurrentDimensions)
	}

	return info, nil
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// FormatTime renders a timestamp for display, or "unknown" for the zero value.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// containsAny reports whether s contains any of substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// getDirSize sums the size of all regular files under dir, recursively.
// Returns 0 if dir does not exist.
func getDirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort size accounting
		}
		if !fi.IsDir() {
			total += fi.Size()
		}
		return nil
	})
	return total
}

// fileSize returns the size of a single file, or 0 if it does not exist.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
