package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeseeker/codeseeker/internal/config"
	index "github.com/codeseeker/codeseeker/internal/indexer"
	"github.com/codeseeker/codeseeker/internal/logging"
	"github.com/codeseeker/codeseeker/internal/store"
)

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup <path> <losing-project-id>",
		Short: "Merge a duplicate project record into the canonical path",
		Long: `Reconciles two project_ids that refer to the same logical project.

A duplicate arises when a project was indexed, its data directory's store
was copied or shared, and the same codebase later got indexed again under
a path that normalizes to a different project_id. This command re-indexes
path as the canonical project, then deletes every file, chunk, symbol, and
graph node still attributed to the losing project_id from the same store.

This is an operator action, not something codeseeker performs on its own:
nothing but the caller can know which of two project_ids is the one to
keep.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd.Context(), cmd, args[0], args[1])
		},
	}
	return cmd
}

func runCleanup(ctx context.Context, cmd *cobra.Command, path, losingProjectID string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		defer cleanup()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	canonicalID := index.ProjectIDForPath(root)
	if canonicalID == losingProjectID {
		return fmt.Errorf("%s already is the canonical project_id for %s; nothing to clean up", losingProjectID, root)
	}

	dataDir := filepath.Join(root, ".codeseeker")
	metadataPath := filepath.Join(dataDir, "metadata.db")
	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found at %s - run 'codeseeker index' first", dataDir)
	}

	fmt.Printf("Re-indexing canonical path %s (project_id=%s)...\n", root, canonicalID)
	if err := runIndexWithOptions(ctx, cmd, root, false, true, 0, ""); err != nil {
		return fmt.Errorf("failed to re-index canonical path: %w", err)
	}

	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	paths, err := metadata.GetFilePathsByProject(ctx, losingProjectID)
	if err != nil {
		return fmt.Errorf("failed to list files for losing project: %w", err)
	}
	if len(paths) == 0 {
		fmt.Printf("No file records found for project_id=%s; removing project record only.\n", losingProjectID)
		if _, err := metadata.GetProject(ctx, losingProjectID); err == nil {
			if err := metadata.DeleteProject(ctx, losingProjectID); err != nil {
				return fmt.Errorf("failed to delete losing project record: %w", err)
			}
		}
		fmt.Println("Cleanup complete.")
		return nil
	}

	fmt.Printf("Removing %d files from losing project_id=%s...\n", len(paths), losingProjectID)

	chunkIDs, err := chunkIDsForFiles(ctx, metadata, losingProjectID, paths)
	if err != nil {
		return fmt.Errorf("failed to collect chunk ids for losing project: %w", err)
	}

	if len(chunkIDs) > 0 {
		bm25BasePath := filepath.Join(dataDir, "bm25")
		bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), "")
		if err != nil {
			return fmt.Errorf("failed to open BM25 index: %w", err)
		}
		defer func() { _ = bm25.Close() }()

		if err := bm25.Delete(ctx, chunkIDs); err != nil {
			fmt.Printf("Warning: failed to remove %d chunks from BM25 index: %v\n", len(chunkIDs), err)
		}
		// Vector store orphans are left for the next compact: metadata is
		// the source of truth and search already filters results against
		// it, the same best-effort tolerance search.Engine.Delete applies.
		if err := metadata.DeleteChunks(ctx, chunkIDs); err != nil {
			return fmt.Errorf("failed to delete chunk metadata: %w", err)
		}
	}

	graphPath := filepath.Join(dataDir, "graph.db")
	if graph, graphErr := store.NewSQLiteGraphStore(graphPath); graphErr == nil {
		defer func() { _ = graph.Close() }()
		for _, p := range paths {
			if err := graph.DeleteSymbolsByFile(ctx, losingProjectID, p); err != nil {
				fmt.Printf("Warning: failed to remove graph symbols for %s: %v\n", p, err)
			}
		}
	}

	if err := metadata.DeleteFilesByProject(ctx, losingProjectID); err != nil {
		return fmt.Errorf("failed to delete file records: %w", err)
	}
	if err := metadata.DeleteProject(ctx, losingProjectID); err != nil {
		return fmt.Errorf("failed to delete losing project record: %w", err)
	}

	fmt.Printf("Merged project_id=%s into %s (project_id=%s). Cleanup complete.\n", losingProjectID, root, canonicalID)
	return nil
}

// chunkIDsForFiles looks up every chunk belonging to the given file paths
// under projectID, by resolving each path to its file record first. Chunk
// lookups are per-file because the metadata store indexes chunks by file_id,
// not project_id directly.
func chunkIDsForFiles(ctx context.Context, metadata store.MetadataStore, projectID string, paths []string) ([]string, error) {
	var ids []string
	for _, p := range paths {
		file, err := metadata.GetFileByPath(ctx, projectID, p)
		if err != nil || file == nil {
			continue
		}
		chunks, err := metadata.GetChunksByFile(ctx, file.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunks for %s: %w", p, err)
		}
		for _, c := range chunks {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
