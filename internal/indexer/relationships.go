package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeseeker/codeseeker/internal/extract"
	"github.com/codeseeker/codeseeker/internal/standards"
	"github.com/codeseeker/codeseeker/internal/store"
)

// fileExtraction is one file's Language Extractor output, kept alongside
// its raw content so the standards pass can re-scan it without rereading
// the file from disk.
type fileExtraction struct {
	path     string
	language string
	content  string
	result   *extract.Extraction
}

// extractFile runs the Language Extractor over one already-read file. A
// parser failure never aborts the run: it's logged and the file simply
// contributes no symbols or relationships, matching §4.4's failure
// semantics (the FileRecord is still written by the caller).
func (r *Runner) extractFile(ctx context.Context, path, language string, content []byte) fileExtraction {
	result := r.extractor.Extract(ctx, path, content, language)
	if result.Warning != "" {
		slog.Debug("extract_warning", slog.String("file", path), slog.String("warning", result.Warning))
	}
	return fileExtraction{path: path, language: language, content: string(content), result: result}
}

// buildGraph resolves each relationship's bare TargetRef against the
// symbol names found anywhere else in this pass and writes the
// resulting nodes and edges to the graph store. A TargetRef that
// resolves to nothing becomes an "external:<name>" node rather than
// being dropped, so imports of third-party packages and calls into
// code outside the project still show up as edges, just with a lower
// confidence than an exact in-project resolution.
func (r *Runner) buildGraph(ctx context.Context, projectID string, extractions []fileExtraction) error {
	if r.graph == nil {
		return nil
	}

	nameToID := make(map[string]string)
	var nodes []*store.GraphNode
	for _, fe := range extractions {
		for _, sym := range fe.result.Symbols {
			nameToID[sym.Name] = sym.ID
			nodes = append(nodes, &store.GraphNode{
				ProjectID: projectID,
				ID:        sym.ID,
				Kind:      string(sym.Type),
				Name:      sym.Name,
				FilePath:  fe.path,
			})
		}
	}

	var edges []*store.GraphEdge
	for _, fe := range extractions {
		for _, rel := range fe.result.Relationships {
			source := rel.SourceSymbolID
			if source == "" {
				source = "external:" + fe.path
			}

			target := rel.TargetRef
			confidence := rel.Confidence
			if id, ok := nameToID[rel.TargetRef]; ok {
				target = id
			} else {
				target = "external:" + rel.TargetRef
				confidence = extract.ConfidenceHeuristic
			}

			edges = append(edges, &store.GraphEdge{
				ProjectID:  projectID,
				SourceID:   source,
				TargetID:   target,
				Type:       rel.Type,
				Confidence: confidence,
			})
		}
	}

	if err := r.graph.UpsertNodes(ctx, nodes); err != nil {
		return fmt.Errorf("failed to upsert graph nodes: %w", err)
	}
	if err := r.graph.UpsertEdges(ctx, edges); err != nil {
		return fmt.Errorf("failed to upsert graph edges: %w", err)
	}

	slog.Info("index_graph_complete", slog.Int("nodes", len(nodes)), slog.Int("edges", len(edges)))
	return nil
}

// mineStandards regenerates the project's coding standards profile from
// this pass's extractions, merging into whatever profile already exists
// category by category.
func (r *Runner) mineStandards(projectID string, extractions []fileExtraction) error {
	if r.standards == nil {
		return nil
	}

	inputs := make([]standards.ChunkInput, 0, len(extractions))
	for _, fe := range extractions {
		var calls, imports []string
		for _, rel := range fe.result.Relationships {
			switch rel.Type {
			case extract.RelationCalls:
				calls = append(calls, rel.TargetRef)
			case extract.RelationImports:
				imports = append(imports, rel.TargetRef)
			}
		}
		inputs = append(inputs, standards.ChunkInput{
			FilePath: fe.path,
			Content:  fe.content,
			Calls:    calls,
			Imports:  imports,
		})
	}

	miner := standards.NewMiner()
	categories := miner.MineCategories(inputs)

	doc, err := r.standards.Load()
	if err != nil {
		return fmt.Errorf("failed to load standards document: %w", err)
	}
	doc.ProjectID = projectID
	for _, cat := range categories {
		doc.ReplaceCategory(cat)
	}
	doc.UpdatedAt = time.Now()

	if err := r.standards.Save(doc); err != nil {
		return fmt.Errorf("failed to save standards document: %w", err)
	}

	slog.Info("index_standards_complete", slog.Int("categories", len(categories)))
	return nil
}
