package mcpserver

import (
	"path/filepath"
	"strings"

	"github.com/codeseeker/codeseeker/internal/search"
)

// snippetLineBudget is the per-intent snippet policy: how many lines of
// source a search_code result carries back, beyond which the caller is
// expected to fetch the file itself (find_and_read, or
// get_file_context). A match past maxSnippetFileLines never gets a
// snippet regardless of intent, on the theory that a result that deep
// into a huge generated or vendored file is rarely worth inlining.
func snippetLineBudget(intent string) int {
	switch intent {
	case "fix":
		return 80
	case "analyze", "explain":
		return 40
	case "modify", "create":
		return 20
	default: // overview, general, and unrecognized intents
		return 0
	}
}

const maxSnippetFileLines = 1000

// toCodeResults converts search results to the search_code / MCP output
// shape, truncating each snippet to the intent's line budget.
func toCodeResults(results []*search.SearchResult, intent string) []CodeResult {
	budget := snippetLineBudget(intent)

	out := make([]CodeResult, 0, len(results))
	for _, r := range results {
		if r == nil || r.Chunk == nil {
			continue
		}

		cr := CodeResult{
			FilePath:  r.Chunk.FilePath,
			StartLine: r.Chunk.StartLine,
			EndLine:   r.Chunk.EndLine,
			Score:     r.Score,
		}
		if len(r.Chunk.Symbols) > 0 {
			sym := r.Chunk.Symbols[0]
			cr.Symbol = sym.Name
			cr.SymbolType = string(sym.Type)
			cr.Signature = sym.Signature
		}
		if r.BM25Rank > 0 {
			cr.SourceContributions = append(cr.SourceContributions, "text")
		}
		if r.VecRank > 0 {
			cr.SourceContributions = append(cr.SourceContributions, "vector")
		}

		if budget > 0 && r.Chunk.EndLine <= maxSnippetFileLines {
			content := r.Chunk.RawContent
			if content == "" {
				content = r.Chunk.Content
			}
			cr.Snippet = truncateLines(content, budget)
		}

		out = append(out, cr)
	}
	return out
}

// truncateLines keeps at most n lines of s, appending an ellipsis marker
// when content was cut.
func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}

// joinProjectPath resolves a project-relative path against root,
// tolerating an empty root (returns relPath unchanged).
func joinProjectPath(root, relPath string) string {
	if root == "" {
		return relPath
	}
	return filepath.Join(root, relPath)
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
