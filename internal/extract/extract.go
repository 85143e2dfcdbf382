// Package extract derives symbols and code relationships from a parsed
// file, reusing internal/chunk's tree-sitter grammars. Where chunk's
// SymbolExtractor stops at "what symbols exist", this package also asks
// "what does each symbol import, call, extend, and reference".
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/codeseeker/codeseeker/internal/chunk"
)

// Relationship confidence levels. Exact relationships come straight from
// unambiguous syntax (an import path, an explicit extends clause).
// Heuristic relationships require resolving a bare name against a symbol
// table built elsewhere and may turn out to point at nothing.
const (
	ConfidenceExact     = "exact"
	ConfidenceHeuristic = "heuristic"
)

// Relationship types.
const (
	RelationImports    = "imports"
	RelationCalls      = "calls"
	RelationExtends    = "extends"
	RelationImplements = "implements"
	RelationReferences = "references"
)

// ExtractedSymbol is a chunk.Symbol enriched with the identity data the
// graph store needs: a stable ID and the chain of enclosing symbols
// (outermost first) used to derive it.
type ExtractedSymbol struct {
	*chunk.Symbol
	ID             string
	EnclosingChain string
}

// Relationship is a directed edge discovered while parsing one file.
// TargetRef is the name as written in source (an import path, a called
// function's name, a base class). Resolving it to a concrete symbol_id
// or external node happens later, in the indexer's resolution pass, once
// every file in the project has been extracted.
type Relationship struct {
	SourceSymbolID string
	TargetRef      string
	Type           string
	Confidence     string
}

// Extraction is everything the extractor produces from one file.
type Extraction struct {
	Symbols       []*ExtractedSymbol
	Relationships []*Relationship
	Warning       string
}

// Extractor derives symbols and relationships from source files, one
// file at a time.
type Extractor struct {
	parser  *chunk.Parser
	symbols *chunk.SymbolExtractor
}

// NewExtractor builds an extractor over the default language registry.
func NewExtractor() *Extractor {
	registry := chunk.DefaultRegistry()
	return &Extractor{
		parser:  chunk.NewParserWithRegistry(registry),
		symbols: chunk.NewSymbolExtractorWithRegistry(registry),
	}
}

// Close releases the underlying tree-sitter parser.
func (e *Extractor) Close() {
	e.parser.Close()
}

// Extract parses source and derives its symbols and relationships.
// Neither an unsupported language nor a parser failure is treated as a
// fatal error: both yield an empty Extraction carrying a Warning, so the
// caller can still record the file as indexed and move on rather than
// retrying it forever.
func (e *Extractor) Extract(ctx context.Context, relativePath string, source []byte, language string) (result *Extraction) {
	result = &Extraction{}
	defer func() {
		if r := recover(); r != nil {
			result = &Extraction{Warning: fmt.Sprintf("extraction panic on %s: %v", relativePath, r)}
		}
	}()

	tree, err := e.parser.Parse(ctx, source, language)
	if err != nil {
		result.Warning = err.Error()
		return result
	}
	if tree.Root == nil {
		result.Warning = fmt.Sprintf("empty parse tree for %s", relativePath)
		return result
	}

	flat := e.symbols.Extract(tree, source)
	extracted := buildExtractedSymbols(relativePath, flat)
	result.Symbols = extracted

	cfg, ok := relationshipConfigs[language]
	if !ok {
		return result
	}

	known := make(map[string]bool, len(flat))
	for _, sym := range flat {
		known[sym.Name] = true
	}

	result.Relationships = cfg.extract(tree.Root, source, extracted, known)
	return result
}

// SymbolID derives the stable identifier for a symbol from its position
// in the project and its identity: the file it lives in, the chain of
// symbols enclosing it, its name, and its kind. A rename therefore
// produces a new ID rather than preserving the old one; that's
// intentional, the caller is expected to treat it as a new symbol.
func SymbolID(relativePath, enclosingChain, name, kind string) string {
	sum := sha256.Sum256([]byte(relativePath + "\x00" + enclosingChain + "\x00" + name + "\x00" + kind))
	return hex.EncodeToString(sum[:])[:16]
}

func buildExtractedSymbols(relativePath string, symbols []*chunk.Symbol) []*ExtractedSymbol {
	result := make([]*ExtractedSymbol, len(symbols))
	for i, sym := range symbols {
		chain := enclosingChain(symbols, sym)
		result[i] = &ExtractedSymbol{
			Symbol:         sym,
			ID:             SymbolID(relativePath, chain, sym.Name, string(sym.Type)),
			EnclosingChain: chain,
		}
	}
	return result
}

// enclosingChain returns the names of every symbol whose range strictly
// contains target's range, from outermost to innermost. chunk.Node
// carries no parent pointer, so ancestry is reconstructed from line
// ranges rather than walked directly.
func enclosingChain(all []*chunk.Symbol, target *chunk.Symbol) string {
	var enclosers []*chunk.Symbol
	for _, s := range all {
		if s == target {
			continue
		}
		if strictlyContains(s, target) {
			enclosers = append(enclosers, s)
		}
	}
	sort.Slice(enclosers, func(i, j int) bool {
		return symbolSpan(enclosers[i]) > symbolSpan(enclosers[j])
	})
	names := make([]string, len(enclosers))
	for i, s := range enclosers {
		names[i] = s.Name
	}
	return strings.Join(names, "/")
}

func strictlyContains(outer, inner *chunk.Symbol) bool {
	if outer.StartLine == inner.StartLine && outer.EndLine == inner.EndLine {
		return false
	}
	return outer.StartLine <= inner.StartLine && outer.EndLine >= inner.EndLine
}

func symbolSpan(s *chunk.Symbol) int {
	return s.EndLine - s.StartLine
}

// enclosingSymbol finds the innermost extracted symbol whose range
// contains line, the same line-containment trick enclosingChain uses.
func enclosingSymbol(symbols []*ExtractedSymbol, line int) *ExtractedSymbol {
	var best *ExtractedSymbol
	for _, s := range symbols {
		if s.StartLine <= line && line <= s.EndLine {
			if best == nil || (s.EndLine-s.StartLine) < (best.EndLine-best.StartLine) {
				best = s
			}
		}
	}
	return best
}

func symbolIDOrEmpty(s *ExtractedSymbol) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func containsType(types []string, t string) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
