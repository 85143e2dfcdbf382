package extract

import (
	"strings"

	"github.com/codeseeker/codeseeker/internal/chunk"
)

// relationshipConfig describes, for one tree-sitter grammar, which node
// types carry an import/call/heritage relationship and how to pull the
// referenced name back out of them. internal/chunk.LanguageConfig does
// the equivalent job for symbol declarations; this is its counterpart
// for the edges between symbols.
type relationshipConfig struct {
	importTypes []string
	importName  func(n *chunk.Node, source []byte) (string, bool)

	callTypes []string
	calleeOf  func(n *chunk.Node, source []byte) (string, bool)

	heritageTypes []string
	heritageOf    func(n *chunk.Node, source []byte) (targets []string, relType string)

	// argumentType/identifierType bound a much cheaper "references" pass:
	// rather than classify every identifier in the file, only identifiers
	// passed as call arguments that happen to name a symbol declared
	// elsewhere in the file are counted as a reference.
	argumentType   string
	identifierType string
}

var relationshipConfigs map[string]relationshipConfig

func init() {
	goConfig := relationshipConfig{
		importTypes:    []string{"import_spec"},
		importName:     goImportName,
		callTypes:      []string{"call_expression"},
		calleeOf:       goCalleeName,
		argumentType:   "argument_list",
		identifierType: "identifier",
	}

	tsConfig := relationshipConfig{
		importTypes:    []string{"import_statement"},
		importName:     quotedStringChild,
		callTypes:      []string{"call_expression"},
		calleeOf:       memberCalleeName,
		heritageTypes:  []string{"extends_clause", "implements_clause"},
		heritageOf:     tsHeritage,
		argumentType:   "arguments",
		identifierType: "identifier",
	}

	pyConfig := relationshipConfig{
		importTypes:    []string{"import_statement", "import_from_statement"},
		importName:     pyImportName,
		callTypes:      []string{"call"},
		calleeOf:       pyCalleeName,
		heritageTypes:  []string{"class_definition"},
		heritageOf:     pyHeritage,
		argumentType:   "argument_list",
		identifierType: "identifier",
	}

	relationshipConfigs = map[string]relationshipConfig{
		"go":         goConfig,
		"typescript": tsConfig,
		"tsx":        tsConfig,
		"javascript": tsConfig,
		"jsx":        tsConfig,
		"python":     pyConfig,
	}
}

// extract walks root once, producing every relationship this config
// knows how to recognize.
func (cfg relationshipConfig) extract(root *chunk.Node, source []byte, symbols []*ExtractedSymbol, known map[string]bool) []*Relationship {
	var rels []*Relationship

	root.Walk(func(n *chunk.Node) bool {
		line := int(n.StartPoint.Row) + 1

		switch {
		case containsType(cfg.importTypes, n.Type):
			if ref, ok := cfg.importName(n, source); ok && ref != "" {
				rels = append(rels, &Relationship{
					TargetRef:  ref,
					Type:       RelationImports,
					Confidence: ConfidenceExact,
				})
			}

		case containsType(cfg.callTypes, n.Type):
			if callee, ok := cfg.calleeOf(n, source); ok && callee != "" {
				enclosing := enclosingSymbol(symbols, line)
				rels = append(rels, &Relationship{
					SourceSymbolID: symbolIDOrEmpty(enclosing),
					TargetRef:      callee,
					Type:           RelationCalls,
					Confidence:     ConfidenceHeuristic,
				})
			}
			rels = append(rels, cfg.argumentReferences(n, source, symbols, known)...)

		case cfg.heritageOf != nil && containsType(cfg.heritageTypes, n.Type):
			targets, relType := cfg.heritageOf(n, source)
			if relType != "" {
				enclosing := enclosingSymbol(symbols, line)
				for _, t := range targets {
					rels = append(rels, &Relationship{
						SourceSymbolID: symbolIDOrEmpty(enclosing),
						TargetRef:      t,
						Type:           relType,
						Confidence:     ConfidenceExact,
					})
				}
			}
		}

		return true
	})

	return rels
}

// argumentReferences scans a call's argument list for bare identifiers
// that happen to name another symbol declared in this file. It is a
// deliberately narrow approximation of "references" relationships: wide
// enough to connect a function to values it's handed, cheap enough to
// not require resolving every identifier in the file against a symbol
// table.
func (cfg relationshipConfig) argumentReferences(callNode *chunk.Node, source []byte, symbols []*ExtractedSymbol, known map[string]bool) []*Relationship {
	if cfg.argumentType == "" || cfg.identifierType == "" {
		return nil
	}

	var refs []*Relationship
	for _, child := range callNode.Children {
		if child.Type != cfg.argumentType {
			continue
		}
		line := int(child.StartPoint.Row) + 1
		enclosing := enclosingSymbol(symbols, line)
		for _, arg := range child.Children {
			if arg.Type != cfg.identifierType {
				continue
			}
			name := arg.GetContent(source)
			if !known[name] {
				continue
			}
			refs = append(refs, &Relationship{
				SourceSymbolID: symbolIDOrEmpty(enclosing),
				TargetRef:      name,
				Type:           RelationReferences,
				Confidence:     ConfidenceHeuristic,
			})
		}
	}
	return refs
}

func goImportName(n *chunk.Node, source []byte) (string, bool) {
	for _, c := range n.Children {
		switch c.Type {
		case "interpreted_string_literal", "raw_string_literal":
			return strings.Trim(c.GetContent(source), "\"`"), true
		}
	}
	return "", false
}

func goCalleeName(n *chunk.Node, source []byte) (string, bool) {
	if len(n.Children) == 0 {
		return "", false
	}
	fn := n.Children[0]
	switch fn.Type {
	case "identifier":
		return fn.GetContent(source), true
	case "selector_expression":
		return lastChildText(fn, source), true
	}
	return "", false
}

func quotedStringChild(n *chunk.Node, source []byte) (string, bool) {
	for _, c := range n.Children {
		if c.Type == "string" {
			return strings.Trim(c.GetContent(source), "\"'"), true
		}
	}
	return "", false
}

func memberCalleeName(n *chunk.Node, source []byte) (string, bool) {
	if len(n.Children) == 0 {
		return "", false
	}
	fn := n.Children[0]
	switch fn.Type {
	case "identifier":
		return fn.GetContent(source), true
	case "member_expression":
		return lastChildText(fn, source), true
	}
	return "", false
}

func tsHeritage(n *chunk.Node, source []byte) ([]string, string) {
	relType := RelationExtends
	if n.Type == "implements_clause" {
		relType = RelationImplements
	}
	var targets []string
	for _, c := range n.Children {
		switch c.Type {
		case "identifier", "type_identifier":
			targets = append(targets, c.GetContent(source))
		}
	}
	return targets, relType
}

func pyImportName(n *chunk.Node, source []byte) (string, bool) {
	for _, c := range n.Children {
		switch c.Type {
		case "dotted_name", "aliased_import":
			return c.GetContent(source), true
		}
	}
	return "", false
}

func pyCalleeName(n *chunk.Node, source []byte) (string, bool) {
	if len(n.Children) == 0 {
		return "", false
	}
	fn := n.Children[0]
	switch fn.Type {
	case "identifier":
		return fn.GetContent(source), true
	case "attribute":
		return lastChildText(fn, source), true
	}
	return "", false
}

func pyHeritage(n *chunk.Node, source []byte) ([]string, string) {
	for _, c := range n.Children {
		if c.Type != "argument_list" {
			continue
		}
		var targets []string
		for _, arg := range c.Children {
			if arg.Type == "identifier" {
				targets = append(targets, arg.GetContent(source))
			}
		}
		return targets, RelationExtends
	}
	return nil, ""
}

func lastChildText(n *chunk.Node, source []byte) string {
	if len(n.Children) == 0 {
		return ""
	}
	return n.Children[len(n.Children)-1].GetContent(source)
}
