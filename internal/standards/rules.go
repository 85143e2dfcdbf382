package standards

import "regexp"

// Category names, normative per the standards profile.
const (
	CategoryValidation      = "validation"
	CategoryErrorHandling   = "error-handling"
	CategoryLogging         = "logging"
	CategoryTesting         = "testing"
	CategoryReactPatterns   = "react-patterns"
	CategoryStateManagement = "state-management"
	CategoryAPIPatterns     = "api-patterns"
)

// ChunkInput is the slice of a chunk's extraction the miner needs:
// enough to recognize a convention without re-parsing the file.
type ChunkInput struct {
	FilePath string
	Content  string
	Calls    []string // callee names from extract.RelationCalls edges
	Imports  []string // import targets from extract.RelationImports edges
}

// rule recognizes one recurring pattern within a category. Matches
// returns the concept it recognized ("email", "zod", ...) and a short
// snippet to keep as an example, or ok=false when the chunk doesn't
// exhibit the pattern.
type rule struct {
	category    string
	concept     string
	description string
	matches     func(ChunkInput) (snippet string, ok bool)
}

func containsCall(calls []string, names ...string) (string, bool) {
	for _, c := range calls {
		for _, name := range names {
			if c == name {
				return c, true
			}
		}
	}
	return "", false
}

func containsImport(imports []string, substrs ...string) (string, bool) {
	for _, imp := range imports {
		for _, s := range substrs {
			if containsFold(imp, s) {
				return imp, true
			}
		}
	}
	return "", false
}

func containsFold(s, substr string) bool {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(substr)).MatchString(s)
}

var (
	errorfWrapPattern = regexp.MustCompile(`fmt\.Errorf\([^)]*%w`)
	jsonErrorPattern  = regexp.MustCompile(`res(?:ponse)?\.status\(\s*\d+\s*\)\.json\(\s*\{\s*error`)
	routeHandlerGo    = regexp.MustCompile(`(?:router|mux|r)\.(?:Get|Post|Put|Delete|Patch)\(`)
	routeHandlerPy    = regexp.MustCompile(`@app\.route\(`)
)

// builtinRules is the declarative recognition ruleset, one entry per
// recurring pattern the miner knows how to name. New conventions are
// added here, not by teaching the aggregation logic anything new.
var builtinRules = []rule{
	{
		category:    CategoryValidation,
		concept:     "email",
		description: "email addresses validated with a dedicated isEmail check",
		matches: func(c ChunkInput) (string, bool) {
			return containsCall(c.Calls, "isEmail", "IsEmail")
		},
	},
	{
		category:    CategoryValidation,
		concept:     "schema",
		description: "input validated against a zod schema",
		matches: func(c ChunkInput) (string, bool) {
			return containsImport(c.Imports, "zod")
		},
	},
	{
		category:    CategoryErrorHandling,
		concept:     "wrapped-errors",
		description: "errors wrapped with fmt.Errorf and %w",
		matches: func(c ChunkInput) (string, bool) {
			if m := errorfWrapPattern.FindString(c.Content); m != "" {
				return m, true
			}
			return "", false
		},
	},
	{
		category:    CategoryErrorHandling,
		concept:     "json-error-shape",
		description: "HTTP errors returned as {error: ...} JSON bodies",
		matches: func(c ChunkInput) (string, bool) {
			if m := jsonErrorPattern.FindString(c.Content); m != "" {
				return m, true
			}
			return "", false
		},
	},
	{
		category:    CategoryLogging,
		concept:     "structured-logger",
		description: "structured logging via a dedicated logger call",
		matches: func(c ChunkInput) (string, bool) {
			if s, ok := containsCall(c.Calls, "Error", "Warn", "Info", "Debug"); ok {
				return s, true
			}
			return containsImport(c.Imports, "slog", "zerolog", "logrus", "zap")
		},
	},
	{
		category:    CategoryTesting,
		concept:     "assertion-library",
		description: "assertions via a shared testing/assertion library",
		matches: func(c ChunkInput) (string, bool) {
			if s, ok := containsCall(c.Calls, "NoError", "Equal", "True", "False"); ok {
				return s, true
			}
			return containsImport(c.Imports, "testify", "jest", "pytest", "chai")
		},
	},
	{
		category:    CategoryReactPatterns,
		concept:     "hooks",
		description: "component state managed via React hooks",
		matches: func(c ChunkInput) (string, bool) {
			return containsCall(c.Calls, "useState", "useEffect", "useMemo", "useCallback")
		},
	},
	{
		category:    CategoryStateManagement,
		concept:     "store-library",
		description: "application state managed via a dedicated store library",
		matches: func(c ChunkInput) (string, bool) {
			return containsImport(c.Imports, "redux", "zustand", "mobx", "recoil")
		},
	},
	{
		category:    CategoryAPIPatterns,
		concept:     "route-handler",
		description: "HTTP routes registered through a shared router",
		matches: func(c ChunkInput) (string, bool) {
			if m := routeHandlerGo.FindString(c.Content); m != "" {
				return m, true
			}
			if m := routeHandlerPy.FindString(c.Content); m != "" {
				return m, true
			}
			return "", false
		},
	},
}
