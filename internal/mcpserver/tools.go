package mcpserver

// ProjectInfo contains information about the indexed project.
type ProjectInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}

// SearchCodeInput defines the input schema for the search_code tool.
type SearchCodeInput struct {
	Project string `json:"project,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	Query   string `json:"query" jsonschema:"the code search query to execute"`
	K       int    `json:"k,omitempty" jsonschema:"maximum number of results, default 10"`
	Intent  string `json:"intent,omitempty" jsonschema:"overview, fix, analyze, explain, modify, create, or general; controls how much source is returned per result"`
}

// CodeResult is one search_code / find_and_read match.
type CodeResult struct {
	FilePath            string   `json:"file_path"`
	StartLine           int      `json:"start_line"`
	EndLine             int      `json:"end_line"`
	Score               float64  `json:"score"`
	Snippet             string   `json:"snippet,omitempty" jsonschema:"source lines, truncated per the intent's line budget; omitted for overview/general intent or files over 1000 lines"`
	SourceContributions []string `json:"source_contributions,omitempty" jsonschema:"which sub-queries (vector, text, path) this result was found by"`
	Symbol              string   `json:"symbol,omitempty"`
	SymbolType          string   `json:"symbol_type,omitempty"`
	Signature           string   `json:"signature,omitempty"`
}

// SearchCodeOutput defines the output schema for the search_code tool.
type SearchCodeOutput struct {
	Results []CodeResult `json:"results"`
	Reason  string       `json:"reason,omitempty" jsonschema:"set when results is empty: not_indexed, no_matches, or filters_excluded_all"`
}

// FindAndReadInput defines the input schema for the find_and_read tool.
type FindAndReadInput struct {
	Project string `json:"project,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	Query   string `json:"query" jsonschema:"the code search query to execute"`
	K       int    `json:"k,omitempty" jsonschema:"maximum number of results, default 10"`
}

// FileSnippet is one find_and_read result: a match plus the file bytes it points to.
type FileSnippet struct {
	FilePath string `json:"file_path"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Content  string `json:"content"`
}

// FindAndReadOutput defines the output schema for the find_and_read tool.
type FindAndReadOutput struct {
	Results []FileSnippet `json:"results"`
	Reason  string        `json:"reason,omitempty"`
}

// GetFileContextInput defines the input schema for the get_file_context tool.
type GetFileContextInput struct {
	Project           string `json:"project,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	FilePath          string `json:"file_path" jsonschema:"project-relative path to the file"`
	NeighborhoodDepth int    `json:"neighborhood_depth,omitempty" jsonschema:"graph hops to expand for related files, default 1"`
}

// RelatedFile is one file reachable from the requested file via the code graph.
type RelatedFile struct {
	FilePath string   `json:"file_path"`
	Via      []string `json:"via" jsonschema:"relationship types connecting it to the requested file (imports, calls, extends, implements, references)"`
}

// GetFileContextOutput defines the output schema for the get_file_context tool.
type GetFileContextOutput struct {
	FilePath     string        `json:"file_path"`
	Content      string        `json:"content"`
	RelatedFiles []RelatedFile `json:"related_files"`
}

// GetCodeRelationshipsInput defines the input schema for the get_code_relationships tool.
type GetCodeRelationshipsInput struct {
	Project          string   `json:"project,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	FilepathOrSymbol string   `json:"filepath_or_symbol" jsonschema:"a project-relative file path or a symbol_id returned by a prior search"`
	Depth            int      `json:"depth,omitempty" jsonschema:"traversal depth, 1-3, default 1"`
	Direction        string   `json:"direction,omitempty" jsonschema:"outgoing, incoming, or both; default outgoing"`
	Types            []string `json:"types,omitempty" jsonschema:"restrict to these edge types: imports, calls, extends, implements, references"`
}

// RelationshipNode is one node in a get_code_relationships subgraph.
type RelationshipNode struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	FilePath string `json:"file_path,omitempty"`
}

// RelationshipEdge is one edge in a get_code_relationships subgraph.
type RelationshipEdge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Type       string `json:"type"`
	Confidence string `json:"confidence"`
}

// GetCodeRelationshipsOutput defines the output schema for the get_code_relationships tool.
type GetCodeRelationshipsOutput struct {
	Nodes []RelationshipNode `json:"nodes"`
	Edges []RelationshipEdge `json:"edges"`
}

// GetCodingStandardsInput defines the input schema for the get_coding_standards tool.
type GetCodingStandardsInput struct {
	Project  string `json:"project,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	Category string `json:"category,omitempty" jsonschema:"restrict to one category: validation, error-handling, logging, testing, react-patterns, state-management, api-patterns"`
}

// StandardRuleOutput is one surfaced convention within a category.
type StandardRuleOutput struct {
	Description string  `json:"description"`
	Example     string  `json:"example,omitempty"`
	UsageCount  int     `json:"usage_count"`
	FileCount   int     `json:"file_count"`
	Confidence  float64 `json:"confidence"`
}

// StandardCategoryOutput is one mined category of conventions.
type StandardCategoryOutput struct {
	Category string               `json:"category"`
	Rules    []StandardRuleOutput `json:"rules"`
}

// GetCodingStandardsOutput defines the output schema for the get_coding_standards tool.
type GetCodingStandardsOutput struct {
	Categories []StandardCategoryOutput `json:"categories"`
	UpdatedAt  string                   `json:"updated_at,omitempty"`
}

// IndexProjectInput defines the input schema for the index_project tool.
type IndexProjectInput struct {
	Path string `json:"path,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	Full bool   `json:"full,omitempty" jsonschema:"force a full reindex instead of an incremental pass"`
}

// IndexProjectOutput defines the output schema for the index_project tool.
type IndexProjectOutput struct {
	Status         string  `json:"status" jsonschema:"complete, partial, or cancelled"`
	Files          int     `json:"files"`
	Chunks         int     `json:"chunks"`
	Warnings       int     `json:"warnings"`
	Errors         int     `json:"errors"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// NotifyFileChangesInput defines the input schema for the notify_file_changes tool.
type NotifyFileChangesInput struct {
	Project      string   `json:"project,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	Paths        []string `json:"paths" jsonschema:"project-relative paths that changed"`
	FullReindex  bool     `json:"full_reindex,omitempty" jsonschema:"ignore paths and run a full reindex instead"`
}

// NotifyFileChangesOutput defines the output schema for the notify_file_changes tool.
type NotifyFileChangesOutput struct {
	Status        string `json:"status"`
	FilesAccepted int    `json:"files_accepted"`
}

// ManageIndexInput defines the input schema for the manage_index tool.
type ManageIndexInput struct {
	Project string   `json:"project,omitempty" jsonschema:"project path; defaults to the server's configured root"`
	Action  string   `json:"action" jsonschema:"exclude, include, or list"`
	Paths   []string `json:"paths,omitempty" jsonschema:"gitignore-compatible patterns; required for exclude/include"`
	Reason  string   `json:"reason,omitempty" jsonschema:"why this rule was added"`
}

// ExclusionRuleOutput is one manage_index rule.
type ExclusionRuleOutput struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason,omitempty"`
	AddedAt string `json:"added_at"`
}

// ManageIndexOutput defines the output schema for the manage_index tool.
type ManageIndexOutput struct {
	Excludes []ExclusionRuleOutput `json:"excludes"`
	Includes []ExclusionRuleOutput `json:"includes"`
}
