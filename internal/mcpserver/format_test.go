package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeseeker/codeseeker/internal/search"
	"github.com/codeseeker/codeseeker/internal/store"
)

func TestSnippetLineBudget(t *testing.T) {
	tests := []struct {
		intent string
		want   int
	}{
		{"fix", 80},
		{"analyze", 40},
		{"explain", 40},
		{"modify", 20},
		{"create", 20},
		{"overview", 0},
		{"general", 0},
		{"", 0},
		{"unrecognized", 0},
	}

	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			assert.Equal(t, tt.want, snippetLineBudget(tt.intent))
		})
	}
}

func TestTruncateLines_ShortContentUnchanged(t *testing.T) {
	s := "line1\nline2\nline3"

	got := truncateLines(s, 10)

	assert.Equal(t, s, got)
}

func TestTruncateLines_LongContentTruncatedWithEllipsis(t *testing.T) {
	s := "line1\nline2\nline3\nline4"

	got := truncateLines(s, 2)

	assert.Equal(t, "line1\nline2\n...", got)
}

func TestToCodeResults_SkipsNilChunksAndResults(t *testing.T) {
	results := []*search.SearchResult{
		nil,
		{Chunk: nil, Score: 0.5},
		{Chunk: &store.Chunk{FilePath: "a.go", EndLine: 5}, Score: 0.9},
	}

	out := toCodeResults(results, "fix")

	assert.Len(t, out, 1)
	assert.Equal(t, "a.go", out[0].FilePath)
}

func TestToCodeResults_PreservesScoreAndLines(t *testing.T) {
	results := []*search.SearchResult{
		{Chunk: &store.Chunk{FilePath: "a.go", StartLine: 10, EndLine: 15}, Score: 0.77},
	}

	out := toCodeResults(results, "general")

	assert.Equal(t, 10, out[0].StartLine)
	assert.Equal(t, 15, out[0].EndLine)
	assert.Equal(t, 0.77, out[0].Score)
}

func TestJoinProjectPath_EmptyRootReturnsRelPathUnchanged(t *testing.T) {
	assert.Equal(t, "src/main.go", joinProjectPath("", "src/main.go"))
}

func TestJoinProjectPath_JoinsWithRoot(t *testing.T) {
	assert.Equal(t, "/repo/src/main.go", joinProjectPath("/repo", "src/main.go"))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		defaultVal int
		min        int
		max        int
		want       int
	}{
		{"zero uses default", 0, 10, 1, 50, 10},
		{"negative uses default", -5, 10, 1, 50, 10},
		{"above max clamps to max", 100, 10, 1, 50, 50},
		{"valid value unchanged", 25, 10, 1, 50, 25},
		{"at min boundary", 1, 10, 1, 50, 1},
		{"at max boundary", 50, 10, 1, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampLimit(tt.limit, tt.defaultVal, tt.min, tt.max)
			assert.Equal(t, tt.want, got)
		})
	}
}
