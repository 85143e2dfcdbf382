package identity

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectID_Deterministic(t *testing.T) {
	id1, err := ProjectID("/home/user/myproject")
	require.NoError(t, err)
	id2, err := ProjectID("/home/user/myproject")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, ProjectIDLength)
}

func TestProjectID_DifferentPathsDiffer(t *testing.T) {
	a, err := ProjectID("/home/user/a")
	require.NoError(t, err)
	b, err := ProjectID("/home/user/b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestProjectID_RejectsRelativePath(t *testing.T) {
	_, err := ProjectID("relative/path")
	assert.Error(t, err)
}

func TestProjectID_TrailingSlashIsNormalized(t *testing.T) {
	a, err := ProjectID("/home/user/myproject")
	require.NoError(t, err)
	b, err := ProjectID("/home/user/myproject/")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProjectID_CaseInsensitiveOnDarwinAndWindows(t *testing.T) {
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		t.Skip("case-insensitive normalization only applies on darwin/windows")
	}
	lower, err := ProjectID("/Users/dev/Project")
	require.NoError(t, err)
	upper, err := ProjectID("/Users/dev/PROJECT")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestDataDir_RespectsExplicitOverride(t *testing.T) {
	t.Setenv("CODESEEKER_DATA_DIR", "/tmp/codeseeker-data")
	dir, err := DataDir("/home/user/project", "abc123", "central")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/codeseeker-data", "abc123"), dir)
}

func TestDataDir_LocalMode(t *testing.T) {
	dir, err := DataDir("/home/user/project", "abc123", "local")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/user/project", ".codeseeker"), dir)
}

func TestDataDir_UnknownModeErrors(t *testing.T) {
	_, err := DataDir("/home/user/project", "abc123", "remote")
	assert.Error(t, err)
}

func TestFindProjectRoot_FallsBackToStart(t *testing.T) {
	dir := t.TempDir()
	root := findProjectRoot(dir, []string{".nonexistent-marker"})
	assert.Equal(t, dir, root)
}
