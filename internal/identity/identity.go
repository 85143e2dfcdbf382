// Package identity resolves a project's canonical identity: its deterministic
// project ID, its per-project data directory, and the advisory lock that
// serializes indexing passes against that directory.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ProjectIDLength is the number of hex characters kept from the SHA-256
// digest of the normalized absolute project path.
const ProjectIDLength = 32

// ProjectID computes the deterministic identifier for a project rooted at
// absPath. The path is normalized (cleaned, and on case-insensitive
// filesystems lower-cased) before hashing so that the same project always
// resolves to the same ID regardless of how it was referenced.
func ProjectID(absPath string) (string, error) {
	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("identity: path must be absolute: %s", absPath)
	}
	normalized := normalize(absPath)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:ProjectIDLength], nil
}

// normalize applies platform-aware path normalization before hashing.
func normalize(absPath string) string {
	cleaned := filepath.Clean(absPath)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		// Both the default Windows and macOS filesystems are case-insensitive.
		cleaned = strings.ToLower(cleaned)
	}
	return filepath.ToSlash(cleaned)
}

// DataDir returns the storage directory for a project, honoring
// CODESEEKER_DATA_DIR and CODESEEKER_STORAGE_MODE overrides. storageMode
// "local" places data under <project>/.codeseeker, "central" (default)
// places it under the user's data directory keyed by project ID.
func DataDir(projectRoot, projectID, storageMode string) (string, error) {
	if override := os.Getenv("CODESEEKER_DATA_DIR"); override != "" {
		return filepath.Join(override, projectID), nil
	}

	mode := storageMode
	if envMode := os.Getenv("CODESEEKER_STORAGE_MODE"); envMode != "" {
		mode = envMode
	}

	switch mode {
	case "local":
		return filepath.Join(projectRoot, ".codeseeker"), nil
	case "central", "":
		base, err := centralBaseDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, projectID), nil
	default:
		return "", fmt.Errorf("identity: unknown storage mode %q", mode)
	}
}

// centralBaseDir resolves the XDG-aware data directory root for CodeSeeker.
func centralBaseDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "codeseeker", "projects"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("identity: resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "codeseeker", "projects"), nil
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "codeseeker", "projects"), nil
		}
		return filepath.Join(home, "AppData", "Local", "codeseeker", "projects"), nil
	default:
		return filepath.Join(home, ".local", "share", "codeseeker", "projects"), nil
	}
}

// ResolveProject resolves the absolute root, project ID, and data directory
// for the given path (which may be relative or point at a file inside the
// project). rootMarkers are directory names whose presence stops upward
// traversal (e.g. ".git"); if none match, path itself is treated as root.
func ResolveProject(path, storageMode string, rootMarkers []string) (root, projectID, dataDir string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", "", fmt.Errorf("identity: resolve absolute path: %w", err)
	}

	info, statErr := os.Stat(abs)
	if statErr == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	root = findProjectRoot(abs, rootMarkers)
	projectID, err = ProjectID(root)
	if err != nil {
		return "", "", "", err
	}
	dataDir, err = DataDir(root, projectID, storageMode)
	if err != nil {
		return "", "", "", err
	}
	return root, projectID, dataDir, nil
}

// findProjectRoot walks upward from start looking for any of rootMarkers.
// Falls back to start when no marker is found.
func findProjectRoot(start string, rootMarkers []string) string {
	dir := start
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// DefaultRootMarkers are checked, in order, when locating a project root.
var DefaultRootMarkers = []string{".git", "go.mod", "package.json", "pyproject.toml", "Cargo.toml"}
