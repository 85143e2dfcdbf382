// Package changedetect compares a project's previously indexed file
// records against a fresh filesystem scan to decide which files actually
// need re-extraction.
package changedetect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"time"
)

// MTimeTolerance bounds how much two modification times may differ and
// still be treated as equal, absorbing filesystem and second-precision
// storage rounding differences.
const MTimeTolerance = time.Second

// Previous describes a file as it was last indexed.
type Previous struct {
	Path        string
	Size        int64
	ModTime     time.Time
	ContentHash string
}

// Candidate describes a file as seen by the current filesystem scan.
type Candidate struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ChangeSet partitions a scan into the files an index pass must act on.
type ChangeSet struct {
	Added          []string
	Modified       []string
	Deleted        []string
	UnchangedCount int
}

// Total returns the number of files requiring index writes.
func (c ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// HashFunc computes the strong content hash for a candidate path, used only
// to confirm files whose (size, mtime) looks different from what was
// recorded. Returning an error for a candidate treats it conservatively as
// modified, since the file could not be confirmed unchanged.
type HashFunc func(ctx context.Context, path string) (string, error)

// HashFile hashes a file's content with SHA-256, the strong-verification
// hash used by Detect's default wiring.
func HashFile(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}

// Detect compares previously indexed files against a current scan and
// returns the files that changed.
//
// A file whose (size, mtime) both match within MTimeTolerance is assumed
// unchanged without touching disk again. A file whose size or mtime
// differs is only provisionally "changed": hash is invoked to confirm
// the content actually differs (a touch with no edit, or a checkout that
// resets mtimes, must not force a reindex). Hash is never computed for a
// file that already passed the tentative check, keeping the common case
// (nothing changed) cheap.
func Detect(ctx context.Context, previous map[string]Previous, current map[string]Candidate, hash HashFunc) (ChangeSet, error) {
	if hash == nil {
		hash = HashFile
	}

	var cs ChangeSet

	for path, prev := range previous {
		cand, stillExists := current[path]
		if !stillExists {
			cs.Deleted = append(cs.Deleted, path)
			continue
		}

		if tentativelyUnchanged(prev, cand) {
			cs.UnchangedCount++
			continue
		}

		if prev.ContentHash == "" {
			cs.Modified = append(cs.Modified, path)
			continue
		}

		select {
		case <-ctx.Done():
			return cs, ctx.Err()
		default:
		}

		actualHash, err := hash(ctx, path)
		if err != nil || actualHash != prev.ContentHash {
			cs.Modified = append(cs.Modified, path)
			continue
		}
		cs.UnchangedCount++
	}

	for path := range current {
		if _, existed := previous[path]; !existed {
			cs.Added = append(cs.Added, path)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)

	return cs, nil
}

func tentativelyUnchanged(prev Previous, cand Candidate) bool {
	if prev.Size != cand.Size {
		return false
	}
	delta := prev.ModTime.Sub(cand.ModTime)
	if delta < 0 {
		delta = -delta
	}
	return delta <= MTimeTolerance
}
