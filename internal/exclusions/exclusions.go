// Package exclusions persists and evaluates a project's manage_index
// exclude/include rules: gitignore-compatible patterns layered on top of
// whatever the scanner's own ignore handling already filters out.
package exclusions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codeseeker/codeseeker/internal/gitignore"
)

const rulesFileName = "exclusions.json"

// Rule is one manage_index directive: a gitignore-compatible pattern,
// plus why it was added.
type Rule struct {
	Pattern string    `json:"pattern"`
	Reason  string    `json:"reason,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// document is the on-disk shape: separate exclude and include pattern
// lists, since "include" re-admits a path an exclude pattern would
// otherwise hide (mirroring gitignore's own negation, but scoped as an
// explicit second list so `list` can report them distinctly).
type document struct {
	Excludes []Rule `json:"excludes"`
	Includes []Rule `json:"includes"`
}

// Policy persists a project's exclusion rules and answers whether a
// given relative path is currently excluded from indexing.
type Policy struct {
	dataDir string
}

// NewPolicy returns a policy rooted at the project's data directory.
func NewPolicy(dataDir string) *Policy {
	return &Policy{dataDir: dataDir}
}

func (p *Policy) path() string {
	return filepath.Join(p.dataDir, rulesFileName)
}

func (p *Policy) load() (document, error) {
	data, err := os.ReadFile(p.path())
	if os.IsNotExist(err) {
		return document{}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("failed to read exclusion rules: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("failed to parse exclusion rules: %w", err)
	}
	return doc, nil
}

func (p *Policy) save(doc document) error {
	if err := os.MkdirAll(p.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal exclusion rules: %w", err)
	}

	path := p.path()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write exclusion rules: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save exclusion rules: %w", err)
	}
	return nil
}

// Exclude adds a pattern to the exclude list. Adding a pattern already
// present is a no-op rather than a duplicate entry.
func (p *Policy) Exclude(pattern, reason string) error {
	return p.addPattern(pattern, reason, true)
}

// Include adds a pattern to the include list, re-admitting paths an
// exclude pattern would otherwise hide.
func (p *Policy) Include(pattern, reason string) error {
	return p.addPattern(pattern, reason, false)
}

func (p *Policy) addPattern(pattern, reason string, exclude bool) error {
	if pattern == "" {
		return fmt.Errorf("exclusions: pattern must not be empty")
	}

	doc, err := p.load()
	if err != nil {
		return err
	}

	rules := &doc.Excludes
	if !exclude {
		rules = &doc.Includes
	}

	for _, r := range *rules {
		if r.Pattern == pattern {
			return nil
		}
	}
	*rules = append(*rules, Rule{Pattern: pattern, Reason: reason, AddedAt: time.Now()})

	return p.save(doc)
}

// List returns the current exclude and include rules, each sorted by
// pattern for stable output.
func (p *Policy) List() (excludes, includes []Rule, err error) {
	doc, err := p.load()
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(doc.Excludes, func(i, j int) bool { return doc.Excludes[i].Pattern < doc.Excludes[j].Pattern })
	sort.Slice(doc.Includes, func(i, j int) bool { return doc.Includes[i].Pattern < doc.Includes[j].Pattern })
	return doc.Excludes, doc.Includes, nil
}

// Matcher compiles the current rules into a gitignore.Matcher: exclude
// patterns are added first, include patterns follow as negations, so a
// later include always re-admits a path an earlier exclude hid (the
// same last-match-wins semantics gitignore itself uses).
func (p *Policy) Matcher() (*gitignore.Matcher, error) {
	doc, err := p.load()
	if err != nil {
		return nil, err
	}

	m := gitignore.New()
	for _, r := range doc.Excludes {
		m.AddPattern(r.Pattern)
	}
	for _, r := range doc.Includes {
		pattern := r.Pattern
		if len(pattern) == 0 || pattern[0] != '!' {
			pattern = "!" + pattern
		}
		m.AddPattern(pattern)
	}
	return m, nil
}

// IsExcluded reports whether relPath should be skipped during indexing
// under the project's current exclusion rules.
func (p *Policy) IsExcluded(relPath string, isDir bool) (bool, error) {
	m, err := p.Matcher()
	if err != nil {
		return false, err
	}
	return m.Match(relPath, isDir), nil
}
