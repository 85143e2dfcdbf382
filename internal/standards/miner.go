// Package standards mines recurring implementation conventions out of a
// project's indexed chunks — validation helpers, error shapes, logging
// calls, test frameworks, hook usage — into the per-project standards
// profile that internal/store.StandardsStore persists.
package standards

import (
	"log/slog"
	"sort"
	"time"

	"github.com/codeseeker/codeseeker/internal/store"
)

// MinUsageCount is the spec's floor for a candidate to be surfaced
// publicly: a pattern seen once is noise, not a convention.
const MinUsageCount = 2

// candidate accumulates matches for one (category, concept) pair while
// scanning chunks, before being collapsed into a store.StandardRule.
type candidate struct {
	description string
	usageCount  int
	files       map[string]bool
	example     string
}

// Miner aggregates recognition signals across a project's chunks into
// ranked standards candidates, one category at a time.
type Miner struct {
	rules []rule
}

// NewMiner builds a miner over the builtin recognition ruleset.
func NewMiner() *Miner {
	return &Miner{rules: builtinRules}
}

// MineCategories scans chunks for every category's rules and returns one
// store.StandardCategory per category that produced at least one
// surfaced candidate. A panic while mining a single category is caught
// and logged; it does not abort the other categories, and the caller is
// expected to simply keep that category's prior state (the category is
// absent from the result, so StandardsDocument.ReplaceCategory never
// touches it).
func (m *Miner) MineCategories(chunks []ChunkInput) []store.StandardCategory {
	byCategory := make(map[string][]rule)
	for _, r := range m.rules {
		byCategory[r.category] = append(byCategory[r.category], r)
	}

	var categories []store.StandardCategory
	for category, rules := range byCategory {
		cat, ok := mineCategorySafe(category, rules, chunks)
		if ok {
			categories = append(categories, cat)
		}
	}

	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories
}

func mineCategorySafe(category string, rules []rule, chunks []ChunkInput) (cat store.StandardCategory, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("standards: mining category panicked, retaining prior state",
				"category", category, "panic", r)
			ok = false
		}
	}()
	return mineCategory(category, rules, chunks)
}

func mineCategory(category string, rules []rule, chunks []ChunkInput) (store.StandardCategory, bool) {
	candidates := make(map[string]*candidate)
	filesTouched := make(map[string]bool)

	for _, chunk := range chunks {
		for _, r := range rules {
			snippet, matched := r.matches(chunk)
			if !matched {
				continue
			}
			filesTouched[chunk.FilePath] = true

			c, exists := candidates[r.concept]
			if !exists {
				c = &candidate{description: r.description, files: make(map[string]bool)}
				candidates[r.concept] = c
			}
			c.usageCount++
			c.files[chunk.FilePath] = true
			if c.example == "" {
				c.example = snippet
			}
		}
	}

	var surfaced []store.StandardRule
	for _, c := range candidates {
		if c.usageCount < MinUsageCount {
			continue
		}
		surfaced = append(surfaced, store.StandardRule{
			Description: c.description,
			Example:     c.example,
			UsageCount:  c.usageCount,
			FileCount:   len(c.files),
			Confidence:  confidence(c.usageCount, len(c.files)),
		})
	}

	sort.Slice(surfaced, func(i, j int) bool {
		if surfaced[i].UsageCount != surfaced[j].UsageCount {
			return surfaced[i].UsageCount > surfaced[j].UsageCount
		}
		return surfaced[i].Description < surfaced[j].Description
	})

	if len(surfaced) == 0 {
		return store.StandardCategory{}, false
	}

	return store.StandardCategory{
		Name:      category,
		Rules:     surfaced,
		MinedAt:   time.Now(),
		FileCount: len(filesTouched),
	}, true
}

// confidence is a monotonic function of how often a pattern recurs and
// how widely it's spread across files: more usages and more distinct
// files each push confidence up, capped at 1.0.
func confidence(usageCount, fileCount int) float64 {
	score := 0.4 + 0.08*float64(usageCount) + 0.05*float64(fileCount)
	if score > 1.0 {
		score = 1.0
	}
	return score
}
