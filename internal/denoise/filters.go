// Package denoise reduces an ingested batch to its worthwhile items:
// hard filtering, near-duplicate clustering, weighted scoring, and
// per-source quota enforcement.
package denoise

import (
	"strings"

	"ainews/internal/core"
	"ainews/internal/logger"
)

// HardFilter drops items that should never reach scoring: excluded
// keywords in the title or content, a language outside the allowed set,
// or popularity below a per-source floor.
type HardFilter struct {
	excludeKeywords []string
	languages       map[string]bool
	minPopularity   map[string]map[string]float64
}

// NewHardFilter builds a filter. Keywords match case-insensitively as
// substrings of the title or content. An empty languages list allows
// every language.
// minPopularity maps source ID to metadata key to the minimum accepted
// value.
func NewHardFilter(excludeKeywords, languages []string, minPopularity map[string]map[string]float64) *HardFilter {
	lowered := make([]string, 0, len(excludeKeywords))
	for _, kw := range excludeKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	var allowed map[string]bool
	if len(languages) > 0 {
		allowed = make(map[string]bool, len(languages))
		for _, lang := range languages {
			allowed[strings.ToLower(lang)] = true
		}
	}
	return &HardFilter{excludeKeywords: lowered, languages: allowed, minPopularity: minPopularity}
}

// Apply returns the items that pass and the number dropped.
func (f *HardFilter) Apply(items []core.Item) ([]core.Item, int) {
	kept := make([]core.Item, 0, len(items))
	dropped := 0
	for _, item := range items {
		if f.excluded(item) || f.wrongLanguage(item) || f.belowFloor(item) {
			dropped++
			continue
		}
		kept = append(kept, item)
	}
	if dropped > 0 {
		logger.Debug("Hard filter", "kept", len(kept), "dropped", dropped)
	}
	return kept, dropped
}

func (f *HardFilter) excluded(item core.Item) bool {
	haystack := strings.ToLower(item.Title + " " + item.Content)
	for _, kw := range f.excludeKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (f *HardFilter) wrongLanguage(item core.Item) bool {
	if f.languages == nil || item.Language == "" {
		return false
	}
	return !f.languages[strings.ToLower(item.Language)]
}

func (f *HardFilter) belowFloor(item core.Item) bool {
	floors, ok := f.minPopularity[item.SourceID]
	if !ok {
		return false
	}
	for key, minValue := range floors {
		value, _ := item.Metadata[key].(float64)
		if value < minValue {
			return true
		}
	}
	return false
}
