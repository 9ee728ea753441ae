package render

import (
	"strings"
	"testing"

	"ainews/internal/core"
)

func TestSectionRendersItems(t *testing.T) {
	items := []core.DigestItem{
		{
			Item:    core.Item{Title: "A [bracketed] headline", URL: "https://example.com/a", SourceID: "hn"},
			Score:   core.ScoreBreakdown{Total: 0.87},
			Summary: "One sentence about it.",
		},
		{
			Item:  core.Item{Title: "Second story", URL: "https://example.com/b", SourceID: "blog"},
			Score: core.ScoreBreakdown{Total: 0.42},
		},
	}

	md := Section("2025-06-15", core.CategoryNews, items)

	for _, want := range []string{
		"## News — 2025-06-15",
		"1. **[A \\[bracketed\\] headline](https://example.com/a)** — hn, score 0.87",
		"One sentence about it.",
		"2. **[Second story](https://example.com/b)** — blog, score 0.42",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
}

func TestSectionEmpty(t *testing.T) {
	md := Section("2025-06-15", core.CategoryPaper, nil)
	if !strings.Contains(md, "## Papers — 2025-06-15") {
		t.Errorf("missing header: %s", md)
	}
	if !strings.Contains(md, "_No items today._") {
		t.Errorf("missing placeholder: %s", md)
	}
}

func TestDocumentIncludesAllSections(t *testing.T) {
	doc := &core.DigestDoc{
		Date: "2025-06-15",
		News: []core.DigestItem{{Item: core.Item{Title: "T", URL: "https://x.example/1", SourceID: "s"}}},
	}

	md := Document(doc)
	for _, want := range []string{"# Daily Digest — 2025-06-15", "## News", "## Tips & Tools", "## Papers"} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q", want)
		}
	}
}
