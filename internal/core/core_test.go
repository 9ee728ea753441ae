package core

import (
	"testing"
	"time"
)

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"tracking params stripped", "https://example.com/post?utm_source=rss&utm_medium=feed&id=7", "https://example.com/post?id=7"},
		{"fragment dropped", "https://example.com/post#comments", "https://example.com/post"},
		{"trailing slash trimmed", "https://example.com/post/", "https://example.com/post"},
		{"root path kept", "https://example.com/", "https://example.com/"},
		{"host lowercased", "HTTPS://Example.COM/Post", "https://example.com/Post"},
		{"params sorted", "https://example.com/p?b=2&a=1", "https://example.com/p?a=1&b=2"},
		{"fbclid stripped", "https://example.com/p?fbclid=abc123", "https://example.com/p"},
		{"whitespace trimmed", "  https://example.com/p  ", "https://example.com/p"},
		{"schemeless falls back to lowercase", "Example.com/post", "example.com/post"},
	}
	for _, c := range cases {
		if got := CanonicalURL(c.in); got != c.want {
			t.Errorf("%s: CanonicalURL(%q) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestCanonicalURLIdempotent(t *testing.T) {
	urls := []string{
		"https://example.com/post?utm_source=x&b=2&a=1#frag",
		"https://Example.com/Deep/Path/",
		"not a url at all",
	}
	for _, u := range urls {
		once := CanonicalURL(u)
		twice := CanonicalURL(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", u, once, twice)
		}
	}
}

func TestMakeItemID(t *testing.T) {
	id := MakeItemID("hn", "https://example.com/story")
	if len(id) != 16 {
		t.Errorf("id length = %d, want 16", len(id))
	}
	if id != MakeItemID("hn", "https://example.com/story") {
		t.Error("id not stable for identical inputs")
	}
	if id == MakeItemID("blog", "https://example.com/story") {
		t.Error("different sources must yield different ids")
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-06-15T10:30:00Z", time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)},
		{"2025-06-15T10:30:00+02:00", time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC)},
		{"Sun, 15 Jun 2025 10:30:00 +0000", time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)},
		{"2025-06-15", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"garbage", time.Time{}},
	}
	for _, c := range cases {
		if got := ParseTime(c.in); !got.Equal(c.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDigestDocSection(t *testing.T) {
	doc := &DigestDoc{Date: "2025-06-15"}

	*doc.Section(CategoryTips) = append(*doc.Section(CategoryTips), DigestItem{})
	*doc.Section(CategoryPaper) = append(*doc.Section(CategoryPaper), DigestItem{})
	// Unknown categories land in news.
	*doc.Section("mystery") = append(*doc.Section("mystery"), DigestItem{})

	if len(doc.Tips) != 1 || len(doc.Papers) != 1 || len(doc.News) != 1 {
		t.Errorf("sections = news:%d tips:%d papers:%d", len(doc.News), len(doc.Tips), len(doc.Papers))
	}
	if doc.TotalItems() != 3 {
		t.Errorf("TotalItems = %d, want 3", doc.TotalItems())
	}
}

func TestIngestSummaryAdd(t *testing.T) {
	var s IngestSummary
	s.Add(IngestResult{SourceID: "a", Fetched: 10, Inserted: 8, Duplicates: 2})
	s.Add(IngestResult{SourceID: "b", Errors: 1, ErrorMessage: "boom"})

	if s.TotalFetched != 10 || s.TotalInserted != 8 || s.TotalDuplicates != 2 || s.TotalErrors != 1 {
		t.Errorf("summary totals = %+v", s)
	}
	if len(s.Results) != 2 {
		t.Errorf("results = %d, want 2", len(s.Results))
	}
	if s.Results[0].Success() == false || s.Results[1].Success() == true {
		t.Error("Success() misreports results")
	}
}
