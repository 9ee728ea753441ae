// Package fetch downloads full article pages and extracts readable body
// text for sources whose feed only carries a teaser.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyChars = 100_000
	maxPageBytes = 5 << 20
)

var client = &http.Client{Timeout: 20 * time.Second}

// Result is a fetched article: the extracted body text plus the raw page
// for snapshotting.
type Result struct {
	Text string
	HTML []byte
}

// Article downloads a page and extracts its main text. Extraction tries
// embedded structured data first (Next.js payloads, JSON-LD), then falls
// back to common content selectors. Text is capped at 100k characters.
func Article(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	text := extractText(doc)
	return &Result{Text: truncate(text, maxBodyChars), HTML: html}, nil
}

func extractText(doc *goquery.Document) string {
	if text := nextDataText(doc); text != "" {
		return text
	}
	if text := jsonLDText(doc); text != "" {
		return text
	}
	return selectorText(doc)
}

// nextDataText pulls article bodies out of Next.js __NEXT_DATA__ payloads,
// which many publisher sites ship instead of server-rendered content.
func nextDataText(doc *goquery.Document) string {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" {
		return ""
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ""
	}
	return longestBodyField(payload)
}

// longestBodyField walks arbitrary JSON looking for the longest string
// under a body-like key.
func longestBodyField(v any) string {
	var best string
	var walk func(any)
	walk = func(node any) {
		switch t := node.(type) {
		case map[string]any:
			for key, child := range t {
				switch key {
				case "body", "content", "articleBody", "text", "markdown":
					if s, ok := child.(string); ok && len(s) > len(best) {
						best = s
					}
				}
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(v)
	if len(best) < 200 {
		return ""
	}
	return strings.TrimSpace(best)
}

func jsonLDText(doc *goquery.Document) string {
	var body string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		body = findArticleBody(payload)
		return body == ""
	})
	return strings.TrimSpace(body)
}

func findArticleBody(v any) string {
	switch t := v.(type) {
	case map[string]any:
		if s, ok := t["articleBody"].(string); ok && s != "" {
			return s
		}
		if graph, ok := t["@graph"].([]any); ok {
			return findArticleBody(graph)
		}
	case []any:
		for _, child := range t {
			if s := findArticleBody(child); s != "" {
				return s
			}
		}
	}
	return ""
}

var contentSelectors = []string{
	"article", "main", ".post-content", ".entry-content",
	".article-body", ".post-body", "#content",
}

func selectorText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := normalizeWhitespace(sel.Text())
		if len(text) >= 200 {
			return text
		}
	}
	return normalizeWhitespace(doc.Find("body").Text())
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
