package connectors

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ainews/internal/core"
)

const maxScrapedLinks = 100

// Selectors that usually mark article headlines, tried in order. The bare
// link fallback only keeps anchors with headline-length text.
var headlineSelectors = []string{
	"article h1 a", "article h2 a", "article h3 a",
	"h1 a", "h2 a", "h3 a",
	".post-title a", ".entry-title a", ".article-title a",
}

var noiseWords = []string{
	"login", "log in", "sign up", "sign in", "subscribe", "register",
	"about", "contact", "privacy", "terms", "cookie",
	"next", "previous", "older", "newer", "comments", "share", "rss",
	"read more", "home", "archive",
}

// ScrapeConnector extracts article links from listing pages that offer
// no feed. It is intentionally conservative: headline-shaped anchors only,
// capped at 100 links per page.
type ScrapeConnector struct{}

func (c *ScrapeConnector) Fetch(ctx context.Context, src core.Source) ([]core.RawItem, error) {
	fetchURL := buildURL(src.Config.URL, src.Config.Params)
	body, degraded, err := fetchBody(ctx, src, fetchURL)
	if err != nil {
		return nil, err
	}
	if degraded {
		return []core.RawItem{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{SourceID: src.ID, Err: err}
	}

	base, err := url.Parse(fetchURL)
	if err != nil {
		return nil, &ParseError{SourceID: src.ID, Err: err}
	}

	return extractLinks(doc, base), nil
}

func extractLinks(doc *goquery.Document, base *url.URL) []core.RawItem {
	seen := map[string]bool{}
	var items []core.RawItem

	collect := func(sel *goquery.Selection, minTitleLen int) {
		sel.EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if len(items) >= maxScrapedLinks {
				return false
			}
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			title := strings.TrimSpace(a.Text())
			link := resolveLink(base, href)
			if link == "" || len(title) < minTitleLen || isNoiseLink(title) || seen[link] {
				return true
			}
			seen[link] = true
			items = append(items, core.RawItem{URL: link, Title: title})
			return true
		})
	}

	for _, selector := range headlineSelectors {
		collect(doc.Find(selector), 5)
	}
	if len(items) == 0 {
		collect(doc.Find("a[href]"), 20)
	}
	return items
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func isNoiseLink(title string) bool {
	lower := strings.ToLower(title)
	for _, word := range noiseWords {
		if lower == word {
			return true
		}
	}
	return false
}
