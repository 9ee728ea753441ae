package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"ainews/internal/core"
)

// APIConnector fetches JSON APIs and recognizes the response shape by
// structure rather than by source ID, so a new source with a familiar
// payload needs no code change.
type APIConnector struct{}

func (c *APIConnector) Fetch(ctx context.Context, src core.Source) ([]core.RawItem, error) {
	fetchURL := buildURL(src.Config.URL, src.Config.Params)
	body, degraded, err := fetchBody(ctx, src, fetchURL)
	if err != nil {
		return nil, err
	}
	if degraded {
		return []core.RawItem{}, nil
	}

	// arXiv serves Atom XML from its API endpoint.
	if u, perr := url.Parse(fetchURL); perr == nil && strings.Contains(u.Host, "arxiv.org") {
		feed, ferr := gofeed.NewParser().ParseString(string(body))
		if ferr != nil {
			return nil, &ParseError{SourceID: src.ID, Err: ferr}
		}
		return feedToRawItems(feed), nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{SourceID: src.ID, Err: err}
	}

	items, err := decodeJSONPayload(payload)
	if err != nil {
		return nil, &ParseError{SourceID: src.ID, Err: err}
	}
	return items, nil
}

func decodeJSONPayload(payload any) ([]core.RawItem, error) {
	switch v := payload.(type) {
	case map[string]any:
		if hits, ok := v["hits"].([]any); ok {
			return decodeAlgoliaHits(hits), nil
		}
		if list, ok := v["items"].([]any); ok && listHasKey(list, "html_url") {
			return decodeGitHubRepos(list), nil
		}
		if feed, ok := v["feed"].(map[string]any); ok {
			if entries, ok := feed["entry"].([]any); ok {
				return decodeAtomJSON(entries), nil
			}
		}
	case []any:
		if listHasKey(v, "url") && listHasKey(v, "title") {
			return decodeArticleList(v), nil
		}
	}
	return nil, fmt.Errorf("unrecognized JSON payload shape")
}

func listHasKey(list []any, key string) bool {
	if len(list) == 0 {
		return false
	}
	m, ok := list[0].(map[string]any)
	if !ok {
		return false
	}
	_, has := m[key]
	return has
}

// decodeAlgoliaHits handles the HN Algolia search response. Ask HN and
// other link-less posts fall back to their discussion page URL.
func decodeAlgoliaHits(hits []any) []core.RawItem {
	items := make([]core.RawItem, 0, len(hits))
	for _, raw := range hits {
		hit, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		objectID := str(hit["objectID"])
		link := str(hit["url"])
		if link == "" && objectID != "" {
			link = "https://news.ycombinator.com/item?id=" + objectID
		}
		if link == "" {
			continue
		}
		items = append(items, core.RawItem{
			URL:         link,
			Title:       str(hit["title"]),
			Author:      str(hit["author"]),
			PublishedAt: str(hit["created_at"]),
			ExternalID:  objectID,
			Metadata: map[string]any{
				"points":       num(hit["points"]),
				"num_comments": num(hit["num_comments"]),
			},
		})
	}
	return items
}

func decodeGitHubRepos(list []any) []core.RawItem {
	items := make([]core.RawItem, 0, len(list))
	for _, raw := range list {
		repo, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		link := str(repo["html_url"])
		if link == "" {
			continue
		}
		var author string
		if owner, ok := repo["owner"].(map[string]any); ok {
			author = str(owner["login"])
		}
		items = append(items, core.RawItem{
			URL:         link,
			Title:       str(repo["full_name"]),
			Content:     str(repo["description"]),
			Author:      author,
			PublishedAt: str(repo["pushed_at"]),
			ExternalID:  str(repo["full_name"]),
			Metadata: map[string]any{
				"stars": num(repo["stargazers_count"]),
				"forks": num(repo["forks_count"]),
			},
		})
	}
	return items
}

// decodeAtomJSON handles Atom feeds re-serialized as JSON, where scalar
// fields may be wrapped in {"$t": ...} objects and link is a list.
func decodeAtomJSON(entries []any) []core.RawItem {
	items := make([]core.RawItem, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		link := atomLink(entry["link"])
		if link == "" {
			continue
		}
		items = append(items, core.RawItem{
			URL:         link,
			Title:       atomText(entry["title"]),
			Content:     atomText(entry["summary"]),
			PublishedAt: atomText(entry["published"]),
			ExternalID:  atomText(entry["id"]),
		})
	}
	return items
}

func decodeArticleList(list []any) []core.RawItem {
	items := make([]core.RawItem, 0, len(list))
	for _, raw := range list {
		article, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		link := str(article["url"])
		if link == "" {
			continue
		}
		content := str(article["description"])
		if content == "" {
			content = str(article["body"])
		}
		published := str(article["published_at"])
		if published == "" {
			published = str(article["created_at"])
		}
		items = append(items, core.RawItem{
			URL:         link,
			Title:       str(article["title"]),
			Content:     content,
			Author:      str(article["author"]),
			PublishedAt: published,
			ExternalID:  str(article["id"]),
			Metadata: map[string]any{
				"likes_count": num(article["likes_count"]),
			},
		})
	}
	return items
}

func atomText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return str(t["$t"])
	}
	return ""
}

func atomLink(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return str(t["href"])
	case []any:
		for _, raw := range t {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if rel := str(m["rel"]); rel == "" || rel == "alternate" {
				return str(m["href"])
			}
		}
		if len(t) > 0 {
			if m, ok := t[0].(map[string]any); ok {
				return str(m["href"])
			}
		}
	}
	return ""
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	}
	return ""
}

func num(v any) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
