package connectors

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"

	"ainews/internal/core"
)

// RSSConnector fetches RSS and Atom feeds. The HTTP fetch goes through the
// shared retrying client so feed sources get the same UA, headers, and
// backoff behavior as everything else; gofeed only sees the body.
type RSSConnector struct{}

func (c *RSSConnector) Fetch(ctx context.Context, src core.Source) ([]core.RawItem, error) {
	fetchURL := buildURL(src.Config.URL, src.Config.Params)
	body, degraded, err := fetchBody(ctx, src, fetchURL)
	if err != nil {
		return nil, err
	}
	if degraded {
		return []core.RawItem{}, nil
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, &ParseError{SourceID: src.ID, Err: err}
	}

	return feedToRawItems(feed), nil
}

func feedToRawItems(feed *gofeed.Feed) []core.RawItem {
	items := make([]core.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" {
			continue
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		var author string
		if len(entry.Authors) > 0 {
			author = entry.Authors[0].Name
		}

		published := entry.Published
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC().Format(time.RFC3339)
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC().Format(time.RFC3339)
		}

		var meta map[string]any
		if len(entry.Categories) > 0 {
			meta = map[string]any{"categories": entry.Categories}
		}

		items = append(items, core.RawItem{
			URL:         entry.Link,
			Title:       entry.Title,
			Content:     content,
			Author:      author,
			PublishedAt: published,
			Metadata:    meta,
			ExternalID:  entry.GUID,
		})
	}
	return items
}
