package connectors

import (
	"context"

	"ainews/internal/core"
	"ainews/internal/logger"
)

// RSSOrScrapeConnector tries the source URL as a feed first and scrapes the
// page when the feed attempt parses nothing. Useful for blogs that expose a
// feed intermittently or serve HTML at the configured URL.
type RSSOrScrapeConnector struct {
	rss    RSSConnector
	scrape ScrapeConnector
}

func (c *RSSOrScrapeConnector) Fetch(ctx context.Context, src core.Source) ([]core.RawItem, error) {
	items, err := c.rss.Fetch(ctx, src)
	if err == nil && len(items) > 0 {
		return items, nil
	}
	if err != nil {
		logger.Debug("Feed attempt failed, falling back to scrape", "source", src.ID, "error", err.Error())
	}
	return c.scrape.Fetch(ctx, src)
}
