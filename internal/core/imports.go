package core

import (
	"context"
	"fmt"

	"patina/internal/domain"
	"patina/internal/feed"

	"github.com/samber/lo"
)

// ImportOPML subscribes to every feed listed in an OPML document. Failures
// are counted per feed; only an unreadable document fails the whole import.
func (c *Core) ImportOPML(ctx context.Context, content string) (*domain.ImportResult, error) {
	entries, err := feed.ParseOPML(content)
	if err != nil {
		return nil, fmt.Errorf("parse OPML: %w", err)
	}

	urls := lo.Map(entries, func(e domain.OPMLFeed, _ int) string { return e.URL })

	return c.importFeeds(ctx, "opml", urls), nil
}

// ImportText subscribes to every distinct http(s) URL found in text.
func (c *Core) ImportText(ctx context.Context, text string) (*domain.ImportResult, error) {
	urls, err := feed.ExtractURLs(text)
	if err != nil {
		return nil, fmt.Errorf("extract URLs: %w", err)
	}

	return c.importFeeds(ctx, "text", urls), nil
}

func (c *Core) importFeeds(ctx context.Context, source string, urls []string) *domain.ImportResult {
	result := &domain.ImportResult{Total: len(urls)}

	for _, u := range urls {
		if _, err := c.AddFeed(ctx, u); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", u, err))

			continue
		}

		result.Imported++
	}

	c.log.InfoContext(ctx, "Feeds are imported",
		"source", source,
		"total", result.Total,
		"imported", result.Imported,
		"failed", result.Failed)

	return result
}
