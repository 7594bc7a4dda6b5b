package core

import (
	"context"
	"errors"
	"fmt"

	"patina/internal/database"
	"patina/internal/domain"
)

// AddFeed subscribes to feedURL, storing the feed and all of its current
// articles. The returned feed carries its unread count.
func (c *Core) AddFeed(ctx context.Context, feedURL string) (*domain.Feed, error) {
	feedURL, err := validateURL(feedURL)
	if err != nil {
		return nil, err
	}

	existing, err := c.db.GetFeedByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("get feed by URL: %w", err)
	}
	if existing != nil {
		return nil, &FeedExistsError{Title: existing.Title, URL: feedURL}
	}

	parsed, err := c.feeds.FetchFeed(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	parsed.URL = feedURL

	feed, err := c.db.InsertFeed(ctx, *parsed)
	if errors.Is(err, database.ErrFeedExists) {
		return nil, &FeedExistsError{Title: parsed.Title, URL: feedURL}
	}
	if err != nil {
		return nil, fmt.Errorf("insert feed: %w", err)
	}

	inserted := c.insertArticles(ctx, feed.ID, parsed.Articles)

	c.log.InfoContext(ctx, "Feed is added",
		"feedID", feed.ID,
		"feedURL", feedURL,
		"articleCount", inserted)

	return c.getFeed(ctx, feed.ID)
}

// RefreshFeed refetches a stored feed, updates its metadata and adds the
// articles it has not seen yet.
func (c *Core) RefreshFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	feed, err := c.getFeed(ctx, id)
	if err != nil {
		return nil, err
	}

	parsed, err := c.feeds.FetchFeed(ctx, feed.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed (ID = %d): %w", id, err)
	}
	parsed.URL = feed.URL

	if err = c.db.UpdateFeedMetadata(ctx, id, *parsed); err != nil {
		return nil, fmt.Errorf("update feed metadata: %w", err)
	}

	inserted := c.insertArticles(ctx, id, parsed.Articles)

	c.log.InfoContext(ctx, "Feed is refreshed",
		"feedID", id,
		"feedURL", feed.URL,
		"newArticleCount", inserted)

	return c.getFeed(ctx, id)
}

// RefreshAllFeeds refreshes every feed in turn. A feed that fails to refresh
// is returned as it was stored before the attempt.
func (c *Core) RefreshAllFeeds(ctx context.Context) ([]domain.Feed, error) {
	feeds, err := c.db.GetAllFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all feeds: %w", err)
	}

	results := make([]domain.Feed, 0, len(feeds))
	var errs []error

	for _, feed := range feeds {
		if ctx.Err() != nil {
			results = append(results, feed)
			continue
		}

		refreshed, refreshErr := c.RefreshFeed(ctx, feed.ID)
		if refreshErr != nil {
			errs = append(errs, refreshErr)
			results = append(results, feed)

			continue
		}

		results = append(results, *refreshed)
	}

	if err = errors.Join(errs...); err != nil {
		c.log.WarnContext(ctx, "Some feeds failed to refresh",
			"error", err,
			"feedCount", len(feeds),
			"failedCount", len(errs))
	}

	return results, ctx.Err()
}

func (c *Core) DeleteFeed(ctx context.Context, id int64) error {
	if err := c.db.DeleteFeed(ctx, id); err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}

	return nil
}

func (c *Core) GetAllFeeds(ctx context.Context) ([]domain.Feed, error) {
	feeds, err := c.db.GetAllFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all feeds: %w", err)
	}

	return feeds, nil
}

// DiscoverFeeds lists feed candidates advertised by a website.
func (c *Core) DiscoverFeeds(ctx context.Context, websiteURL string) ([]domain.DiscoveredFeed, error) {
	websiteURL, err := validateURL(websiteURL)
	if err != nil {
		return nil, err
	}

	feeds, err := c.feeds.DiscoverFeeds(ctx, websiteURL)
	if err != nil {
		return nil, fmt.Errorf("discover feeds: %w", err)
	}

	return feeds, nil
}

func (c *Core) getFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	feed, err := c.db.GetFeed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	if feed == nil {
		return nil, fmt.Errorf("get feed (ID = %d): %w", id, ErrNotFound)
	}

	return feed, nil
}

func (c *Core) insertArticles(ctx context.Context, feedID int64, articles []domain.ParsedArticle) int {
	inserted := 0

	for _, a := range articles {
		_, ok, err := c.db.InsertArticle(ctx, feedID, a)
		if err != nil {
			c.log.WarnContext(ctx, "Failed to insert article",
				"error", err,
				"feedID", feedID,
				"articleURL", a.URL)

			continue
		}

		if ok {
			inserted++
		}
	}

	return inserted
}
