package core

import (
	"context"
	"fmt"

	"patina/internal/domain"
	"patina/internal/serendipity"
)

func (c *Core) GetArticlesForFeed(ctx context.Context, feedID int64) ([]domain.Article, error) {
	articles, err := c.db.GetArticlesForFeed(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("get articles for feed: %w", err)
	}

	return articles, nil
}

func (c *Core) GetAllUnreadArticles(ctx context.Context) ([]domain.Article, error) {
	articles, err := c.db.GetAllUnreadArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all unread articles: %w", err)
	}

	return articles, nil
}

func (c *Core) GetRecentArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	articles, err := c.db.GetRecentArticles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent articles: %w", err)
	}

	return articles, nil
}

// MarkArticleRead marks the article read. When this changes its state the
// article's topics are recorded and auto patterns are promoted; failures of
// that step are logged only.
func (c *Core) MarkArticleRead(ctx context.Context, id int64) error {
	changed, err := c.db.MarkArticleRead(ctx, id)
	if err != nil {
		return fmt.Errorf("mark article read: %w", err)
	}
	if !changed {
		return nil
	}

	article, err := c.db.GetArticle(ctx, id)
	if err != nil {
		return fmt.Errorf("get article: %w", err)
	}
	if article == nil {
		return nil
	}

	if err = serendipity.RecordReading(ctx, c.db, article); err != nil {
		c.log.ErrorContext(ctx, "Failed to record reading",
			"error", err,
			"articleID", id,
			"feedID", article.FeedID)
	}

	return nil
}

func (c *Core) MarkArticleUnread(ctx context.Context, id int64) error {
	if err := c.db.MarkArticleUnread(ctx, id); err != nil {
		return fmt.Errorf("mark article unread: %w", err)
	}

	return nil
}
