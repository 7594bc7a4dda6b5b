package core

import (
	"context"
	"fmt"
	"strings"

	"patina/internal/domain"
)

// GetSerendipityArticles picks up to limit unread articles, favouring the
// reader's topics and skipping excluded terms.
func (c *Core) GetSerendipityArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	articles, err := c.surfacer.GetSerendipityArticles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get serendipity articles: %w", err)
	}

	return articles, nil
}

func (c *Core) GetReadingPatterns(ctx context.Context) ([]domain.ReadingPattern, error) {
	patterns, err := c.db.GetReadingPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("get reading patterns: %w", err)
	}

	return patterns, nil
}

// AddReadingPattern adds a manual pattern, or strengthens it if it exists.
func (c *Core) AddReadingPattern(
	ctx context.Context,
	kind domain.PatternKind,
	value string,
) (*domain.ReadingPattern, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPattern, kind)
	}

	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidPattern)
	}

	p, err := c.db.AddReadingPattern(ctx, kind, value, domain.SourceManual)
	if err != nil {
		return nil, fmt.Errorf("add reading pattern: %w", err)
	}

	return p, nil
}

func (c *Core) DeleteReadingPattern(ctx context.Context, id int64) error {
	if err := c.db.DeleteReadingPattern(ctx, id); err != nil {
		return fmt.Errorf("delete reading pattern: %w", err)
	}

	return nil
}

func (c *Core) ResetReadingPatterns(ctx context.Context) error {
	if err := c.db.ResetReadingPatterns(ctx); err != nil {
		return fmt.Errorf("reset reading patterns: %w", err)
	}

	return nil
}
