package serendipity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"patina/internal/domain"

	"github.com/samber/lo"
)

// Candidates are over-fetched so exclusion filtering still leaves enough.
const candidateFactor = 2

type ArticleStore interface {
	GetReadingPatterns(ctx context.Context) ([]domain.ReadingPattern, error)
	GetUnreadArticlesWithTopics(ctx context.Context, topics []string, limit int) ([]domain.Article, error)
}

type Surfacer struct {
	store ArticleStore
	log   *slog.Logger
}

func NewSurfacer(store ArticleStore, log *slog.Logger) *Surfacer {
	return &Surfacer{store: store, log: log}
}

// GetSerendipityArticles picks up to limit unread articles ranked by the
// topic and keyword patterns, dropping any whose title or summary mentions
// an excluded value. Without topic or keyword patterns the pick is random.
func (s *Surfacer) GetSerendipityArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return []domain.Article{}, nil
	}

	patterns, err := s.store.GetReadingPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("get reading patterns: %w", err)
	}

	topics := lo.FilterMap(patterns, func(p domain.ReadingPattern, _ int) (string, bool) {
		return p.Value, p.Kind == domain.PatternTopic || p.Kind == domain.PatternKeyword
	})

	excluded := lo.FilterMap(patterns, func(p domain.ReadingPattern, _ int) (string, bool) {
		value := strings.ToLower(strings.TrimSpace(p.Value))
		return value, p.Kind == domain.PatternExcluded && value != ""
	})

	candidates, err := s.store.GetUnreadArticlesWithTopics(ctx, topics, limit*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("get unread articles with topics: %w", err)
	}

	articles := lo.Reject(candidates, func(a domain.Article, _ int) bool {
		return mentionsAny(a, excluded)
	})

	s.log.DebugContext(ctx, "Serendipity articles are selected",
		"limit", limit,
		"topicCount", len(topics),
		"excludedCount", len(excluded),
		"candidateCount", len(candidates),
		"filteredCount", len(candidates)-len(articles))

	if len(articles) > limit {
		articles = articles[:limit]
	}

	return articles, nil
}

func mentionsAny(a domain.Article, lowered []string) bool {
	if len(lowered) == 0 {
		return false
	}

	title := strings.ToLower(a.Title)
	summary := strings.ToLower(a.Summary)

	return lo.SomeBy(lowered, func(ex string) bool {
		return strings.Contains(title, ex) || strings.Contains(summary, ex)
	})
}
