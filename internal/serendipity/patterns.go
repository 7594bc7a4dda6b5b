package serendipity

import (
	"context"
	"errors"
	"fmt"

	"patina/internal/domain"
)

const (
	autoPatternTopicLimit = 20
	autoPatternMinScore   = 2.0
)

type TopicStore interface {
	RecordArticleTopic(ctx context.Context, articleID int64, topic string, score float64) error
	GetTopReadTopics(ctx context.Context, limit int) ([]domain.TopicScore, error)
	AddReadingPattern(
		ctx context.Context,
		kind domain.PatternKind,
		value string,
		source domain.PatternSource,
	) (*domain.ReadingPattern, error)
}

// RecordReading stores the topics of a freshly read article and promotes
// topics that became strong enough into auto patterns.
func RecordReading(ctx context.Context, store TopicStore, article *domain.Article) error {
	var errs []error

	for _, t := range ExtractTopics(article.Title, article.Summary) {
		if err := store.RecordArticleTopic(ctx, article.ID, t.Topic, t.Score); err != nil {
			errs = append(errs, fmt.Errorf("record article topic (topic = %s): %w", t.Topic, err))
		}
	}

	if err := PromoteAutoPatterns(ctx, store); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// PromoteAutoPatterns adds an auto topic pattern for every read topic whose
// summed score reached the promotion threshold. Promoting an existing pattern
// strengthens it.
func PromoteAutoPatterns(ctx context.Context, store TopicStore) error {
	topTopics, err := store.GetTopReadTopics(ctx, autoPatternTopicLimit)
	if err != nil {
		return fmt.Errorf("get top read topics: %w", err)
	}

	for _, t := range topTopics {
		if t.Score < autoPatternMinScore {
			continue
		}

		if _, err = store.AddReadingPattern(ctx, domain.PatternTopic, t.Topic, domain.SourceAuto); err != nil {
			return fmt.Errorf("add auto pattern (topic = %s): %w", t.Topic, err)
		}
	}

	return nil
}
