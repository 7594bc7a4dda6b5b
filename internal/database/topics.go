package database

import (
	"context"
	"fmt"

	"patina/internal/domain"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
)

// RecordArticleTopic stores the topic score for an article, replacing any
// score recorded earlier for the same pair.
func (d *Database) RecordArticleTopic(ctx context.Context, articleID int64, topic string, score float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	insertQuery := "insert into article_topics (article_id, topic, score) values (?, ?, ?)"

	_, err := d.db.ExecContext(ctx, insertQuery, articleID, topic, score)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("insert article topic: %w", err)
	}

	updateQuery := "update article_topics set score = ? where article_id = ? and topic = ?"

	if _, err = d.db.ExecContext(ctx, updateQuery, score, articleID, topic); err != nil {
		return fmt.Errorf("replace article topic: %w", err)
	}

	return nil
}

func (d *Database) GetArticleTopics(ctx context.Context, articleID int64) ([]domain.ArticleTopic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := `select article_id, topic, score
	from article_topics
	where article_id = ?
	order by score desc, topic`

	rows, err := d.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetArticleTopics")

	var topics []domain.ArticleTopic
	for rows.Next() {
		var t domain.ArticleTopic
		if err = rows.Scan(&t.ArticleID, &t.Topic, &t.Score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		topics = append(topics, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return topics, nil
}

// GetUnreadArticlesWithTopics ranks unread articles by the summed score of
// their associations with the given topics. Ties, including every article
// with no matching topic, come back in random order. With no topics the
// result is a uniform random sample of unread articles.
func (d *Database) GetUnreadArticlesWithTopics(
	ctx context.Context,
	topics []string,
	limit int,
) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	topics = lo.Uniq(lo.Compact(topics))

	sb := sqlbuilder.NewSelectBuilder()
	sb.From("articles a").Join("feeds f", "f.id = a.feed_id")

	if len(topics) == 0 {
		sb.Select(articleColumns)
		sb.Where(sb.Equal("a.is_read", 0))
		sb.OrderBy("random()")
	} else {
		scores := sqlbuilder.NewSelectBuilder()
		scores.Select("t.article_id", "sum(t.score) as total_score").
			From("article_topics t").
			Where(scores.In("t.topic", sqlbuilder.Flatten(topics)...)).
			GroupBy("t.article_id")

		sb.Select(articleColumns, "coalesce(topic_scores.total_score, 0) as topic_score")
		sb.JoinWithOption(
			sqlbuilder.LeftJoin,
			sb.BuilderAs(scores, "topic_scores"),
			"topic_scores.article_id = a.id",
		)
		sb.Where(sb.Equal("a.is_read", 0))
		sb.OrderBy("topic_score desc", "random()")
	}

	sb.Limit(limit)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetUnreadArticlesWithTopics")

	var articles []domain.Article
	for rows.Next() {
		var (
			a       *domain.Article
			scanErr error
		)

		if len(topics) == 0 {
			a, scanErr = scanArticle(rows)
		} else {
			a, scanErr = scanArticle(scoredRow{rows: rows})
		}
		if scanErr != nil {
			return nil, fmt.Errorf("scan row: %w", scanErr)
		}

		articles = append(articles, *a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return articles, nil
}

// scoredRow discards the trailing topic_score column.
type scoredRow struct {
	rows rowScanner
}

func (r scoredRow) Scan(dest ...any) error {
	var score float64
	return r.rows.Scan(append(dest, &score)...)
}

// GetTopReadTopics sums topic scores over read articles only.
func (d *Database) GetTopReadTopics(ctx context.Context, limit int) ([]domain.TopicScore, error) {
	if limit <= 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	query := `select t.topic, sum(t.score) as total_score
	from article_topics t
	join articles a on a.id = t.article_id
	where a.is_read = 1
	group by t.topic
	order by total_score desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetTopReadTopics")

	var topics []domain.TopicScore
	for rows.Next() {
		var ts domain.TopicScore
		if err = rows.Scan(&ts.Topic, &ts.Score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		topics = append(topics, ts)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return topics, nil
}
