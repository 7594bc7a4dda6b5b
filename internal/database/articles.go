package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"patina/internal/domain"
)

const articleColumns = `a.id, a.feed_id, a.title, a.url, a.summary, a.published_at, a.fetched_at,
	a.is_read, a.read_at, f.title as feed_title`

const articleFrom = " from articles a join feeds f on f.id = a.feed_id"

// Articles with a publication time first, newest first.
const publishedOrder = " order by a.published_at is null, a.published_at desc"

func scanArticle(s rowScanner) (*domain.Article, error) {
	var (
		a           domain.Article
		summary     sql.NullString
		publishedAt sql.NullInt64
		fetchedAt   int64
		readAt      sql.NullInt64
	)

	if err := s.Scan(
		&a.ID, &a.FeedID, &a.Title, &a.URL, &summary, &publishedAt, &fetchedAt,
		&a.IsRead, &readAt, &a.FeedTitle,
	); err != nil {
		return nil, err
	}

	a.Summary = summary.String
	a.PublishedAt = fromNullUnix(publishedAt)
	a.FetchedAt = fromUnix(fetchedAt)
	a.ReadAt = fromNullUnix(readAt)

	return &a, nil
}

func (d *Database) queryArticles(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]domain.Article, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, operation)

	var articles []domain.Article
	for rows.Next() {
		a, scanErr := scanArticle(rows)
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

// InsertArticle stores the article unless the feed already has one with the
// same URL, in which case nothing is written and the stored article is
// returned with inserted set to false.
func (d *Database) InsertArticle(
	ctx context.Context,
	feedID int64,
	article domain.ParsedArticle,
) (*domain.Article, bool, error) {
	articleURL := strings.TrimSpace(article.URL)
	if articleURL == "" {
		return nil, false, errors.New("article URL is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	query := `insert into articles (feed_id, title, url, summary, published_at, fetched_at, is_read)
	values (?, ?, ?, ?, ?, ?, 0)`

	inserted := true

	_, err := d.db.ExecContext(ctx, query,
		feedID,
		article.Title,
		articleURL,
		toNullString(article.Summary),
		toNullUnix(article.PublishedAt),
		nowUnix(),
	)
	if err != nil {
		if !isUniqueViolation(err) {
			return nil, false, fmt.Errorf("insert article: %w", err)
		}

		inserted = false
	}

	selectQuery := "select " + articleColumns + articleFrom + " where a.feed_id = ? and a.url = ?"

	a, err := scanArticle(d.db.QueryRowContext(ctx, selectQuery, feedID, articleURL))
	if err != nil {
		return nil, false, fmt.Errorf("get stored article: %w", err)
	}

	return a, inserted, nil
}

func (d *Database) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "select " + articleColumns + articleFrom + " where a.id = ?"

	a, err := scanArticle(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}

	return a, nil
}

func (d *Database) GetArticlesForFeed(ctx context.Context, feedID int64) ([]domain.Article, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "select " + articleColumns + articleFrom +
		" where a.feed_id = ? order by coalesce(a.published_at, a.fetched_at) desc"

	return d.queryArticles(ctx, "GetArticlesForFeed", query, feedID)
}

func (d *Database) GetAllUnreadArticles(ctx context.Context) ([]domain.Article, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "select " + articleColumns + articleFrom + " where a.is_read = 0" + publishedOrder

	return d.queryArticles(ctx, "GetAllUnreadArticles", query)
}

func (d *Database) GetRecentArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	query := "select " + articleColumns + articleFrom + publishedOrder + " limit ?"

	return d.queryArticles(ctx, "GetRecentArticles", query, limit)
}

// MarkArticleRead sets the read flag and read time. changed is true only
// when the article existed and was unread before the call.
func (d *Database) MarkArticleRead(ctx context.Context, id int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var wasRead bool

	err := d.db.QueryRowContext(ctx, "select is_read from articles where id = ?", id).Scan(&wasRead)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get read state: %w", err)
	}

	query := "update articles set is_read = 1, read_at = ? where id = ?"

	if _, err = d.db.ExecContext(ctx, query, nowUnix(), id); err != nil {
		return false, fmt.Errorf("mark article read: %w", err)
	}

	return !wasRead, nil
}

func (d *Database) MarkArticleUnread(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "update articles set is_read = 0, read_at = null where id = ?"

	if _, err := d.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark article unread: %w", err)
	}

	return nil
}

func (d *Database) CountArticles(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var count int
	if err := d.db.QueryRowContext(ctx, "select count(*) from articles").Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}

	return count, nil
}
