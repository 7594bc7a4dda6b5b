package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"patina/internal/domain"
)

const feedColumns = `f.id, f.title, f.url, f.site_url, f.last_fetched_at, f.created_at,
	(select count(*) from articles a where a.feed_id = f.id and a.is_read = 0) as unread_count`

func scanFeed(s rowScanner) (*domain.Feed, error) {
	var (
		f             domain.Feed
		siteURL       sql.NullString
		lastFetchedAt sql.NullInt64
		createdAt     int64
	)

	if err := s.Scan(&f.ID, &f.Title, &f.URL, &siteURL, &lastFetchedAt, &createdAt, &f.UnreadCount); err != nil {
		return nil, err
	}

	f.SiteURL = siteURL.String
	f.LastFetchedAt = fromNullUnix(lastFetchedAt)
	f.CreatedAt = fromUnix(createdAt)

	return &f, nil
}

// InsertFeed creates a feed with no articles. A URL that is already
// subscribed yields ErrFeedExists.
func (d *Database) InsertFeed(ctx context.Context, feed domain.ParsedFeed) (*domain.Feed, error) {
	feedURL := strings.TrimSpace(feed.URL)
	if feedURL == "" {
		return nil, errors.New("feed URL is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := nowUnix()
	query := `insert into feeds (title, url, site_url, last_fetched_at, created_at)
	values (?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query, feed.Title, feedURL, toNullString(feed.SiteURL), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert feed (URL = %s): %w", feedURL, ErrFeedExists)
		}

		return nil, fmt.Errorf("insert feed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert ID: %w", err)
	}

	lastFetchedAt := fromUnix(now)

	return &domain.Feed{
		ID:            id,
		Title:         feed.Title,
		URL:           feedURL,
		SiteURL:       feed.SiteURL,
		LastFetchedAt: &lastFetchedAt,
		CreatedAt:     fromUnix(now),
		UnreadCount:   0,
	}, nil
}

func (d *Database) GetFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "select " + feedColumns + " from feeds f where f.id = ?"

	f, err := scanFeed(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}

	return f, nil
}

func (d *Database) GetFeedByURL(ctx context.Context, feedURL string) (*domain.Feed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "select " + feedColumns + " from feeds f where f.url = ?"

	f, err := scanFeed(d.db.QueryRowContext(ctx, query, strings.TrimSpace(feedURL)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed by URL: %w", err)
	}

	return f, nil
}

func (d *Database) GetAllFeeds(ctx context.Context) ([]domain.Feed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "select " + feedColumns + " from feeds f order by f.title collate nocase"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetAllFeeds")

	var feeds []domain.Feed
	for rows.Next() {
		f, scanErr := scanFeed(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan row: %w", scanErr)
		}

		feeds = append(feeds, *f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return feeds, nil
}

// UpdateFeedMetadata refreshes title, site URL and last fetch time. Articles
// are left alone.
func (d *Database) UpdateFeedMetadata(ctx context.Context, id int64, feed domain.ParsedFeed) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := "update feeds set title = ?, site_url = ?, last_fetched_at = ? where id = ?"

	if _, err := d.db.ExecContext(ctx, query, feed.Title, toNullString(feed.SiteURL), nowUnix(), id); err != nil {
		return fmt.Errorf("update feed metadata: %w", err)
	}

	return nil
}

func (d *Database) DeleteFeed(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(ctx, "delete from feeds where id = ?", id); err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}

	return nil
}
