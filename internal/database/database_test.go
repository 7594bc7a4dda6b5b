package database

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"patina/internal/domain"

	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) (*Database, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := New(context.Background(), dbPath, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, dbPath
}

func insertTestFeed(t *testing.T, db *Database, title string, feedURL string) *domain.Feed {
	t.Helper()

	f, err := db.InsertFeed(context.Background(), domain.ParsedFeed{
		Title:   title,
		URL:     feedURL,
		SiteURL: "https://example.com",
	})
	require.NoError(t, err)

	return f
}

func insertTestArticle(
	t *testing.T,
	db *Database,
	feedID int64,
	title string,
	summary string,
	publishedAt *time.Time,
) *domain.Article {
	t.Helper()

	a, inserted, err := db.InsertArticle(context.Background(), feedID, domain.ParsedArticle{
		Title:       title,
		URL:         fmt.Sprintf("https://example.com/%d/%s", feedID, title),
		Summary:     summary,
		PublishedAt: publishedAt,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	return a
}

func markRead(t *testing.T, db *Database, id int64) {
	t.Helper()

	_, err := db.MarkArticleRead(context.Background(), id)
	require.NoError(t, err)
}

func hoursAgo(h int) *time.Time {
	t := time.Now().Add(-time.Duration(h) * time.Hour).Truncate(time.Second).UTC()
	return &t
}

func TestNewIsRerunnable(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	log := slog.New(slog.DiscardHandler)

	db, err := New(ctx, dbPath, log)
	require.NoError(t, err)

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	require.NoError(t, db.Close())

	reopened, err := New(ctx, dbPath, log)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetFeed(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Example", got.Title)
}

func TestInsertFeed(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	require.NotZero(t, f.ID)
	require.Zero(t, f.UnreadCount)
	require.NotNil(t, f.LastFetchedAt)

	byURL, err := db.GetFeedByURL(ctx, "https://example.com/feed.xml")
	require.NoError(t, err)
	require.NotNil(t, byURL)
	require.Equal(t, f.ID, byURL.ID)
	require.Equal(t, "https://example.com", byURL.SiteURL)
}

func TestInsertFeedRejectsDuplicateURL(t *testing.T) {
	db, _ := newTestDatabase(t)

	insertTestFeed(t, db, "First", "https://example.com/feed.xml")

	_, err := db.InsertFeed(context.Background(), domain.ParsedFeed{
		Title: "Second",
		URL:   "https://example.com/feed.xml",
	})
	require.ErrorIs(t, err, ErrFeedExists)

	feeds, err := db.GetAllFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	require.Equal(t, "First", feeds[0].Title)
}

func TestGetFeedAbsent(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f, err := db.GetFeed(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, f)

	f, err = db.GetFeedByURL(ctx, "https://missing.example.com/rss")
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestGetAllFeedsOrdersByTitleIgnoringCase(t *testing.T) {
	db, _ := newTestDatabase(t)

	insertTestFeed(t, db, "zeta", "https://z.example.com/rss")
	insertTestFeed(t, db, "Alpha", "https://a.example.com/rss")
	insertTestFeed(t, db, "beta", "https://b.example.com/rss")

	feeds, err := db.GetAllFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 3)
	require.Equal(t, "Alpha", feeds[0].Title)
	require.Equal(t, "beta", feeds[1].Title)
	require.Equal(t, "zeta", feeds[2].Title)
}

func TestUpdateFeedMetadataKeepsArticles(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Old", "https://example.com/feed.xml")
	insertTestArticle(t, db, f.ID, "one", "", nil)

	err := db.UpdateFeedMetadata(ctx, f.ID, domain.ParsedFeed{Title: "New", SiteURL: "https://new.example.com"})
	require.NoError(t, err)

	got, err := db.GetFeed(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, "New", got.Title)
	require.Equal(t, "https://new.example.com", got.SiteURL)
	require.Equal(t, 1, got.UnreadCount)
}

func TestInsertArticleIsIdempotent(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	parsed := domain.ParsedArticle{Title: "Hello", URL: "https://example.com/hello", Summary: "first"}

	first, inserted, err := db.InsertArticle(ctx, f.ID, parsed)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, "Example", first.FeedTitle)

	parsed.Summary = "second"
	second, inserted, err := db.InsertArticle(ctx, f.ID, parsed)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "first", second.Summary)

	count, err := db.CountArticles(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestInsertArticleSameURLDifferentFeeds(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	a := insertTestFeed(t, db, "A", "https://a.example.com/rss")
	b := insertTestFeed(t, db, "B", "https://b.example.com/rss")
	parsed := domain.ParsedArticle{Title: "Shared", URL: "https://example.com/shared"}

	_, inserted, err := db.InsertArticle(ctx, a.ID, parsed)
	require.NoError(t, err)
	require.True(t, inserted)

	_, inserted, err = db.InsertArticle(ctx, b.ID, parsed)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestInsertArticleUnknownFeed(t *testing.T) {
	db, _ := newTestDatabase(t)

	_, _, err := db.InsertArticle(context.Background(), 99, domain.ParsedArticle{
		Title: "Orphan",
		URL:   "https://example.com/orphan",
	})
	require.Error(t, err)
}

func TestUnreadCountFollowsReadState(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	a1 := insertTestArticle(t, db, f.ID, "one", "", nil)
	insertTestArticle(t, db, f.ID, "two", "", nil)
	insertTestArticle(t, db, f.ID, "three", "", nil)

	unreadCount := func() int {
		got, err := db.GetFeed(ctx, f.ID)
		require.NoError(t, err)
		return got.UnreadCount
	}

	require.Equal(t, 3, unreadCount())

	markRead(t, db, a1.ID)
	require.Equal(t, 2, unreadCount())

	require.NoError(t, db.MarkArticleUnread(ctx, a1.ID))
	require.Equal(t, 3, unreadCount())
}

func TestReadUnreadRoundTrip(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	a := insertTestArticle(t, db, f.ID, "one", "", nil)

	markRead(t, db, a.ID)

	got, err := db.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)

	require.NoError(t, db.MarkArticleUnread(ctx, a.ID))

	got, err = db.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, got.IsRead)
	require.Nil(t, got.ReadAt)
}

func TestMarkArticleReadReportsTransition(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	a := insertTestArticle(t, db, f.ID, "one", "", nil)

	changed, err := db.MarkArticleRead(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = db.MarkArticleRead(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, changed)

	got, err := db.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)

	require.NoError(t, db.MarkArticleUnread(ctx, a.ID))

	changed, err = db.MarkArticleRead(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestMarkArticleReadConcurrentSingleTransition(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	a := insertTestArticle(t, db, f.ID, "one", "", nil)

	const workers = 8

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)

	for range workers {
		wg.Go(func() {
			changed, err := db.MarkArticleRead(ctx, a.ID)
			if err != nil {
				t.Errorf("mark article read: %v", err)
				return
			}

			if changed {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	require.Equal(t, 1, transitions)
}

func TestMarkMissingArticleIsNoop(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	changed, err := db.MarkArticleRead(ctx, 404)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, db.MarkArticleUnread(ctx, 404))
	require.NoError(t, db.DeleteFeed(ctx, 404))
	require.NoError(t, db.DeleteReadingPattern(ctx, 404))

	a, err := db.GetArticle(ctx, 404)
	require.NoError(t, err)
	require.Nil(t, a)
}

func TestDeleteFeedCascades(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	other := insertTestFeed(t, db, "Other", "https://other.example.com/rss")
	a := insertTestArticle(t, db, f.ID, "one", "", nil)
	insertTestArticle(t, db, other.ID, "kept", "", nil)
	require.NoError(t, db.RecordArticleTopic(ctx, a.ID, "rust", 0.5))

	require.NoError(t, db.DeleteFeed(ctx, f.ID))

	got, err := db.GetFeed(ctx, f.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	articles, err := db.GetArticlesForFeed(ctx, f.ID)
	require.NoError(t, err)
	require.Empty(t, articles)

	topics, err := db.GetArticleTopics(ctx, a.ID)
	require.NoError(t, err)
	require.Empty(t, topics)

	count, err := db.CountArticles(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGetArticlesForFeedFallsBackToFetchTime(t *testing.T) {
	db, _ := newTestDatabase(t)

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	insertTestArticle(t, db, f.ID, "old", "", hoursAgo(48))
	insertTestArticle(t, db, f.ID, "undated", "", nil)
	insertTestArticle(t, db, f.ID, "recent", "", hoursAgo(1))

	articles, err := db.GetArticlesForFeed(context.Background(), f.ID)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	require.Equal(t, "undated", articles[0].Title)
	require.Equal(t, "recent", articles[1].Title)
	require.Equal(t, "old", articles[2].Title)
}

func TestGetAllUnreadArticlesPutsUndatedLast(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	a := insertTestFeed(t, db, "A", "https://a.example.com/rss")
	b := insertTestFeed(t, db, "B", "https://b.example.com/rss")
	insertTestArticle(t, db, a.ID, "undated", "", nil)
	insertTestArticle(t, db, a.ID, "old", "", hoursAgo(48))
	read := insertTestArticle(t, db, b.ID, "read", "", hoursAgo(2))
	insertTestArticle(t, db, b.ID, "recent", "", hoursAgo(1))
	markRead(t, db, read.ID)

	articles, err := db.GetAllUnreadArticles(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	require.Equal(t, "recent", articles[0].Title)
	require.Equal(t, "old", articles[1].Title)
	require.Equal(t, "undated", articles[2].Title)
}

func TestGetRecentArticlesIncludesReadAndCaps(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	newest := insertTestArticle(t, db, f.ID, "newest", "", hoursAgo(1))
	insertTestArticle(t, db, f.ID, "middle", "", hoursAgo(2))
	insertTestArticle(t, db, f.ID, "oldest", "", hoursAgo(3))
	markRead(t, db, newest.ID)

	articles, err := db.GetRecentArticles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	require.Equal(t, "newest", articles[0].Title)
	require.True(t, articles[0].IsRead)
	require.Equal(t, "middle", articles[1].Title)

	articles, err = db.GetRecentArticles(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, articles)
}

func TestAddReadingPatternAccumulatesWeight(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	first, err := db.AddReadingPattern(ctx, domain.PatternTopic, "rust", domain.SourceManual)
	require.NoError(t, err)
	require.InDelta(t, 1.0, first.Weight, 1e-9)

	second, err := db.AddReadingPattern(ctx, domain.PatternTopic, "rust", domain.SourceAuto)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.InDelta(t, 1.1, second.Weight, 1e-9)
	require.Equal(t, domain.SourceManual, second.Source)

	patterns, err := db.GetReadingPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
}

func TestReadingPatternsCRUD(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	_, err := db.AddReadingPattern(ctx, domain.PatternKeyword, "apple", domain.SourceManual)
	require.NoError(t, err)
	swift, err := db.AddReadingPattern(ctx, domain.PatternTopic, "swift", domain.SourceManual)
	require.NoError(t, err)
	_, err = db.AddReadingPattern(ctx, domain.PatternTopic, "swift", domain.SourceManual)
	require.NoError(t, err)

	// Same value under another kind is a separate pattern.
	_, err = db.AddReadingPattern(ctx, domain.PatternExcluded, "swift", domain.SourceManual)
	require.NoError(t, err)

	patterns, err := db.GetReadingPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 3)
	require.Equal(t, swift.ID, patterns[0].ID)

	require.NoError(t, db.DeleteReadingPattern(ctx, swift.ID))
	patterns, err = db.GetReadingPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	require.NoError(t, db.ResetReadingPatterns(ctx))
	patterns, err = db.GetReadingPatterns(ctx)
	require.NoError(t, err)
	require.Empty(t, patterns)
}

func TestRecordArticleTopicReplaces(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	a := insertTestArticle(t, db, f.ID, "one", "", nil)

	require.NoError(t, db.RecordArticleTopic(ctx, a.ID, "rust", 0.2))
	require.NoError(t, db.RecordArticleTopic(ctx, a.ID, "rust", 0.7))
	require.NoError(t, db.RecordArticleTopic(ctx, a.ID, "memory", 0.1))

	topics, err := db.GetArticleTopics(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	require.Equal(t, "rust", topics[0].Topic)
	require.InDelta(t, 0.7, topics[0].Score, 1e-9)
}

func TestGetUnreadArticlesWithTopicsRanksByScore(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	strong := insertTestArticle(t, db, f.ID, "strong", "", nil)
	mixed := insertTestArticle(t, db, f.ID, "mixed", "", nil)
	unrelated := insertTestArticle(t, db, f.ID, "unrelated", "", nil)
	read := insertTestArticle(t, db, f.ID, "read", "", nil)

	require.NoError(t, db.RecordArticleTopic(ctx, strong.ID, "rust", 0.6))
	require.NoError(t, db.RecordArticleTopic(ctx, mixed.ID, "rust", 0.2))
	require.NoError(t, db.RecordArticleTopic(ctx, mixed.ID, "go", 0.3))
	require.NoError(t, db.RecordArticleTopic(ctx, unrelated.ID, "cooking", 0.9))
	require.NoError(t, db.RecordArticleTopic(ctx, read.ID, "rust", 1.0))
	markRead(t, db, read.ID)

	articles, err := db.GetUnreadArticlesWithTopics(ctx, []string{"rust", "go"}, 10)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	require.Equal(t, strong.ID, articles[0].ID)
	require.Equal(t, mixed.ID, articles[1].ID)
	require.Equal(t, unrelated.ID, articles[2].ID)

	articles, err = db.GetUnreadArticlesWithTopics(ctx, []string{"rust"}, 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.Equal(t, strong.ID, articles[0].ID)
}

func TestGetUnreadArticlesWithoutTopicsSamples(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	for i := range 6 {
		insertTestArticle(t, db, f.ID, fmt.Sprintf("article-%d", i), "", nil)
	}

	articles, err := db.GetUnreadArticlesWithTopics(ctx, nil, 4)
	require.NoError(t, err)
	require.Len(t, articles, 4)

	for _, a := range articles {
		require.False(t, a.IsRead)
	}
}

func TestGetTopReadTopicsCountsReadArticlesOnly(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")
	a1 := insertTestArticle(t, db, f.ID, "one", "", nil)
	a2 := insertTestArticle(t, db, f.ID, "two", "", nil)
	unread := insertTestArticle(t, db, f.ID, "three", "", nil)

	require.NoError(t, db.RecordArticleTopic(ctx, a1.ID, "rust", 0.5))
	require.NoError(t, db.RecordArticleTopic(ctx, a2.ID, "rust", 0.25))
	require.NoError(t, db.RecordArticleTopic(ctx, a2.ID, "go", 0.5))
	require.NoError(t, db.RecordArticleTopic(ctx, unread.ID, "cooking", 5))
	markRead(t, db, a1.ID)
	markRead(t, db, a2.ID)

	topics, err := db.GetTopReadTopics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	require.Equal(t, "rust", topics[0].Topic)
	require.InDelta(t, 0.75, topics[0].Score, 1e-9)
	require.Equal(t, "go", topics[1].Topic)

	topics, err = db.GetTopReadTopics(ctx, 1)
	require.NoError(t, err)
	require.Len(t, topics, 1)
}

func TestConcurrentCallersSerialize(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	f := insertTestFeed(t, db, "Example", "https://example.com/feed.xml")

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers*perWorker)

	for range workers {
		wg.Go(func() {
			for i := range perWorker {
				// Every worker races on the same URLs.
				_, _, err := db.InsertArticle(ctx, f.ID, domain.ParsedArticle{
					Title: fmt.Sprintf("article-%d", i),
					URL:   fmt.Sprintf("https://example.com/%d", i),
				})
				if err != nil {
					errCh <- err
				}

				if _, err = db.GetAllFeeds(ctx); err != nil {
					errCh <- err
				}
			}
		})
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	got, err := db.GetFeed(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, perWorker, got.UnreadCount)
}
