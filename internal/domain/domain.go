package domain

import "time"

type PatternKind string

const (
	PatternTopic    PatternKind = "topic"
	PatternKeyword  PatternKind = "keyword"
	PatternExcluded PatternKind = "excluded"
)

func (k PatternKind) Valid() bool {
	switch k {
	case PatternTopic, PatternKeyword, PatternExcluded:
		return true
	default:
		return false
	}
}

type PatternSource string

const (
	SourceManual PatternSource = "manual"
	SourceAuto   PatternSource = "auto"
)

// Feed is a subscription. UnreadCount is always computed from article state
// when the feed is read from storage.
type Feed struct {
	ID            int64
	Title         string
	URL           string
	SiteURL       string
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UnreadCount   int
}

type Article struct {
	ID          int64
	FeedID      int64
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
	FetchedAt   time.Time
	IsRead      bool
	ReadAt      *time.Time
	FeedTitle   string
}

type ReadingPattern struct {
	ID        int64
	Kind      PatternKind
	Value     string
	Source    PatternSource
	Weight    float64
	CreatedAt time.Time
}

type ArticleTopic struct {
	ArticleID int64
	Topic     string
	Score     float64
}

type TopicScore struct {
	Topic string
	Score float64
}

type ParsedFeed struct {
	Title    string
	URL      string
	SiteURL  string
	Articles []ParsedArticle
}

type ParsedArticle struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
}

type DiscoveredFeed struct {
	URL   string
	Title string
}

type OPMLFeed struct {
	URL   string
	Title string
}

type ImportResult struct {
	Total    int
	Imported int
	Failed   int
	Errors   []string
}
