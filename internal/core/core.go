package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"patina/internal/database"
	"patina/internal/domain"
	"patina/internal/serendipity"
)

var (
	ErrInvalidURL     = errors.New("invalid URL")
	ErrInvalidPattern = errors.New("invalid reading pattern")
	ErrNotFound       = errors.New("not found")
)

// FeedExistsError reports a subscription to a URL that is already stored.
// It matches database.ErrFeedExists with errors.Is.
type FeedExistsError struct {
	Title string
	URL   string
}

func (e *FeedExistsError) Error() string {
	return fmt.Sprintf("feed already exists: %s (URL = %s)", e.Title, e.URL)
}

func (e *FeedExistsError) Unwrap() error {
	return database.ErrFeedExists
}

type FeedSource interface {
	FetchFeed(ctx context.Context, feedURL string) (*domain.ParsedFeed, error)
	DiscoverFeeds(ctx context.Context, websiteURL string) ([]domain.DiscoveredFeed, error)
}

// Core is the reader service: subscriptions, read state, imports and
// serendipity on top of one store.
type Core struct {
	db       *database.Database
	feeds    FeedSource
	surfacer *serendipity.Surfacer
	log      *slog.Logger
}

func New(db *database.Database, feeds FeedSource, log *slog.Logger) *Core {
	return &Core{
		db:       db,
		feeds:    feeds,
		surfacer: serendipity.NewSurfacer(db, log),
		log:      log,
	}
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidURL, raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s: scheme must be http or https", ErrInvalidURL, raw)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: %s: missing host", ErrInvalidURL, raw)
	}

	return raw, nil
}
