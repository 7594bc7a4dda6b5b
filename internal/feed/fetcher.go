package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"patina/internal/domain"
	"patina/internal/ratelimiter"
)

const (
	maxResponseBytes = 16 << 20

	discoveryCacheMaxEntries = 1024
	discoveryCacheTTL        = 10 * time.Minute
)

type Fetcher struct {
	client      *http.Client
	userAgent   string
	limiter     *ratelimiter.RateLimiter
	discoveries *discoveryCache
	log         *slog.Logger
}

func NewFetcher(
	userAgent string,
	timeout time.Duration,
	limiter *ratelimiter.RateLimiter,
	log *slog.Logger,
) *Fetcher {
	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		limiter:     limiter,
		discoveries: newDiscoveryCache(discoveryCacheMaxEntries),
		log:         log,
	}
}

// FetchFeed downloads feedURL and parses it as RSS, Atom or JSON Feed.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) (*domain.ParsedFeed, error) {
	feedURL = strings.TrimSpace(feedURL)

	body, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseFeed(bytes.NewReader(body), feedURL)
	if err != nil {
		return nil, err
	}

	f.log.DebugContext(ctx, "Feed is fetched",
		"feedURL", feedURL,
		"title", parsed.Title,
		"articleCount", len(parsed.Articles))

	return parsed, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // user-supplied feed URL
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("do request (URL = %s): unexpected status: %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}
