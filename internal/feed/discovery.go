package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"patina/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const feedLinkSelector = `link[rel="alternate"][type="application/rss+xml"],` +
	`link[rel="alternate"][type="application/atom+xml"],` +
	`link[rel="alternate"][type="text/xml"],` +
	`a[href*="rss"], a[href*="feed"], a[href*="atom"]`

var commonFeedPaths = []string{
	"/feed",
	"/feed/",
	"/rss",
	"/rss.xml",
	"/atom.xml",
	"/feed.xml",
	"/index.xml",
}

// DiscoverFeeds fetches a web page and lists the feed links it advertises,
// followed by the conventional feed paths of the site as untitled candidates.
// Candidates are not fetched. Results are cached per website URL for a short
// time.
func (f *Fetcher) DiscoverFeeds(
	ctx context.Context,
	websiteURL string,
) ([]domain.DiscoveredFeed, error) {
	websiteURL = strings.TrimSpace(websiteURL)

	if cached, ok := f.discoveries.get(websiteURL, time.Now()); ok {
		f.log.DebugContext(ctx, "Discovered feeds are cached",
			"websiteURL", websiteURL,
			"feedCount", len(cached))

		return cached, nil
	}

	base, err := url.Parse(websiteURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	body, err := f.get(ctx, websiteURL)
	if err != nil {
		return nil, err
	}

	feeds, err := ParseFeedLinks(bytes.NewReader(body), base)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	f.discoveries.set(websiteURL, feeds, now.Add(discoveryCacheTTL), now)

	f.log.InfoContext(ctx, "Feeds are discovered",
		"websiteURL", websiteURL,
		"feedCount", len(feeds))

	return feeds, nil
}

// ParseFeedLinks extracts feed candidates from an HTML document, resolving
// relative links against base.
func ParseFeedLinks(r io.Reader, base *url.URL) ([]domain.DiscoveredFeed, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}

	var feeds []domain.DiscoveredFeed
	seen := make(map[string]struct{})

	doc.Find(feedLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		resolved, parseErr := base.Parse(strings.TrimSpace(href))
		if parseErr != nil {
			return
		}

		feedURL := resolved.String()
		if _, dup := seen[feedURL]; dup {
			return
		}
		seen[feedURL] = struct{}{}

		title, _ := s.Attr("title")
		title = strings.TrimSpace(title)
		if title == "" {
			title = strings.Join(strings.Fields(s.Text()), " ")
		}

		feeds = append(feeds, domain.DiscoveredFeed{URL: feedURL, Title: title})
	})

	for _, p := range commonFeedPaths {
		resolved, parseErr := base.Parse(p)
		if parseErr != nil {
			continue
		}

		feedURL := resolved.String()
		if _, dup := seen[feedURL]; dup {
			continue
		}
		seen[feedURL] = struct{}{}

		feeds = append(feeds, domain.DiscoveredFeed{URL: feedURL})
	}

	return slices.Clip(feeds), nil
}
