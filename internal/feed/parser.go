package feed

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"patina/internal/domain"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	untitledFeed    = "Untitled Feed"
	untitledArticle = "Untitled"
)

var textPolicy = bluemonday.StrictPolicy()

// ParseFeed parses feed content fetched from feedURL. Items without a link
// are dropped.
func ParseFeed(r io.Reader, feedURL string) (*domain.ParsedFeed, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = untitledFeed
	}

	siteURL := strings.TrimSpace(parsed.Link)
	if siteURL == "" && len(parsed.Links) > 0 {
		siteURL = strings.TrimSpace(parsed.Links[0])
	}

	out := &domain.ParsedFeed{
		Title:    title,
		URL:      feedURL,
		SiteURL:  siteURL,
		Articles: make([]domain.ParsedArticle, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		article, ok := parseItem(item)
		if !ok {
			continue
		}

		out.Articles = append(out.Articles, article)
	}

	return out, nil
}

func parseItem(item *gofeed.Item) (domain.ParsedArticle, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" {
		return domain.ParsedArticle{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitledArticle
	}

	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	var published *time.Time
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		published = &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		published = &t
	}

	return domain.ParsedArticle{
		Title:       title,
		URL:         link,
		Summary:     CleanHTML(summary),
		PublishedAt: published,
	}, true
}

// CleanHTML reduces an HTML fragment to plain text: tags are stripped,
// entities decoded and whitespace collapsed to single spaces.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}

	text := html.UnescapeString(textPolicy.Sanitize(s))

	return strings.Join(strings.Fields(text), " ")
}
