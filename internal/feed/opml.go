package feed

import (
	"encoding/xml"
	"fmt"
	"strings"

	"patina/internal/domain"
)

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Body    struct {
		Outlines []opmlOutline `xml:"outline"`
	} `xml:"body"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// ParseOPML lists every outline with a feed URL, descending into folders.
// The title is taken from the text attribute, then the title attribute.
func ParseOPML(content string) ([]domain.OPMLFeed, error) {
	var doc opmlDocument
	if err := xml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("parse OPML: %w", err)
	}

	var feeds []domain.OPMLFeed
	collectOutlines(doc.Body.Outlines, &feeds)

	return feeds, nil
}

func collectOutlines(outlines []opmlOutline, feeds *[]domain.OPMLFeed) {
	for _, o := range outlines {
		if feedURL := strings.TrimSpace(o.XMLURL); feedURL != "" {
			title := strings.TrimSpace(o.Text)
			if title == "" {
				title = strings.TrimSpace(o.Title)
			}

			*feeds = append(*feeds, domain.OPMLFeed{URL: feedURL, Title: title})
		}

		collectOutlines(o.Outlines, feeds)
	}
}
