package feed

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/italyre/casafeed/pkg/domain"
)

// Parser converts a raw feed document into normalized raw items.
// Well-formed documents go through gofeed; malformed ones fall back to a
// lenient pattern scan so a broken feed still yields its salvageable items.
type Parser struct {
	maxItems  int
	sanitizer *bluemonday.Policy
}

// NewParser creates a parser capping output at maxItems per document
func NewParser(maxItems int) *Parser {
	if maxItems <= 0 {
		maxItems = 20
	}
	return &Parser{
		maxItems:  maxItems,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

var (
	itemRe      = regexp.MustCompile(`(?is)<item[^>]*>(.*?)</item>`)
	enclosureRe = regexp.MustCompile(`(?i)<enclosure[^>]+url="([^"]+)"[^>]*type="image`)
	mediaRe     = regexp.MustCompile(`(?i)<media:content[^>]+url="([^"]+)"[^>]*type="image`)
)

// Parse extracts items from a raw feed document, preserving document order.
// A document yielding zero items is an empty result, not an error.
func (p *Parser) Parse(raw string) []domain.RawItem {
	if feed, err := gofeed.NewParser().ParseString(raw); err == nil {
		return p.fromFeed(feed)
	}
	return p.scanItems(raw)
}

// fromFeed converts a gofeed document
func (p *Parser) fromFeed(feed *gofeed.Feed) []domain.RawItem {
	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if len(items) >= p.maxItems {
			break
		}

		raw := domain.RawItem{
			Title:       p.cleanText(it.Title),
			Description: p.cleanText(it.Description),
			Link:        strings.TrimSpace(it.Link),
			PubDate:     it.Published,
			ImageURL:    imageFromFeedItem(it),
		}
		if it.PublishedParsed != nil {
			raw.Published = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			raw.Published = *it.UpdatedParsed
		}

		items = append(items, raw)
	}
	return items
}

// scanItems extracts items from malformed XML with non-validating patterns
func (p *Parser) scanItems(raw string) []domain.RawItem {
	blocks := itemRe.FindAllStringSubmatch(raw, p.maxItems)
	items := make([]domain.RawItem, 0, len(blocks))

	for _, block := range blocks {
		body := block[1]
		item := domain.RawItem{
			Title:       p.cleanText(extractTag(body, "title")),
			Description: p.cleanText(extractTag(body, "description")),
			Link:        strings.TrimSpace(stripCDATA(extractTag(body, "link"))),
			PubDate:     extractTag(body, "pubDate"),
		}
		item.Published = parsePubDate(item.PubDate)

		if m := enclosureRe.FindStringSubmatch(body); m != nil {
			item.ImageURL = m[1]
		} else if m := mediaRe.FindStringSubmatch(body); m != nil {
			item.ImageURL = m[1]
		}

		items = append(items, item)
	}
	return items
}

// cleanText strips markup, decodes XML entities and trims whitespace.
// Entity decoding runs before sanitizing so escaped markup in feed bodies is
// stripped too, and after it because the sanitizer re-escapes plain text.
func (p *Parser) cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = stripCDATA(s)
	s = html.UnescapeString(s)
	s = p.sanitizer.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

func stripCDATA(s string) string {
	s = strings.ReplaceAll(s, "<![CDATA[", "")
	return strings.ReplaceAll(s, "]]>", "")
}

func extractTag(content, tag string) string {
	re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>(.*?)</` + tag + `>`)
	if m := re.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// pubDateLayouts covers the date formats seen in real-world RSS feeds
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// imageFromFeedItem looks for an image in the item's own image element,
// enclosures with an image mime type, or a media:content extension
func imageFromFeedItem(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if strings.HasPrefix(enc.Type, "image") && enc.URL != "" {
			return enc.URL
		}
	}
	if media, ok := it.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if strings.HasPrefix(ext.Attrs["type"], "image") && ext.Attrs["url"] != "" {
				return ext.Attrs["url"]
			}
		}
		for _, ext := range media["thumbnail"] {
			if ext.Attrs["url"] != "" {
				return ext.Attrs["url"]
			}
		}
	}
	return ""
}
