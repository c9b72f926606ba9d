package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/italyre/casafeed/pkg/domain"
)

// scoring thresholds and bonuses, clamp keeps the total within [0, 100]
const (
	baseScore        = 50
	titleBonus       = 20
	descriptionBonus = 15
	imageBonus       = 10
	urlBonus         = 5

	minTitleLen       = 10
	minDescriptionLen = 50

	activeThreshold = 70

	maxTitleLen       = 500
	maxDescriptionLen = 1000
)

// ContentHash computes the dedup key for an item: a short hex digest of the
// link, or the title when no link is present
func ContentHash(link, title string) string {
	input := link
	if input == "" {
		input = title
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// pricePatterns match currency-marked amounts in European (1.234.567,89) and
// US (1,234,567.89) conventions, symbol before or after the number
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`€\s*([0-9]+(?:\.[0-9]{3})*(?:,[0-9]{2})?)`),
	regexp.MustCompile(`([0-9]+(?:\.[0-9]{3})*(?:,[0-9]{2})?)\s*€`),
	regexp.MustCompile(`\$\s*([0-9]+(?:,[0-9]{3})*(?:\.[0-9]{2})?)`),
	regexp.MustCompile(`([0-9]+(?:,[0-9]{3})*(?:\.[0-9]{2})?)\s*\$`),
}

// ExtractPrice returns the first currency-marked amount found in text as an
// integer with separators stripped, or nil when none is found
func ExtractPrice(text string) *int64 {
	if text == "" {
		return nil
	}
	for _, re := range pricePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cleaned := strings.NewReplacer(".", "", ",", "").Replace(m[1])
		if v, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return &v
		}
	}
	return nil
}

// locationPatterns: a capitalized word sequence after a preposition or before
// a comma. Heuristic, false positives are expected and acceptable.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:a|in|di)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s*,`),
}

// ExtractLocation returns the first plausible location mention, or nil
func ExtractLocation(text string) *string {
	for _, re := range locationPatterns {
		m := re.FindStringSubmatch(text)
		if m != nil && len(m[1]) > 2 {
			loc := m[1]
			return &loc
		}
	}
	return nil
}

// propertyKeywords maps keyword containment to a category label, checked in order
var propertyKeywords = []struct {
	keywords []string
	label    string
}{
	{[]string{"appartamento", "apartment"}, "Appartamento"},
	{[]string{"villa", "house"}, "Villa"},
	{[]string{"ufficio", "office"}, "Ufficio"},
	{[]string{"negozio", "shop"}, "Commerciale"},
	{[]string{"terreno", "land"}, "Terreno"},
}

// PropertyType infers a property category from keyword containment,
// defaulting to the generic "Immobile"
func PropertyType(text string) string {
	low := strings.ToLower(text)
	for _, pk := range propertyKeywords {
		for _, kw := range pk.keywords {
			if strings.Contains(low, kw) {
				return pk.label
			}
		}
	}
	return "Immobile"
}

// QualityScore grades an item by shape: base score plus fixed bonuses for a
// real title, a substantial description, an image and a well-formed URL
func QualityScore(item domain.RawItem) int {
	score := baseScore
	if len(item.Title) > minTitleLen {
		score += titleBonus
	}
	if len(item.Description) > minDescriptionLen {
		score += descriptionBonus
	}
	if item.ImageURL != "" {
		score += imageBonus
	}
	if strings.HasPrefix(item.Link, "http") {
		score += urlBonus
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Normalize transforms a raw parsed item into a candidate persisted item.
// The publish timestamp falls back to now when the source had none.
func Normalize(raw domain.RawItem, feedID int64, now time.Time) domain.Item {
	text := raw.Title + " " + raw.Description

	published := raw.Published
	if published.IsZero() {
		published = now
	}

	title := raw.Title
	if title == "" {
		title = "No title"
	}

	item := domain.Item{
		FeedID:       feedID,
		ExternalID:   ContentHash(raw.Link, raw.Title),
		Title:        truncate(title, maxTitleLen),
		Description:  truncate(raw.Description, maxDescriptionLen),
		URL:          raw.Link,
		ImageURL:     raw.ImageURL,
		Price:        ExtractPrice(text),
		Location:     ExtractLocation(text),
		PropertyType: PropertyType(text),
		PublishedAt:  published,
		QualityScore: QualityScore(raw),
	}

	item.Status = domain.StatusReview
	if item.QualityScore >= activeThreshold {
		item.Status = domain.StatusActive
	}

	return item
}

// truncate cuts s to at most limit bytes without splitting a multi-byte rune
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
