package domain

import "time"

// item status values, active items are eligible for display
const (
	StatusActive = "active"
	StatusReview = "review"
)

// RawItem is a single entry extracted from one feed document.
// Produced by the parser, consumed by enrichment, never persisted.
type RawItem struct {
	Title       string
	Description string
	Link        string
	PubDate     string
	Published   time.Time // zero when the source date could not be parsed
	ImageURL    string
}

// Item represents a deduplicated, enriched content record
type Item struct {
	ID           int64     `json:"id,omitempty"`
	FeedID       int64     `json:"feed_id,omitempty"`
	ExternalID   string    `json:"external_id"` // content hash, the dedup key
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	ImageURL     string    `json:"image_url,omitempty"`
	Price        *int64    `json:"price,omitempty"`
	Location     *string   `json:"location,omitempty"`
	PropertyType string    `json:"property_type"`
	PublishedAt  time.Time `json:"published_at"`
	QualityScore int       `json:"quality_score"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at,omitempty"`

	// provenance, filled on the read path
	FeedName     string `json:"source,omitempty"`
	FeedCategory string `json:"category,omitempty"`
}

// AggregationResult is the ephemeral output of one aggregation pass
type AggregationResult struct {
	Items       []Item    `json:"items"`
	LastUpdated time.Time `json:"lastUpdated"`
	Sources     []string  `json:"sources"`
	TotalItems  int       `json:"totalItems"`
}

// FeedOutcome describes the result of processing a single source in a batch pass
type FeedOutcome struct {
	FeedID         int64  `json:"feed_id"`
	FeedName       string `json:"feed_name"`
	ProcessedItems int    `json:"processed_items"`
	Status         string `json:"status"` // success or error
	Error          string `json:"error,omitempty"`
}

// RefreshReport summarizes a full batch aggregation pass
type RefreshReport struct {
	ProcessedFeeds int           `json:"processed_feeds"`
	Results        []FeedOutcome `json:"results"`
}
