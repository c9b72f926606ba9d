package domain

import "time"

// banner event types tracked for analytics
const (
	BannerEventView  = "view"
	BannerEventClick = "click"
)

// Banner represents a promotional banner managed by the admin back-office
type Banner struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	ImageURL     string    `json:"image_url"`
	TargetURL    string    `json:"target_url"`
	Position     string    `json:"position"` // homepage, sidebar...
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
	ViewCount    int64     `json:"view_count"`
	ClickCount   int64     `json:"click_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BannerStats aggregates tracked events for one banner
type BannerStats struct {
	BannerID int64   `json:"banner_id"`
	Title    string  `json:"title"`
	Views    int64   `json:"views"`
	Clicks   int64   `json:"clicks"`
	CTR      float64 `json:"ctr"`
}
