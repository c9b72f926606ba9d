package domain

import "time"

// FeedSource represents a configured external RSS endpoint
type FeedSource struct {
	ID          int64
	Name        string
	URL         string
	Category    string // market, luxury, investment...
	Enabled     bool
	LastSuccess *time.Time
	LastError   string
	CreatedAt   time.Time
}
