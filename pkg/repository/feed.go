package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/italyre/casafeed/pkg/domain"
)

// FeedRepository handles feed source rows
type FeedRepository struct {
	db *sqlx.DB
}

// feedSQL represents a feed source for SQL operations
type feedSQL struct {
	ID          int64      `db:"id"`
	Name        string     `db:"name"`
	URL         string     `db:"url"`
	Category    string     `db:"category"`
	Enabled     bool       `db:"enabled"`
	LastSuccess *time.Time `db:"last_success"`
	LastError   string     `db:"last_error"`
	CreatedAt   time.Time  `db:"created_at"`
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(database *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: database}
}

func (r *FeedRepository) toDomain(f *feedSQL) domain.FeedSource {
	return domain.FeedSource{
		ID:          f.ID,
		Name:        f.Name,
		URL:         f.URL,
		Category:    f.Category,
		Enabled:     f.Enabled,
		LastSuccess: f.LastSuccess,
		LastError:   f.LastError,
		CreatedAt:   f.CreatedAt,
	}
}

// CreateFeed inserts a new feed source
func (r *FeedRepository) CreateFeed(ctx context.Context, feed *domain.FeedSource) error {
	query := `
		INSERT INTO feeds (name, url, category, enabled)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query, feed.Name, feed.URL, feed.Category, feed.Enabled)
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	feed.ID = id
	return nil
}

// EnsureFeed inserts a feed source unless one with the same URL already exists.
// Used to seed config-defined sources at startup.
func (r *FeedRepository) EnsureFeed(ctx context.Context, feed *domain.FeedSource) error {
	query := `
		INSERT INTO feeds (name, url, category, enabled)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(url) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, feed.Name, feed.URL, feed.Category); err != nil {
		return fmt.Errorf("ensure feed: %w", err)
	}

	var f feedSQL
	if err := r.db.GetContext(ctx, &f, "SELECT * FROM feeds WHERE url = ?", feed.URL); err != nil {
		return fmt.Errorf("reload feed: %w", err)
	}
	*feed = r.toDomain(&f)
	return nil
}

// GetFeeds retrieves all feed sources
func (r *FeedRepository) GetFeeds(ctx context.Context) ([]domain.FeedSource, error) {
	var sqlFeeds []feedSQL
	if err := r.db.SelectContext(ctx, &sqlFeeds, "SELECT * FROM feeds ORDER BY name"); err != nil {
		return nil, fmt.Errorf("get feeds: %w", err)
	}

	feeds := make([]domain.FeedSource, len(sqlFeeds))
	for i := range sqlFeeds {
		feeds[i] = r.toDomain(&sqlFeeds[i])
	}
	return feeds, nil
}

// GetEnabledFeeds retrieves enabled feed sources, optionally narrowed to a category
func (r *FeedRepository) GetEnabledFeeds(ctx context.Context, category string) ([]domain.FeedSource, error) {
	query := "SELECT * FROM feeds WHERE enabled = 1"
	args := []interface{}{}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY id"

	var sqlFeeds []feedSQL
	if err := r.db.SelectContext(ctx, &sqlFeeds, query, args...); err != nil {
		return nil, fmt.Errorf("get enabled feeds: %w", err)
	}

	feeds := make([]domain.FeedSource, len(sqlFeeds))
	for i := range sqlFeeds {
		feeds[i] = r.toDomain(&sqlFeeds[i])
	}
	return feeds, nil
}

// UpdateFeedSuccess records a successful fetch: stamps last_success, clears last_error
func (r *FeedRepository) UpdateFeedSuccess(ctx context.Context, feedID int64, ts time.Time) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE feeds
			SET last_success = ?,
			    last_error = ''
			WHERE id = ?
		`
		_, err := r.db.ExecContext(ctx, query, ts, feedID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update feed success: %w", err)}
		}
		return nil
	})
}

// UpdateFeedError records a failed fetch, last_success stays untouched
func (r *FeedRepository) UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := "UPDATE feeds SET last_error = ? WHERE id = ?"
		_, err := r.db.ExecContext(ctx, query, errMsg, feedID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update feed error: %w", err)}
		}
		return nil
	})
}

// UpdateFeedStatus enables or disables a feed source
func (r *FeedRepository) UpdateFeedStatus(ctx context.Context, feedID int64, enabled bool) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		result, err := r.db.ExecContext(ctx, "UPDATE feeds SET enabled = ? WHERE id = ?", enabled, feedID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update feed status: %w", err)}
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get rows affected: %w", err)}
		}
		if rows == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}
