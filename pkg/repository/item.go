package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/italyre/casafeed/pkg/domain"
)

// ItemRepository handles normalized item rows. Items are append-only, keyed
// by (feed_id, external_id); the unique constraint is the dedup guard, so a
// conflict on insert is the duplicate signal rather than an error.
type ItemRepository struct {
	db *sqlx.DB
}

// itemSQL represents an item for SQL operations
type itemSQL struct {
	ID           int64     `db:"id"`
	FeedID       int64     `db:"feed_id"`
	ExternalID   string    `db:"external_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	URL          string    `db:"url"`
	ImageURL     *string   `db:"image_url"`
	Price        *int64    `db:"price"`
	Location     *string   `db:"location"`
	PropertyType string    `db:"property_type"`
	PublishedAt  time.Time `db:"published_at"`
	QualityScore int       `db:"quality_score"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`

	FeedName     string `db:"feed_name"`
	FeedCategory string `db:"feed_category"`
}

// NewItemRepository creates a new item repository
func NewItemRepository(database *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: database}
}

func (r *ItemRepository) toDomain(it *itemSQL) domain.Item {
	item := domain.Item{
		ID:           it.ID,
		FeedID:       it.FeedID,
		ExternalID:   it.ExternalID,
		Title:        it.Title,
		Description:  it.Description,
		URL:          it.URL,
		Price:        it.Price,
		Location:     it.Location,
		PropertyType: it.PropertyType,
		PublishedAt:  it.PublishedAt,
		QualityScore: it.QualityScore,
		Status:       it.Status,
		CreatedAt:    it.CreatedAt,
		FeedName:     it.FeedName,
		FeedCategory: it.FeedCategory,
	}
	if it.ImageURL != nil {
		item.ImageURL = *it.ImageURL
	}
	return item
}

// CreateItem inserts a new item. Returns false without error when an item
// with the same (feed_id, external_id) already exists.
func (r *ItemRepository) CreateItem(ctx context.Context, item *domain.Item) (bool, error) {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	var inserted bool
	err := retrier.Do(ctx, func() error {
		query := `
			INSERT INTO items (feed_id, external_id, title, description, url, image_url,
			                   price, location, property_type, published_at, quality_score, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(feed_id, external_id) DO NOTHING
		`
		var imageURL *string
		if item.ImageURL != "" {
			imageURL = &item.ImageURL
		}

		result, err := r.db.ExecContext(ctx, query,
			item.FeedID, item.ExternalID, item.Title, item.Description, item.URL, imageURL,
			item.Price, item.Location, item.PropertyType, item.PublishedAt, item.QualityScore, item.Status)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("insert item: %w", err)}
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get rows affected: %w", err)}
		}
		inserted = rows > 0

		if inserted {
			id, err := result.LastInsertId()
			if err != nil {
				return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
			}
			item.ID = id
		}
		return nil
	})
	return inserted, err
}

// ItemExists checks whether an item with the given dedup key is already stored
func (r *ItemRepository) ItemExists(ctx context.Context, feedID int64, externalID string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM items WHERE feed_id = ? AND external_id = ?"
	if err := r.db.GetContext(ctx, &count, query, feedID, externalID); err != nil {
		return false, fmt.Errorf("check item exists: %w", err)
	}
	return count > 0, nil
}

// GetActiveItems retrieves stored active items ordered by recency, optionally
// narrowed to a feed category. Review items are excluded.
func (r *ItemRepository) GetActiveItems(ctx context.Context, limit int, category string) ([]domain.Item, error) {
	query := `
		SELECT i.*, f.name AS feed_name, f.category AS feed_category
		FROM items i
		JOIN feeds f ON f.id = i.feed_id
		WHERE i.status = ?
	`
	args := []interface{}{domain.StatusActive}
	if category != "" {
		query += " AND f.category = ?"
		args = append(args, category)
	}
	query += " ORDER BY i.published_at DESC LIMIT ?"
	args = append(args, limit)

	var sqlItems []itemSQL
	if err := r.db.SelectContext(ctx, &sqlItems, query, args...); err != nil {
		return nil, fmt.Errorf("get active items: %w", err)
	}

	items := make([]domain.Item, len(sqlItems))
	for i := range sqlItems {
		items[i] = r.toDomain(&sqlItems[i])
	}
	return items, nil
}

// GetItemsByFeed retrieves items of one feed regardless of status, newest first
func (r *ItemRepository) GetItemsByFeed(ctx context.Context, feedID int64, limit int) ([]domain.Item, error) {
	query := `
		SELECT i.*, f.name AS feed_name, f.category AS feed_category
		FROM items i
		JOIN feeds f ON f.id = i.feed_id
		WHERE i.feed_id = ?
		ORDER BY i.published_at DESC
		LIMIT ?
	`
	var sqlItems []itemSQL
	if err := r.db.SelectContext(ctx, &sqlItems, query, feedID, limit); err != nil {
		return nil, fmt.Errorf("get items by feed: %w", err)
	}

	items := make([]domain.Item, len(sqlItems))
	for i := range sqlItems {
		items[i] = r.toDomain(&sqlItems[i])
	}
	return items, nil
}
