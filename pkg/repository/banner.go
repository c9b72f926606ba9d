package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/italyre/casafeed/pkg/domain"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// BannerRepository handles promotional banner rows and their tracked events
type BannerRepository struct {
	db *sqlx.DB
}

// bannerSQL represents a banner for SQL operations
type bannerSQL struct {
	ID           int64     `db:"id"`
	Title        string    `db:"title"`
	Subtitle     string    `db:"subtitle"`
	ImageURL     string    `db:"image_url"`
	TargetURL    string    `db:"target_url"`
	Position     string    `db:"position"`
	DisplayOrder int       `db:"display_order"`
	Active       bool      `db:"active"`
	ViewCount    int64     `db:"view_count"`
	ClickCount   int64     `db:"click_count"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// NewBannerRepository creates a new banner repository
func NewBannerRepository(database *sqlx.DB) *BannerRepository {
	return &BannerRepository{db: database}
}

func (r *BannerRepository) toDomain(b *bannerSQL) domain.Banner {
	return domain.Banner{
		ID:           b.ID,
		Title:        b.Title,
		Subtitle:     b.Subtitle,
		ImageURL:     b.ImageURL,
		TargetURL:    b.TargetURL,
		Position:     b.Position,
		DisplayOrder: b.DisplayOrder,
		Active:       b.Active,
		ViewCount:    b.ViewCount,
		ClickCount:   b.ClickCount,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// CreateBanner inserts a new banner, assigning it the next display order
// within its position
func (r *BannerRepository) CreateBanner(ctx context.Context, banner *domain.Banner) error {
	query := `
		INSERT INTO banners (title, subtitle, image_url, target_url, position, display_order, active)
		VALUES (?, ?, ?, ?, ?,
		        COALESCE((SELECT MAX(display_order) + 1 FROM banners WHERE position = ?), 0),
		        ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		banner.Title, banner.Subtitle, banner.ImageURL, banner.TargetURL, banner.Position,
		banner.Position, banner.Active)
	if err != nil {
		return fmt.Errorf("create banner: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	banner.ID = id
	return nil
}

// GetBanner retrieves a banner by ID
func (r *BannerRepository) GetBanner(ctx context.Context, id int64) (*domain.Banner, error) {
	var b bannerSQL
	err := r.db.GetContext(ctx, &b, "SELECT * FROM banners WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get banner: %w", err)
	}
	banner := r.toDomain(&b)
	return &banner, nil
}

// GetBanners retrieves banners ordered by position and display order,
// optionally narrowed to one position
func (r *BannerRepository) GetBanners(ctx context.Context, position string, activeOnly bool) ([]domain.Banner, error) {
	query := "SELECT * FROM banners WHERE 1=1"
	args := []interface{}{}
	if position != "" {
		query += " AND position = ?"
		args = append(args, position)
	}
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY position, display_order"

	var sqlBanners []bannerSQL
	if err := r.db.SelectContext(ctx, &sqlBanners, query, args...); err != nil {
		return nil, fmt.Errorf("get banners: %w", err)
	}

	banners := make([]domain.Banner, len(sqlBanners))
	for i := range sqlBanners {
		banners[i] = r.toDomain(&sqlBanners[i])
	}
	return banners, nil
}

// UpdateBanner updates banner content fields
func (r *BannerRepository) UpdateBanner(ctx context.Context, banner *domain.Banner) error {
	query := `
		UPDATE banners
		SET title = ?, subtitle = ?, image_url = ?, target_url = ?,
		    position = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		banner.Title, banner.Subtitle, banner.ImageURL, banner.TargetURL,
		banner.Position, banner.Active, banner.ID)
	if err != nil {
		return fmt.Errorf("update banner: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBanner removes a banner and its events
func (r *BannerRepository) DeleteBanner(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM banners WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete banner: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderBanners applies an explicit display order: position in the id list
// becomes the banner's display_order
func (r *BannerRepository) ReorderBanners(ctx context.Context, ids []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for order, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"UPDATE banners SET display_order = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			order, id); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("reorder banners: %w (rollback also failed: %s)", err, rbErr.Error())
			}
			return fmt.Errorf("reorder banners: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

// TrackEvent appends a view/click event row and bumps the banner counter.
// Both writes run in one transaction so a retried closure never leaves a
// committed event without its counter bump, or the other way around.
func (r *BannerRepository) TrackEvent(ctx context.Context, bannerID int64, eventType string) error {
	if eventType != domain.BannerEventView && eventType != domain.BannerEventClick {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	counter := "view_count"
	if eventType == domain.BannerEventClick {
		counter = "click_count"
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("begin track event: %w", err)}
		}

		result, err := tx.ExecContext(ctx,
			"INSERT INTO banner_events (banner_id, event_type) SELECT id, ? FROM banners WHERE id = ?",
			eventType, bannerID)
		if err != nil {
			_ = tx.Rollback()
			if isLockError(err) {
				return err // retry, nothing committed
			}
			return &criticalError{err: fmt.Errorf("insert banner event: %w", err)}
		}
		rows, err := result.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return &criticalError{err: fmt.Errorf("get rows affected: %w", err)}
		}
		if rows == 0 {
			_ = tx.Rollback()
			return &criticalError{err: ErrNotFound}
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE banners SET "+counter+" = "+counter+" + 1 WHERE id = ?", bannerID); err != nil {
			_ = tx.Rollback()
			if isLockError(err) {
				return err // retry, nothing committed
			}
			return &criticalError{err: fmt.Errorf("bump banner counter: %w", err)}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("commit track event: %w", err)}
		}
		return nil
	})
}

// GetBannerStats aggregates tracked events per banner
func (r *BannerRepository) GetBannerStats(ctx context.Context) ([]domain.BannerStats, error) {
	query := `
		SELECT b.id AS banner_id, b.title,
		       COUNT(CASE WHEN e.event_type = 'view' THEN 1 END) AS views,
		       COUNT(CASE WHEN e.event_type = 'click' THEN 1 END) AS clicks
		FROM banners b
		LEFT JOIN banner_events e ON e.banner_id = b.id
		GROUP BY b.id
		ORDER BY views DESC
	`
	var rows []struct {
		BannerID int64  `db:"banner_id"`
		Title    string `db:"title"`
		Views    int64  `db:"views"`
		Clicks   int64  `db:"clicks"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("get banner stats: %w", err)
	}

	stats := make([]domain.BannerStats, len(rows))
	for i, row := range rows {
		stats[i] = domain.BannerStats{
			BannerID: row.BannerID,
			Title:    row.Title,
			Views:    row.Views,
			Clicks:   row.Clicks,
		}
		if row.Views > 0 {
			stats[i].CTR = float64(row.Clicks) / float64(row.Views)
		}
	}
	return stats, nil
}
