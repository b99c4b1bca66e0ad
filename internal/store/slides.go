package store

import (
	"context"
	"database/sql"
	"errors"

	"kanzey-backend/internal/models"
)

// ListSlides retrieves active slides in display order.
func (s *Store) ListSlides(ctx context.Context) ([]models.Slide, error) {
	slides := []models.Slide{}
	err := s.db.SelectContext(ctx, &slides,
		"SELECT * FROM slides WHERE is_active = TRUE ORDER BY sort_order, id")
	return slides, err
}

// CreateSlide inserts a new slide
func (s *Store) CreateSlide(ctx context.Context, slide *models.Slide) error {
	query := `
		INSERT INTO slides (title, subtitle, image, link, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		slide.Title, slide.Subtitle, slide.Image, slide.Link,
		slide.SortOrder, slide.IsActive).
		Scan(&slide.ID, &slide.CreatedAt, &slide.UpdatedAt)
}

// UpdateSlide updates a slide
func (s *Store) UpdateSlide(ctx context.Context, slide *models.Slide) error {
	err := s.db.QueryRowxContext(ctx, `
		UPDATE slides SET title = $1, subtitle = $2, image = $3, link = $4,
			sort_order = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`,
		slide.Title, slide.Subtitle, slide.Image, slide.Link,
		slide.SortOrder, slide.IsActive, slide.ID).
		Scan(&slide.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlideNotFound
	}
	return err
}

// DeleteSlide removes a slide
func (s *Store) DeleteSlide(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM slides WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlideNotFound
	}
	return nil
}
