package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kanzey-backend/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// EventFilter narrows ListEvents. Zero values mean "no filter" except
// Status, which callers should default to published.
type EventFilter struct {
	Status   string
	Category string
	Featured bool
}

// CreateEvent inserts a new event with available_tickets initialized to
// capacity and the sales counters at zero.
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (title, description, short_description, date, time,
			location, address, price, capacity, available_tickets, category,
			image, tags, is_featured, is_active, status, organizer_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, available_tickets, tickets_sold, revenue, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		event.Title, event.Description, event.ShortDescription, event.Date, event.Time,
		event.Location, event.Address, event.Price, event.Capacity, event.Category,
		event.Image, event.Tags, event.IsFeatured, event.IsActive, event.Status,
		event.OrganizerID, event.CreatedBy).
		Scan(&event.ID, &event.AvailableTickets, &event.TicketsSold, &event.Revenue,
			&event.CreatedAt, &event.UpdatedAt)
}

// GetEventByID retrieves an event by ID
func (s *Store) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := s.db.GetContext(ctx, &event, "SELECT * FROM events WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents retrieves events matching the filter, newest first.
func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	query := "SELECT * FROM events WHERE status = $1"
	args := []interface{}{filter.Status}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Featured {
		query += " AND is_featured = TRUE"
	}
	query += " ORDER BY created_at DESC"

	events := []models.Event{}
	err := s.db.SelectContext(ctx, &events, query, args...)
	return events, err
}

// UpdateEvent updates the editable fields of an event. The inventory
// counters are deliberately not reachable from here.
func (s *Store) UpdateEvent(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events SET title = $1, description = $2, short_description = $3,
			date = $4, time = $5, location = $6, address = $7, price = $8,
			category = $9, image = $10, tags = $11, is_featured = $12,
			is_active = $13, status = $14, updated_at = NOW()
		WHERE id = $15
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		event.Title, event.Description, event.ShortDescription, event.Date, event.Time,
		event.Location, event.Address, event.Price, event.Category, event.Image,
		event.Tags, event.IsFeatured, event.IsActive, event.Status, event.ID).
		Scan(&event.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	return err
}

// DeleteEvent removes an event
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// GetAvailability reads the current availability of an event.
func (s *Store) GetAvailability(ctx context.Context, eventID int64) (available, capacity int, err error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT available_tickets, capacity FROM events WHERE id = $1", eventID)
	if err := row.Scan(&available, &capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrEventNotFound
		}
		return 0, 0, err
	}
	return available, capacity, nil
}

// applyConfirmedSale decrements availability and accrues the sale totals in
// a single guarded statement. A zero-row result means the remaining
// availability cannot cover the quantity; nothing is applied in that case.
func applyConfirmedSale(ctx context.Context, tx *sqlx.Tx, eventID int64, quantity int, amount int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE events SET
			available_tickets = available_tickets - $2,
			tickets_sold = tickets_sold + $2,
			revenue = revenue + $3,
			updated_at = NOW()
		WHERE id = $1 AND available_tickets >= $2`,
		eventID, quantity, amount)
	if err != nil {
		return fmt.Errorf("failed to apply confirmed sale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientAvailability
	}
	return nil
}
