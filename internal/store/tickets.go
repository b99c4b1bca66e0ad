package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kanzey-backend/internal/models"
)

// ConfirmResult describes what a confirmation attempt did.
type ConfirmResult int

const (
	// ConfirmApplied: the ticket moved pending -> confirmed and the
	// inventory adjustment committed with it.
	ConfirmApplied ConfirmResult = iota
	// ConfirmAlreadyTerminal: the ticket was already confirmed or failed;
	// nothing changed (duplicate outcome delivery).
	ConfirmAlreadyTerminal
	// ConfirmSoldOut: the ticket was pending but remaining availability
	// could not cover its quantity; it was marked failed instead.
	ConfirmSoldOut
)

// CreateTicket persists a new pending ticket record.
func (s *Store) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (ticket_id, transaction_id, event_id, user_id,
			buyer_email, buyer_phone, buyer_name, quantity, total_price,
			currency, status, payment_method, qr_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		ticket.TicketID, ticket.TransactionID, ticket.EventID, ticket.UserID,
		ticket.BuyerEmail, ticket.BuyerPhone, ticket.BuyerName, ticket.Quantity,
		ticket.TotalPrice, ticket.Currency, ticket.Status, ticket.PaymentMethod,
		ticket.QRData).
		Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// GetTicketByTransactionID retrieves the ticket correlated with a payment
// provider transaction.
func (s *Store) GetTicketByTransactionID(ctx context.Context, transactionID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.GetContext(ctx, &ticket,
		"SELECT * FROM tickets WHERE transaction_id = $1", transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketByTicketID retrieves a ticket by its public identifier.
func (s *Store) GetTicketByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.GetContext(ctx, &ticket,
		"SELECT * FROM tickets WHERE ticket_id = $1", ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListTicketsByUser retrieves a buyer's tickets, newest first.
func (s *Store) ListTicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := s.db.SelectContext(ctx, &tickets,
		"SELECT * FROM tickets WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return tickets, err
}

// ConfirmTicketTx applies a successful payment outcome as one transaction:
// the ticket transitions pending -> confirmed and the event inventory is
// adjusted by the ticket's quantity and total price. The status transition
// is a conditional UPDATE, so a duplicate delivery observes zero affected
// rows and leaves both the ticket and the inventory untouched. If the
// inventory guard fails the ticket is marked failed (sold out) in the same
// transaction instead.
func (s *Store) ConfirmTicketTx(ctx context.Context, transactionID string) (*models.Ticket, ConfirmResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	var ticket models.Ticket
	err = tx.GetContext(ctx, &ticket, `
		UPDATE tickets SET status = $2, payment_date = NOW(), updated_at = NOW()
		WHERE transaction_id = $1 AND status = $3
		RETURNING *`,
		transactionID, models.TicketStatusConfirmed, models.TicketStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		// Already terminal, or unknown transaction.
		existing, lookupErr := s.GetTicketByTransactionID(ctx, transactionID)
		if lookupErr != nil {
			return nil, 0, lookupErr
		}
		return existing, ConfirmAlreadyTerminal, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to confirm ticket: %w", err)
	}

	if err := applyConfirmedSale(ctx, tx, ticket.EventID, ticket.Quantity, ticket.TotalPrice); err != nil {
		if !errors.Is(err, ErrInsufficientAvailability) {
			return nil, 0, err
		}
		// Soft reservation lost the race: fail the ticket instead, keeping
		// the transition and the (absent) inventory change atomic.
		err = tx.GetContext(ctx, &ticket, `
			UPDATE tickets SET status = $2, payment_date = NULL,
				failure_reason = $3, updated_at = NOW()
			WHERE transaction_id = $1
			RETURNING *`,
			transactionID, models.TicketStatusFailed, models.FailureReasonSoldOut)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to mark ticket sold out: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, 0, err
		}
		return &ticket, ConfirmSoldOut, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return &ticket, ConfirmApplied, nil
}

// FailTicket transitions a pending ticket to failed with the given reason.
// Inventory is never touched on this path. The returned bool reports
// whether the transition was applied now; false means the ticket was
// already terminal.
func (s *Store) FailTicket(ctx context.Context, transactionID, reason string) (*models.Ticket, bool, error) {
	var ticket models.Ticket
	err := s.db.GetContext(ctx, &ticket, `
		UPDATE tickets SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE transaction_id = $1 AND status = $4
		RETURNING *`,
		transactionID, models.TicketStatusFailed, reason, models.TicketStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		existing, lookupErr := s.GetTicketByTransactionID(ctx, transactionID)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to fail ticket: %w", err)
	}
	return &ticket, true, nil
}

// ExpirePendingTickets fails every pending ticket created before the
// cutoff and returns how many were transitioned.
func (s *Store) ExpirePendingTickets(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE status = $3 AND created_at < $4`,
		models.TicketStatusFailed, models.FailureReasonExpired,
		models.TicketStatusPending, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkScanned flips the scan state of a confirmed, unscanned ticket exactly
// once. The returned bool reports whether this call performed the
// transition; a false result with a nil error means the ticket exists but
// was not admissible (wrong status or already scanned) and the caller
// should re-read it to find out which.
func (s *Store) MarkScanned(ctx context.Context, ticketID string, operatorID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET scanned = TRUE, scanned_at = NOW(), scanned_by = $2,
			updated_at = NOW()
		WHERE ticket_id = $1 AND status = $3 AND scanned = FALSE`,
		ticketID, operatorID, models.TicketStatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
