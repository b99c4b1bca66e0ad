package service

import (
	"context"
	"errors"
	"time"

	"kanzey-backend/internal/models"
	"kanzey-backend/internal/store"
	"kanzey-backend/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScanStore is what door verification needs from the database.
// MarkScanned is conditional: it succeeds at most once per ticket.
type ScanStore interface {
	GetTicketByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	MarkScanned(ctx context.Context, ticketID string, operatorID int64) (bool, error)
}

// ScanPublisher publishes scan events.
type ScanPublisher interface {
	PublishTicketScanned(ctx context.Context, event *models.TicketScannedEvent) error
}

// Verification result codes.
const (
	VerifyValid          = "valid"
	VerifyAdmitted       = "admitted"
	VerifyNotFound       = "not_found"
	VerifyWrongStatus    = "wrong_status"
	VerifyAlreadyScanned = "already_scanned"
)

// VerificationResult is the door-side report for one presented ticket.
type VerificationResult struct {
	Code         string     `json:"code"`
	TicketStatus string     `json:"ticket_status,omitempty"`
	EventTitle   string     `json:"event_title,omitempty"`
	BuyerName    string     `json:"buyer_name,omitempty"`
	Quantity     int        `json:"quantity,omitempty"`
	ScannedAt    *time.Time `json:"scanned_at,omitempty"`
	ScannedBy    *int64     `json:"scanned_by,omitempty"`
}

// VerificationService checks a presented ticket identifier at the venue
// door and, on an explicit admit, consumes the ticket exactly once.
type VerificationService struct {
	store     ScanStore
	publisher ScanPublisher
	logger    *zap.Logger
}

// NewVerificationService creates a new verification service. publisher
// may be nil.
func NewVerificationService(store ScanStore, publisher ScanPublisher) *VerificationService {
	return &VerificationService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Verify looks up a presented ticket and reports its validity. With
// admit=true a valid ticket transitions to scanned; re-presenting it
// later (or losing a concurrent race) reports already_scanned with the
// original scan metadata intact.
func (vs *VerificationService) Verify(ctx context.Context, ticketID string, admit bool, operator models.Identity) (*VerificationResult, error) {
	ctx, span := util.StartSpan(ctx, "VerificationService.Verify")
	defer span.End()

	ticket, err := vs.store.GetTicketByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			util.ScanRejectionsTotal.WithLabelValues(VerifyNotFound).Inc()
			return &VerificationResult{Code: VerifyNotFound}, nil
		}
		return nil, err
	}

	if ticket.Status != models.TicketStatusConfirmed {
		util.ScanRejectionsTotal.WithLabelValues(VerifyWrongStatus).Inc()
		return vs.report(ctx, VerifyWrongStatus, ticket), nil
	}
	if ticket.Scanned {
		util.ScanRejectionsTotal.WithLabelValues(VerifyAlreadyScanned).Inc()
		return vs.report(ctx, VerifyAlreadyScanned, ticket), nil
	}

	if !admit {
		return vs.report(ctx, VerifyValid, ticket), nil
	}

	applied, err := vs.store.MarkScanned(ctx, ticketID, operator.UserID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race with another operator between the read and the
		// conditional update; the original scan metadata wins.
		ticket, err = vs.store.GetTicketByTicketID(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		util.ScanRejectionsTotal.WithLabelValues(VerifyAlreadyScanned).Inc()
		return vs.report(ctx, VerifyAlreadyScanned, ticket), nil
	}

	ticket, err = vs.store.GetTicketByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	util.TicketsScannedTotal.Inc()
	vs.logger.Info("Ticket admitted",
		zap.String("ticket_id", ticketID),
		zap.Int64("operator_id", operator.UserID))

	if vs.publisher != nil && ticket.ScannedAt.Valid {
		event := &models.TicketScannedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeTicketScanned,
				Timestamp: time.Now(),
			},
			TicketID:  ticket.TicketID,
			EventDBID: ticket.EventID,
			ScannedBy: operator.UserID,
			ScannedAt: ticket.ScannedAt.Time,
		}
		if err := vs.publisher.PublishTicketScanned(ctx, event); err != nil {
			vs.logger.Error("Failed to publish TicketScanned event",
				zap.String("ticket_id", ticketID),
				zap.Error(err))
		}
	}

	return vs.report(ctx, VerifyAdmitted, ticket), nil
}

func (vs *VerificationService) report(ctx context.Context, code string, ticket *models.Ticket) *VerificationResult {
	result := &VerificationResult{
		Code:         code,
		TicketStatus: ticket.Status,
		BuyerName:    ticket.BuyerName,
		Quantity:     ticket.Quantity,
	}
	if ticket.ScannedAt.Valid {
		t := ticket.ScannedAt.Time
		result.ScannedAt = &t
	}
	if ticket.ScannedBy.Valid {
		by := ticket.ScannedBy.Int64
		result.ScannedBy = &by
	}
	if event, err := vs.store.GetEventByID(ctx, ticket.EventID); err == nil {
		result.EventTitle = event.Title
	}
	return result
}
