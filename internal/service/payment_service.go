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

// TicketStore is what outcome processing needs from the database. The
// transition methods are conditional: they report whether this call
// performed the transition, which is what makes duplicate deliveries
// no-ops.
type TicketStore interface {
	GetTicketByTransactionID(ctx context.Context, transactionID string) (*models.Ticket, error)
	ConfirmTicketTx(ctx context.Context, transactionID string) (*models.Ticket, store.ConfirmResult, error)
	FailTicket(ctx context.Context, transactionID, reason string) (*models.Ticket, bool, error)
}

// EventReader loads event details for the confirmation notification.
type EventReader interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
}

// SaleCacheUpdater mirrors committed sales onto the availability cache.
type SaleCacheUpdater interface {
	ApplySale(ctx context.Context, eventID int64, quantity int)
}

// OutcomePublisher publishes ticket lifecycle events.
type OutcomePublisher interface {
	PublishTicketConfirmed(ctx context.Context, event *models.TicketConfirmedEvent) error
	PublishTicketFailed(ctx context.Context, event *models.TicketFailedEvent) error
}

// StatusChecker queries the provider for the authoritative transaction
// state.
type StatusChecker interface {
	QueryStatus(ctx context.Context, transactionID string) (ProviderStatus, error)
}

// ReturnLocker serializes provider status re-queries on the return path.
type ReturnLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// WebhookPayload is the body the provider POSTs to the callback endpoint.
type WebhookPayload struct {
	IDFromClient string `json:"idFromClient" binding:"required"`
	Status       string `json:"status" binding:"required"`
	Amount       int64  `json:"amount"`
}

// ReturnResolution is what the browser return path should do next.
type ReturnResolution int

const (
	// ReturnConfirmed: the ticket is confirmed; show the success page.
	ReturnConfirmed ReturnResolution = iota
	// ReturnProcessing: the outcome is not known yet; show a processing
	// page while the webhook does the real work.
	ReturnProcessing
	// ReturnFailed: the ticket is failed; show the error page.
	ReturnFailed
)

// PaymentService converts external payment results into exactly one
// terminal ticket state and, on success, exactly one inventory
// adjustment, no matter how many times or through which channel the
// result arrives. The webhook is the authoritative channel; the browser
// return path only triggers a provider status re-query.
type PaymentService struct {
	tickets   TicketStore
	events    EventReader
	cache     SaleCacheUpdater
	publisher OutcomePublisher
	provider  StatusChecker
	locker    ReturnLocker
	logger    *zap.Logger
}

// NewPaymentService creates a new payment outcome service. cache,
// publisher, provider and locker may be nil; only the database
// transitions are load-bearing for correctness.
func NewPaymentService(
	tickets TicketStore,
	events EventReader,
	cache SaleCacheUpdater,
	publisher OutcomePublisher,
	provider StatusChecker,
	locker ReturnLocker,
) *PaymentService {
	return &PaymentService{
		tickets:   tickets,
		events:    events,
		cache:     cache,
		publisher: publisher,
		provider:  provider,
		locker:    locker,
		logger:    util.GetLogger(),
	}
}

// HandleWebhook processes the provider's server-to-server callback.
func (ps *PaymentService) HandleWebhook(ctx context.Context, payload *WebhookPayload) (*models.Ticket, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	success := MapProviderStatus(payload.Status) == ProviderStatusSuccess
	return ps.ProcessOutcome(ctx, payload.IDFromClient, success)
}

// ProcessOutcome applies a payment result to the ticket identified by the
// transaction. Reprocessing a terminal ticket is a successful no-op; a
// success outcome that loses the inventory race fails the ticket and
// returns ErrInsufficientAvailability.
func (ps *PaymentService) ProcessOutcome(ctx context.Context, transactionID string, success bool) (*models.Ticket, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessOutcome")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OutcomeProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	if !success {
		return ps.processFailure(ctx, transactionID, models.FailureReasonDeclined)
	}

	ticket, result, err := ps.tickets.ConfirmTicketTx(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	switch result {
	case store.ConfirmApplied:
		util.TicketsConfirmedTotal.Inc()
		ps.logger.Info("Ticket confirmed",
			zap.String("transaction_id", transactionID),
			zap.String("ticket_id", ticket.TicketID),
			zap.Int("quantity", ticket.Quantity),
			zap.Int64("total_price", ticket.TotalPrice))

		if ps.cache != nil {
			ps.cache.ApplySale(ctx, ticket.EventID, ticket.Quantity)
		}
		ps.publishConfirmed(ctx, ticket)
		return ticket, nil

	case store.ConfirmSoldOut:
		util.TicketsFailedTotal.WithLabelValues(models.FailureReasonSoldOut).Inc()
		ps.logger.Warn("Confirmation lost the inventory race",
			zap.String("transaction_id", transactionID),
			zap.Int64("event_id", ticket.EventID),
			zap.Int("quantity", ticket.Quantity))
		ps.publishFailed(ctx, ticket, models.FailureReasonSoldOut)
		return ticket, store.ErrInsufficientAvailability

	default: // store.ConfirmAlreadyTerminal
		util.DuplicateOutcomesTotal.Inc()
		ps.logger.Info("Duplicate outcome ignored",
			zap.String("transaction_id", transactionID),
			zap.String("status", ticket.Status))
		return ticket, nil
	}
}

// Cancel handles the explicit cancel redirect. The pending ticket is kept
// and marked failed so the audit trail and the inventory bookkeeping
// survive; inventory is never touched on this path.
func (ps *PaymentService) Cancel(ctx context.Context, transactionID string) (*models.Ticket, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Cancel")
	defer span.End()

	return ps.processFailure(ctx, transactionID, models.FailureReasonCancelled)
}

func (ps *PaymentService) processFailure(ctx context.Context, transactionID, reason string) (*models.Ticket, error) {
	ticket, applied, err := ps.tickets.FailTicket(ctx, transactionID, reason)
	if err != nil {
		return nil, err
	}
	if !applied {
		util.DuplicateOutcomesTotal.Inc()
		ps.logger.Info("Failure outcome ignored, ticket already terminal",
			zap.String("transaction_id", transactionID),
			zap.String("status", ticket.Status))
		return ticket, nil
	}

	util.TicketsFailedTotal.WithLabelValues(reason).Inc()
	ps.logger.Info("Ticket failed",
		zap.String("transaction_id", transactionID),
		zap.String("reason", reason))
	ps.publishFailed(ctx, ticket, reason)
	return ticket, nil
}

// ResolveReturn decides what the browser return path should show. The
// redirect itself proves nothing: a pending ticket triggers a
// server-to-server status query, and only a provider-confirmed success
// goes through the normal outcome processing.
func (ps *PaymentService) ResolveReturn(ctx context.Context, transactionID string) (ReturnResolution, *models.Ticket, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ResolveReturn")
	defer span.End()

	ticket, err := ps.tickets.GetTicketByTransactionID(ctx, transactionID)
	if err != nil {
		return ReturnFailed, nil, err
	}

	switch ticket.Status {
	case models.TicketStatusConfirmed:
		return ReturnConfirmed, ticket, nil
	case models.TicketStatusFailed:
		return ReturnFailed, ticket, nil
	}

	if ps.provider == nil {
		return ReturnProcessing, ticket, nil
	}

	// The lock only avoids concurrent duplicate provider queries; the
	// conditional transitions stay correct without it.
	if ps.locker != nil {
		acquired, err := ps.locker.AcquireLock(ctx, "txn:"+transactionID, 30*time.Second)
		if err != nil {
			ps.logger.Warn("Return-path lock unavailable", zap.Error(err))
		} else if !acquired {
			return ReturnProcessing, ticket, nil
		} else {
			defer func() {
				if err := ps.locker.ReleaseLock(context.WithoutCancel(ctx), "txn:"+transactionID); err != nil {
					ps.logger.Warn("Failed to release return-path lock", zap.Error(err))
				}
			}()
		}
	}

	status, err := ps.provider.QueryStatus(ctx, transactionID)
	if err != nil {
		ps.logger.Warn("Provider status query failed, leaving ticket pending",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return ReturnProcessing, ticket, nil
	}

	switch status {
	case ProviderStatusSuccess:
		ticket, err := ps.ProcessOutcome(ctx, transactionID, true)
		if err != nil {
			if errors.Is(err, store.ErrInsufficientAvailability) {
				return ReturnFailed, ticket, nil
			}
			return ReturnProcessing, ticket, err
		}
		return ReturnConfirmed, ticket, nil
	case ProviderStatusFailed:
		ticket, err := ps.ProcessOutcome(ctx, transactionID, false)
		if err != nil {
			return ReturnProcessing, ticket, err
		}
		return ReturnFailed, ticket, nil
	default:
		return ReturnProcessing, ticket, nil
	}
}

func (ps *PaymentService) publishConfirmed(ctx context.Context, ticket *models.Ticket) {
	if ps.publisher == nil {
		return
	}

	eventTitle := ""
	if ps.events != nil {
		if event, err := ps.events.GetEventByID(ctx, ticket.EventID); err == nil {
			eventTitle = event.Title
		} else {
			ps.logger.Warn("Failed to load event for notification",
				zap.Int64("event_id", ticket.EventID),
				zap.Error(err))
		}
	}

	event := &models.TicketConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTicketConfirmed,
			Timestamp: time.Now(),
		},
		TicketID:      ticket.TicketID,
		TransactionID: ticket.TransactionID,
		EventTitle:    eventTitle,
		EventDBID:     ticket.EventID,
		UserID:        ticket.UserID,
		BuyerEmail:    ticket.BuyerEmail,
		BuyerName:     ticket.BuyerName,
		Quantity:      ticket.Quantity,
		TotalPrice:    ticket.TotalPrice,
		Currency:      ticket.Currency,
		QRData:        ticket.QRData,
	}

	// Delivery is best-effort: a publish failure never rolls back the
	// confirmation.
	if err := ps.publisher.PublishTicketConfirmed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish TicketConfirmed event",
			zap.String("ticket_id", ticket.TicketID),
			zap.Error(err))
	}
}

func (ps *PaymentService) publishFailed(ctx context.Context, ticket *models.Ticket, reason string) {
	if ps.publisher == nil {
		return
	}

	event := &models.TicketFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTicketFailed,
			Timestamp: time.Now(),
		},
		TicketID:      ticket.TicketID,
		TransactionID: ticket.TransactionID,
		EventDBID:     ticket.EventID,
		UserID:        ticket.UserID,
		Reason:        reason,
	}

	if err := ps.publisher.PublishTicketFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish TicketFailed event",
			zap.String("ticket_id", ticket.TicketID),
			zap.Error(err))
	}
}
