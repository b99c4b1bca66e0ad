package service

import (
	"context"
	"errors"
	"fmt"

	"kanzey-backend/internal/models"
	"kanzey-backend/internal/store"
	"kanzey-backend/internal/util"

	"go.uber.org/zap"
)

// PurchaseStore is what purchase initiation needs from the database.
type PurchaseStore interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	ListTicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error)
}

// AvailabilityReader reads current availability. Satisfied by
// InventoryService (cache fast path) and by the store directly.
type AvailabilityReader interface {
	GetAvailability(ctx context.Context, eventID int64) (available, capacity int, err error)
}

// RedirectBuilder builds the hosted-checkout URL for a transaction.
type RedirectBuilder interface {
	BuildRedirectURL(amount int64, transactionID string) string
}

// PurchaseService is the entry point for "I want to buy N tickets to
// event E". It creates the pending ticket and hands the buyer off to the
// payment gateway. Availability is read but deliberately not reserved:
// the confirmation path owns the only inventory write and fails closed.
type PurchaseService struct {
	store       PurchaseStore
	inventory   AvailabilityReader
	gateway     RedirectBuilder
	frontendURL string
	logger      *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(
	store PurchaseStore,
	inventory AvailabilityReader,
	gateway RedirectBuilder,
	frontendURL string,
) *PurchaseService {
	return &PurchaseService{
		store:       store,
		inventory:   inventory,
		gateway:     gateway,
		frontendURL: frontendURL,
		logger:      util.GetLogger(),
	}
}

// InitiatePurchaseRequest represents a request to buy tickets
type InitiatePurchaseRequest struct {
	EventID  int64 `json:"event_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,min=1"`
}

// InitiatePurchaseResponse carries the redirect target for the external
// payment step.
type InitiatePurchaseResponse struct {
	PaymentURL    string `json:"payment_url"`
	TransactionID string `json:"transaction_id"`
	TicketID      string `json:"ticket_id"`
	TotalPrice    int64  `json:"total_price"`
	Currency      string `json:"currency"`
}

// Initiate validates availability, creates a pending ticket and returns
// the gateway redirect URL. The total price is computed from the event's
// price at this moment and never recomputed afterwards.
func (ps *PurchaseService) Initiate(ctx context.Context, req *InitiatePurchaseRequest, buyer models.Identity) (*InitiatePurchaseResponse, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Initiate")
	defer span.End()

	event, err := ps.store.GetEventByID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			util.PurchasesRejectedTotal.WithLabelValues("event_not_found").Inc()
		}
		return nil, err
	}
	if !event.Purchasable() {
		util.PurchasesRejectedTotal.WithLabelValues("not_purchasable").Inc()
		return nil, ErrEventNotPurchasable
	}

	// Soft reservation: availability is checked here but only decremented
	// at confirmation time, where the guard fails closed.
	available, _, err := ps.inventory.GetAvailability(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if req.Quantity > available {
		util.PurchasesRejectedTotal.WithLabelValues("insufficient_availability").Inc()
		return nil, store.ErrInsufficientAvailability
	}

	totalPrice := event.Price * int64(req.Quantity)
	transactionID := util.MintTransactionID()
	ticketID := util.MintTicketID()

	ticket := &models.Ticket{
		TicketID:      ticketID,
		TransactionID: transactionID,
		EventID:       event.ID,
		UserID:        buyer.UserID,
		BuyerEmail:    buyer.Email,
		BuyerPhone:    buyer.Phone,
		BuyerName:     fmt.Sprintf("%s %s", buyer.FirstName, buyer.LastName),
		Quantity:      req.Quantity,
		TotalPrice:    totalPrice,
		Currency:      models.CurrencyFCFA,
		Status:        models.TicketStatusPending,
		PaymentMethod: models.PaymentMethodInTouch,
		QRData:        fmt.Sprintf("%s/verify/%s", ps.frontendURL, ticketID),
	}

	if err := ps.store.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create pending ticket: %w", err)
	}

	util.PurchasesInitiatedTotal.Inc()
	ps.logger.Info("Purchase initiated",
		zap.String("transaction_id", transactionID),
		zap.String("ticket_id", ticketID),
		zap.Int64("event_id", event.ID),
		zap.Int64("user_id", buyer.UserID),
		zap.Int("quantity", req.Quantity),
		zap.Int64("total_price", totalPrice))

	return &InitiatePurchaseResponse{
		PaymentURL:    ps.gateway.BuildRedirectURL(totalPrice, transactionID),
		TransactionID: transactionID,
		TicketID:      ticketID,
		TotalPrice:    totalPrice,
		Currency:      models.CurrencyFCFA,
	}, nil
}

// ListUserTickets retrieves the buyer's tickets
func (ps *PurchaseService) ListUserTickets(ctx context.Context, userID int64) ([]models.Ticket, error) {
	return ps.store.ListTicketsByUser(ctx, userID)
}
