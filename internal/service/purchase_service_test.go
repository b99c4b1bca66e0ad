package service

import (
	"context"
	"strings"
	"testing"

	"kanzey-backend/internal/models"
	"kanzey-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurchaseStore struct {
	event   *models.Event
	created []*models.Ticket
}

func (f *fakePurchaseStore) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	if f.event == nil || f.event.ID != id {
		return nil, store.ErrEventNotFound
	}
	copied := *f.event
	return &copied, nil
}

func (f *fakePurchaseStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	f.created = append(f.created, ticket)
	return nil
}

func (f *fakePurchaseStore) ListTicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range f.created {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

type staticAvailability struct {
	available int
	capacity  int
}

func (s staticAvailability) GetAvailability(ctx context.Context, eventID int64) (int, int, error) {
	return s.available, s.capacity, nil
}

type fakeGateway struct {
	lastAmount int64
	lastTxn    string
}

func (g *fakeGateway) BuildRedirectURL(amount int64, transactionID string) string {
	g.lastAmount = amount
	g.lastTxn = transactionID
	return "https://pay.example/checkout?transaction_id=" + transactionID
}

func buyer() models.Identity {
	return models.Identity{
		UserID:    7,
		Email:     "awa@example.com",
		Phone:     "+221771234567",
		FirstName: "Awa",
		LastName:  "Diop",
		Role:      models.RoleCustomer,
	}
}

func TestInitiateCreatesPendingTicket(t *testing.T) {
	st := &fakePurchaseStore{event: concertEvent(10)}
	gateway := &fakeGateway{}
	ps := NewPurchaseService(st, staticAvailability{10, 100}, gateway, "https://kanzey.example")

	resp, err := ps.Initiate(context.Background(), &InitiatePurchaseRequest{EventID: 1, Quantity: 3}, buyer())
	require.NoError(t, err)

	assert.Equal(t, int64(15000), resp.TotalPrice, "total is price times quantity")
	assert.Equal(t, models.CurrencyFCFA, resp.Currency)
	assert.True(t, strings.HasPrefix(resp.TransactionID, "KANZ-"))
	assert.True(t, strings.HasPrefix(resp.TicketID, "TKT-"))
	assert.Equal(t, resp.TransactionID, gateway.lastTxn)
	assert.Equal(t, int64(15000), gateway.lastAmount)

	require.Len(t, st.created, 1)
	ticket := st.created[0]
	assert.Equal(t, models.TicketStatusPending, ticket.Status)
	assert.Equal(t, int64(15000), ticket.TotalPrice)
	assert.Equal(t, "Awa Diop", ticket.BuyerName)
	assert.Equal(t, "awa@example.com", ticket.BuyerEmail)
	assert.Equal(t, "https://kanzey.example/verify/"+ticket.TicketID, ticket.QRData)
}

func TestInitiateRejectsUnpurchasableEvent(t *testing.T) {
	event := concertEvent(10)
	event.IsActive = false
	st := &fakePurchaseStore{event: event}
	ps := NewPurchaseService(st, staticAvailability{10, 100}, &fakeGateway{}, "https://kanzey.example")

	_, err := ps.Initiate(context.Background(), &InitiatePurchaseRequest{EventID: 1, Quantity: 1}, buyer())
	assert.ErrorIs(t, err, ErrEventNotPurchasable)
	assert.Empty(t, st.created)
}

func TestInitiateRejectsExcessQuantity(t *testing.T) {
	st := &fakePurchaseStore{event: concertEvent(10)}
	ps := NewPurchaseService(st, staticAvailability{2, 100}, &fakeGateway{}, "https://kanzey.example")

	_, err := ps.Initiate(context.Background(), &InitiatePurchaseRequest{EventID: 1, Quantity: 3}, buyer())
	assert.ErrorIs(t, err, store.ErrInsufficientAvailability)
	assert.Empty(t, st.created)
}

func TestInitiateUnknownEvent(t *testing.T) {
	st := &fakePurchaseStore{}
	ps := NewPurchaseService(st, staticAvailability{10, 100}, &fakeGateway{}, "https://kanzey.example")

	_, err := ps.Initiate(context.Background(), &InitiatePurchaseRequest{EventID: 42, Quantity: 1}, buyer())
	assert.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestInitiateMintsDistinctIdentifiers(t *testing.T) {
	st := &fakePurchaseStore{event: concertEvent(100)}
	ps := NewPurchaseService(st, staticAvailability{100, 100}, &fakeGateway{}, "https://kanzey.example")

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		resp, err := ps.Initiate(context.Background(), &InitiatePurchaseRequest{EventID: 1, Quantity: 1}, buyer())
		require.NoError(t, err)
		assert.False(t, seen[resp.TransactionID])
		assert.False(t, seen[resp.TicketID])
		seen[resp.TransactionID] = true
		seen[resp.TicketID] = true
	}
}
