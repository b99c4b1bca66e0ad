package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"kanzey-backend/internal/models"
	"kanzey-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend reproduces the store's conditional-transition semantics in
// memory so outcome processing can be exercised without a database,
// including under concurrency.
type fakeBackend struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
	events  map[int64]*models.Event
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tickets: make(map[string]*models.Ticket),
		events:  make(map[int64]*models.Event),
	}
}

func (f *fakeBackend) addEvent(event *models.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = event
}

func (f *fakeBackend) addTicket(ticket *models.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[ticket.TransactionID] = ticket
}

func (f *fakeBackend) GetTicketByTransactionID(ctx context.Context, transactionID string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeBackend) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeBackend) ConfirmTicketTx(ctx context.Context, transactionID string) (*models.Ticket, store.ConfirmResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[transactionID]
	if !ok {
		return nil, 0, store.ErrTransactionNotFound
	}
	if t.Status != models.TicketStatusPending {
		copied := *t
		return &copied, store.ConfirmAlreadyTerminal, nil
	}

	event := f.events[t.EventID]
	if event == nil || event.AvailableTickets < t.Quantity {
		t.Status = models.TicketStatusFailed
		t.FailureReason = sql.NullString{String: models.FailureReasonSoldOut, Valid: true}
		copied := *t
		return &copied, store.ConfirmSoldOut, nil
	}

	t.Status = models.TicketStatusConfirmed
	t.PaymentDate = sql.NullTime{Time: time.Now(), Valid: true}
	event.AvailableTickets -= t.Quantity
	event.TicketsSold += t.Quantity
	event.Revenue += t.TotalPrice
	copied := *t
	return &copied, store.ConfirmApplied, nil
}

func (f *fakeBackend) FailTicket(ctx context.Context, transactionID, reason string) (*models.Ticket, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[transactionID]
	if !ok {
		return nil, false, store.ErrTransactionNotFound
	}
	if t.Status != models.TicketStatusPending {
		copied := *t
		return &copied, false, nil
	}
	t.Status = models.TicketStatusFailed
	t.FailureReason = sql.NullString{String: reason, Valid: true}
	copied := *t
	return &copied, true, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []*models.TicketConfirmedEvent
	failed    []*models.TicketFailedEvent
}

func (p *recordingPublisher) PublishTicketConfirmed(ctx context.Context, event *models.TicketConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, event)
	return nil
}

func (p *recordingPublisher) PublishTicketFailed(ctx context.Context, event *models.TicketFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, event)
	return nil
}

type scriptedProvider struct {
	status  ProviderStatus
	queries int
}

func (s *scriptedProvider) QueryStatus(ctx context.Context, transactionID string) (ProviderStatus, error) {
	s.queries++
	return s.status, nil
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{locks: make(map[string]bool)}
}

func (l *memoryLocker) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[lockKey] {
		return false, nil
	}
	l.locks[lockKey] = true
	return true, nil
}

func (l *memoryLocker) ReleaseLock(ctx context.Context, lockKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, lockKey)
	return nil
}

func pendingTicket(txn string, eventID int64, qty int, price int64) *models.Ticket {
	return &models.Ticket{
		TicketID:      "TKT-1-" + txn,
		TransactionID: txn,
		EventID:       eventID,
		UserID:        7,
		BuyerEmail:    "buyer@example.com",
		BuyerName:     "Awa Diop",
		Quantity:      qty,
		TotalPrice:    price * int64(qty),
		Currency:      models.CurrencyFCFA,
		Status:        models.TicketStatusPending,
		QRData:        "https://kanzey.example/verify/TKT-1-" + txn,
	}
}

func concertEvent(available int) *models.Event {
	return &models.Event{
		ID:               1,
		Title:            "Concert Acoustique",
		Price:            5000,
		Capacity:         100,
		AvailableTickets: available,
		Status:           models.EventStatusPublished,
		IsActive:         true,
	}
}

func TestWebhookConfirmsPendingTicket(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	backend.addTicket(pendingTicket("txn-1", 1, 2, 5000))
	publisher := &recordingPublisher{}

	ps := NewPaymentService(backend, backend, nil, publisher, nil, nil)

	ticket, err := ps.HandleWebhook(context.Background(), &WebhookPayload{
		IDFromClient: "txn-1",
		Status:       "SUCCESS",
		Amount:       10000,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusConfirmed, ticket.Status)
	assert.True(t, ticket.PaymentDate.Valid)

	event, _ := backend.GetEventByID(context.Background(), 1)
	assert.Equal(t, 8, event.AvailableTickets)
	assert.Equal(t, 2, event.TicketsSold)
	assert.Equal(t, int64(10000), event.Revenue)

	require.Len(t, publisher.confirmed, 1)
	assert.Equal(t, "Concert Acoustique", publisher.confirmed[0].EventTitle)
	assert.Equal(t, "buyer@example.com", publisher.confirmed[0].BuyerEmail)
	assert.NotEmpty(t, publisher.confirmed[0].QRData)
}

func TestDuplicateWebhookIsNoOp(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	backend.addTicket(pendingTicket("txn-2", 1, 3, 5000))
	publisher := &recordingPublisher{}

	ps := NewPaymentService(backend, backend, nil, publisher, nil, nil)
	payload := &WebhookPayload{IDFromClient: "txn-2", Status: "COMPLETED"}

	first, err := ps.HandleWebhook(context.Background(), payload)
	require.NoError(t, err)
	second, err := ps.HandleWebhook(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, models.TicketStatusConfirmed, first.Status)
	assert.Equal(t, models.TicketStatusConfirmed, second.Status)

	event, _ := backend.GetEventByID(context.Background(), 1)
	assert.Equal(t, 7, event.AvailableTickets, "inventory must be adjusted exactly once")
	assert.Len(t, publisher.confirmed, 1, "notification must be published exactly once")
}

func TestConcurrentDuplicateOutcomes(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(50))
	backend.addTicket(pendingTicket("txn-3", 1, 5, 5000))

	ps := NewPaymentService(backend, backend, nil, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ps.ProcessOutcome(context.Background(), "txn-3", true)
		}()
	}
	wg.Wait()

	event, _ := backend.GetEventByID(context.Background(), 1)
	assert.Equal(t, 45, event.AvailableTickets)
	assert.Equal(t, 5, event.TicketsSold)
}

func TestSuccessAfterSellOutFailsTicket(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(1))
	backend.addTicket(pendingTicket("txn-4", 1, 2, 5000))
	publisher := &recordingPublisher{}

	ps := NewPaymentService(backend, backend, nil, publisher, nil, nil)

	ticket, err := ps.ProcessOutcome(context.Background(), "txn-4", true)
	require.ErrorIs(t, err, store.ErrInsufficientAvailability)
	assert.Equal(t, models.TicketStatusFailed, ticket.Status)
	assert.Equal(t, models.FailureReasonSoldOut, ticket.FailureReason.String)

	event, _ := backend.GetEventByID(context.Background(), 1)
	assert.Equal(t, 1, event.AvailableTickets, "inventory must never go negative")

	require.Len(t, publisher.failed, 1)
	assert.Equal(t, models.FailureReasonSoldOut, publisher.failed[0].Reason)
}

func TestLateSuccessAfterFailureIsIgnored(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	backend.addTicket(pendingTicket("txn-5", 1, 1, 5000))

	ps := NewPaymentService(backend, backend, nil, nil, nil, nil)

	_, err := ps.ProcessOutcome(context.Background(), "txn-5", false)
	require.NoError(t, err)

	ticket, err := ps.ProcessOutcome(context.Background(), "txn-5", true)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusFailed, ticket.Status, "terminal states are exclusive")

	event, _ := backend.GetEventByID(context.Background(), 1)
	assert.Equal(t, 10, event.AvailableTickets)
}

func TestCancelKeepsFailedRecord(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	backend.addTicket(pendingTicket("txn-6", 1, 1, 5000))

	ps := NewPaymentService(backend, backend, nil, nil, nil, nil)

	ticket, err := ps.Cancel(context.Background(), "txn-6")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusFailed, ticket.Status)
	assert.Equal(t, models.FailureReasonCancelled, ticket.FailureReason.String)

	// Cancelling again, or after confirmation, changes nothing.
	again, err := ps.Cancel(context.Background(), "txn-6")
	require.NoError(t, err)
	assert.Equal(t, models.FailureReasonCancelled, again.FailureReason.String)
}

func TestResolveReturnQueriesProvider(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	backend.addTicket(pendingTicket("txn-7", 1, 1, 5000))
	provider := &scriptedProvider{status: ProviderStatusSuccess}

	ps := NewPaymentService(backend, backend, nil, nil, provider, newMemoryLocker())

	resolution, ticket, err := ps.ResolveReturn(context.Background(), "txn-7")
	require.NoError(t, err)
	assert.Equal(t, ReturnConfirmed, resolution)
	assert.Equal(t, models.TicketStatusConfirmed, ticket.Status)
	assert.Equal(t, 1, provider.queries)
}

func TestResolveReturnPendingProviderLeavesTicketPending(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	backend.addTicket(pendingTicket("txn-8", 1, 1, 5000))
	provider := &scriptedProvider{status: ProviderStatusPending}

	ps := NewPaymentService(backend, backend, nil, nil, provider, newMemoryLocker())

	resolution, ticket, err := ps.ResolveReturn(context.Background(), "txn-8")
	require.NoError(t, err)
	assert.Equal(t, ReturnProcessing, resolution)
	assert.Equal(t, models.TicketStatusPending, ticket.Status)
}

func TestResolveReturnShortCircuitsTerminalTicket(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	ticket := pendingTicket("txn-9", 1, 1, 5000)
	ticket.Status = models.TicketStatusConfirmed
	backend.addTicket(ticket)
	provider := &scriptedProvider{status: ProviderStatusFailed}

	ps := NewPaymentService(backend, backend, nil, nil, provider, newMemoryLocker())

	resolution, _, err := ps.ResolveReturn(context.Background(), "txn-9")
	require.NoError(t, err)
	assert.Equal(t, ReturnConfirmed, resolution)
	assert.Zero(t, provider.queries, "a terminal ticket must not trigger a provider query")
}

func TestResolveReturnBacksOffWhenLocked(t *testing.T) {
	backend := newFakeBackend()
	backend.addEvent(concertEvent(10))
	backend.addTicket(pendingTicket("txn-10", 1, 1, 5000))
	provider := &scriptedProvider{status: ProviderStatusSuccess}
	locker := newMemoryLocker()

	acquired, err := locker.AcquireLock(context.Background(), "txn:txn-10", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	ps := NewPaymentService(backend, backend, nil, nil, provider, locker)

	resolution, ticket, err := ps.ResolveReturn(context.Background(), "txn-10")
	require.NoError(t, err)
	assert.Equal(t, ReturnProcessing, resolution)
	assert.Equal(t, models.TicketStatusPending, ticket.Status)
	assert.Zero(t, provider.queries)
}

func TestUnknownTransactionIsRejected(t *testing.T) {
	backend := newFakeBackend()
	ps := NewPaymentService(backend, backend, nil, nil, nil, nil)

	_, err := ps.ProcessOutcome(context.Background(), "txn-missing", true)
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)
}
