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

type fakeScanStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
	events  map[int64]*models.Event
}

func newFakeScanStore() *fakeScanStore {
	return &fakeScanStore{
		tickets: make(map[string]*models.Ticket),
		events:  make(map[int64]*models.Event),
	}
}

func (f *fakeScanStore) GetTicketByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok {
		return nil, store.ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeScanStore) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeScanStore) MarkScanned(ctx context.Context, ticketID string, operatorID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok || t.Status != models.TicketStatusConfirmed || t.Scanned {
		return false, nil
	}
	t.Scanned = true
	t.ScannedAt = sql.NullTime{Time: time.Now(), Valid: true}
	t.ScannedBy = sql.NullInt64{Int64: operatorID, Valid: true}
	return true, nil
}

func confirmedTicket(ticketID string) *models.Ticket {
	return &models.Ticket{
		TicketID:   ticketID,
		EventID:    1,
		BuyerName:  "Awa Diop",
		Quantity:   2,
		Status:     models.TicketStatusConfirmed,
		TotalPrice: 10000,
	}
}

func operator() models.Identity {
	return models.Identity{UserID: 99, Role: models.RoleOrganizer}
}

func TestVerifyWithoutAdmitLeavesTicketUnscanned(t *testing.T) {
	st := newFakeScanStore()
	st.events[1] = concertEvent(10)
	st.tickets["TKT-A"] = confirmedTicket("TKT-A")

	vs := NewVerificationService(st, nil)

	result, err := vs.Verify(context.Background(), "TKT-A", false, operator())
	require.NoError(t, err)
	assert.Equal(t, VerifyValid, result.Code)
	assert.Equal(t, "Concert Acoustique", result.EventTitle)
	assert.Equal(t, "Awa Diop", result.BuyerName)
	assert.False(t, st.tickets["TKT-A"].Scanned)
}

func TestAdmitConsumesTicketExactlyOnce(t *testing.T) {
	st := newFakeScanStore()
	st.events[1] = concertEvent(10)
	st.tickets["TKT-B"] = confirmedTicket("TKT-B")

	vs := NewVerificationService(st, nil)

	first, err := vs.Verify(context.Background(), "TKT-B", true, operator())
	require.NoError(t, err)
	assert.Equal(t, VerifyAdmitted, first.Code)
	require.NotNil(t, first.ScannedAt)
	require.NotNil(t, first.ScannedBy)
	assert.Equal(t, int64(99), *first.ScannedBy)

	second, err := vs.Verify(context.Background(), "TKT-B", true, models.Identity{UserID: 100, Role: models.RoleOrganizer})
	require.NoError(t, err)
	assert.Equal(t, VerifyAlreadyScanned, second.Code)
	require.NotNil(t, second.ScannedBy)
	assert.Equal(t, int64(99), *second.ScannedBy, "original scan metadata must survive re-presentation")
	assert.Equal(t, *first.ScannedAt, *second.ScannedAt)
}

func TestConcurrentAdmitsAdmitOnce(t *testing.T) {
	st := newFakeScanStore()
	st.events[1] = concertEvent(10)
	st.tickets["TKT-C"] = confirmedTicket("TKT-C")

	vs := NewVerificationService(st, nil)

	results := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(op int64) {
			defer wg.Done()
			result, err := vs.Verify(context.Background(), "TKT-C", true, models.Identity{UserID: op})
			if err == nil {
				results <- result.Code
			}
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	admitted := 0
	for code := range results {
		if code == VerifyAdmitted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one operator wins the scan")
}

func TestVerifyRejectsNonConfirmedStatuses(t *testing.T) {
	st := newFakeScanStore()
	st.events[1] = concertEvent(10)

	for _, status := range []string{models.TicketStatusPending, models.TicketStatusFailed} {
		ticket := confirmedTicket("TKT-" + status)
		ticket.Status = status
		st.tickets[ticket.TicketID] = ticket

		vs := NewVerificationService(st, nil)
		result, err := vs.Verify(context.Background(), ticket.TicketID, true, operator())
		require.NoError(t, err)
		assert.Equal(t, VerifyWrongStatus, result.Code)
		assert.Equal(t, status, result.TicketStatus)
		assert.False(t, st.tickets[ticket.TicketID].Scanned)
	}
}

func TestVerifyUnknownTicket(t *testing.T) {
	vs := NewVerificationService(newFakeScanStore(), nil)

	result, err := vs.Verify(context.Background(), "TKT-NOPE", true, operator())
	require.NoError(t, err, "an unknown ticket is a verification outcome, not an error")
	assert.Equal(t, VerifyNotFound, result.Code)
}
