package models

import "time"

// Event types published on the ticket topic
const (
	EventTypeTicketConfirmed = "TICKET_CONFIRMED"
	EventTypeTicketFailed    = "TICKET_FAILED"
	EventTypeTicketScanned   = "TICKET_SCANNED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketConfirmedEvent is published after a purchase is confirmed and the
// inventory adjustment has committed. The notification worker consumes it
// to deliver the ticket by email.
type TicketConfirmedEvent struct {
	BaseEvent
	TicketID      string `json:"ticket_id"`
	TransactionID string `json:"transaction_id"`
	EventTitle    string `json:"event_title"`
	EventDBID     int64  `json:"event_db_id"`
	UserID        int64  `json:"user_id"`
	BuyerEmail    string `json:"buyer_email"`
	BuyerName     string `json:"buyer_name"`
	Quantity      int    `json:"quantity"`
	TotalPrice    int64  `json:"total_price"`
	Currency      string `json:"currency"`
	QRData        string `json:"qr_data"`
}

// TicketFailedEvent is published when a pending ticket reaches the failed
// state, whatever the reason.
type TicketFailedEvent struct {
	BaseEvent
	TicketID      string `json:"ticket_id"`
	TransactionID string `json:"transaction_id"`
	EventDBID     int64  `json:"event_db_id"`
	UserID        int64  `json:"user_id"`
	Reason        string `json:"reason"`
}

// TicketScannedEvent is published when a ticket is admitted at the door.
type TicketScannedEvent struct {
	BaseEvent
	TicketID  string    `json:"ticket_id"`
	EventDBID int64     `json:"event_db_id"`
	ScannedBy int64     `json:"scanned_by"`
	ScannedAt time.Time `json:"scanned_at"`
}
