package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Event represents a published happening with sellable capacity. The
// inventory counters (AvailableTickets, TicketsSold, Revenue) are mutated
// only by the payment outcome path, never by event updates.
type Event struct {
	ID               int64          `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Description      string         `db:"description" json:"description"`
	ShortDescription string         `db:"short_description" json:"short_description,omitempty"`
	Date             time.Time      `db:"date" json:"date"`
	Time             string         `db:"time" json:"time"`
	Location         string         `db:"location" json:"location"`
	Address          string         `db:"address" json:"address"`
	Price            int64          `db:"price" json:"price"`
	Capacity         int            `db:"capacity" json:"capacity"`
	AvailableTickets int            `db:"available_tickets" json:"available_tickets"`
	TicketsSold      int            `db:"tickets_sold" json:"tickets_sold"`
	Revenue          int64          `db:"revenue" json:"revenue"`
	Category         string         `db:"category" json:"category"`
	Image            string         `db:"image" json:"image,omitempty"`
	Tags             pq.StringArray `db:"tags" json:"tags,omitempty"`
	IsFeatured       bool           `db:"is_featured" json:"is_featured"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	Status           string         `db:"status" json:"status"`
	OrganizerID      int64          `db:"organizer_id" json:"organizer_id"`
	CreatedBy        int64          `db:"created_by" json:"created_by"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Purchasable reports whether tickets can currently be sold for the event.
func (e *Event) Purchasable() bool {
	return e.Status == EventStatusPublished && e.IsActive
}

// Ticket represents one purchase attempt. TicketID is the public,
// QR-encodable identifier shown at the door; TransactionID correlates the
// attempt with the payment provider. TotalPrice is fixed at creation and
// never recomputed.
type Ticket struct {
	ID            int64          `db:"id" json:"id"`
	TicketID      string         `db:"ticket_id" json:"ticket_id"`
	TransactionID string         `db:"transaction_id" json:"transaction_id"`
	EventID       int64          `db:"event_id" json:"event_id"`
	UserID        int64          `db:"user_id" json:"user_id"`
	BuyerEmail    string         `db:"buyer_email" json:"buyer_email,omitempty"`
	BuyerPhone    string         `db:"buyer_phone" json:"buyer_phone,omitempty"`
	BuyerName     string         `db:"buyer_name" json:"buyer_name,omitempty"`
	Quantity      int            `db:"quantity" json:"quantity"`
	TotalPrice    int64          `db:"total_price" json:"total_price"`
	Currency      string         `db:"currency" json:"currency"`
	Status        string         `db:"status" json:"status"`
	PaymentMethod string         `db:"payment_method" json:"payment_method"`
	PaymentDate   sql.NullTime   `db:"payment_date" json:"payment_date,omitempty"`
	FailureReason sql.NullString `db:"failure_reason" json:"failure_reason,omitempty"`
	QRData        string         `db:"qr_data" json:"qr_data,omitempty"`
	Scanned       bool           `db:"scanned" json:"scanned"`
	ScannedAt     sql.NullTime   `db:"scanned_at" json:"scanned_at,omitempty"`
	ScannedBy     sql.NullInt64  `db:"scanned_by" json:"scanned_by,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Slide represents a hero-slider entry on the marketing pages.
type Slide struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Subtitle  string    `db:"subtitle" json:"subtitle,omitempty"`
	Image     string    `db:"image" json:"image"`
	Link      string    `db:"link" json:"link,omitempty"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is the authenticated caller extracted from the JWT. Users are
// owned by the auth service; only the fields the payment provider and the
// mailer need are carried here.
type Identity struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// Event statuses
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
)

// Ticket statuses. Pending is the only non-terminal state.
const (
	TicketStatusPending   = "pending"
	TicketStatusConfirmed = "confirmed"
	TicketStatusFailed    = "failed"
)

// Failure reasons recorded when a ticket reaches the failed state.
const (
	FailureReasonDeclined  = "declined"
	FailureReasonCancelled = "cancelled"
	FailureReasonExpired   = "expired"
	FailureReasonSoldOut   = "sold_out"
)

// Roles
const (
	RoleCustomer  = "customer"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

const (
	PaymentMethodInTouch = "intouch"
	CurrencyFCFA         = "FCFA"
)
