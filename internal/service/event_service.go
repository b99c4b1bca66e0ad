package service

import (
	"context"
	"errors"

	"kanzey-backend/internal/models"
	"kanzey-backend/internal/store"
	"kanzey-backend/internal/util"

	"go.uber.org/zap"
)

// ErrNotOwner is returned when a caller tries to modify an event they do
// not organize and they are not an admin.
var ErrNotOwner = errors.New("not the event organizer")

// EventService handles the event catalog and the marketing slides. It
// never touches the inventory counters; those belong to the payment
// outcome path.
type EventService struct {
	store     *store.Store
	inventory *InventoryService
	logger    *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(store *store.Store, inventory *InventoryService) *EventService {
	return &EventService{
		store:     store,
		inventory: inventory,
		logger:    util.GetLogger(),
	}
}

// CreateEventRequest represents a request to create an event
type CreateEventRequest struct {
	Title            string   `json:"title" binding:"required"`
	Description      string   `json:"description" binding:"required"`
	ShortDescription string   `json:"short_description"`
	Date             string   `json:"date" binding:"required"`
	Time             string   `json:"time" binding:"required"`
	Location         string   `json:"location" binding:"required"`
	Address          string   `json:"address" binding:"required"`
	Price            int64    `json:"price" binding:"min=0"`
	Capacity         int      `json:"capacity" binding:"required,min=1"`
	Category         string   `json:"category" binding:"required"`
	Image            string   `json:"image"`
	Tags             []string `json:"tags"`
	IsFeatured       bool     `json:"is_featured"`
}

// List retrieves events matching the filter
func (es *EventService) List(ctx context.Context, filter store.EventFilter) ([]models.Event, error) {
	if filter.Status == "" {
		filter.Status = models.EventStatusPublished
	}
	return es.store.ListEvents(ctx, filter)
}

// Get retrieves one event
func (es *EventService) Get(ctx context.Context, id int64) (*models.Event, error) {
	return es.store.GetEventByID(ctx, id)
}

// Availability reports remaining and total capacity for an event,
// preferring the cache fast path.
func (es *EventService) Availability(ctx context.Context, id int64) (available, capacity int, err error) {
	return es.inventory.GetAvailability(ctx, id)
}

// Create publishes a new event with availability initialized to capacity.
func (es *EventService) Create(ctx context.Context, event *models.Event) error {
	ctx, span := util.StartSpan(ctx, "EventService.Create")
	defer span.End()

	event.Status = models.EventStatusPublished
	event.IsActive = true

	if err := es.store.CreateEvent(ctx, event); err != nil {
		return err
	}

	es.logger.Info("Event created",
		zap.Int64("event_id", event.ID),
		zap.String("title", event.Title),
		zap.Int("capacity", event.Capacity))
	return nil
}

// Update modifies an event after an ownership check. Counters are not
// editable through this path; a cancelled or deactivated event simply
// stops being purchasable.
func (es *EventService) Update(ctx context.Context, event *models.Event, caller models.Identity) error {
	ctx, span := util.StartSpan(ctx, "EventService.Update")
	defer span.End()

	existing, err := es.store.GetEventByID(ctx, event.ID)
	if err != nil {
		return err
	}
	if existing.OrganizerID != caller.UserID && caller.Role != models.RoleAdmin {
		return ErrNotOwner
	}

	if err := es.store.UpdateEvent(ctx, event); err != nil {
		return err
	}

	if !event.Purchasable() {
		es.inventory.Invalidate(ctx, event.ID)
	}
	return nil
}

// Delete removes an event after an ownership check.
func (es *EventService) Delete(ctx context.Context, id int64, caller models.Identity) error {
	ctx, span := util.StartSpan(ctx, "EventService.Delete")
	defer span.End()

	existing, err := es.store.GetEventByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OrganizerID != caller.UserID && caller.Role != models.RoleAdmin {
		return ErrNotOwner
	}

	if err := es.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	es.inventory.Invalidate(ctx, id)
	return nil
}

// ListSlides retrieves the active hero slides
func (es *EventService) ListSlides(ctx context.Context) ([]models.Slide, error) {
	return es.store.ListSlides(ctx)
}

// CreateSlide adds a hero slide
func (es *EventService) CreateSlide(ctx context.Context, slide *models.Slide) error {
	return es.store.CreateSlide(ctx, slide)
}

// UpdateSlide modifies a hero slide
func (es *EventService) UpdateSlide(ctx context.Context, slide *models.Slide) error {
	return es.store.UpdateSlide(ctx, slide)
}

// DeleteSlide removes a hero slide
func (es *EventService) DeleteSlide(ctx context.Context, id int64) error {
	return es.store.DeleteSlide(ctx, id)
}
