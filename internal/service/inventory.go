package service

import (
	"context"
	"fmt"

	"kanzey-backend/internal/models"
	"kanzey-backend/internal/store"
	"kanzey-backend/internal/util"

	"go.uber.org/zap"
)

// InventoryStore is the database side of availability reads.
type InventoryStore interface {
	GetAvailability(ctx context.Context, eventID int64) (available, capacity int, err error)
	ListEvents(ctx context.Context, filter store.EventFilter) ([]models.Event, error)
}

// AvailabilityCache is the redis side. The cache is advisory: every write
// failure is logged and ignored, and a miss falls through to the database.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, eventID int64) (available, capacity int, ok bool, err error)
	SetAvailability(ctx context.Context, eventID int64, available, capacity int) error
	ApplySale(ctx context.Context, eventID int64, quantity int) error
	InvalidateAvailability(ctx context.Context, eventID int64) error
}

// InventoryService answers "how many tickets are left" with a redis fast
// path and a database fallback, and keeps the cache in step with
// confirmed sales. It never mutates the database: the only inventory
// write path is the confirmation transaction in the store.
type InventoryService struct {
	store  InventoryStore
	cache  AvailabilityCache
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service. cache may be nil.
func NewInventoryService(store InventoryStore, cache AvailabilityCache) *InventoryService {
	return &InventoryService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// GetAvailability reads current availability, preferring the cache.
func (is *InventoryService) GetAvailability(ctx context.Context, eventID int64) (available, capacity int, err error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.GetAvailability")
	defer span.End()

	if is.cache != nil {
		available, capacity, ok, err := is.cache.GetAvailability(ctx, eventID)
		if err != nil {
			is.logger.Warn("Availability cache read failed, falling back to DB",
				zap.Int64("event_id", eventID),
				zap.Error(err))
		} else if ok {
			return available, capacity, nil
		}
	}

	available, capacity, err = is.store.GetAvailability(ctx, eventID)
	if err != nil {
		return 0, 0, err
	}

	if is.cache != nil {
		if err := is.cache.SetAvailability(ctx, eventID, available, capacity); err != nil {
			is.logger.Warn("Failed to populate availability cache",
				zap.Int64("event_id", eventID),
				zap.Error(err))
		}
	}
	return available, capacity, nil
}

// ApplySale mirrors a committed sale onto the cache.
func (is *InventoryService) ApplySale(ctx context.Context, eventID int64, quantity int) {
	if is.cache == nil {
		return
	}
	if err := is.cache.ApplySale(ctx, eventID, quantity); err != nil {
		is.logger.Warn("Failed to mirror sale onto availability cache",
			zap.Int64("event_id", eventID),
			zap.Error(err))
	}
}

// Invalidate drops the cached entry for an event.
func (is *InventoryService) Invalidate(ctx context.Context, eventID int64) {
	if is.cache == nil {
		return
	}
	if err := is.cache.InvalidateAvailability(ctx, eventID); err != nil {
		is.logger.Warn("Failed to invalidate availability cache",
			zap.Int64("event_id", eventID),
			zap.Error(err))
	}
}

// SyncToCache seeds the cache with every published event's availability.
// Called once at startup.
func (is *InventoryService) SyncToCache(ctx context.Context) error {
	if is.cache == nil {
		return nil
	}

	events, err := is.store.ListEvents(ctx, store.EventFilter{Status: models.EventStatusPublished})
	if err != nil {
		return fmt.Errorf("failed to list events for cache sync: %w", err)
	}

	for _, event := range events {
		if err := is.cache.SetAvailability(ctx, event.ID, event.AvailableTickets, event.Capacity); err != nil {
			is.logger.Error("Failed to seed availability cache",
				zap.Int64("event_id", event.ID),
				zap.Error(err))
		}
	}

	is.logger.Info("Availability cache synced", zap.Int("count", len(events)))
	return nil
}
