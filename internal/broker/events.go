package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"kanzey-backend/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing ticket lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTicketConfirmed publishes a TicketConfirmed event
func (ep *EventPublisher) PublishTicketConfirmed(ctx context.Context, event *models.TicketConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, "ticket-"+event.TicketID, event)
}

// PublishTicketFailed publishes a TicketFailed event
func (ep *EventPublisher) PublishTicketFailed(ctx context.Context, event *models.TicketFailedEvent) error {
	return ep.producer.PublishEvent(ctx, "ticket-"+event.TicketID, event)
}

// PublishTicketScanned publishes a TicketScanned event
func (ep *EventPublisher) PublishTicketScanned(ctx context.Context, event *models.TicketScannedEvent) error {
	return ep.producer.PublishEvent(ctx, "ticket-"+event.TicketID, event)
}

// EventHandler routes consumed ticket events to registered callbacks
type EventHandler struct {
	onTicketConfirmed func(context.Context, *models.TicketConfirmedEvent) error
	onTicketFailed    func(context.Context, *models.TicketFailedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnTicketConfirmed registers a handler for TicketConfirmed events
func (eh *EventHandler) OnTicketConfirmed(handler func(context.Context, *models.TicketConfirmedEvent) error) {
	eh.onTicketConfirmed = handler
}

// OnTicketFailed registers a handler for TicketFailed events
func (eh *EventHandler) OnTicketFailed(handler func(context.Context, *models.TicketFailedEvent) error) {
	eh.onTicketFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeTicketConfirmed:
		if eh.onTicketConfirmed != nil {
			var event models.TicketConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TicketConfirmed event: %w", err)
			}
			return eh.onTicketConfirmed(ctx, &event)
		}

	case models.EventTypeTicketFailed:
		if eh.onTicketFailed != nil {
			var event models.TicketFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TicketFailed event: %w", err)
			}
			return eh.onTicketFailed(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
