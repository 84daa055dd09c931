package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pass-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderReconciled publishes OrderReconciled event
func (ep *EventPublisher) PublishOrderReconciled(ctx context.Context, event *models.OrderReconciledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishIssuanceScheduled publishes IssuanceScheduled event
func (ep *EventPublisher) PublishIssuanceScheduled(ctx context.Context, event *models.IssuanceScheduledEvent) error {
	key := fmt.Sprintf("issuance-%d", event.ScheduledIssuanceID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPassIssued publishes PassIssued event
func (ep *EventPublisher) PublishPassIssued(ctx context.Context, event *models.PassIssuedEvent) error {
	key := fmt.Sprintf("pass-%d", event.PassID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishNotificationSent publishes NotificationSent event
func (ep *EventPublisher) PublishNotificationSent(ctx context.Context, event *models.NotificationSentEvent) error {
	key := fmt.Sprintf("pass-%d", event.PassID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPassIssued func(context.Context, *models.PassIssuedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPassIssued registers a handler for PassIssued events
func (eh *EventHandler) OnPassIssued(handler func(context.Context, *models.PassIssuedEvent) error) {
	eh.onPassIssued = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypePassIssued:
		if eh.onPassIssued != nil {
			var event models.PassIssuedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PassIssued event: %w", err)
			}
			return eh.onPassIssued(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
