package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"invoice-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing invoice lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishInvoiceCommitted publishes an InvoiceCommitted event
func (ep *EventPublisher) PublishInvoiceCommitted(ctx context.Context, event *models.InvoiceCommittedEvent) error {
	key := fmt.Sprintf("invoice-%s", event.InvoiceID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishInvoiceReversed publishes an InvoiceReversed event
func (ep *EventPublisher) PublishInvoiceReversed(ctx context.Context, event *models.InvoiceReversedEvent) error {
	key := fmt.Sprintf("invoice-%s", event.InvoiceID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming invoice events
type EventHandler struct {
	onInvoiceCommitted func(context.Context, *models.InvoiceCommittedEvent) error
	onInvoiceReversed  func(context.Context, *models.InvoiceReversedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnInvoiceCommitted registers a handler for InvoiceCommitted events
func (eh *EventHandler) OnInvoiceCommitted(handler func(context.Context, *models.InvoiceCommittedEvent) error) {
	eh.onInvoiceCommitted = handler
}

// OnInvoiceReversed registers a handler for InvoiceReversed events
func (eh *EventHandler) OnInvoiceReversed(handler func(context.Context, *models.InvoiceReversedEvent) error) {
	eh.onInvoiceReversed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeInvoiceCommitted:
		if eh.onInvoiceCommitted != nil {
			var event models.InvoiceCommittedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal InvoiceCommitted event: %w", err)
			}
			return eh.onInvoiceCommitted(ctx, &event)
		}

	case models.EventTypeInvoiceReversed:
		if eh.onInvoiceReversed != nil {
			var event models.InvoiceReversedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal InvoiceReversed event: %w", err)
			}
			return eh.onInvoiceReversed(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
