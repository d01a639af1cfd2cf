package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"marketgist_backend/models"
)

// Event is the outbound message handed to the delivery pipeline when an
// alert fires. The pipeline deduplicates on IdempotencyKey; re-delivery
// attempts of the same trigger within one minute collapse to one event.
type Event struct {
	IdempotencyKey string    `json:"idempotency_key"`
	Direction      string    `json:"direction"` // upper, lower
	Symbol         string    `json:"symbol"`
	Company        string    `json:"company"`
	CurrentPrice   float64   `json:"current_price"`
	TargetPrice    float64   `json:"target_price"`
	Timestamp      time.Time `json:"timestamp"`
	Recipient      string    `json:"recipient"`
}

// EventEmitter hands alert events to the outbound delivery pipeline
type EventEmitter interface {
	Emit(ctx context.Context, event Event) error
}

// NotificationWriter persists in-app notification records
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// IdempotencyKey derives the deduplication key for a trigger. It is a pure
// function of the alert id and the minute the trigger happened in, so every
// delivery attempt of the same underlying event computes the same key.
func IdempotencyKey(alertID string, at time.Time) string {
	return fmt.Sprintf("price-alert-%s-%d", alertID, at.Unix()/60)
}

// Dispatcher turns a won claim into one outbound event and one notification
// record
type Dispatcher struct {
	emitter       EventEmitter
	notifications NotificationWriter
}

// NewDispatcher creates a dispatcher
func NewDispatcher(emitter EventEmitter, notifications NotificationWriter) *Dispatcher {
	return &Dispatcher{
		emitter:       emitter,
		notifications: notifications,
	}
}

// Dispatch emits the alert event and writes the notification record. It is
// called only after the claim committed, and it never rolls the claim back:
// a failed emission is returned to the caller for the error log, a failed
// notification write is logged and swallowed. The ordering is fixed as
// claim, then event emission, then notification write.
func (d *Dispatcher) Dispatch(ctx context.Context, rec models.TriggerRecord, recipient string, now time.Time) error {
	event := Event{
		IdempotencyKey: IdempotencyKey(rec.AlertID, now),
		Direction:      rec.AlertType,
		Symbol:         rec.Symbol,
		Company:        rec.Company,
		CurrentPrice:   rec.CurrentPrice,
		TargetPrice:    rec.Threshold,
		Timestamp:      now,
		Recipient:      recipient,
	}

	if err := d.emitter.Emit(ctx, event); err != nil {
		return fmt.Errorf("failed to emit %s alert event for %s: %w", rec.AlertType, rec.Symbol, err)
	}

	arrow := "▲"
	if rec.AlertType == models.AlertTypeLower {
		arrow = "▼"
	}

	notification := &models.Notification{
		UserID:  rec.UserID,
		Type:    models.NotificationTypePriceAlert,
		Title:   fmt.Sprintf("Price Alert: %s %s", rec.Symbol, arrow),
		Message: fmt.Sprintf("%s (%s) hit your %s target of $%g. Current price: $%.2f.", rec.Company, rec.Symbol, rec.AlertType, rec.Threshold, rec.CurrentPrice),
		Symbol:  rec.Symbol,
		IsRead:  false,
	}
	if err := d.notifications.CreateNotification(ctx, notification); err != nil {
		log.Printf("Failed to create notification for alert %s: %v", rec.AlertID, err)
	}

	return nil
}
