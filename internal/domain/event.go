package domain

import "time"

// EventType names a domain event published to the notification collaborator.
type EventType string

const (
	EventRideStarted      EventType = "ride.started"
	EventRideCompleted    EventType = "ride.completed"
	EventRideCancelled    EventType = "ride.cancelled"
	EventBookingCreated   EventType = "booking.created"
	EventBookingApproved  EventType = "booking.approved"
	EventBookingRejected  EventType = "booking.rejected"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentRefunded  EventType = "payment.refunded"
)

// Event is a notification-worthy fact. Delivery is best effort.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Recipients []string       `json:"recipients"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
