package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/domain"
)

// EventPublisher delivers events to the notification collaborator.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// NotificationService emits domain events. Failures are logged and never
// propagated to the operation that triggered them. A nil *NotificationService
// is valid and drops everything.
type NotificationService struct {
	log       *zap.Logger
	publisher EventPublisher
}

// NewNotificationService creates a new NotificationService. publisher may be
// nil, in which case events are only logged.
func NewNotificationService(log *zap.Logger, publisher EventPublisher) *NotificationService {
	return &NotificationService{
		log:       log.With(zap.String("service", "notification")),
		publisher: publisher,
	}
}

// NotifyRideStarted tells booked passengers their ride has started.
func (s *NotificationService) NotifyRideStarted(ctx context.Context, ride *domain.Ride, passengerIDs []string) {
	s.send(ctx, domain.Event{
		Type:       domain.EventRideStarted,
		Recipients: passengerIDs,
		Title:      "Ride Started",
		Message:    fmt.Sprintf("Your ride to %s has started", ride.Destination.Label),
		Data:       map[string]any{"ride_id": ride.ID, "started_at": ride.StartedAt},
	})
}

// NotifyRideCompleted tells booked passengers their ride is over.
func (s *NotificationService) NotifyRideCompleted(ctx context.Context, ride *domain.Ride, passengerIDs []string) {
	s.send(ctx, domain.Event{
		Type:       domain.EventRideCompleted,
		Recipients: passengerIDs,
		Title:      "Ride Completed",
		Message:    fmt.Sprintf("You have arrived at %s", ride.Destination.Label),
		Data:       map[string]any{"ride_id": ride.ID, "completed_at": ride.CompletedAt},
	})
}

// NotifyRideCancelled tells affected passengers the driver cancelled.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride, passengerIDs []string) {
	s.send(ctx, domain.Event{
		Type:       domain.EventRideCancelled,
		Recipients: passengerIDs,
		Title:      "Ride Cancelled",
		Message:    "The driver has cancelled the ride",
		Data:       map[string]any{"ride_id": ride.ID, "reason": ride.CancelReason},
	})
}

// NotifyBookingCreated tells the driver a passenger requested seats.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, booking *domain.Booking, driverID string) {
	s.send(ctx, domain.Event{
		Type:       domain.EventBookingCreated,
		Recipients: []string{driverID},
		Title:      "New Booking Request",
		Message:    fmt.Sprintf("A passenger requested %d seat(s)", booking.Seats),
		Data:       bookingData(booking),
	})
}

// NotifyBookingApproved tells the passenger the driver accepted.
func (s *NotificationService) NotifyBookingApproved(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, domain.Event{
		Type:       domain.EventBookingApproved,
		Recipients: []string{booking.PassengerID},
		Title:      "Booking Approved",
		Message:    "Your booking has been approved",
		Data:       bookingData(booking),
	})
}

// NotifyBookingRejected tells the passenger the driver declined.
func (s *NotificationService) NotifyBookingRejected(ctx context.Context, booking *domain.Booking) {
	data := bookingData(booking)
	data["reason"] = booking.RejectReason
	s.send(ctx, domain.Event{
		Type:       domain.EventBookingRejected,
		Recipients: []string{booking.PassengerID},
		Title:      "Booking Rejected",
		Message:    "Your booking request was declined",
		Data:       data,
	})
}

// NotifyBookingCancelled tells the other party a booking was cancelled.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, booking *domain.Booking, driverID string) {
	recipient := driverID
	if booking.CancelledBy != booking.PassengerID {
		recipient = booking.PassengerID
	}
	if recipient == "" {
		return
	}

	data := bookingData(booking)
	data["reason"] = booking.CancelReason
	data["cancelled_by"] = booking.CancelledBy
	s.send(ctx, domain.Event{
		Type:       domain.EventBookingCancelled,
		Recipients: []string{recipient},
		Title:      "Booking Cancelled",
		Message:    "A booking was cancelled",
		Data:       data,
	})
}

// NotifyBookingCompleted tells the passenger the booking is settled.
func (s *NotificationService) NotifyBookingCompleted(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, domain.Event{
		Type:       domain.EventBookingCompleted,
		Recipients: []string{booking.PassengerID},
		Title:      "Ride Completed",
		Message:    "Thanks for riding with us",
		Data:       bookingData(booking),
	})
}

// NotifyPaymentCompleted tells the payer a charge or top-up went through.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, payment *domain.Payment) {
	s.send(ctx, domain.Event{
		Type:       domain.EventPaymentCompleted,
		Recipients: []string{payment.UserID},
		Title:      "Payment Successful",
		Message:    fmt.Sprintf("Payment of %s %s was successful", payment.Amount, payment.Currency),
		Data:       map[string]any{"payment_id": payment.ID, "amount": payment.Amount.String(), "type": payment.Type},
	})
}

// NotifyPaymentRefunded tells the payer money was returned.
func (s *NotificationService) NotifyPaymentRefunded(ctx context.Context, original, refund *domain.Payment) {
	s.send(ctx, domain.Event{
		Type:       domain.EventPaymentRefunded,
		Recipients: []string{original.UserID},
		Title:      "Refund Issued",
		Message:    fmt.Sprintf("%s %s has been refunded", refund.Amount, refund.Currency),
		Data: map[string]any{
			"payment_id": original.ID,
			"refund_id":  refund.ID,
			"amount":     refund.Amount.String(),
			"reason":     refund.Reason,
		},
	})
}

func bookingData(booking *domain.Booking) map[string]any {
	return map[string]any{
		"booking_id": booking.ID,
		"ride_id":    booking.RideID,
		"seats":      booking.Seats,
		"price":      booking.Price.String(),
		"status":     booking.Status,
	}
}

// send delivers an event. It never fails the caller.
func (s *NotificationService) send(ctx context.Context, event domain.Event) {
	if s == nil || len(event.Recipients) == 0 {
		return
	}

	event.ID = uuid.New().String()
	event.OccurredAt = time.Now()

	s.log.Info("notification",
		zap.String("type", string(event.Type)),
		zap.Strings("recipients", event.Recipients),
		zap.String("title", event.Title),
	)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}
