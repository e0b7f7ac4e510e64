package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// BookingConfig holds booking policy knobs.
type BookingConfig struct {
	MaxSeats         int
	ChargeOnApproval bool
	// ApprovalLease bounds how long an approval may run before the
	// reconciler reverts its seat decrement.
	ApprovalLease time.Duration
}

// DefaultApprovalLease is used when BookingConfig.ApprovalLease is unset.
const DefaultApprovalLease = 2 * time.Minute

// BookingService is the booking state machine. It exclusively owns booking
// status and reaches the inventory ledger and settlement only through their
// contracts.
type BookingService struct {
	store               repository.Store
	lookup              RideLookup
	settlement          Settlement
	compensator         *Compensator
	notificationService *NotificationService
	log                 *zap.Logger
	cfg                 BookingConfig
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	store repository.Store,
	lookup RideLookup,
	settlement Settlement,
	compensator *Compensator,
	notificationService *NotificationService,
	log *zap.Logger,
	cfg BookingConfig,
) *BookingService {
	if cfg.MaxSeats <= 0 {
		cfg.MaxSeats = DefaultMaxSeats
	}
	if cfg.ApprovalLease <= 0 {
		cfg.ApprovalLease = DefaultApprovalLease
	}
	return &BookingService{
		store:               store,
		lookup:              lookup,
		settlement:          settlement,
		compensator:         compensator,
		notificationService: notificationService,
		log:                 log.With(zap.String("service", "booking")),
		cfg:                 cfg,
	}
}

// CreateBookingRequest contains the parameters for requesting seats.
type CreateBookingRequest struct {
	RideID        string               `json:"ride_id" validate:"required"`
	PassengerID   string               `json:"passenger_id" validate:"required"`
	Seats         int                  `json:"seats" validate:"min=1"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=CARD WALLET CASH"`
}

// CreateBooking records a PENDING booking. Seats are checked against the live
// ride but only decremented when the driver approves.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Seats > s.cfg.MaxSeats {
		return nil, invalidInput("too many seats", "seats", req.Seats, "max_seats", s.cfg.MaxSeats)
	}

	ride, err := s.lookup.Fetch(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	if ride.Status != domain.RideStatusActive {
		return nil, invalidState("ride", ride.ID, ride.Status, "book")
	}

	if ride.AvailableSeats < req.Seats {
		return nil, newError(ErrCapacity, "not enough seats available",
			"ride_id", ride.ID, "requested", req.Seats, "available", ride.AvailableSeats)
	}

	if ride.DriverID == req.PassengerID {
		return nil, forbidden("cannot book own ride")
	}

	bookings := s.store.Repositories().Bookings
	existing, err := bookings.FindPending(ctx, req.RideID, req.PassengerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, duplicatePending(existing)
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCash
	}

	price, err := ride.PricePerSeat.Mul(req.Seats)
	if err != nil {
		return nil, invalidInput("booking price out of range",
			"ride_id", ride.ID, "seats", req.Seats, "price_per_seat", ride.PricePerSeat.String())
	}

	now := time.Now()
	booking := &domain.Booking{
		ID:            uuid.New().String(),
		RideID:        req.RideID,
		PassengerID:   req.PassengerID,
		Seats:         req.Seats,
		Price:         price,
		PaymentMethod: method,
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, duplicatePending(booking)
		}
		return nil, err
	}

	s.log.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("ride_id", booking.RideID),
		zap.String("passenger_id", booking.PassengerID),
		zap.Int("seats", booking.Seats),
		zap.String("price", booking.Price.String()),
	)
	s.notificationService.NotifyBookingCreated(ctx, booking, ride.DriverID)
	return booking, nil
}

func duplicatePending(b *domain.Booking) error {
	return newError(ErrConflict, "passenger already has a pending booking on this ride",
		"ride_id", b.RideID, "passenger_id", b.PassengerID, "booking_id", b.ID)
}

// ApproveBooking approves a PENDING booking. The APPROVED state is committed
// only after the ledger has taken the seats and, when configured, the
// passenger has been charged. A failure at any step leaves the booking PENDING
// and undoes the steps before it.
//
// A REVERT_SEATS guard row is written before the seats are taken and settled
// in the commit transaction. If the approval dies midway, or outlives its
// lease, the reconciler finds the guard and reverts the decrement.
func (s *BookingService) ApproveBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error) {
	booking, _, err := s.loadForDriver(ctx, bookingID, actor, "approve")
	if err != nil {
		return nil, err
	}

	attempt := uuid.New().String()
	seatKey := fmt.Sprintf("approve:%s:%s", booking.ID, attempt)

	guard := newCompensation(domain.CompensationRevertSeats, booking, seatKey, "approval aborted")
	guard.NotBefore = time.Now().Add(s.cfg.ApprovalLease)
	if err := s.store.Repositories().Compensations.Create(ctx, guard); err != nil {
		return nil, err
	}

	// Step 1: take the seats.
	if err := s.lookup.AdjustSeats(ctx, booking.RideID, -booking.Seats, seatKey); err != nil {
		if errors.Is(err, ErrUnavailable) {
			// The decrement may or may not have landed.
			s.compensator.Abandon(ctx, guard)
		} else {
			s.compensator.Dismiss(ctx, guard)
		}
		s.log.Info("approval failed at seat decrement",
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
		return nil, err
	}

	var refunds []*domain.Compensation

	// Step 2: charge the passenger.
	var payment *domain.Payment
	if s.cfg.ChargeOnApproval {
		payment, err = s.settlement.ChargeForBooking(ctx, ChargeRequest{
			UserID:         booking.PassengerID,
			BookingID:      booking.ID,
			Amount:         booking.Price,
			Method:         booking.PaymentMethod,
			IdempotencyKey: fmt.Sprintf("charge:%s:%s", booking.ID, attempt),
		})
		if err != nil {
			s.compensator.Abandon(ctx, guard)
			s.log.Info("approval failed at charge",
				zap.String("booking_id", booking.ID),
				zap.Error(err),
			)
			return nil, err
		}

		if payment.Status == domain.PaymentStatusCompleted {
			refund := newCompensation(domain.CompensationRefundPayment, booking, "", "approval aborted")
			refund.PaymentID = payment.ID
			refunds = append(refunds, refund)
		}
	}

	// Step 3: commit the state change.
	var approved *domain.Booking
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		current, err := repos.Bookings.GetByIDForUpdate(ctx, booking.ID)
		if err != nil {
			return translate(err, "booking", booking.ID)
		}
		if current.Status != domain.BookingStatusPending {
			return invalidState("booking", current.ID, current.Status, "approve")
		}

		now := time.Now()
		current.Status = domain.BookingStatusApproved
		current.ApprovedAt = now
		current.UpdatedAt = now
		if payment != nil {
			current.PaymentID = payment.ID
		}

		if err := repos.Bookings.Transition(ctx, current, domain.BookingStatusPending); err != nil {
			return translate(err, "booking", current.ID)
		}
		if err := repos.Compensations.Settle(ctx, guard.ID); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return newError(ErrUnavailable, "approval outlived its lease", "booking_id", current.ID)
			}
			return err
		}
		approved = current
		return nil
	})
	if err != nil {
		s.compensator.Compensate(ctx, refunds...)
		s.compensator.Abandon(ctx, guard)
		s.log.Warn("approval failed at commit",
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("booking approved",
		zap.String("booking_id", approved.ID),
		zap.String("ride_id", approved.RideID),
		zap.Int("seats", approved.Seats),
		zap.String("payment_id", approved.PaymentID),
	)
	s.notificationService.NotifyBookingApproved(ctx, approved)
	return approved, nil
}

// RejectBooking declines a PENDING booking. Seats were never taken.
func (s *BookingService) RejectBooking(ctx context.Context, bookingID string, actor domain.Actor, reason string) (*domain.Booking, error) {
	if reason == "" {
		return nil, invalidInput("a rejection reason is required", "field", "reason")
	}

	if _, _, err := s.loadForDriver(ctx, bookingID, actor, "reject"); err != nil {
		return nil, err
	}

	booking, err := s.transition(ctx, bookingID, func(b *domain.Booking) error {
		if b.Status != domain.BookingStatusPending {
			return invalidState("booking", b.ID, b.Status, "reject")
		}
		b.Status = domain.BookingStatusRejected
		b.RejectReason = reason
		b.ClosedAt = time.Now()
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	s.log.Info("booking rejected", zap.String("booking_id", booking.ID), zap.String("reason", reason))
	s.notificationService.NotifyBookingRejected(ctx, booking)
	return booking, nil
}

// CancelBooking cancels a PENDING or APPROVED booking on behalf of its
// passenger or an administrator. Cancelling an APPROVED booking restores its
// seats and refunds its charge through the compensation outbox.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string, actor domain.Actor, reason string) (*domain.Booking, error) {
	var outbox []*domain.Compensation

	booking, err := s.transition(ctx, bookingID, func(b *domain.Booking) error {
		if b.PassengerID != actor.UserID && !actor.IsPrivileged() {
			return newError(ErrInvalidState, "only the passenger may cancel this booking",
				"booking_id", b.ID, "status", b.Status)
		}
		if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusApproved {
			return invalidState("booking", b.ID, b.Status, "cancel")
		}

		if b.Status == domain.BookingStatusApproved {
			outbox = append(outbox, newCompensation(domain.CompensationRestoreSeats, b, "cancel:"+b.ID, "booking cancelled"))
			if b.PaymentID != "" {
				refund := newCompensation(domain.CompensationRefundPayment, b, "", "booking cancelled")
				refund.PaymentID = b.PaymentID
				outbox = append(outbox, refund)
			}
		}

		b.Status = domain.BookingStatusCancelled
		b.CancelReason = reason
		b.CancelledBy = actor.UserID
		b.ClosedAt = time.Now()
		return nil
	}, func(ctx context.Context, repos repository.Repositories) error {
		for _, comp := range outbox {
			if err := repos.Compensations.Create(ctx, comp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.compensator.Drain(ctx, outbox...)

	s.log.Info("booking cancelled",
		zap.String("booking_id", booking.ID),
		zap.String("cancelled_by", booking.CancelledBy),
		zap.Int("compensations", len(outbox)),
	)
	s.notificationService.NotifyBookingCancelled(ctx, booking, s.driverOf(ctx, booking.RideID))
	return booking, nil
}

// PayBooking charges the passenger for an APPROVED booking that was approved
// without a charge. The charge is keyed by the booking, so a retry after a
// lost response settles at most once.
func (s *BookingService) PayBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Payment, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PassengerID != actor.UserID {
		return nil, forbidden("only the passenger may pay for this booking")
	}
	if booking.Status != domain.BookingStatusApproved {
		return nil, invalidState("booking", booking.ID, booking.Status, "pay")
	}
	if booking.PaymentID != "" {
		return nil, newError(ErrConflict, "booking is already paid",
			"booking_id", booking.ID, "payment_id", booking.PaymentID)
	}

	payment, err := s.settlement.ChargeForBooking(ctx, ChargeRequest{
		UserID:         booking.PassengerID,
		BookingID:      booking.ID,
		Amount:         booking.Price,
		Method:         booking.PaymentMethod,
		IdempotencyKey: "pay:" + booking.ID,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.transition(ctx, booking.ID, func(b *domain.Booking) error {
		if b.Status != domain.BookingStatusApproved {
			return invalidState("booking", b.ID, b.Status, "pay")
		}
		if b.PaymentID != "" && b.PaymentID != payment.ID {
			return newError(ErrConflict, "booking is already paid", "booking_id", b.ID, "payment_id", b.PaymentID)
		}
		b.PaymentID = payment.ID
		return nil
	}, nil)
	if err != nil {
		if payment.Status == domain.PaymentStatusCompleted {
			refund := newCompensation(domain.CompensationRefundPayment, booking, "", "payment could not be attached")
			refund.PaymentID = payment.ID
			s.compensator.Compensate(ctx, refund)
		}
		return nil, err
	}

	s.log.Info("booking paid",
		zap.String("booking_id", booking.ID),
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)),
	)
	return payment, nil
}

// CompleteBooking closes an APPROVED booking once the ride is done. Only
// system or administrative actors may do this.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error) {
	if !actor.IsPrivileged() {
		return nil, forbidden("only an operator may complete bookings")
	}

	booking, err := s.transition(ctx, bookingID, func(b *domain.Booking) error {
		if b.Status != domain.BookingStatusApproved {
			return invalidState("booking", b.ID, b.Status, "complete")
		}
		b.Status = domain.BookingStatusCompleted
		b.ClosedAt = time.Now()
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	s.log.Info("booking completed", zap.String("booking_id", booking.ID))
	s.notificationService.NotifyBookingCompleted(ctx, booking)
	return booking, nil
}

// GetBooking returns a booking visible to its passenger, the ride's driver or
// an administrator.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.PassengerID == actor.UserID || actor.IsPrivileged() {
		return booking, nil
	}

	ride, err := s.lookup.Fetch(ctx, booking.RideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != actor.UserID {
		return nil, forbidden("booking belongs to another passenger")
	}
	return booking, nil
}

// ListPassengerBookings lists a passenger's bookings, newest first.
func (s *BookingService) ListPassengerBookings(ctx context.Context, passengerID string, limit int) ([]*domain.Booking, error) {
	if passengerID == "" {
		return nil, invalidInput("passenger id is required")
	}
	return s.store.Repositories().Bookings.ListByPassenger(ctx, passengerID, limit)
}

// ListRideBookings lists bookings against a ride for its driver or an administrator.
func (s *BookingService) ListRideBookings(ctx context.Context, rideID string, actor domain.Actor) ([]*domain.Booking, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}

	if !actor.IsPrivileged() {
		ride, err := s.lookup.Fetch(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if ride.DriverID != actor.UserID {
			return nil, forbidden("only the driver may list bookings of this ride")
		}
	}
	return s.store.Repositories().Bookings.ListByRide(ctx, rideID)
}

func (s *BookingService) load(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, invalidInput("booking id is required")
	}
	booking, err := s.store.Repositories().Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, translate(err, "booking", bookingID)
	}
	return booking, nil
}

// loadForDriver loads a booking and verifies the actor drives its ride and
// the booking is still PENDING.
func (s *BookingService) loadForDriver(ctx context.Context, bookingID string, actor domain.Actor, op string) (*domain.Booking, *RideSnapshot, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	ride, err := s.lookup.Fetch(ctx, booking.RideID)
	if err != nil {
		return nil, nil, err
	}
	if ride.DriverID != actor.UserID {
		return nil, nil, forbidden("only the ride's driver may " + op + " bookings")
	}

	if booking.Status != domain.BookingStatusPending {
		return nil, nil, invalidState("booking", booking.ID, booking.Status, op)
	}
	return booking, ride, nil
}

// transition locks the booking, applies mutate and persists it conditionally
// on the status it was read with. after runs in the same transaction.
func (s *BookingService) transition(
	ctx context.Context,
	bookingID string,
	mutate func(*domain.Booking) error,
	after func(context.Context, repository.Repositories) error,
) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, invalidInput("booking id is required")
	}

	var result *domain.Booking
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		booking, err := repos.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return translate(err, "booking", bookingID)
		}

		from := booking.Status
		if err := mutate(booking); err != nil {
			return err
		}
		booking.UpdatedAt = time.Now()

		if err := repos.Bookings.Transition(ctx, booking, from); err != nil {
			return translate(err, "booking", bookingID)
		}
		if after != nil {
			if err := after(ctx, repos); err != nil {
				return err
			}
		}
		result = booking
		return nil
	})
	return result, err
}

// driverOf resolves a ride's driver for notifications. Best effort.
func (s *BookingService) driverOf(ctx context.Context, rideID string) string {
	ride, err := s.lookup.Fetch(ctx, rideID)
	if err != nil {
		s.log.Warn("failed to resolve ride driver", zap.String("ride_id", rideID), zap.Error(err))
		return ""
	}
	return ride.DriverID
}
