package service

import (
	"context"
	"errors"
	"time"

	"rideshare/internal/domain"
)

// RideSnapshot is the part of a ride the booking flow needs.
type RideSnapshot struct {
	ID             string            `json:"id"`
	DriverID       string            `json:"driver_id"`
	Status         domain.RideStatus `json:"status"`
	AvailableSeats int               `json:"available_seats"`
	PricePerSeat   domain.Money      `json:"price_per_seat"`
}

// NewRideSnapshot projects a ride onto a snapshot.
func NewRideSnapshot(ride *domain.Ride) *RideSnapshot {
	return &RideSnapshot{
		ID:             ride.ID,
		DriverID:       ride.DriverID,
		Status:         ride.Status,
		AvailableSeats: ride.AvailableSeats,
		PricePerSeat:   ride.PricePerSeat,
	}
}

// RideLookup is the inventory ledger as seen by the booking flow. Failing to
// reach the ledger must surface as ErrUnavailable, never as ErrNotFound.
type RideLookup interface {
	// Fetch returns the current capacity and price of a ride.
	Fetch(ctx context.Context, rideID string) (*RideSnapshot, error)

	// AdjustSeats applies a seat delta under an idempotency key.
	AdjustSeats(ctx context.Context, rideID string, delta int, idempotencyKey string) error

	// RevertSeats undoes whatever was applied under idempotencyKey.
	RevertSeats(ctx context.Context, rideID, idempotencyKey string) error
}

// DefaultLookupTimeout bounds each call into the inventory ledger.
const DefaultLookupTimeout = 2 * time.Second

// LocalRideLookup calls the inventory ledger in-process.
type LocalRideLookup struct {
	rides   *RideService
	timeout time.Duration
}

// Ensure LocalRideLookup implements RideLookup.
var _ RideLookup = (*LocalRideLookup)(nil)

// NewLocalRideLookup creates a new LocalRideLookup.
func NewLocalRideLookup(rides *RideService, timeout time.Duration) *LocalRideLookup {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &LocalRideLookup{rides: rides, timeout: timeout}
}

func (l *LocalRideLookup) Fetch(ctx context.Context, rideID string) (*RideSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ride, err := l.rides.Snapshot(ctx, rideID)
	if err != nil {
		return nil, asUnavailable(ctx, err)
	}
	return NewRideSnapshot(ride), nil
}

func (l *LocalRideLookup) AdjustSeats(ctx context.Context, rideID string, delta int, idempotencyKey string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	_, err := l.rides.AdjustSeats(ctx, rideID, delta, idempotencyKey)
	return asUnavailable(ctx, err)
}

func (l *LocalRideLookup) RevertSeats(ctx context.Context, rideID, idempotencyKey string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	_, err := l.rides.RevertSeats(ctx, rideID, idempotencyKey)
	return asUnavailable(ctx, err)
}

// asUnavailable turns deadline and cancellation failures into ErrUnavailable.
func asUnavailable(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return newError(ErrUnavailable, "inventory ledger did not respond in time: "+err.Error())
	}
	return err
}
