package repository

import (
	"context"

	"rideshare/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking. Returns ErrConflict when the passenger
	// already has a pending booking on the ride.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByIDForUpdate retrieves a booking and locks its row.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error)

	// FindPending returns the pending booking of passengerID on rideID.
	// Returns nil if none exists.
	FindPending(ctx context.Context, rideID, passengerID string) (*domain.Booking, error)

	// ListByPassenger retrieves a passenger's bookings, newest first.
	ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.Booking, error)

	// ListByRide retrieves all bookings against a ride, oldest first.
	ListByRide(ctx context.Context, rideID string) ([]*domain.Booking, error)

	// Transition persists the booking's status fields only if the stored
	// status still equals from. Returns ErrStale otherwise.
	Transition(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error
}
