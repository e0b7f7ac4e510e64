package repository

import (
	"context"

	"rideshare/internal/domain"
)

// RideFilter narrows ride listings. Zero values mean "any".
type RideFilter struct {
	DriverID string
	Status   domain.RideStatus
	Limit    int
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// List retrieves rides matching the filter, newest first.
	List(ctx context.Context, filter RideFilter) ([]*domain.Ride, error)

	// Update updates an existing ride.
	Update(ctx context.Context, ride *domain.Ride) error

	// GetSeatAdjustment returns the adjustment recorded under key.
	// Returns nil if the key has not been seen.
	GetSeatAdjustment(ctx context.Context, key string) (*domain.SeatAdjustment, error)

	// RecordSeatAdjustment stores an applied adjustment. Returns ErrConflict
	// if the key was already recorded.
	RecordSeatAdjustment(ctx context.Context, adj *domain.SeatAdjustment) error
}
