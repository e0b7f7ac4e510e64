package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

const rideColumns = `id, driver_id, origin_lat, origin_lng, origin_label, destination_lat, destination_lng, destination_label,
	route_line, departure_at, available_seats, price_per_seat, status, cancel_reason, cancelled_at, started_at, completed_at,
	created_at, updated_at`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.Origin.Lat,
		ride.Origin.Lng,
		ride.Origin.Label,
		ride.Destination.Lat,
		ride.Destination.Lng,
		ride.Destination.Label,
		nullString(ride.RouteLine),
		ride.DepartureAt,
		ride.AvailableSeats,
		ride.PricePerSeat,
		ride.Status,
		nullString(ride.CancelReason),
		nullTime(ride.CancelledAt),
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		ride.CreatedAt,
		ride.UpdatedAt,
	)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a ride and locks its row.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// List retrieves rides matching the filter, newest first.
func (r *RideRepository) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	var (
		conds []string
		args  []any
	)
	if filter.DriverID != "" {
		args = append(args, filter.DriverID)
		conds = append(conds, fmt.Sprintf("driver_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := `SELECT ` + rideColumns + ` FROM rides`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET origin_lat = $1, origin_lng = $2, origin_label = $3, destination_lat = $4, destination_lng = $5,
			destination_label = $6, route_line = $7, departure_at = $8, available_seats = $9, price_per_seat = $10,
			status = $11, cancel_reason = $12, cancelled_at = $13, started_at = $14, completed_at = $15, updated_at = $16
		WHERE id = $17
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.Origin.Lat,
		ride.Origin.Lng,
		ride.Origin.Label,
		ride.Destination.Lat,
		ride.Destination.Lng,
		ride.Destination.Label,
		nullString(ride.RouteLine),
		ride.DepartureAt,
		ride.AvailableSeats,
		ride.PricePerSeat,
		ride.Status,
		nullString(ride.CancelReason),
		nullTime(ride.CancelledAt),
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		ride.UpdatedAt,
		ride.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// GetSeatAdjustment returns the adjustment recorded under key, or nil.
func (r *RideRepository) GetSeatAdjustment(ctx context.Context, key string) (*domain.SeatAdjustment, error) {
	query := `SELECT idempotency_key, ride_id, delta, created_at FROM seat_adjustments WHERE idempotency_key = $1`

	var adj domain.SeatAdjustment
	err := r.q.QueryRowContext(ctx, query, key).Scan(&adj.IdempotencyKey, &adj.RideID, &adj.Delta, &adj.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &adj, nil
}

// RecordSeatAdjustment stores an applied adjustment.
func (r *RideRepository) RecordSeatAdjustment(ctx context.Context, adj *domain.SeatAdjustment) error {
	query := `INSERT INTO seat_adjustments (idempotency_key, ride_id, delta, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.q.ExecContext(ctx, query, adj.IdempotencyKey, adj.RideID, adj.Delta, adj.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var routeLine, cancelReason sql.NullString
	var cancelledAt, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.Origin.Lat,
		&ride.Origin.Lng,
		&ride.Origin.Label,
		&ride.Destination.Lat,
		&ride.Destination.Lng,
		&ride.Destination.Label,
		&routeLine,
		&ride.DepartureAt,
		&ride.AvailableSeats,
		&ride.PricePerSeat,
		&ride.Status,
		&cancelReason,
		&cancelledAt,
		&startedAt,
		&completedAt,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	ride.RouteLine = routeLine.String
	ride.CancelReason = cancelReason.String
	ride.CancelledAt = cancelledAt.Time
	ride.StartedAt = startedAt.Time
	ride.CompletedAt = completedAt.Time

	return &ride, nil
}
