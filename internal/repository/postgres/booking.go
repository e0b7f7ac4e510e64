package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

const bookingColumns = `id, ride_id, passenger_id, seats, price, payment_method, payment_id, status,
	reject_reason, cancel_reason, cancelled_by, approved_at, closed_at, created_at, updated_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// Create persists a new booking. The partial unique index
// bookings_one_pending_per_passenger turns a duplicate into ErrConflict.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.RideID,
		booking.PassengerID,
		booking.Seats,
		booking.Price,
		booking.PaymentMethod,
		nullString(booking.PaymentID),
		booking.Status,
		nullString(booking.RejectReason),
		nullString(booking.CancelReason),
		nullString(booking.CancelledBy),
		nullTime(booking.ApprovedAt),
		nullTime(booking.ClosedAt),
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a booking and locks its row.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

// FindPending returns the passenger's pending booking on a ride, or nil.
func (r *BookingRepository) FindPending(ctx context.Context, rideID, passengerID string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ride_id = $1 AND passenger_id = $2 AND status = $3`

	booking, err := scanBooking(r.q.QueryRowContext(ctx, query, rideID, passengerID, domain.BookingStatusPending))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return booking, err
}

// ListByPassenger retrieves a passenger's bookings, newest first.
func (r *BookingRepository) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE passenger_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, passengerID, limit)
}

// ListByRide retrieves all bookings against a ride, oldest first.
func (r *BookingRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ride_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, rideID)
}

// Transition persists status fields if the stored status still equals from.
func (r *BookingRepository) Transition(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $1, payment_id = $2, reject_reason = $3, cancel_reason = $4, cancelled_by = $5,
			approved_at = $6, closed_at = $7, updated_at = $8
		WHERE id = $9 AND status = $10
	`

	result, err := r.q.ExecContext(ctx, query,
		booking.Status,
		nullString(booking.PaymentID),
		nullString(booking.RejectReason),
		nullString(booking.CancelReason),
		nullString(booking.CancelledBy),
		nullTime(booking.ApprovedAt),
		nullTime(booking.ClosedAt),
		booking.UpdatedAt,
		booking.ID,
		from,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrStale)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var paymentID, rejectReason, cancelReason, cancelledBy sql.NullString
	var approvedAt, closedAt sql.NullTime

	err := row.Scan(
		&booking.ID,
		&booking.RideID,
		&booking.PassengerID,
		&booking.Seats,
		&booking.Price,
		&booking.PaymentMethod,
		&paymentID,
		&booking.Status,
		&rejectReason,
		&cancelReason,
		&cancelledBy,
		&approvedAt,
		&closedAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	booking.PaymentID = paymentID.String
	booking.RejectReason = rejectReason.String
	booking.CancelReason = cancelReason.String
	booking.CancelledBy = cancelledBy.String
	booking.ApprovedAt = approvedAt.Time
	booking.ClosedAt = closedAt.Time

	return &booking, nil
}
