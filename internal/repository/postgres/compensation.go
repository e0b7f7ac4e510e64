package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

const compensationColumns = `id, kind, booking_id, ride_id, seats, payment_id, user_id, idempotency_key, reason,
	status, attempts, last_error, not_before, created_at, updated_at`

// CompensationRepository is a PostgreSQL implementation of repository.CompensationRepository.
type CompensationRepository struct {
	q Querier
}

// NewCompensationRepository creates a new PostgreSQL compensation repository.
func NewCompensationRepository(db *sql.DB) *CompensationRepository {
	return &CompensationRepository{q: db}
}

// NewCompensationRepositoryWithTx creates a compensation repository using a transaction.
func NewCompensationRepositoryWithTx(tx *sql.Tx) *CompensationRepository {
	return &CompensationRepository{q: tx}
}

// Create persists a new compensation.
func (r *CompensationRepository) Create(ctx context.Context, c *domain.Compensation) error {
	query := `
		INSERT INTO compensations (` + compensationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, NOW()), $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		c.ID,
		c.Kind,
		c.BookingID,
		nullString(c.RideID),
		c.Seats,
		nullString(c.PaymentID),
		nullString(c.UserID),
		c.IdempotencyKey,
		nullString(c.Reason),
		c.Status,
		c.Attempts,
		nullString(c.LastError),
		nullTime(c.NotBefore),
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

// ListPending retrieves pending compensations that are not leased, oldest first.
func (r *CompensationRepository) ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error) {
	query := `SELECT ` + compensationColumns + ` FROM compensations
		WHERE status = $1 AND not_before <= NOW() ORDER BY created_at ASC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, domain.CompensationPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.Compensation
	for rows.Next() {
		var c domain.Compensation
		var rideID, paymentID, userID, reason, lastError sql.NullString
		if err := rows.Scan(
			&c.ID,
			&c.Kind,
			&c.BookingID,
			&rideID,
			&c.Seats,
			&paymentID,
			&userID,
			&c.IdempotencyKey,
			&reason,
			&c.Status,
			&c.Attempts,
			&lastError,
			&c.NotBefore,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		c.RideID = rideID.String
		c.PaymentID = paymentID.String
		c.UserID = userID.String
		c.Reason = reason.String
		c.LastError = lastError.String
		list = append(list, &c)
	}
	return list, rows.Err()
}

// Update writes status, attempts, last error and not-before.
func (r *CompensationRepository) Update(ctx context.Context, c *domain.Compensation) error {
	query := `UPDATE compensations
		SET status = $1, attempts = $2, last_error = $3, not_before = COALESCE($4, NOW()), updated_at = $5
		WHERE id = $6`

	result, err := r.q.ExecContext(ctx, query, c.Status, c.Attempts, nullString(c.LastError), nullTime(c.NotBefore), c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// Lease claims an unleased pending row for d and counts one attempt.
func (r *CompensationRepository) Lease(ctx context.Context, id string, d time.Duration) (int, error) {
	query := `UPDATE compensations
		SET attempts = attempts + 1, not_before = NOW() + make_interval(secs => $1), updated_at = NOW()
		WHERE id = $2 AND status = $3 AND not_before <= NOW()
		RETURNING attempts`

	var attempts int
	err := r.q.QueryRowContext(ctx, query, d.Seconds(), id, domain.CompensationPending).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repository.ErrStale
	}
	return attempts, err
}

// Settle marks a never attempted row DONE while its first lease holds.
func (r *CompensationRepository) Settle(ctx context.Context, id string) error {
	query := `UPDATE compensations SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND attempts = 0 AND not_before > NOW()`

	result, err := r.q.ExecContext(ctx, query, domain.CompensationDone, id, domain.CompensationPending)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrStale)
}

// Release ends the first lease of a never attempted row.
func (r *CompensationRepository) Release(ctx context.Context, id string) error {
	query := `UPDATE compensations SET not_before = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2 AND attempts = 0`

	result, err := r.q.ExecContext(ctx, query, id, domain.CompensationPending)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrStale)
}
