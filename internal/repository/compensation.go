package repository

import (
	"context"
	"time"

	"rideshare/internal/domain"
)

// CompensationRepository stores the saga outbox.
type CompensationRepository interface {
	// Create persists a new pending compensation.
	Create(ctx context.Context, c *domain.Compensation) error

	// ListPending retrieves pending compensations, oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error)

	// Update writes status, attempts, last error and not-before.
	Update(ctx context.Context, c *domain.Compensation) error

	// Lease claims a pending row whose not-before has passed for d, counting
	// one attempt, and returns the new attempt count. Returns ErrStale if the
	// row is not pending or is leased.
	Lease(ctx context.Context, id string, d time.Duration) (int, error)

	// Settle marks a pending, never attempted row DONE while its first lease
	// is still valid. Returns ErrStale otherwise.
	Settle(ctx context.Context, id string) error

	// Release ends the first lease of a pending, never attempted row so it
	// can be leased at once. Returns ErrStale otherwise.
	Release(ctx context.Context, id string) error
}
