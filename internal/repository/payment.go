package repository

import (
	"context"

	"rideshare/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByIDForUpdate retrieves a payment and locks its row.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error)

	// GetByIdempotencyKey retrieves a payment by its idempotency key.
	// Returns nil if no payment exists with the given key.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)

	// ListByUser retrieves a user's payments, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Payment, error)

	// UpdateStatus moves a payment from one status to another.
	// Returns ErrStale if the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus) error
}
