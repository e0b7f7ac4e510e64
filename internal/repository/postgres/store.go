package postgres

import (
	"context"
	"database/sql"

	"rideshare/internal/repository"
)

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on top of an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repositories returns repositories bound to the connection pool.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Rides:         NewRideRepository(s.db),
		Bookings:      NewBookingRepository(s.db),
		Wallets:       NewWalletRepository(s.db),
		Payments:      NewPaymentRepository(s.db),
		Compensations: NewCompensationRepository(s.db),
	}
}

// WithinTx runs fn inside a single database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Create transaction-scoped repositories.
	repos := repository.Repositories{
		Rides:         NewRideRepositoryWithTx(tx),
		Bookings:      NewBookingRepositoryWithTx(tx),
		Wallets:       NewWalletRepositoryWithTx(tx),
		Payments:      NewPaymentRepositoryWithTx(tx),
		Compensations: NewCompensationRepositoryWithTx(tx),
	}

	if err = fn(repos); err != nil {
		return err
	}

	return tx.Commit()
}
