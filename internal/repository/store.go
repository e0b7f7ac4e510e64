package repository

import "context"

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Rides         RideRepository
	Bookings      BookingRepository
	Wallets       WalletRepository
	Payments      PaymentRepository
	Compensations CompensationRepository
}

// Store hands out repositories and runs atomic units of work.
type Store interface {
	// Repositories returns repositories that run outside any transaction.
	Repositories() Repositories

	// WithinTx runs fn with repositories bound to a single transaction. The
	// transaction commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
