package repository

import (
	"context"

	"rideshare/internal/domain"
)

// WalletRepository defines the persistence operations for wallets.
type WalletRepository interface {
	// GetOrCreate returns the user's wallet, inserting w when none exists.
	GetOrCreate(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error)

	// GetByUserID retrieves a wallet by its owner.
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)

	// GetByUserIDForUpdate retrieves a wallet and locks its row.
	GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.Wallet, error)

	// UpdateBalances writes balance and frozen balance.
	UpdateBalances(ctx context.Context, w *domain.Wallet) error
}
