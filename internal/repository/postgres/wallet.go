package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

const walletColumns = `id, user_id, balance, frozen_balance, currency, created_at, updated_at`

// WalletRepository is a PostgreSQL implementation of repository.WalletRepository.
type WalletRepository struct {
	q Querier
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{q: db}
}

// NewWalletRepositoryWithTx creates a wallet repository using a transaction.
func NewWalletRepositoryWithTx(tx *sql.Tx) *WalletRepository {
	return &WalletRepository{q: tx}
}

// GetOrCreate inserts w unless the user already has a wallet, then returns the stored row.
func (r *WalletRepository) GetOrCreate(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error) {
	query := `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.q.ExecContext(ctx, query,
		w.ID,
		w.UserID,
		w.Balance,
		w.FrozenBalance,
		w.Currency,
		w.CreatedAt,
		w.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, w.UserID)
}

// GetByUserID retrieves a wallet by its owner.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(r.q.QueryRowContext(ctx, query, userID))
}

// GetByUserIDForUpdate retrieves a wallet and locks its row.
func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	return scanWallet(r.q.QueryRowContext(ctx, query, userID))
}

// UpdateBalances writes balance and frozen balance.
func (r *WalletRepository) UpdateBalances(ctx context.Context, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, frozen_balance = $2, updated_at = $3 WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, w.Balance, w.FrozenBalance, w.UpdatedAt, w.ID)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.FrozenBalance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}
