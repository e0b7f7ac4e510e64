package memory

import (
	"context"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// WalletRepository is an in-memory repository.WalletRepository.
type WalletRepository struct {
	store *Store
	inTx  bool
}

func (r *WalletRepository) GetOrCreate(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error) {
	var out domain.Wallet
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		existing, ok := st.wallets[w.UserID]
		if !ok {
			existing = *w
			st.wallets[w.UserID] = existing
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			return repository.ErrNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *WalletRepository) UpdateBalances(ctx context.Context, w *domain.Wallet) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		stored, ok := st.wallets[w.UserID]
		if !ok || stored.ID != w.ID {
			return repository.ErrNotFound
		}
		if w.Balance.IsNegative() || w.FrozenBalance.IsNegative() {
			return ErrCheckViolation
		}
		stored.Balance = w.Balance
		stored.FrozenBalance = w.FrozenBalance
		stored.UpdatedAt = w.UpdatedAt
		st.wallets[w.UserID] = stored
		return nil
	})
}
