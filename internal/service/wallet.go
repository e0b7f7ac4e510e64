package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// WalletService is the wallet ledger. It exclusively owns balance figures.
type WalletService struct {
	store               repository.Store
	psp                 PSP
	notificationService *NotificationService
	log                 *zap.Logger
	currency            string
	minTopUp            domain.Money
}

// NewWalletService creates a new WalletService.
func NewWalletService(
	store repository.Store,
	psp PSP,
	notificationService *NotificationService,
	log *zap.Logger,
	currency string,
	minTopUp domain.Money,
) *WalletService {
	return &WalletService{
		store:               store,
		psp:                 psp,
		notificationService: notificationService,
		log:                 log.With(zap.String("service", "wallet")),
		currency:            currency,
		minTopUp:            minTopUp,
	}
}

// GetOrCreate returns the user's wallet, creating an empty one if needed.
func (s *WalletService) GetOrCreate(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, invalidInput("user id is required")
	}
	return getOrCreateWallet(ctx, s.store.Repositories(), userID, s.currency)
}

// TopUpRequest contains the parameters for adding funds to a wallet.
type TopUpRequest struct {
	UserID string               `json:"user_id" validate:"required"`
	Amount domain.Money         `json:"amount" validate:"gt=0,money"`
	Method domain.PaymentMethod `json:"method" validate:"omitempty,oneof=CARD CASH"`
}

// TopUp credits the wallet and records a WALLET_TOP_UP payment in the same
// transaction. A card charge whose records cannot be written is voided.
func (s *WalletService) TopUp(ctx context.Context, req TopUpRequest) (*domain.Wallet, *domain.Payment, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	if req.Amount < s.minTopUp {
		return nil, nil, invalidInput("amount is below the minimum top-up",
			"amount", req.Amount.String(), "minimum", s.minTopUp.String())
	}

	method := req.Method
	if method == "" {
		method = domain.PaymentMethodCard
	}

	paymentID := uuid.New().String()
	var externalRef string
	if method == domain.PaymentMethodCard && s.psp != nil {
		ref, err := s.psp.Charge(ctx, req.UserID, req.Amount, s.currency)
		if err != nil {
			return nil, nil, newError(ErrUnavailable, "payment gateway charge failed: "+err.Error(), "user_id", req.UserID)
		}
		externalRef = ref
	}

	var wallet *domain.Wallet
	var payment *domain.Payment
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		w, err := creditWallet(ctx, repos, req.UserID, req.Amount, s.currency)
		if err != nil {
			return err
		}

		now := time.Now()
		p := &domain.Payment{
			ID:          paymentID,
			UserID:      req.UserID,
			Amount:      req.Amount,
			Currency:    s.currency,
			Type:        domain.PaymentTypeWalletTopUp,
			Method:      method,
			Status:      domain.PaymentStatusCompleted,
			ExternalRef: externalRef,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Payments.Create(ctx, p); err != nil {
			return err
		}

		wallet, payment = w, p
		return nil
	})
	if err != nil {
		voidCharge(ctx, s.psp, s.log, externalRef, req.Amount, "void:"+paymentID)
		return nil, nil, err
	}

	s.log.Info("wallet topped up",
		zap.String("user_id", req.UserID),
		zap.String("amount", req.Amount.String()),
		zap.String("payment_id", payment.ID),
	)
	s.notificationService.NotifyPaymentCompleted(ctx, payment)
	return wallet, payment, nil
}

// Freeze moves amount from balance to frozen balance.
func (s *WalletService) Freeze(ctx context.Context, userID string, amount domain.Money) (*domain.Wallet, error) {
	return s.mutate(ctx, userID, amount, "freeze", func(w *domain.Wallet) error {
		if w.Balance < amount {
			return insufficientFunds(w, amount, w.Balance)
		}
		if err := addTo(w, &w.FrozenBalance, amount); err != nil {
			return err
		}
		w.Balance -= amount
		return nil
	})
}

// Unfreeze moves amount from frozen balance back to balance.
func (s *WalletService) Unfreeze(ctx context.Context, userID string, amount domain.Money) (*domain.Wallet, error) {
	return s.mutate(ctx, userID, amount, "unfreeze", func(w *domain.Wallet) error {
		if w.FrozenBalance < amount {
			return insufficientFunds(w, amount, w.FrozenBalance)
		}
		if err := addTo(w, &w.Balance, amount); err != nil {
			return err
		}
		w.FrozenBalance -= amount
		return nil
	})
}

// Debit removes amount from balance.
func (s *WalletService) Debit(ctx context.Context, userID string, amount domain.Money) (*domain.Wallet, error) {
	return s.mutate(ctx, userID, amount, "debit", func(w *domain.Wallet) error {
		return applyDebit(w, amount)
	})
}

// Credit adds amount to balance.
func (s *WalletService) Credit(ctx context.Context, userID string, amount domain.Money) (*domain.Wallet, error) {
	return s.mutate(ctx, userID, amount, "credit", func(w *domain.Wallet) error {
		return addTo(w, &w.Balance, amount)
	})
}

func (s *WalletService) mutate(ctx context.Context, userID string, amount domain.Money, op string, apply func(*domain.Wallet) error) (*domain.Wallet, error) {
	if userID == "" {
		return nil, invalidInput("user id is required")
	}
	if !amount.IsPositive() || !amount.InRange() {
		return nil, invalidInput("amount must be positive and at most "+domain.MaxMoney.String(), "amount", amount.String())
	}

	var result *domain.Wallet
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		w, err := lockWallet(ctx, repos, userID, s.currency)
		if err != nil {
			return err
		}
		if err := apply(w); err != nil {
			return err
		}
		w.UpdatedAt = time.Now()
		if err := repos.Wallets.UpdateBalances(ctx, w); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("wallet "+op,
		zap.String("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("balance", result.Balance.String()),
		zap.String("frozen_balance", result.FrozenBalance.String()),
	)
	return result, nil
}

func getOrCreateWallet(ctx context.Context, repos repository.Repositories, userID, currency string) (*domain.Wallet, error) {
	now := time.Now()
	return repos.Wallets.GetOrCreate(ctx, &domain.Wallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// lockWallet creates the wallet if needed and returns it locked for update.
// Must be called inside a transaction.
func lockWallet(ctx context.Context, repos repository.Repositories, userID, currency string) (*domain.Wallet, error) {
	if _, err := getOrCreateWallet(ctx, repos, userID, currency); err != nil {
		return nil, err
	}
	w, err := repos.Wallets.GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, translate(err, "wallet", userID)
	}
	return w, nil
}

// debitWallet debits a wallet inside the caller's transaction.
func debitWallet(ctx context.Context, repos repository.Repositories, userID string, amount domain.Money, currency string) (*domain.Wallet, error) {
	w, err := lockWallet(ctx, repos, userID, currency)
	if err != nil {
		return nil, err
	}
	if err := applyDebit(w, amount); err != nil {
		return nil, err
	}
	w.UpdatedAt = time.Now()
	if err := repos.Wallets.UpdateBalances(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// creditWallet credits a wallet inside the caller's transaction.
func creditWallet(ctx context.Context, repos repository.Repositories, userID string, amount domain.Money, currency string) (*domain.Wallet, error) {
	w, err := lockWallet(ctx, repos, userID, currency)
	if err != nil {
		return nil, err
	}
	if err := addTo(w, &w.Balance, amount); err != nil {
		return nil, err
	}
	w.UpdatedAt = time.Now()
	if err := repos.Wallets.UpdateBalances(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// addTo adds amount to one of w's figures unless the total would not fit the
// balance column.
func addTo(w *domain.Wallet, figure *domain.Money, amount domain.Money) error {
	total, err := figure.Add(amount)
	if err != nil {
		return newError(ErrInvalidInput, "wallet balance limit exceeded",
			"user_id", w.UserID, "amount", amount.String(), "limit", domain.MaxMoney.String())
	}
	*figure = total
	return nil
}

func applyDebit(w *domain.Wallet, amount domain.Money) error {
	if w.Balance < amount {
		return insufficientFunds(w, amount, w.Balance)
	}
	w.Balance -= amount
	return nil
}

func insufficientFunds(w *domain.Wallet, requested, available domain.Money) error {
	return newError(ErrInsufficientFunds, "wallet cannot cover the amount",
		"user_id", w.UserID, "requested", requested.String(), "available", available.String())
}
