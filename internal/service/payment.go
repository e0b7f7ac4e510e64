package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// PSP is the interface for the external card payment gateway.
type PSP interface {
	// Charge captures amount and returns the gateway transaction reference.
	Charge(ctx context.Context, userID string, amount domain.Money, currency string) (string, error)

	// Refund returns a captured charge and returns the refund reference. The
	// gateway applies a given idempotency key at most once and answers a
	// repeated key with the original refund reference.
	Refund(ctx context.Context, externalRef string, amount domain.Money, idempotencyKey string) (string, error)
}

// MockPSP is a gateway stand-in that approves everything and synthesizes
// transaction references.
type MockPSP struct {
	mu      sync.Mutex
	refunds map[string]string
}

// NewMockPSP creates a new mock PSP.
func NewMockPSP() *MockPSP {
	return &MockPSP{refunds: make(map[string]string)}
}

// Charge simulates a payment charge. Always succeeds.
func (p *MockPSP) Charge(ctx context.Context, userID string, amount domain.Money, currency string) (string, error) {
	return "psp_ch_" + uuid.New().String(), nil
}

// Refund simulates a refund. Always succeeds.
func (p *MockPSP) Refund(ctx context.Context, externalRef string, amount domain.Money, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.refunds[idempotencyKey]; ok && idempotencyKey != "" {
		return ref, nil
	}
	ref := "psp_re_" + uuid.New().String()
	if idempotencyKey != "" {
		p.refunds[idempotencyKey] = ref
	}
	return ref, nil
}

// voidCharge returns a gateway charge whose payment record could not be written.
func voidCharge(ctx context.Context, psp PSP, log *zap.Logger, externalRef string, amount domain.Money, key string) {
	if externalRef == "" {
		return
	}
	if _, err := psp.Refund(context.WithoutCancel(ctx), externalRef, amount, key); err != nil {
		log.Error("failed to void orphaned card charge",
			zap.String("external_ref", externalRef),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
	}
}

// PaymentService is payment settlement. It exclusively owns payment records.
type PaymentService struct {
	store               repository.Store
	psp                 PSP
	notificationService *NotificationService
	log                 *zap.Logger
	currency            string
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	store repository.Store,
	psp PSP,
	notificationService *NotificationService,
	log *zap.Logger,
	currency string,
) *PaymentService {
	return &PaymentService{
		store:               store,
		psp:                 psp,
		notificationService: notificationService,
		log:                 log.With(zap.String("service", "payment")),
		currency:            currency,
	}
}

// ChargeRequest contains the parameters for charging a booking.
type ChargeRequest struct {
	UserID         string               `json:"user_id" validate:"required"`
	BookingID      string               `json:"booking_id" validate:"required"`
	Amount         domain.Money         `json:"amount" validate:"gt=0,money"`
	Method         domain.PaymentMethod `json:"method" validate:"required,oneof=CARD WALLET CASH"`
	IdempotencyKey string               `json:"idempotency_key" validate:"max=128"`
}

// ChargeForBooking settles a booking charge. Wallet charges debit the wallet
// and record a COMPLETED payment atomically. Card charges go through the
// gateway first. Cash charges are recorded PENDING. A replayed idempotency key
// returns the original payment.
func (s *PaymentService) ChargeForBooking(ctx context.Context, req ChargeRequest) (*domain.Payment, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.Repositories().Payments.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.replay(existing, req)
		}
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		BookingID:      req.BookingID,
		Amount:         req.Amount,
		Currency:       s.currency,
		Type:           domain.PaymentTypeRideCharge,
		Method:         req.Method,
		Status:         domain.PaymentStatusCompleted,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	switch req.Method {
	case domain.PaymentMethodCash:
		payment.Status = domain.PaymentStatusPending
	case domain.PaymentMethodCard:
		ref, err := s.psp.Charge(ctx, req.UserID, req.Amount, s.currency)
		if err != nil {
			return nil, newError(ErrUnavailable, "payment gateway charge failed: "+err.Error(), "booking_id", req.BookingID)
		}
		payment.ExternalRef = ref
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if req.Method == domain.PaymentMethodWallet {
			if _, err := debitWallet(ctx, repos, req.UserID, req.Amount, s.currency); err != nil {
				return err
			}
		}
		return repos.Payments.Create(ctx, payment)
	})
	if errors.Is(err, repository.ErrConflict) && req.IdempotencyKey != "" {
		// Lost a race against a concurrent call with the same key.
		existing, getErr := s.store.Repositories().Payments.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if getErr == nil && existing != nil {
			s.voidCardCharge(ctx, payment)
			return s.replay(existing, req)
		}
	}
	if err != nil {
		s.voidCardCharge(ctx, payment)
		return nil, err
	}

	s.log.Info("booking charged",
		zap.String("payment_id", payment.ID),
		zap.String("booking_id", payment.BookingID),
		zap.String("method", string(payment.Method)),
		zap.String("status", string(payment.Status)),
		zap.String("amount", payment.Amount.String()),
	)
	if payment.Status == domain.PaymentStatusCompleted {
		s.notificationService.NotifyPaymentCompleted(ctx, payment)
	}
	return payment, nil
}

func (s *PaymentService) replay(existing *domain.Payment, req ChargeRequest) (*domain.Payment, error) {
	if existing.UserID != req.UserID || existing.BookingID != req.BookingID || existing.Amount != req.Amount {
		return nil, newError(ErrConflict, "idempotency key reused with different parameters",
			"idempotency_key", req.IdempotencyKey, "payment_id", existing.ID)
	}
	return existing, nil
}

func (s *PaymentService) voidCardCharge(ctx context.Context, payment *domain.Payment) {
	voidCharge(ctx, s.psp, s.log, payment.ExternalRef, payment.Amount, "void:"+payment.ID)
}

// Refund returns a completed ride charge. Wallet charges are credited back,
// card charges are refunded through the gateway first under the key
// refund:<payment>, so a retry after a failed write replays the same gateway
// refund. A new REFUND payment is recorded and the original becomes REFUNDED
// in one transaction.
func (s *PaymentService) Refund(ctx context.Context, userID, paymentID, reason string) (*domain.Payment, error) {
	if userID == "" || paymentID == "" {
		return nil, invalidInput("user id and payment id are required")
	}

	current, err := s.store.Repositories().Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, translate(err, "payment", paymentID)
	}
	if err := checkRefundable(current, userID); err != nil {
		return nil, err
	}

	key := "refund:" + current.ID
	var externalRef string
	if current.Method == domain.PaymentMethodCard {
		ref, err := s.psp.Refund(ctx, current.ExternalRef, current.Amount, key)
		if err != nil {
			return nil, newError(ErrUnavailable, "payment gateway refund failed: "+err.Error(), "payment_id", current.ID)
		}
		externalRef = ref
	}

	var original, refund *domain.Payment
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		p, err := repos.Payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return translate(err, "payment", paymentID)
		}
		if err := checkRefundable(p, userID); err != nil {
			return err
		}

		now := time.Now()
		r := &domain.Payment{
			ID:             uuid.New().String(),
			UserID:         p.UserID,
			BookingID:      p.BookingID,
			Amount:         p.Amount,
			Currency:       p.Currency,
			Type:           domain.PaymentTypeRefund,
			Method:         p.Method,
			Status:         domain.PaymentStatusCompleted,
			ExternalRef:    externalRef,
			RefundOf:       p.ID,
			Reason:         reason,
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if p.Method == domain.PaymentMethodWallet {
			if _, err := creditWallet(ctx, repos, p.UserID, p.Amount, s.currency); err != nil {
				return err
			}
		}
		if err := repos.Payments.Create(ctx, r); err != nil {
			return translate(err, "payment", p.ID)
		}
		if err := repos.Payments.UpdateStatus(ctx, p.ID, domain.PaymentStatusCompleted, domain.PaymentStatusRefunded); err != nil {
			return translate(err, "payment", p.ID)
		}

		p.Status = domain.PaymentStatusRefunded
		p.UpdatedAt = now
		original, refund = p, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment refunded",
		zap.String("payment_id", original.ID),
		zap.String("refund_id", refund.ID),
		zap.String("amount", refund.Amount.String()),
	)
	s.notificationService.NotifyPaymentRefunded(ctx, original, refund)
	return refund, nil
}

func checkRefundable(p *domain.Payment, userID string) error {
	if p.UserID != userID {
		return notFound("payment", p.ID)
	}
	if p.Status != domain.PaymentStatusCompleted {
		return invalidState("payment", p.ID, p.Status, "refund")
	}
	if p.Type != domain.PaymentTypeRideCharge {
		return newError(ErrInvalidState, "only ride charges can be refunded",
			"payment_id", p.ID, "type", p.Type)
	}
	return nil
}

// GetPayment retrieves a payment visible to the actor.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string, actor domain.Actor) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, invalidInput("payment id is required")
	}

	payment, err := s.store.Repositories().Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, translate(err, "payment", paymentID)
	}
	if payment.UserID != actor.UserID && !actor.IsPrivileged() {
		return nil, notFound("payment", paymentID)
	}
	return payment, nil
}

// ListUserPayments lists a user's payments, newest first.
func (s *PaymentService) ListUserPayments(ctx context.Context, userID string, limit int) ([]*domain.Payment, error) {
	if userID == "" {
		return nil, invalidInput("user id is required")
	}
	return s.store.Repositories().Payments.ListByUser(ctx, userID, limit)
}
