package service_test

import (
	"context"
	"errors"
	"testing"

	"rideshare/internal/domain"
	"rideshare/internal/service"
)

func charge(userID, bookingID, amount string, method domain.PaymentMethod) service.ChargeRequest {
	return service.ChargeRequest{
		UserID:    userID,
		BookingID: bookingID,
		Amount:    money(amount),
		Method:    method,
	}
}

func TestPayment_ScenarioC_InsufficientFundsLeavesNoTrace(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", "10000")

	_, err := env.payments.ChargeForBooking(ctx, charge("u1", "b1", "15000", domain.PaymentMethodWallet))
	if !errors.Is(err, service.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	fields := service.Fields(err)
	if fields["requested"] != "15000.00" || fields["available"] != "10000.00" {
		t.Errorf("expected requested/available in error fields, got %v", fields)
	}

	if got := env.balance(t, "u1"); got != money("10000") {
		t.Errorf("expected balance 10000.00, got %s", got)
	}

	payments, err := env.payments.ListUserPayments(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("expected no payment records, got %d", len(payments))
	}
}

func TestPayment_ScenarioD_ChargeAndRefund(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", "20000")

	p, err := env.payments.ChargeForBooking(ctx, charge("u1", "b1", "15000", domain.PaymentMethodWallet))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if p.Status != domain.PaymentStatusCompleted || p.Type != domain.PaymentTypeRideCharge || p.Amount != money("15000") {
		t.Errorf("unexpected charge: %+v", p)
	}
	if got := env.balance(t, "u1"); got != money("5000") {
		t.Errorf("expected balance 5000.00, got %s", got)
	}

	refund, err := env.payments.Refund(ctx, "u1", p.ID, "ride cancelled")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Type != domain.PaymentTypeRefund || refund.Status != domain.PaymentStatusCompleted ||
		refund.Amount != money("15000") || refund.RefundOf != p.ID {
		t.Errorf("unexpected refund record: %+v", refund)
	}
	if got := env.balance(t, "u1"); got != money("20000") {
		t.Errorf("expected balance 20000.00, got %s", got)
	}

	original, err := env.payments.GetPayment(ctx, p.ID, passenger("u1"))
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Status != domain.PaymentStatusRefunded {
		t.Errorf("expected original REFUNDED, got %s", original.Status)
	}
	if original.Amount != money("15000") {
		t.Errorf("original amount must not change, got %s", original.Amount)
	}
}

func TestPayment_RefundTwice_CreditsOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", "20000")

	p, err := env.payments.ChargeForBooking(ctx, charge("u1", "b1", "15000", domain.PaymentMethodWallet))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if _, err := env.payments.Refund(ctx, "u1", p.ID, ""); err != nil {
		t.Fatalf("first refund: %v", err)
	}

	_, err = env.payments.Refund(ctx, "u1", p.ID, "")
	if !errors.Is(err, service.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if got := env.balance(t, "u1"); got != money("20000") {
		t.Errorf("expected single credit (20000.00), got %s", got)
	}
}

func TestPayment_Refund_Rejections(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", "20000")

	p, err := env.payments.ChargeForBooking(ctx, charge("u1", "b1", "5000", domain.PaymentMethodWallet))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	cash, err := env.payments.ChargeForBooking(ctx, charge("u1", "b2", "5000", domain.PaymentMethodCash))
	if err != nil {
		t.Fatalf("cash charge: %v", err)
	}

	if _, err := env.payments.Refund(ctx, "u2", p.ID, ""); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
	if _, err := env.payments.Refund(ctx, "u1", "missing", ""); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown payment, got %v", err)
	}
	if _, err := env.payments.Refund(ctx, "u1", cash.ID, ""); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for pending cash payment, got %v", err)
	}
}

func TestPayment_Methods(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	card, err := env.payments.ChargeForBooking(ctx, charge("u1", "b1", "7500.50", domain.PaymentMethodCard))
	if err != nil {
		t.Fatalf("card charge: %v", err)
	}
	if card.Status != domain.PaymentStatusCompleted || card.ExternalRef == "" {
		t.Errorf("expected completed card payment with gateway reference, got %+v", card)
	}

	cash, err := env.payments.ChargeForBooking(ctx, charge("u1", "b2", "7500", domain.PaymentMethodCash))
	if err != nil {
		t.Fatalf("cash charge: %v", err)
	}
	if cash.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING cash payment, got %s", cash.Status)
	}

	env.psp.ChargeError = errors.New("declined")
	if _, err := env.payments.ChargeForBooking(ctx, charge("u1", "b3", "100", domain.PaymentMethodCard)); !errors.Is(err, service.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on gateway failure, got %v", err)
	}

	refund, err := env.payments.Refund(ctx, "u1", card.ID, "")
	if err != nil {
		t.Fatalf("card refund: %v", err)
	}
	if refund.ExternalRef == "" {
		t.Error("expected card refund to carry a gateway reference")
	}
	if env.psp.RefundCallCount != 1 {
		t.Errorf("expected one gateway refund, got %d", env.psp.RefundCallCount)
	}
}

func TestPayment_IdempotencyKeyReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", "20000")

	req := charge("u1", "b1", "5000", domain.PaymentMethodWallet)
	req.IdempotencyKey = "charge:b1"

	first, err := env.payments.ChargeForBooking(ctx, req)
	if err != nil {
		t.Fatalf("first charge: %v", err)
	}
	second, err := env.payments.ChargeForBooking(ctx, req)
	if err != nil {
		t.Fatalf("replayed charge: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected replay to return payment %s, got %s", first.ID, second.ID)
	}
	if got := env.balance(t, "u1"); got != money("15000") {
		t.Errorf("expected a single debit, balance %s", got)
	}

	req.Amount = money("9000")
	if _, err := env.payments.ChargeForBooking(ctx, req); !errors.Is(err, service.ErrConflict) {
		t.Errorf("expected ErrConflict when key is reused for another amount, got %v", err)
	}
}

func TestPayment_Conservation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, err := env.wallets.TopUp(ctx, service.TopUpRequest{UserID: "u1", Amount: money("50000")}); err != nil {
		t.Fatalf("top up: %v", err)
	}

	var charges []*domain.Payment
	for i, amount := range []string{"12000", "9000.25", "30000", "15000"} {
		p, err := env.payments.ChargeForBooking(ctx, charge("u1", "b"+string(rune('0'+i)), amount, domain.PaymentMethodWallet))
		if err != nil && !errors.Is(err, service.ErrInsufficientFunds) {
			t.Fatalf("charge %s: %v", amount, err)
		}
		if p != nil {
			charges = append(charges, p)
		}
	}
	if _, err := env.payments.ChargeForBooking(ctx, charge("u1", "card", "40000", domain.PaymentMethodCard)); err != nil {
		t.Fatalf("card charge: %v", err)
	}
	if len(charges) > 0 {
		if _, err := env.payments.Refund(ctx, "u1", charges[0].ID, ""); err != nil {
			t.Fatalf("refund: %v", err)
		}
	}

	payments, err := env.payments.ListUserPayments(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var charged, refunded, toppedUp, card domain.Money
	for _, p := range payments {
		switch p.Type {
		case domain.PaymentTypeRideCharge:
			if p.Status == domain.PaymentStatusCompleted || p.Status == domain.PaymentStatusRefunded {
				charged += p.Amount
			}
			if p.Method == domain.PaymentMethodCard {
				card += p.Amount
			}
		case domain.PaymentTypeRefund:
			refunded += p.Amount
		case domain.PaymentTypeWalletTopUp:
			toppedUp += p.Amount
		}
	}

	if charged-refunded > toppedUp+card {
		t.Errorf("conservation violated: charged %s - refunded %s > topped up %s + card %s", charged, refunded, toppedUp, card)
	}

	w, err := env.wallets.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	walletCharged := charged - card
	if w.Balance != toppedUp-walletCharged+refunded {
		t.Errorf("wallet balance %s does not reconcile with ledger", w.Balance)
	}
}

func TestPayment_CardRefundRetryDoesNotRefundTwice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	card, err := env.payments.ChargeForBooking(context.Background(), charge("u1", "b1", "25000", domain.PaymentMethodCard))
	if err != nil {
		t.Fatalf("card charge: %v", err)
	}

	// The caller goes away after the gateway refunded but before the records
	// are written.
	ctx, cancel := context.WithCancel(context.Background())
	env.psp.AfterRefund = func(context.Context) { cancel() }
	if _, err := env.payments.Refund(ctx, "u1", card.ID, "ride cancelled"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	env.psp.AfterRefund = nil

	stored, err := env.payments.GetPayment(context.Background(), card.ID, admin)
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if stored.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected charge still COMPLETED after the failed write, got %s", stored.Status)
	}

	refund, err := env.payments.Refund(context.Background(), "u1", card.ID, "ride cancelled")
	if err != nil {
		t.Fatalf("retry refund: %v", err)
	}
	if refund.ExternalRef == "" {
		t.Error("expected the retried refund to carry the gateway reference")
	}
	if got := env.psp.Refunds(); got != 1 {
		t.Errorf("expected the gateway to refund once, got %d", got)
	}
	if got := env.psp.RefundCallCount; got != 2 {
		t.Errorf("expected two gateway calls, got %d", got)
	}

	if _, err := env.payments.Refund(context.Background(), "u1", card.ID, ""); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on a third refund, got %v", err)
	}
	if got := env.psp.Refunds(); got != 1 {
		t.Errorf("expected still one gateway refund, got %d", got)
	}
}

func TestPayment_WalletChargeRollsBackWhenPaymentWriteFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", "50000")

	diskFull := errors.New("disk full")
	env.faults.FailPaymentWrites(diskFull)
	if _, err := env.payments.ChargeForBooking(ctx, charge("u1", "b1", "20000", domain.PaymentMethodWallet)); !errors.Is(err, diskFull) {
		t.Fatalf("expected the write failure, got %v", err)
	}
	env.faults.FailPaymentWrites(nil)

	if got := env.balance(t, "u1"); got != money("50000") {
		t.Errorf("expected debit rolled back to 50000.00, got %s", got)
	}
	payments, err := env.payments.ListUserPayments(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("expected no payment records, got %d", len(payments))
	}
}

func TestPayment_CardChargeVoidedWhenPaymentWriteFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.faults.FailPaymentWrites(errors.New("disk full"))
	if _, err := env.payments.ChargeForBooking(ctx, charge("u1", "b1", "20000", domain.PaymentMethodCard)); err == nil {
		t.Fatal("expected the charge to fail")
	}
	env.faults.FailPaymentWrites(nil)

	if env.psp.ChargeCallCount != 1 {
		t.Errorf("expected one gateway charge, got %d", env.psp.ChargeCallCount)
	}
	if got := env.psp.Refunds(); got != 1 {
		t.Errorf("expected the orphaned charge to be voided, got %d refunds", got)
	}
}
