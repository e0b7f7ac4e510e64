package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
	"rideshare/internal/repository/memory"
	"rideshare/internal/service"
)

// ──────────────────────────────────────────────
// MOCK PSP
// ──────────────────────────────────────────────

// MockPSP records gateway calls and supports error injection. Like a real
// gateway it applies each refund idempotency key once.
type MockPSP struct {
	ChargeCallCount int32
	RefundCallCount int32

	ChargeError error
	RefundError error
	// AfterRefund runs once a refund has been applied, with the caller's ctx.
	AfterRefund func(ctx context.Context)

	mu      sync.Mutex
	refunds map[string]string
}

func (m *MockPSP) Charge(ctx context.Context, userID string, amount domain.Money, currency string) (string, error) {
	atomic.AddInt32(&m.ChargeCallCount, 1)
	if m.ChargeError != nil {
		return "", m.ChargeError
	}
	return "ch_" + uuid.New().String(), nil
}

func (m *MockPSP) Refund(ctx context.Context, externalRef string, amount domain.Money, key string) (string, error) {
	atomic.AddInt32(&m.RefundCallCount, 1)
	if m.RefundError != nil {
		return "", m.RefundError
	}

	m.mu.Lock()
	if m.refunds == nil {
		m.refunds = make(map[string]string)
	}
	ref, ok := m.refunds[key]
	if !ok {
		ref = "re_" + uuid.New().String()
		m.refunds[key] = ref
	}
	m.mu.Unlock()

	if m.AfterRefund != nil {
		m.AfterRefund(ctx)
	}
	return ref, nil
}

// Refunds returns how many distinct refunds the gateway applied.
func (m *MockPSP) Refunds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refunds)
}

// ──────────────────────────────────────────────
// FAULTY STORE
// ──────────────────────────────────────────────

// FaultyStore wraps the memory store and fails payment writes made inside
// transactions on demand.
type FaultyStore struct {
	*memory.Store

	mu         sync.Mutex
	paymentErr error
}

func (s *FaultyStore) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		repos.Payments = &faultyPayments{PaymentRepository: repos.Payments, store: s}
		return fn(repos)
	})
}

// FailPaymentWrites makes payment writes fail with err until cleared with nil.
func (s *FaultyStore) FailPaymentWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentErr = err
}

type faultyPayments struct {
	repository.PaymentRepository
	store *FaultyStore
}

func (p *faultyPayments) Create(ctx context.Context, payment *domain.Payment) error {
	p.store.mu.Lock()
	err := p.store.paymentErr
	p.store.mu.Unlock()
	if err != nil {
		return err
	}
	return p.PaymentRepository.Create(ctx, payment)
}

// ──────────────────────────────────────────────
// MOCK RIDE LOOKUP
// ──────────────────────────────────────────────

// MockRideLookup wraps a real lookup and injects failures.
type MockRideLookup struct {
	inner service.RideLookup

	mu sync.Mutex

	FetchCallCount  int32
	AdjustCallCount int32
	RevertCallCount int32

	// FetchError fails Fetch without reaching the ledger.
	FetchError error
	// AdjustError fails AdjustSeats without reaching the ledger.
	AdjustError error
	// AdjustErrorAfterApply applies the adjustment, then reports this error,
	// like a response lost after the ledger committed.
	AdjustErrorAfterApply error
	// RevertError fails RevertSeats without reaching the ledger.
	RevertError error
	// AfterAdjust runs after the ledger applied an adjustment.
	AfterAdjust func()
}

func (m *MockRideLookup) Fetch(ctx context.Context, rideID string) (*service.RideSnapshot, error) {
	atomic.AddInt32(&m.FetchCallCount, 1)
	if err := m.get(&m.FetchError); err != nil {
		return nil, err
	}
	return m.inner.Fetch(ctx, rideID)
}

func (m *MockRideLookup) AdjustSeats(ctx context.Context, rideID string, delta int, key string) error {
	atomic.AddInt32(&m.AdjustCallCount, 1)
	if err := m.get(&m.AdjustError); err != nil {
		return err
	}
	if err := m.inner.AdjustSeats(ctx, rideID, delta, key); err != nil {
		return err
	}
	if m.AfterAdjust != nil {
		m.AfterAdjust()
	}
	return m.get(&m.AdjustErrorAfterApply)
}

func (m *MockRideLookup) RevertSeats(ctx context.Context, rideID, key string) error {
	atomic.AddInt32(&m.RevertCallCount, 1)
	if err := m.get(&m.RevertError); err != nil {
		return err
	}
	return m.inner.RevertSeats(ctx, rideID, key)
}

// Set changes an injected error under the lock.
func (m *MockRideLookup) Set(field *error, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field = err
}

func (m *MockRideLookup) get(field *error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *field
}

// ──────────────────────────────────────────────
// RECORDING PUBLISHER
// ──────────────────────────────────────────────

// RecordingPublisher captures published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *RecordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Types returns the types of all published events in order.
func (p *RecordingPublisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// ──────────────────────────────────────────────
// TEST ENVIRONMENT
// ──────────────────────────────────────────────

const testCurrency = "IDR"

type testEnv struct {
	store       *memory.Store
	faults      *FaultyStore
	rides       *service.RideService
	lookup      *MockRideLookup
	wallets     *service.WalletService
	payments    *service.PaymentService
	bookings    *service.BookingService
	compensator *service.Compensator
	reconciler  *service.Reconciler
	psp         *MockPSP
	events      *RecordingPublisher
}

type envOption func(*service.BookingConfig)

func withChargeOnApproval() envOption {
	return func(cfg *service.BookingConfig) { cfg.ChargeOnApproval = true }
}

func withApprovalLease(d time.Duration) envOption {
	return func(cfg *service.BookingConfig) { cfg.ApprovalLease = d }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	log := zap.NewNop()
	faults := &FaultyStore{Store: memory.NewStore()}
	store := faults
	events := &RecordingPublisher{}
	notifier := service.NewNotificationService(log, events)
	psp := &MockPSP{}

	rides := service.NewRideService(store, nil, notifier, log, 0)
	lookup := &MockRideLookup{inner: service.NewLocalRideLookup(rides, time.Second)}
	wallets := service.NewWalletService(store, psp, notifier, log, testCurrency, money("10000.00"))
	payments := service.NewPaymentService(store, psp, notifier, log, testCurrency)
	compensator := service.NewCompensator(store, lookup, payments, log, 3)

	cfg := service.BookingConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	bookings := service.NewBookingService(store, lookup, payments, compensator, notifier, log, cfg)

	return &testEnv{
		store:       faults.Store,
		faults:      faults,
		rides:       rides,
		lookup:      lookup,
		wallets:     wallets,
		payments:    payments,
		bookings:    bookings,
		compensator: compensator,
		reconciler:  service.NewReconciler(store, compensator, nil, log, time.Minute, 10),
		psp:         psp,
		events:      events,
	}
}

func money(s string) domain.Money {
	return domain.MustParseMoney(s)
}

func driver(id string) domain.Actor {
	return domain.Actor{UserID: id, Role: domain.RoleDriver}
}

func passenger(id string) domain.Actor {
	return domain.Actor{UserID: id, Role: domain.RolePassenger}
}

var (
	admin  = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	system = domain.Actor{UserID: "system", Role: domain.RoleSystem}
)

func (e *testEnv) createRide(t *testing.T, driverID string, seats int, price string) *domain.Ride {
	t.Helper()

	ride, err := e.rides.CreateRide(context.Background(), service.CreateRideRequest{
		DriverID:     driverID,
		Origin:       service.PointInput{Lat: -6.2, Lng: 106.8, Label: "Jakarta"},
		Destination:  service.PointInput{Lat: -6.9, Lng: 107.6, Label: "Bandung"},
		DepartureAt:  time.Now().Add(24 * time.Hour),
		Seats:        seats,
		PricePerSeat: money(price),
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return ride
}

func (e *testEnv) book(t *testing.T, rideID, passengerID string, seats int, method domain.PaymentMethod) *domain.Booking {
	t.Helper()

	booking, err := e.bookings.CreateBooking(context.Background(), service.CreateBookingRequest{
		RideID:        rideID,
		PassengerID:   passengerID,
		Seats:         seats,
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return booking
}

func (e *testEnv) seats(t *testing.T, rideID string) int {
	t.Helper()

	ride, err := e.rides.Snapshot(context.Background(), rideID)
	if err != nil {
		t.Fatalf("snapshot ride: %v", err)
	}
	return ride.AvailableSeats
}

func (e *testEnv) balance(t *testing.T, userID string) domain.Money {
	t.Helper()

	w, err := e.wallets.GetOrCreate(context.Background(), userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	return w.Balance
}

func (e *testEnv) fund(t *testing.T, userID, amount string) {
	t.Helper()

	if _, err := e.wallets.Credit(context.Background(), userID, money(amount)); err != nil {
		t.Fatalf("credit wallet: %v", err)
	}
}

func (e *testEnv) bookingStatus(t *testing.T, bookingID string) domain.BookingStatus {
	t.Helper()

	b, err := e.bookings.GetBooking(context.Background(), bookingID, admin)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	return b.Status
}

func (e *testEnv) pendingCompensations(t *testing.T) []*domain.Compensation {
	t.Helper()

	list, err := e.store.Repositories().Compensations.ListPending(context.Background(), 100)
	if err != nil {
		t.Fatalf("list compensations: %v", err)
	}
	return list
}
