package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

func newRide(id string, seats int) *domain.Ride {
	now := time.Now()
	return &domain.Ride{
		ID:             id,
		DriverID:       "driver-1",
		DepartureAt:    now.Add(time.Hour),
		AvailableSeats: seats,
		PricePerSeat:   domain.MustParseMoney("25.00"),
		Status:         domain.RideStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	repos := store.Repositories()

	if err := repos.Rides.Create(ctx, newRide("ride-1", 3)); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Repositories) error {
		ride, err := tx.Rides.GetByIDForUpdate(ctx, "ride-1")
		if err != nil {
			return err
		}
		ride.AvailableSeats = 0
		if err := tx.Rides.Update(ctx, ride); err != nil {
			return err
		}
		if err := tx.Rides.RecordSeatAdjustment(ctx, &domain.SeatAdjustment{IdempotencyKey: "k1", RideID: "ride-1", Delta: -3}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	ride, err := repos.Rides.GetByID(ctx, "ride-1")
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if ride.AvailableSeats != 3 {
		t.Errorf("expected seats restored to 3, got %d", ride.AvailableSeats)
	}

	adj, err := repos.Rides.GetSeatAdjustment(ctx, "k1")
	if err != nil {
		t.Fatalf("get adjustment: %v", err)
	}
	if adj != nil {
		t.Error("expected adjustment to be rolled back")
	}
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx repository.Repositories) error {
		return tx.Rides.Create(ctx, newRide("ride-1", 2))
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Repositories().Rides.GetByID(ctx, "ride-1"); err != nil {
		t.Errorf("expected committed ride, got %v", err)
	}
}

func TestBookingCreate_SecondPendingConflicts(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	bookings := store.Repositories().Bookings

	first := &domain.Booking{ID: "b1", RideID: "ride-1", PassengerID: "p1", Seats: 1, Status: domain.BookingStatusPending, CreatedAt: time.Now()}
	if err := bookings.Create(ctx, first); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	second := &domain.Booking{ID: "b2", RideID: "ride-1", PassengerID: "p1", Seats: 1, Status: domain.BookingStatusPending, CreatedAt: time.Now()}
	if err := bookings.Create(ctx, second); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	first.Status = domain.BookingStatusRejected
	if err := bookings.Transition(ctx, first, domain.BookingStatusPending); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := bookings.Create(ctx, second); err != nil {
		t.Errorf("expected new pending booking after rejection, got %v", err)
	}
}

func TestBookingTransition_StaleStatus(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	bookings := store.Repositories().Bookings

	b := &domain.Booking{ID: "b1", RideID: "ride-1", PassengerID: "p1", Seats: 1, Status: domain.BookingStatusPending, CreatedAt: time.Now()}
	if err := bookings.Create(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	b.Status = domain.BookingStatusApproved
	if err := bookings.Transition(ctx, b, domain.BookingStatusApproved); !errors.Is(err, repository.ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
}

func TestWalletUpdate_NegativeBalanceRejected(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	wallets := store.Repositories().Wallets

	w, err := wallets.GetOrCreate(ctx, &domain.Wallet{ID: "w1", UserID: "u1", Currency: "INR"})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	w.Balance = domain.MustParseMoney("-1.00")
	if err := wallets.UpdateBalances(ctx, w); !errors.Is(err, ErrCheckViolation) {
		t.Errorf("expected ErrCheckViolation, got %v", err)
	}

	again, err := wallets.GetOrCreate(ctx, &domain.Wallet{ID: "w2", UserID: "u1", Currency: "INR"})
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if again.ID != "w1" {
		t.Errorf("expected existing wallet w1, got %s", again.ID)
	}
}

func newGuard(id string, notBefore time.Time) *domain.Compensation {
	now := time.Now()
	return &domain.Compensation{
		ID:             id,
		Kind:           domain.CompensationRevertSeats,
		BookingID:      "booking-1",
		RideID:         "ride-1",
		Seats:          2,
		IdempotencyKey: "approve:booking-1:a",
		Status:         domain.CompensationPending,
		NotBefore:      notBefore,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCompensationLease_FencesSettle(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	comps := store.Repositories().Compensations

	if err := comps.Create(ctx, newGuard("guard-1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, err := comps.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected a leased row to be hidden, got %d", len(pending))
	}
	if _, err := comps.Lease(ctx, "guard-1", time.Minute); !errors.Is(err, repository.ErrStale) {
		t.Fatalf("expected ErrStale leasing a held row, got %v", err)
	}

	if err := comps.Release(ctx, "guard-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	attempts, err := comps.Lease(ctx, "guard-1", time.Minute)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}

	// Once leased by the reconciler the original holder can no longer settle.
	if err := comps.Settle(ctx, "guard-1"); !errors.Is(err, repository.ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
	if err := comps.Release(ctx, "guard-1"); !errors.Is(err, repository.ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
}

func TestCompensationSettle(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	comps := store.Repositories().Compensations

	if err := comps.Create(ctx, newGuard("live", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := comps.Create(ctx, newGuard("expired", time.Now().Add(-time.Second))); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := comps.Settle(ctx, "live"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := comps.Settle(ctx, "expired"); !errors.Is(err, repository.ErrStale) {
		t.Errorf("expected ErrStale for an expired lease, got %v", err)
	}
	if err := comps.Settle(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	pending, err := comps.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "expired" {
		t.Errorf("expected only the expired guard pending, got %+v", pending)
	}
}
