package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rideshare/internal/domain"
	"rideshare/internal/service"
)

func TestRide_Create_Validation(t *testing.T) {
	t.Parallel()

	valid := service.CreateRideRequest{
		DriverID:     "driver-1",
		Origin:       service.PointInput{Lat: -6.2, Lng: 106.8},
		Destination:  service.PointInput{Lat: -6.9, Lng: 107.6},
		DepartureAt:  time.Now().Add(time.Hour),
		Seats:        3,
		PricePerSeat: money("25000"),
	}

	testCases := []struct {
		name    string
		mutate  func(r *service.CreateRideRequest)
		wantErr error
	}{
		{name: "valid", mutate: func(r *service.CreateRideRequest) {}},
		{name: "free ride", mutate: func(r *service.CreateRideRequest) { r.PricePerSeat = 0 }},
		{name: "missing driver", mutate: func(r *service.CreateRideRequest) { r.DriverID = "" }, wantErr: service.ErrInvalidInput},
		{name: "zero seats", mutate: func(r *service.CreateRideRequest) { r.Seats = 0 }, wantErr: service.ErrInvalidInput},
		{name: "too many seats", mutate: func(r *service.CreateRideRequest) { r.Seats = 11 }, wantErr: service.ErrInvalidInput},
		{name: "negative price", mutate: func(r *service.CreateRideRequest) { r.PricePerSeat = -1 }, wantErr: service.ErrInvalidInput},
		{name: "unstorable price", mutate: func(r *service.CreateRideRequest) { r.PricePerSeat = domain.MaxMoney + 1 }, wantErr: service.ErrInvalidInput},
		{name: "latitude out of range", mutate: func(r *service.CreateRideRequest) { r.Origin.Lat = 91 }, wantErr: service.ErrInvalidInput},
		{name: "missing departure", mutate: func(r *service.CreateRideRequest) { r.DepartureAt = time.Time{} }, wantErr: service.ErrInvalidInput},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			r := valid
			tc.mutate(&r)

			ride, err := env.rides.CreateRide(context.Background(), r)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if ride.Status != domain.RideStatusActive {
					t.Errorf("expected ACTIVE, got %s", ride.Status)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRide_AdjustSeats_StatusFollowsCapacity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 2, "10000")

	got, err := env.rides.AdjustSeats(ctx, ride.ID, -2, "")
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if got.AvailableSeats != 0 || got.Status != domain.RideStatusFull {
		t.Errorf("expected 0 seats and FULL, got %d %s", got.AvailableSeats, got.Status)
	}

	if _, err := env.rides.AdjustSeats(ctx, ride.ID, -1, ""); !errors.Is(err, service.ErrCapacity) {
		t.Errorf("expected ErrCapacity, got %v", err)
	}

	got, err = env.rides.AdjustSeats(ctx, ride.ID, 1, "")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got.AvailableSeats != 1 || got.Status != domain.RideStatusActive {
		t.Errorf("expected 1 seat and ACTIVE, got %d %s", got.AvailableSeats, got.Status)
	}
}

func TestRide_AdjustSeats_InProgressKeepsStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 1, "10000")

	if _, err := env.rides.StartRide(ctx, ride.ID, driver("driver-1")); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, err := env.rides.AdjustSeats(ctx, ride.ID, -1, "")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got.Status != domain.RideStatusInProgress {
		t.Errorf("expected status untouched, got %s", got.Status)
	}
}

func TestRide_AdjustSeats_TerminalRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 2, "10000")

	if _, err := env.rides.CancelRide(ctx, ride.ID, driver("driver-1"), "weather"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.rides.AdjustSeats(ctx, ride.ID, 1, ""); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on cancelled ride, got %v", err)
	}
}

func TestRide_AdjustSeats_IdempotencyKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 4, "10000")

	for i := 0; i < 3; i++ {
		if _, err := env.rides.AdjustSeats(ctx, ride.ID, -2, "k1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if got := env.seats(t, ride.ID); got != 2 {
		t.Errorf("expected a single application, got %d seats", got)
	}

	if _, err := env.rides.AdjustSeats(ctx, ride.ID, -1, "k1"); !errors.Is(err, service.ErrConflict) {
		t.Errorf("expected ErrConflict for key reuse with another delta, got %v", err)
	}
}

func TestRide_RevertSeats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 4, "10000")

	if _, err := env.rides.AdjustSeats(ctx, ride.ID, -3, "k1"); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := env.rides.RevertSeats(ctx, ride.ID, "k1"); err != nil {
			t.Fatalf("revert %d: %v", i, err)
		}
	}
	if got := env.seats(t, ride.ID); got != 4 {
		t.Errorf("expected seats back to 4, got %d", got)
	}

	// Reverting a key that never arrived fences it off.
	if _, err := env.rides.RevertSeats(ctx, ride.ID, "k2"); err != nil {
		t.Fatalf("revert unknown key: %v", err)
	}
	if _, err := env.rides.AdjustSeats(ctx, ride.ID, -1, "k2"); !errors.Is(err, service.ErrConflict) {
		t.Errorf("expected late adjustment to be refused, got %v", err)
	}
	if got := env.seats(t, ride.ID); got != 4 {
		t.Errorf("expected seats unchanged, got %d", got)
	}
}

func TestRide_Lifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 2, "10000")

	if _, err := env.rides.CompleteRide(ctx, ride.ID, driver("driver-1")); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState completing an active ride, got %v", err)
	}
	if _, err := env.rides.StartRide(ctx, ride.ID, driver("driver-2")); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden starting someone else's ride, got %v", err)
	}

	started, err := env.rides.StartRide(ctx, ride.ID, driver("driver-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.RideStatusInProgress || started.StartedAt.IsZero() {
		t.Errorf("unexpected started ride: %+v", started)
	}

	completed, err := env.rides.CompleteRide(ctx, ride.ID, driver("driver-1"))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.RideStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", completed.Status)
	}

	if _, err := env.rides.CancelRide(ctx, ride.ID, driver("driver-1"), ""); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState cancelling a completed ride, got %v", err)
	}
}

func TestRide_Cancel_Authorization(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 2, "10000")

	if _, err := env.rides.CancelRide(ctx, ride.ID, passenger("p1"), ""); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	cancelled, err := env.rides.CancelRide(ctx, ride.ID, admin, "policy")
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if cancelled.Status != domain.RideStatusCancelled || cancelled.CancelReason != "policy" {
		t.Errorf("unexpected cancelled ride: %+v", cancelled)
	}
	if cancelled.AvailableSeats != 2 {
		t.Errorf("cancel must leave seat figures alone, got %d", cancelled.AvailableSeats)
	}

	if _, err := env.rides.CancelRide(ctx, ride.ID, admin, ""); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on second cancel, got %v", err)
	}
}

func TestRide_DraftPublishAndEdit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	draft, err := env.rides.CreateRide(ctx, service.CreateRideRequest{
		DriverID:     "driver-1",
		DepartureAt:  time.Now().Add(time.Hour),
		Seats:        2,
		PricePerSeat: money("10000"),
		Draft:        true,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if draft.Status != domain.RideStatusDraft {
		t.Fatalf("expected DRAFT, got %s", draft.Status)
	}

	if _, err := env.bookings.CreateBooking(ctx, req(draft.ID, "p1", 1)); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState booking a draft, got %v", err)
	}

	label := "Bandung, Gedung Sate"
	edited, err := env.rides.UpdateRide(ctx, draft.ID, driver("driver-1"), service.UpdateRideRequest{
		Destination: &service.PointInput{Lat: -6.9, Lng: 107.6, Label: label},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Destination.Label != label {
		t.Errorf("expected destination label %q, got %q", label, edited.Destination.Label)
	}

	if _, err := env.rides.UpdateRide(ctx, draft.ID, driver("driver-2"), service.UpdateRideRequest{}); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden editing as another driver, got %v", err)
	}

	published, err := env.rides.PublishRide(ctx, draft.ID, driver("driver-1"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != domain.RideStatusActive {
		t.Errorf("expected ACTIVE, got %s", published.Status)
	}
	if _, err := env.rides.PublishRide(ctx, draft.ID, driver("driver-1")); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState publishing twice, got %v", err)
	}
}

func TestRide_StartNotifiesApprovedPassengers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, "driver-1", 2, "10000")
	booking := env.book(t, ride.ID, "p1", 1, "")
	if _, err := env.bookings.ApproveBooking(ctx, booking.ID, driver("driver-1")); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := env.rides.StartRide(ctx, ride.ID, driver("driver-1")); err != nil {
		t.Fatalf("start: %v", err)
	}

	types := env.events.Types()
	if len(types) == 0 || types[len(types)-1] != domain.EventRideStarted {
		t.Errorf("expected last event %s, got %v", domain.EventRideStarted, types)
	}
}
