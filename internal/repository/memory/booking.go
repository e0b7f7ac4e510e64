package memory

import (
	"context"
	"slices"
	"strings"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// BookingRepository is an in-memory repository.BookingRepository.
type BookingRepository struct {
	store *Store
	inTx  bool
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		if _, ok := st.bookings[booking.ID]; ok {
			return repository.ErrConflict
		}
		if booking.Status == domain.BookingStatusPending && findPending(st, booking.RideID, booking.PassengerID) != nil {
			return repository.ErrConflict
		}
		st.bookings[booking.ID] = *booking
		return nil
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		booking, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &booking
		return nil
	})
	return out, err
}

func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) FindPending(ctx context.Context, rideID, passengerID string) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		out = findPending(st, rideID, passengerID)
		return nil
	})
	return out, err
}

func (r *BookingRepository) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	out, err := r.collect(ctx, func(b domain.Booking) bool { return b.PassengerID == passengerID })
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *BookingRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	return r.collect(ctx, func(b domain.Booking) bool { return b.RideID == rideID })
}

func (r *BookingRepository) Transition(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		stored, ok := st.bookings[booking.ID]
		if !ok || stored.Status != from {
			return repository.ErrStale
		}
		stored.Status = booking.Status
		stored.PaymentID = booking.PaymentID
		stored.RejectReason = booking.RejectReason
		stored.CancelReason = booking.CancelReason
		stored.CancelledBy = booking.CancelledBy
		stored.ApprovedAt = booking.ApprovedAt
		stored.ClosedAt = booking.ClosedAt
		stored.UpdatedAt = booking.UpdatedAt
		st.bookings[booking.ID] = stored
		return nil
	})
}

// collect returns matching bookings, oldest first.
func (r *BookingRepository) collect(ctx context.Context, match func(domain.Booking) bool) ([]*domain.Booking, error) {
	var out []*domain.Booking
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		for _, b := range st.bookings {
			if match(b) {
				b := b
				out = append(out, &b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b *domain.Booking) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func findPending(st *state, rideID, passengerID string) *domain.Booking {
	for _, b := range st.bookings {
		if b.RideID == rideID && b.PassengerID == passengerID && b.Status == domain.BookingStatusPending {
			return &b
		}
	}
	return nil
}
