package memory

import (
	"context"
	"slices"
	"strings"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// RideRepository is an in-memory repository.RideRepository.
type RideRepository struct {
	store *Store
	inTx  bool
}

func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		if _, ok := st.rides[ride.ID]; ok {
			return repository.ErrConflict
		}
		if ride.AvailableSeats < 0 || ride.PricePerSeat.IsNegative() {
			return ErrCheckViolation
		}
		st.rides[ride.ID] = *ride
		return nil
	})
}

func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	var out *domain.Ride
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		ride, ok := st.rides[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &ride
		return nil
	})
	return out, err
}

func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.GetByID(ctx, id)
}

func (r *RideRepository) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var out []*domain.Ride
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		for _, ride := range st.rides {
			if filter.DriverID != "" && ride.DriverID != filter.DriverID {
				continue
			}
			if filter.Status != "" && ride.Status != filter.Status {
				continue
			}
			ride := ride
			out = append(out, &ride)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b *domain.Ride) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		if _, ok := st.rides[ride.ID]; !ok {
			return repository.ErrNotFound
		}
		if ride.AvailableSeats < 0 || ride.PricePerSeat.IsNegative() {
			return ErrCheckViolation
		}
		st.rides[ride.ID] = *ride
		return nil
	})
}

func (r *RideRepository) GetSeatAdjustment(ctx context.Context, key string) (*domain.SeatAdjustment, error) {
	var out *domain.SeatAdjustment
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		if adj, ok := st.adjustments[key]; ok {
			out = &adj
		}
		return nil
	})
	return out, err
}

func (r *RideRepository) RecordSeatAdjustment(ctx context.Context, adj *domain.SeatAdjustment) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		if _, ok := st.adjustments[adj.IdempotencyKey]; ok {
			return repository.ErrConflict
		}
		st.adjustments[adj.IdempotencyKey] = *adj
		return nil
	})
}
