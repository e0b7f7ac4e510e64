package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// PaymentRepository is an in-memory repository.PaymentRepository.
type PaymentRepository struct {
	store *Store
	inTx  bool
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		if _, ok := st.payments[payment.ID]; ok {
			return repository.ErrConflict
		}
		if payment.IdempotencyKey != "" {
			for _, p := range st.payments {
				if p.IdempotencyKey == payment.IdempotencyKey {
					return repository.ErrConflict
				}
			}
		}
		if !payment.Amount.IsPositive() {
			return ErrCheckViolation
		}
		st.payments[payment.ID] = *payment
		return nil
	})
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		for _, p := range st.payments {
			if key != "" && p.IdempotencyKey == key {
				out = &p
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var out []*domain.Payment
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		for _, p := range st.payments {
			if p.UserID == userID {
				p := p
				out = append(out, &p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b *domain.Payment) int {
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

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		p, ok := st.payments[id]
		if !ok || p.Status != from {
			return repository.ErrStale
		}
		p.Status = to
		p.UpdatedAt = time.Now()
		st.payments[id] = p
		return nil
	})
}
