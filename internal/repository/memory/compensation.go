package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// CompensationRepository is an in-memory repository.CompensationRepository.
type CompensationRepository struct {
	store *Store
	inTx  bool
}

func (r *CompensationRepository) Create(ctx context.Context, c *domain.Compensation) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		if _, ok := st.compensations[c.ID]; ok {
			return repository.ErrConflict
		}
		st.compensations[c.ID] = *c
		return nil
	})
}

func (r *CompensationRepository) ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error) {
	var out []*domain.Compensation
	now := time.Now()
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		for _, c := range st.compensations {
			if c.Status == domain.CompensationPending && !c.NotBefore.After(now) {
				c := c
				out = append(out, &c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b *domain.Compensation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *CompensationRepository) Update(ctx context.Context, c *domain.Compensation) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		if _, ok := st.compensations[c.ID]; !ok {
			return repository.ErrNotFound
		}
		st.compensations[c.ID] = *c
		return nil
	})
}

func (r *CompensationRepository) Lease(ctx context.Context, id string, d time.Duration) (int, error) {
	var attempts int
	err := r.store.run(ctx, r.inTx, func(st *state) error {
		c, ok := st.compensations[id]
		if !ok {
			return repository.ErrNotFound
		}
		now := time.Now()
		if c.Status != domain.CompensationPending || c.NotBefore.After(now) {
			return repository.ErrStale
		}
		c.Attempts++
		c.NotBefore = now.Add(d)
		c.UpdatedAt = now
		st.compensations[id] = c
		attempts = c.Attempts
		return nil
	})
	return attempts, err
}

func (r *CompensationRepository) Settle(ctx context.Context, id string) error {
	return r.firstLease(ctx, id, func(c *domain.Compensation, now time.Time) error {
		if !c.NotBefore.After(now) {
			return repository.ErrStale
		}
		c.Status = domain.CompensationDone
		return nil
	})
}

func (r *CompensationRepository) Release(ctx context.Context, id string) error {
	return r.firstLease(ctx, id, func(c *domain.Compensation, now time.Time) error {
		c.NotBefore = now
		return nil
	})
}

// firstLease applies fn to a pending row that has never been attempted.
func (r *CompensationRepository) firstLease(ctx context.Context, id string, fn func(c *domain.Compensation, now time.Time) error) error {
	return r.store.run(ctx, r.inTx, func(st *state) error {
		c, ok := st.compensations[id]
		if !ok {
			return repository.ErrNotFound
		}
		if c.Status != domain.CompensationPending || c.Attempts != 0 {
			return repository.ErrStale
		}
		now := time.Now()
		if err := fn(&c, now); err != nil {
			return err
		}
		c.UpdatedAt = now
		st.compensations[id] = c
		return nil
	})
}
