package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/redis"
	"rideshare/internal/repository"
)

const (
	// DefaultReconcileInterval is how often pending compensations are swept.
	DefaultReconcileInterval = 30 * time.Second

	// DefaultReconcileBatch bounds the rows handled per sweep.
	DefaultReconcileBatch = 50

	reconcilerLockName = "reconciler"
)

// Reconciler retries compensations left in the outbox. When a lock store is
// configured only one instance sweeps at a time.
type Reconciler struct {
	store       repository.Store
	compensator *Compensator
	locks       redis.LockStoreInterface
	log         *zap.Logger
	interval    time.Duration
	batchSize   int
}

// NewReconciler creates a new Reconciler. locks may be nil.
func NewReconciler(
	store repository.Store,
	compensator *Compensator,
	locks redis.LockStoreInterface,
	log *zap.Logger,
	interval time.Duration,
	batchSize int,
) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultReconcileBatch
	}
	return &Reconciler{
		store:       store,
		compensator: compensator,
		locks:       locks,
		log:         log.With(zap.String("service", "reconciler")),
		interval:    interval,
		batchSize:   batchSize,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reconciler started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Error("reconcile sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep processes one batch of pending compensations and returns how many
// were attempted.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	if r.locks != nil {
		ok, err := r.locks.Acquire(ctx, reconcilerLockName, r.interval)
		if err != nil {
			return 0, err
		}
		if !ok {
			r.log.Debug("another instance holds the reconciler lock")
			return 0, nil
		}
		defer func() {
			if err := r.locks.Release(context.WithoutCancel(ctx), reconcilerLockName); err != nil {
				r.log.Warn("failed to release reconciler lock", zap.Error(err))
			}
		}()
	}

	pending, err := r.store.Repositories().Compensations.ListPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	r.compensator.Drain(ctx, pending...)
	r.log.Info("reconcile sweep finished", zap.Int("attempted", len(pending)))
	return len(pending), nil
}
