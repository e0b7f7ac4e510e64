package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// Settlement is payment settlement as seen by the booking flow.
type Settlement interface {
	ChargeForBooking(ctx context.Context, req ChargeRequest) (*domain.Payment, error)
	Refund(ctx context.Context, userID, paymentID, reason string) (*domain.Payment, error)
}

// Ensure PaymentService implements Settlement.
var _ Settlement = (*PaymentService)(nil)

// DefaultMaxCompensationAttempts caps retries before a compensation is dead.
const DefaultMaxCompensationAttempts = 10

const compensationTimeout = 10 * time.Second

// compensationLease is how long a worker owns a row while it runs it.
const compensationLease = 3 * compensationTimeout

// Compensator executes saga compensations and keeps the outbox current.
type Compensator struct {
	store       repository.Store
	lookup      RideLookup
	settlement  Settlement
	log         *zap.Logger
	maxAttempts int
}

// NewCompensator creates a new Compensator.
func NewCompensator(store repository.Store, lookup RideLookup, settlement Settlement, log *zap.Logger, maxAttempts int) *Compensator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCompensationAttempts
	}
	return &Compensator{
		store:       store,
		lookup:      lookup,
		settlement:  settlement,
		log:         log.With(zap.String("service", "compensator")),
		maxAttempts: maxAttempts,
	}
}

func newCompensation(kind domain.CompensationKind, booking *domain.Booking, key, reason string) *domain.Compensation {
	now := time.Now()
	return &domain.Compensation{
		ID:             uuid.New().String(),
		Kind:           kind,
		BookingID:      booking.ID,
		RideID:         booking.RideID,
		Seats:          booking.Seats,
		UserID:         booking.PassengerID,
		IdempotencyKey: key,
		Reason:         reason,
		Status:         domain.CompensationPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Compensate runs compensations that have not been persisted yet. Any that
// fail are written to the outbox for the reconciler.
func (c *Compensator) Compensate(ctx context.Context, comps ...*domain.Compensation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	for _, comp := range comps {
		err := c.execute(ctx, comp)
		if err == nil {
			continue
		}

		comp.Attempts = 1
		comp.LastError = err.Error()
		comp.UpdatedAt = time.Now()
		comp.NotBefore = comp.UpdatedAt
		if createErr := c.store.Repositories().Compensations.Create(ctx, comp); createErr != nil {
			c.log.Error("failed to persist compensation",
				zap.String("compensation_id", comp.ID),
				zap.String("kind", string(comp.Kind)),
				zap.String("booking_id", comp.BookingID),
				zap.NamedError("cause", err),
				zap.Error(createErr),
			)
			continue
		}
		c.log.Warn("compensation deferred to reconciler",
			zap.String("compensation_id", comp.ID),
			zap.String("kind", string(comp.Kind)),
			zap.String("booking_id", comp.BookingID),
			zap.Error(err),
		)
	}
}

// Drain runs compensations that are already in the outbox and records the
// outcome of each attempt.
func (c *Compensator) Drain(ctx context.Context, comps ...*domain.Compensation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	for _, comp := range comps {
		c.attempt(ctx, comp)
	}
}

// Abandon gives up an approval's hold on its guard row and runs the revert
// right away. If another worker already leased the row, it is left to them.
func (c *Compensator) Abandon(ctx context.Context, guard *domain.Compensation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := c.store.Repositories().Compensations.Release(ctx, guard.ID); err != nil && !errors.Is(err, repository.ErrStale) {
		c.log.Error("failed to release compensation",
			zap.String("compensation_id", guard.ID),
			zap.Error(err),
		)
	}
	c.attempt(ctx, guard)
}

// Dismiss closes a guard row whose step is known not to have applied. A row
// that can no longer be dismissed is left for the reconciler, whose revert is
// harmless.
func (c *Compensator) Dismiss(ctx context.Context, guard *domain.Compensation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := c.store.Repositories().Compensations.Settle(ctx, guard.ID); err != nil {
		c.log.Warn("guard left to the reconciler",
			zap.String("compensation_id", guard.ID),
			zap.String("booking_id", guard.BookingID),
			zap.Error(err),
		)
	}
}

// attempt leases one persisted compensation, executes it and updates its row.
func (c *Compensator) attempt(ctx context.Context, comp *domain.Compensation) {
	attempts, err := c.store.Repositories().Compensations.Lease(ctx, comp.ID, compensationLease)
	if errors.Is(err, repository.ErrStale) {
		c.log.Debug("compensation leased elsewhere", zap.String("compensation_id", comp.ID))
		return
	}
	if err != nil {
		c.log.Error("failed to lease compensation",
			zap.String("compensation_id", comp.ID),
			zap.Error(err),
		)
		return
	}

	err = c.execute(ctx, comp)

	comp.Attempts = attempts
	comp.UpdatedAt = time.Now()
	comp.NotBefore = comp.UpdatedAt
	switch {
	case err == nil:
		comp.Status = domain.CompensationDone
		comp.LastError = ""
	case comp.Attempts >= c.maxAttempts:
		comp.Status = domain.CompensationDead
		comp.LastError = err.Error()
		c.log.Error("compensation exhausted retries",
			zap.String("compensation_id", comp.ID),
			zap.String("kind", string(comp.Kind)),
			zap.String("booking_id", comp.BookingID),
			zap.Int("attempts", comp.Attempts),
			zap.Error(err),
		)
	default:
		comp.LastError = err.Error()
	}

	if updateErr := c.store.Repositories().Compensations.Update(ctx, comp); updateErr != nil {
		c.log.Error("failed to update compensation",
			zap.String("compensation_id", comp.ID),
			zap.Error(updateErr),
		)
	}
}

// execute performs the inverse step. Outcomes that make the step moot, such
// as a terminal ride or an already refunded payment, count as success.
func (c *Compensator) execute(ctx context.Context, comp *domain.Compensation) error {
	var err error
	switch comp.Kind {
	case domain.CompensationRestoreSeats:
		err = c.lookup.AdjustSeats(ctx, comp.RideID, comp.Seats, comp.IdempotencyKey)
	case domain.CompensationRevertSeats:
		err = c.lookup.RevertSeats(ctx, comp.RideID, comp.IdempotencyKey)
	case domain.CompensationRefundPayment:
		_, err = c.settlement.Refund(ctx, comp.UserID, comp.PaymentID, comp.Reason)
	default:
		return fmt.Errorf("unknown compensation kind %q", comp.Kind)
	}

	if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
		c.log.Warn("compensation no longer applicable",
			zap.String("compensation_id", comp.ID),
			zap.String("kind", string(comp.Kind)),
			zap.String("booking_id", comp.BookingID),
			zap.Error(err),
		)
		return nil
	}
	return err
}
