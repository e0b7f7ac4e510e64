// Package memory provides an in-process implementation of the repository
// interfaces. A single mutex serialises access; WithinTx holds it for the
// whole unit of work and restores a snapshot when the work fails.
package memory

import (
	"context"
	"errors"
	"sync"

	"rideshare/internal/domain"
	"rideshare/internal/repository"
)

// ErrCheckViolation mirrors a database CHECK constraint failure.
var ErrCheckViolation = errors.New("check constraint violated")

type state struct {
	rides         map[string]domain.Ride
	adjustments   map[string]domain.SeatAdjustment
	bookings      map[string]domain.Booking
	wallets       map[string]domain.Wallet // keyed by user id
	payments      map[string]domain.Payment
	compensations map[string]domain.Compensation
}

func newState() *state {
	return &state{
		rides:         make(map[string]domain.Ride),
		adjustments:   make(map[string]domain.SeatAdjustment),
		bookings:      make(map[string]domain.Booking),
		wallets:       make(map[string]domain.Wallet),
		payments:      make(map[string]domain.Payment),
		compensations: make(map[string]domain.Compensation),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.rides {
		c.rides[k] = v
	}
	for k, v := range s.adjustments {
		c.adjustments[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.compensations {
		c.compensations[k] = v
	}
	return c
}

// Store is an in-memory repository.Store.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

var _ repository.Store = (*Store)(nil)

// Repositories returns repositories that lock the store per call.
func (s *Store) Repositories() repository.Repositories {
	return s.repositories(false)
}

// WithinTx runs fn while holding the store lock. Changes made by fn are
// discarded if it returns an error.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(s.repositories(true)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) repositories(inTx bool) repository.Repositories {
	return repository.Repositories{
		Rides:         &RideRepository{store: s, inTx: inTx},
		Bookings:      &BookingRepository{store: s, inTx: inTx},
		Wallets:       &WalletRepository{store: s, inTx: inTx},
		Payments:      &PaymentRepository{store: s, inTx: inTx},
		Compensations: &CompensationRepository{store: s, inTx: inTx},
	}
}

// run executes fn against the current state, taking the lock unless the
// caller already holds it through WithinTx.
func (s *Store) run(ctx context.Context, inTx bool, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}
