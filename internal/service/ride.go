package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideshare/internal/domain"
	"rideshare/internal/redis"
	"rideshare/internal/repository"
)

// DefaultMaxSeats is the seat cap used when none is configured.
const DefaultMaxSeats = 10

const revertKeyPrefix = "revert:"

// RideService is the inventory ledger. It exclusively owns a ride's seat count
// and status.
type RideService struct {
	store               repository.Store
	cache               redis.RideCacheInterface
	notificationService *NotificationService
	log                 *zap.Logger
	maxSeats            int
}

// NewRideService creates a new RideService. cache may be nil.
func NewRideService(
	store repository.Store,
	cache redis.RideCacheInterface,
	notificationService *NotificationService,
	log *zap.Logger,
	maxSeats int,
) *RideService {
	if maxSeats <= 0 {
		maxSeats = DefaultMaxSeats
	}
	return &RideService{
		store:               store,
		cache:               cache,
		notificationService: notificationService,
		log:                 log.With(zap.String("service", "ride")),
		maxSeats:            maxSeats,
	}
}

// PointInput is a geographic point supplied by a client.
type PointInput struct {
	Lat   float64 `json:"lat" validate:"latitude"`
	Lng   float64 `json:"lng" validate:"longitude"`
	Label string  `json:"label" validate:"max=200"`
}

func (p PointInput) point() domain.Point {
	return domain.Point{Lat: p.Lat, Lng: p.Lng, Label: p.Label}
}

// CreateRideRequest contains the parameters for publishing a ride.
type CreateRideRequest struct {
	DriverID     string       `json:"driver_id" validate:"required"`
	Origin       PointInput   `json:"origin"`
	Destination  PointInput   `json:"destination"`
	RouteLine    string       `json:"route_line"`
	DepartureAt  time.Time    `json:"departure_at" validate:"required"`
	Seats        int          `json:"seats" validate:"min=1"`
	PricePerSeat domain.Money `json:"price_per_seat" validate:"gte=0,money"`
	Draft        bool         `json:"draft"`
}

// CreateRide publishes a new ride in ACTIVE, or DRAFT when requested.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.Seats > s.maxSeats {
		return nil, invalidInput("too many seats", "seats", req.Seats, "max_seats", s.maxSeats)
	}

	status := domain.RideStatusActive
	if req.Draft {
		status = domain.RideStatusDraft
	}

	now := time.Now()
	ride := &domain.Ride{
		ID:             uuid.New().String(),
		DriverID:       req.DriverID,
		Origin:         req.Origin.point(),
		Destination:    req.Destination.point(),
		RouteLine:      req.RouteLine,
		DepartureAt:    req.DepartureAt,
		AvailableSeats: req.Seats,
		PricePerSeat:   req.PricePerSeat,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Repositories().Rides.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.log.Info("ride created",
		zap.String("ride_id", ride.ID),
		zap.String("driver_id", ride.DriverID),
		zap.Int("seats", ride.AvailableSeats),
		zap.String("status", string(ride.Status)),
	)
	return ride, nil
}

// GetRide retrieves a ride, serving from cache when possible.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}

	if s.cache != nil {
		cached, err := s.cache.GetRide(ctx, rideID)
		if err != nil {
			s.log.Warn("ride cache read failed", zap.String("ride_id", rideID), zap.Error(err))
		} else if cached != nil {
			return cached.Ride(), nil
		}
	}

	ride, err := s.Snapshot(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRide(ctx, redis.NewCachedRide(ride)); err != nil {
			s.log.Warn("ride cache write failed", zap.String("ride_id", rideID), zap.Error(err))
		}
	}
	return ride, nil
}

// Snapshot reads a ride straight from storage, bypassing the cache.
func (s *RideService) Snapshot(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := s.store.Repositories().Rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, translate(err, "ride", rideID)
	}
	return ride, nil
}

// ListRides lists rides, optionally filtered by status.
func (s *RideService) ListRides(ctx context.Context, status domain.RideStatus, limit int) ([]*domain.Ride, error) {
	return s.store.Repositories().Rides.List(ctx, repository.RideFilter{Status: status, Limit: limit})
}

// ListDriverRides lists the rides published by a driver.
func (s *RideService) ListDriverRides(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, invalidInput("driver id is required")
	}
	return s.store.Repositories().Rides.List(ctx, repository.RideFilter{DriverID: driverID, Limit: limit})
}

// UpdateRideRequest contains the editable ride fields. Nil means unchanged.
type UpdateRideRequest struct {
	Origin       *PointInput   `json:"origin"`
	Destination  *PointInput   `json:"destination"`
	RouteLine    *string       `json:"route_line"`
	DepartureAt  *time.Time    `json:"departure_at"`
	PricePerSeat *domain.Money `json:"price_per_seat" validate:"omitempty,gte=0,money"`
}

// UpdateRide applies driver edits. Prices of existing bookings are not touched.
func (s *RideService) UpdateRide(ctx context.Context, rideID string, actor domain.Actor, req UpdateRideRequest) (*domain.Ride, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var updated *domain.Ride
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return translate(err, "ride", rideID)
		}

		if ride.DriverID != actor.UserID {
			return forbidden("only the driver may edit this ride")
		}

		switch ride.Status {
		case domain.RideStatusDraft, domain.RideStatusActive, domain.RideStatusFull:
		default:
			return invalidState("ride", ride.ID, ride.Status, "edit")
		}

		if req.Origin != nil {
			ride.Origin = req.Origin.point()
		}
		if req.Destination != nil {
			ride.Destination = req.Destination.point()
		}
		if req.RouteLine != nil {
			ride.RouteLine = *req.RouteLine
		}
		if req.DepartureAt != nil {
			ride.DepartureAt = *req.DepartureAt
		}
		if req.PricePerSeat != nil {
			ride.PricePerSeat = *req.PricePerSeat
		}
		ride.UpdatedAt = time.Now()

		if err := repos.Rides.Update(ctx, ride); err != nil {
			return err
		}
		updated = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rideID)
	return updated, nil
}

// PublishRide moves a draft ride to ACTIVE.
func (s *RideService) PublishRide(ctx context.Context, rideID string, actor domain.Actor) (*domain.Ride, error) {
	return s.transition(ctx, rideID, "publish", func(ride *domain.Ride) error {
		if ride.DriverID != actor.UserID {
			return forbidden("only the driver may publish this ride")
		}
		if ride.Status != domain.RideStatusDraft {
			return invalidState("ride", ride.ID, ride.Status, "publish")
		}
		ride.Status = domain.RideStatusActive
		if ride.AvailableSeats == 0 {
			ride.Status = domain.RideStatusFull
		}
		return nil
	})
}

// AdjustSeats applies a signed seat delta. A non-empty idempotency key makes
// the call safe to retry: a key that was already applied returns the current
// ride without changing it.
func (s *RideService) AdjustSeats(ctx context.Context, rideID string, delta int, idempotencyKey string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}

	var result *domain.Ride
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return translate(err, "ride", rideID)
		}

		if idempotencyKey != "" {
			applied, err := repos.Rides.GetSeatAdjustment(ctx, idempotencyKey)
			if err != nil {
				return err
			}
			if applied != nil {
				if applied.RideID != rideID || applied.Delta != delta {
					return newError(ErrConflict, "idempotency key reused with different parameters",
						"idempotency_key", idempotencyKey)
				}
				result = ride
				return nil
			}
		}

		if err := applySeatDelta(ride, delta); err != nil {
			return err
		}
		ride.UpdatedAt = time.Now()

		if err := repos.Rides.Update(ctx, ride); err != nil {
			return err
		}

		if idempotencyKey != "" {
			if err := repos.Rides.RecordSeatAdjustment(ctx, &domain.SeatAdjustment{
				IdempotencyKey: idempotencyKey,
				RideID:         rideID,
				Delta:          delta,
				CreatedAt:      ride.UpdatedAt,
			}); err != nil {
				return translate(err, "seat_adjustment", idempotencyKey)
			}
		}

		result = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rideID)
	s.log.Debug("seats adjusted",
		zap.String("ride_id", rideID),
		zap.Int("delta", delta),
		zap.Int("available_seats", result.AvailableSeats),
		zap.String("idempotency_key", idempotencyKey),
	)
	return result, nil
}

// RevertSeats undoes the adjustment recorded under originalKey. If the key was
// never applied, a zero-delta tombstone is recorded under it so a late
// delivery of the original request is refused. Safe to call repeatedly.
func (s *RideService) RevertSeats(ctx context.Context, rideID, originalKey string) (*domain.Ride, error) {
	if rideID == "" || originalKey == "" {
		return nil, invalidInput("ride id and idempotency key are required")
	}

	revertKey := revertKeyPrefix + originalKey

	var result *domain.Ride
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return translate(err, "ride", rideID)
		}
		result = ride

		done, err := repos.Rides.GetSeatAdjustment(ctx, revertKey)
		if err != nil {
			return err
		}
		if done != nil {
			return nil
		}

		applied, err := repos.Rides.GetSeatAdjustment(ctx, originalKey)
		if err != nil {
			return err
		}

		now := time.Now()
		if applied == nil {
			if err := repos.Rides.RecordSeatAdjustment(ctx, &domain.SeatAdjustment{
				IdempotencyKey: originalKey,
				RideID:         rideID,
				CreatedAt:      now,
			}); err != nil {
				return err
			}
		} else if applied.Delta != 0 {
			if applied.RideID != rideID {
				return newError(ErrConflict, "idempotency key belongs to another ride",
					"idempotency_key", originalKey, "ride_id", applied.RideID)
			}
			if err := applySeatDelta(ride, -applied.Delta); err != nil {
				return err
			}
			ride.UpdatedAt = now
			if err := repos.Rides.Update(ctx, ride); err != nil {
				return err
			}
		}

		return repos.Rides.RecordSeatAdjustment(ctx, &domain.SeatAdjustment{
			IdempotencyKey: revertKey,
			RideID:         rideID,
			Delta:          0,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rideID)
	s.log.Info("seat adjustment reverted",
		zap.String("ride_id", rideID),
		zap.String("idempotency_key", originalKey),
		zap.Int("available_seats", result.AvailableSeats),
	)
	return result, nil
}

// applySeatDelta enforces the seat rules on an already locked ride.
func applySeatDelta(ride *domain.Ride, delta int) error {
	if ride.Status.IsTerminal() {
		return invalidState("ride", ride.ID, ride.Status, "adjust seats of")
	}

	next := ride.AvailableSeats + delta
	if next < 0 {
		return newError(ErrCapacity, "not enough seats available",
			"ride_id", ride.ID, "requested", -delta, "available", ride.AvailableSeats)
	}

	ride.AvailableSeats = next
	switch {
	case ride.Status == domain.RideStatusActive && next == 0:
		ride.Status = domain.RideStatusFull
	case ride.Status == domain.RideStatusFull && next > 0:
		ride.Status = domain.RideStatusActive
	}
	return nil
}

// CancelRide cancels a ride. Allowed for the owning driver or an administrator.
// Outstanding bookings are not cancelled automatically.
func (s *RideService) CancelRide(ctx context.Context, rideID string, actor domain.Actor, reason string) (*domain.Ride, error) {
	ride, err := s.transition(ctx, rideID, "cancel", func(ride *domain.Ride) error {
		if ride.DriverID != actor.UserID && !actor.IsPrivileged() {
			return forbidden("only the driver or an administrator may cancel this ride")
		}
		if ride.Status.IsTerminal() {
			return invalidState("ride", ride.ID, ride.Status, "cancel")
		}
		ride.Status = domain.RideStatusCancelled
		ride.CancelReason = reason
		ride.CancelledAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyRideCancelled(ctx, ride, s.passengersOf(ctx, ride.ID))
	return ride, nil
}

// StartRide moves an ACTIVE or FULL ride to IN_PROGRESS.
func (s *RideService) StartRide(ctx context.Context, rideID string, actor domain.Actor) (*domain.Ride, error) {
	ride, err := s.transition(ctx, rideID, "start", func(ride *domain.Ride) error {
		if ride.DriverID != actor.UserID {
			return forbidden("only the driver may start this ride")
		}
		if ride.Status != domain.RideStatusActive && ride.Status != domain.RideStatusFull {
			return invalidState("ride", ride.ID, ride.Status, "start")
		}
		ride.Status = domain.RideStatusInProgress
		ride.StartedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyRideStarted(ctx, ride, s.passengersOf(ctx, ride.ID))
	return ride, nil
}

// CompleteRide moves an IN_PROGRESS ride to COMPLETED.
func (s *RideService) CompleteRide(ctx context.Context, rideID string, actor domain.Actor) (*domain.Ride, error) {
	ride, err := s.transition(ctx, rideID, "complete", func(ride *domain.Ride) error {
		if ride.DriverID != actor.UserID {
			return forbidden("only the driver may complete this ride")
		}
		if ride.Status != domain.RideStatusInProgress {
			return invalidState("ride", ride.ID, ride.Status, "complete")
		}
		ride.Status = domain.RideStatusCompleted
		ride.CompletedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyRideCompleted(ctx, ride, s.passengersOf(ctx, ride.ID))
	return ride, nil
}

// transition locks the ride, lets mutate change it and persists the result.
func (s *RideService) transition(ctx context.Context, rideID, op string, mutate func(*domain.Ride) error) (*domain.Ride, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}

	var result *domain.Ride
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return translate(err, "ride", rideID)
		}

		if err := mutate(ride); err != nil {
			return err
		}
		ride.UpdatedAt = time.Now()

		if err := repos.Rides.Update(ctx, ride); err != nil {
			return err
		}
		result = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rideID)
	s.log.Info("ride "+op,
		zap.String("ride_id", result.ID),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// passengersOf returns passengers holding approved bookings on the ride.
func (s *RideService) passengersOf(ctx context.Context, rideID string) []string {
	bookings, err := s.store.Repositories().Bookings.ListByRide(ctx, rideID)
	if err != nil {
		s.log.Warn("failed to list ride passengers", zap.String("ride_id", rideID), zap.Error(err))
		return nil
	}

	var ids []string
	for _, b := range bookings {
		if b.Status == domain.BookingStatusApproved || b.Status == domain.BookingStatusCompleted {
			ids = append(ids, b.PassengerID)
		}
	}
	return ids
}

func (s *RideService) invalidate(ctx context.Context, rideID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRide(ctx, rideID); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("ride cache invalidation failed", zap.String("ride_id", rideID), zap.Error(err))
	}
}
