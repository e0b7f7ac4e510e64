package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"rideshare/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// RideCacheTTL bounds how stale a cached seat count can be for readers.
const RideCacheTTL = 10 * time.Second

const rideCachePrefix = "cache:ride:"

// CachedPoint is the cached form of domain.Point.
type CachedPoint struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

// CachedRide represents a cached ride snapshot.
type CachedRide struct {
	ID             string       `json:"id"`
	DriverID       string       `json:"driver_id"`
	Origin         CachedPoint  `json:"origin"`
	Destination    CachedPoint  `json:"destination"`
	RouteLine      string       `json:"route_line,omitempty"`
	DepartureAt    time.Time    `json:"departure_at"`
	AvailableSeats int          `json:"available_seats"`
	PricePerSeat   domain.Money `json:"price_per_seat"`
	Status         string       `json:"status"`
	CancelReason   string       `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewCachedRide builds a cache entry from a ride.
func NewCachedRide(ride *domain.Ride) *CachedRide {
	return &CachedRide{
		ID:             ride.ID,
		DriverID:       ride.DriverID,
		Origin:         CachedPoint(ride.Origin),
		Destination:    CachedPoint(ride.Destination),
		RouteLine:      ride.RouteLine,
		DepartureAt:    ride.DepartureAt,
		AvailableSeats: ride.AvailableSeats,
		PricePerSeat:   ride.PricePerSeat,
		Status:         string(ride.Status),
		CancelReason:   ride.CancelReason,
		CreatedAt:      ride.CreatedAt,
		UpdatedAt:      ride.UpdatedAt,
	}
}

// Ride converts the cache entry back into a domain ride.
func (c *CachedRide) Ride() *domain.Ride {
	return &domain.Ride{
		ID:             c.ID,
		DriverID:       c.DriverID,
		Origin:         domain.Point(c.Origin),
		Destination:    domain.Point(c.Destination),
		RouteLine:      c.RouteLine,
		DepartureAt:    c.DepartureAt,
		AvailableSeats: c.AvailableSeats,
		PricePerSeat:   c.PricePerSeat,
		Status:         domain.RideStatus(c.Status),
		CancelReason:   c.CancelReason,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// GetRide retrieves a ride from cache. Returns nil on a cache miss.
func (s *CacheStore) GetRide(ctx context.Context, rideID string) (*CachedRide, error) {
	data, err := s.client.Get(ctx, rideCachePrefix+rideID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var ride CachedRide
	if err := json.Unmarshal(data, &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

// SetRide stores a ride in cache.
func (s *CacheStore) SetRide(ctx context.Context, ride *CachedRide) error {
	data, err := json.Marshal(ride)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rideCachePrefix+ride.ID, data, RideCacheTTL).Err()
}

// InvalidateRide removes a ride from cache.
func (s *CacheStore) InvalidateRide(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, rideCachePrefix+rideID).Err()
}
