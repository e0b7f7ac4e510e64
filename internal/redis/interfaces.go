package redis

import (
	"context"
	"time"
)

// RideCacheInterface defines the interface for ride snapshot caching.
type RideCacheInterface interface {
	GetRide(ctx context.Context, rideID string) (*CachedRide, error)
	SetRide(ctx context.Context, ride *CachedRide) error
	InvalidateRide(ctx context.Context, rideID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Ensure concrete types implement interfaces.
var (
	_ RideCacheInterface = (*CacheStore)(nil)
	_ LockStoreInterface = (*LockStore)(nil)
)
