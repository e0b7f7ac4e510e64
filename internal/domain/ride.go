package domain

import "time"

// RideStatus represents the lifecycle status of a published ride.
type RideStatus string

const (
	RideStatusDraft      RideStatus = "DRAFT"
	RideStatusActive     RideStatus = "ACTIVE"
	RideStatusFull       RideStatus = "FULL"
	RideStatusInProgress RideStatus = "IN_PROGRESS"
	RideStatusCompleted  RideStatus = "COMPLETED"
	RideStatusCancelled  RideStatus = "CANCELLED"
)

// IsTerminal reports whether no further seat or status mutation is allowed.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Point is a geographic point with a human-readable label.
type Point struct {
	Lat   float64
	Lng   float64
	Label string
}

// Ride represents a trip offer published by a driver.
type Ride struct {
	ID             string
	DriverID       string
	Origin         Point
	Destination    Point
	RouteLine      string // encoded polyline, produced by the routing collaborator
	DepartureAt    time.Time
	AvailableSeats int
	PricePerSeat   Money
	Status         RideStatus
	CancelReason   string
	CancelledAt    time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SeatAdjustment records an applied seat delta keyed by the caller's idempotency key.
type SeatAdjustment struct {
	IdempotencyKey string
	RideID         string
	Delta          int
	CreatedAt      time.Time
}
