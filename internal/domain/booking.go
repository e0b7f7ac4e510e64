package domain

import "time"

// BookingStatus represents the lifecycle status of a passenger's booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusApproved  BookingStatus = "APPROVED"
	BookingStatusRejected  BookingStatus = "REJECTED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// IsTerminal reports whether the booking can no longer change status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Booking is one passenger's claim on seats of a ride.
// Price is fixed at creation and never recomputed.
type Booking struct {
	ID            string
	RideID        string
	PassengerID   string
	Seats         int
	Price         Money
	PaymentMethod PaymentMethod
	PaymentID     string // charge recorded at approval, if any
	Status        BookingStatus
	RejectReason  string
	CancelReason  string
	CancelledBy   string
	ApprovedAt    time.Time
	ClosedAt      time.Time // rejected, cancelled or completed
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
