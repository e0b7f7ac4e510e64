package domain

import "time"

// CompensationKind identifies the undo step a compensation row performs.
type CompensationKind string

const (
	// CompensationRestoreSeats adds Seats back under IdempotencyKey.
	CompensationRestoreSeats CompensationKind = "RESTORE_SEATS"
	// CompensationRevertSeats undoes whatever was applied under IdempotencyKey.
	CompensationRevertSeats CompensationKind = "REVERT_SEATS"
	// CompensationRefundPayment refunds PaymentID on behalf of UserID.
	CompensationRefundPayment CompensationKind = "REFUND_PAYMENT"
)

// CompensationStatus tracks a compensation through the reconciler.
type CompensationStatus string

const (
	CompensationPending CompensationStatus = "PENDING"
	CompensationDone    CompensationStatus = "DONE"
	CompensationDead    CompensationStatus = "DEAD"
)

// Compensation is an outbox row describing an inverse step that must eventually
// be applied because a multi-service operation could not finish. NotBefore is
// when the row may next be leased; an approval holds its guard row until then.
type Compensation struct {
	ID             string
	Kind           CompensationKind
	BookingID      string
	RideID         string
	Seats          int
	PaymentID      string
	UserID         string
	IdempotencyKey string
	Reason         string
	Status         CompensationStatus
	Attempts       int
	LastError      string
	NotBefore      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
