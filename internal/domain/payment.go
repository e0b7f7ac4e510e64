package domain

import "time"

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// PaymentType describes what the money movement was for.
type PaymentType string

const (
	PaymentTypeRideCharge  PaymentType = "RIDE_CHARGE"
	PaymentTypeWalletTopUp PaymentType = "WALLET_TOP_UP"
	PaymentTypeRefund      PaymentType = "REFUND"
)

// PaymentMethod represents how a payment is settled.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
	PaymentMethodCash   PaymentMethod = "CASH"
)

// Payment is an immutable record of one monetary movement. Only Status changes,
// and only once: a refund creates a new record pointing at the original.
type Payment struct {
	ID             string
	UserID         string
	BookingID      string
	Amount         Money
	Currency       string
	Type           PaymentType
	Method         PaymentMethod
	Status         PaymentStatus
	ExternalRef    string
	RefundOf       string
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
