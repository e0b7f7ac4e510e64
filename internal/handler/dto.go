package handler

import (
	"time"

	"rideshare/internal/domain"
)

// PointResponse is a geographic point.
type PointResponse struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID             string        `json:"id"`
	DriverID       string        `json:"driver_id"`
	Origin         PointResponse `json:"origin"`
	Destination    PointResponse `json:"destination"`
	RouteLine      string        `json:"route_line,omitempty"`
	DepartureAt    time.Time     `json:"departure_at"`
	AvailableSeats int           `json:"available_seats"`
	PricePerSeat   domain.Money  `json:"price_per_seat"`
	Status         string        `json:"status"`
	CancelReason   string        `json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time    `json:"cancelled_at,omitempty"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID            string       `json:"id"`
	RideID        string       `json:"ride_id"`
	PassengerID   string       `json:"passenger_id"`
	Seats         int          `json:"seats"`
	Price         domain.Money `json:"price"`
	PaymentMethod string       `json:"payment_method"`
	PaymentID     string       `json:"payment_id,omitempty"`
	Status        string       `json:"status"`
	RejectReason  string       `json:"reject_reason,omitempty"`
	CancelReason  string       `json:"cancel_reason,omitempty"`
	CancelledBy   string       `json:"cancelled_by,omitempty"`
	ApprovedAt    *time.Time   `json:"approved_at,omitempty"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// WalletResponse is the HTTP representation of a wallet.
type WalletResponse struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Balance       domain.Money `json:"balance"`
	FrozenBalance domain.Money `json:"frozen_balance"`
	Currency      string       `json:"currency"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	BookingID   string       `json:"booking_id,omitempty"`
	Amount      domain.Money `json:"amount"`
	Currency    string       `json:"currency"`
	Type        string       `json:"type"`
	Method      string       `json:"method"`
	Status      string       `json:"status"`
	ExternalRef string       `json:"external_ref,omitempty"`
	RefundOf    string       `json:"refund_of,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toPointResponse(p domain.Point) PointResponse {
	return PointResponse{Lat: p.Lat, Lng: p.Lng, Label: p.Label}
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:             r.ID,
		DriverID:       r.DriverID,
		Origin:         toPointResponse(r.Origin),
		Destination:    toPointResponse(r.Destination),
		RouteLine:      r.RouteLine,
		DepartureAt:    r.DepartureAt,
		AvailableSeats: r.AvailableSeats,
		PricePerSeat:   r.PricePerSeat,
		Status:         string(r.Status),
		CancelReason:   r.CancelReason,
		CancelledAt:    optionalTime(r.CancelledAt),
		StartedAt:      optionalTime(r.StartedAt),
		CompletedAt:    optionalTime(r.CompletedAt),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		RideID:        b.RideID,
		PassengerID:   b.PassengerID,
		Seats:         b.Seats,
		Price:         b.Price,
		PaymentMethod: string(b.PaymentMethod),
		PaymentID:     b.PaymentID,
		Status:        string(b.Status),
		RejectReason:  b.RejectReason,
		CancelReason:  b.CancelReason,
		CancelledBy:   b.CancelledBy,
		ApprovedAt:    optionalTime(b.ApprovedAt),
		ClosedAt:      optionalTime(b.ClosedAt),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:            w.ID,
		UserID:        w.UserID,
		Balance:       w.Balance,
		FrozenBalance: w.FrozenBalance,
		Currency:      w.Currency,
		UpdatedAt:     w.UpdatedAt,
	}
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		BookingID:   p.BookingID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Type:        string(p.Type),
		Method:      string(p.Method),
		Status:      string(p.Status),
		ExternalRef: p.ExternalRef,
		RefundOf:    p.RefundOf,
		Reason:      p.Reason,
		CreatedAt:   p.CreatedAt,
	}
}

func mapSlice[T any, R any](items []T, f func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, f(item))
	}
	return out
}
