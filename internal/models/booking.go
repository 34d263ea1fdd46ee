package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID                 int64               `json:"id"`
	CustomerID         int64               `json:"customer_id"`
	CustomerName       string              `json:"customer_name,omitempty"`
	BarberID           int64               `json:"barber_id"`
	ShopID             int64               `json:"shop_id"`
	SlotStart          time.Time           `json:"slot_start"`
	Status             BookingStatus       `json:"status"`
	Price              decimal.Decimal     `json:"price"`
	FinalPrice         decimal.NullDecimal `json:"final_price"`
	PaymentMethod      string              `json:"payment_method"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	CancelledBy        *Role               `json:"cancelled_by,omitempty"`
	Receipt            *Receipt            `json:"receipt,omitempty"`
	Services           []BookingService    `json:"services,omitempty"`
	Version            int64               `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// BookingService snapshots a service as it was priced when the booking was made.
type BookingService struct {
	BookingID      int64           `json:"booking_id"`
	ServiceID      int64           `json:"service_id"`
	ServiceName    string          `json:"service_name"`
	PriceAtBooking decimal.Decimal `json:"price_at_booking"`
}

type BookingRequest struct {
	CustomerID    int64     `json:"customer_id"`
	BarberID      int64     `json:"barber_id"`
	ShopID        int64     `json:"shop_id"`
	SlotStart     time.Time `json:"slot_start"`
	ServiceIDs    []int64   `json:"service_ids"`
	PaymentMethod string    `json:"payment_method"`
}

// BookingUpdate is the outcome of a lifecycle decision, applied atomically.
// Noop marks an idempotent retry that must not write anything.
type BookingUpdate struct {
	Status      BookingStatus
	Reason      *string
	CancelledBy *Role
	FinalPrice  decimal.NullDecimal
	Receipt     *Receipt
	Noop        bool
}

// BookingChange is what the relay delivers to a barber's live session.
// It is a hint to re-fetch, not an authoritative snapshot.
type BookingChange struct {
	EventID    int64     `json:"event_id"`
	Event      string    `json:"event"`
	Booking    Booking   `json:"booking"`
	OccurredAt time.Time `json:"occurred_at"`
}

type BookingFilter struct {
	CustomerID *int64
	BarberID   *int64
	Statuses   []BookingStatus
	From       *time.Time
	To         *time.Time
	Newest     bool
	Limit      uint64
}
