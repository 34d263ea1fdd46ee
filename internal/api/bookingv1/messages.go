package bookingv1

import (
	"time"

	"barberbook/internal/models"
)

type GetBarberScheduleRequest struct {
	BarberID int64  `json:"barber_id"`
	Date     string `json:"date"`
}

type RequestBookingRequest struct {
	BarberID      int64     `json:"barber_id"`
	ShopID        int64     `json:"shop_id"`
	SlotStart     time.Time `json:"slot_start"`
	ServiceIDs    []int64   `json:"service_ids"`
	PaymentMethod string    `json:"payment_method,omitempty"`
}

type ManageBookingRequest struct {
	BookingID int64                `json:"booking_id"`
	Action    string               `json:"action"`
	Reason    string               `json:"reason,omitempty"`
	Receipt   *models.ReceiptInput `json:"receipt,omitempty"`
}

type ToggleSlotAvailabilityRequest struct {
	BarberID  int64     `json:"barber_id"`
	SlotStart time.Time `json:"slot_start"`
}

type ToggleSlotAvailabilityResponse struct {
	BarberID  int64             `json:"barber_id"`
	SlotStart time.Time         `json:"slot_start"`
	Status    models.SlotStatus `json:"status"`
}

type GetBookingRequest struct {
	BookingID int64 `json:"booking_id"`
}

type GetBarberStatsRequest struct {
	BarberID int64     `json:"barber_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

type SubscribeBookingChangesRequest struct {
	BarberID int64 `json:"barber_id"`
}
