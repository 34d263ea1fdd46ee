package models

import "time"

// Slot is one bookable interval of a barber's day. It is derived, never stored.
type Slot struct {
	Start        time.Time  `json:"slot_start"`
	Status       SlotStatus `json:"status"`
	CustomerName string     `json:"customer_name,omitempty"`
	BookingID    int64      `json:"booking_id,omitempty"`
	Past         bool       `json:"past"`
}

// SlotOccupant is a booking that currently sits on a slot.
type SlotOccupant struct {
	SlotStart    time.Time
	BookingID    int64
	Status       BookingStatus
	CustomerName string
}

type DaySchedule struct {
	BarberID int64  `json:"barber_id"`
	Date     string `json:"date"`
	Timezone string `json:"timezone"`
	Slots    []Slot `json:"slots"`
}
