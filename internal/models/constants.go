package models

import "strings"

// BookingStatus is the persisted lifecycle state of a booking.
type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusAccepted  BookingStatus = "accepted"
	StatusRejected  BookingStatus = "rejected"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// Holds reports whether a booking in this status keeps its slot reserved.
// Only rejected and cancelled bookings give the slot back.
func (s BookingStatus) Holds() bool {
	return s == StatusRequested || s == StatusAccepted || s == StatusCompleted
}

// ParseBookingStatus accepts the canonical names plus the legacy "busy" alias.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	switch BookingStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusRequested:
		return StatusRequested, true
	case StatusAccepted, "busy":
		return StatusAccepted, true
	case StatusRejected:
		return StatusRejected, true
	case StatusCancelled, "canceled":
		return StatusCancelled, true
	case StatusCompleted:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// SlotStatus is the derived status of a calendar slot.
type SlotStatus string

const (
	SlotFree        SlotStatus = "free"
	SlotUnavailable SlotStatus = "unavailable"
	SlotRequested   SlotStatus = "requested"
	SlotAccepted    SlotStatus = "accepted"
	SlotCompleted   SlotStatus = "completed"
)

// Action is a lifecycle command applied to a booking.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

func ParseAction(raw string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionAccept, ActionReject, ActionCancel, ActionComplete:
		return a, true
	default:
		return "", false
	}
}

// Role is the side of the marketplace a user acts on.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleBarber   Role = "barber"
)

const (
	PaymentCash = "cash"

	EventInsert = "insert"
	EventUpdate = "update"

	OutboxPending   = "pending"
	OutboxRetry     = "retry"
	OutboxCompleted = "completed"
	OutboxFailed    = "failed"

	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	DefaultWorkStart   = "09:00"
	DefaultWorkEnd     = "18:00"
	DefaultSlotMinutes = 30
	DefaultTimezone    = "UTC"

	// MinOnboardingServices is how many services a barber must list before going live.
	MinOnboardingServices = 3
)
