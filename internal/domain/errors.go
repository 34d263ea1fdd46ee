package domain

import "errors"

var (
	ErrSlotConflict      = errors.New("slot is no longer free")
	ErrShopClosed        = errors.New("shop is closed for new bookings")
	ErrInvalidServices   = errors.New("invalid services for this shop")
	ErrInvalidTransition = errors.New("booking cannot make this transition")
	ErrNotAuthorized     = errors.New("actor is not allowed to do this")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("slot is occupied by a booking")
	ErrSlotElapsed       = errors.New("slot start has already passed")
	ErrSlotOffGrid       = errors.New("slot start is not a slot boundary within working hours")
	ErrReasonRequired    = errors.New("a reason is required")
	ErrInvalidReceipt    = errors.New("invalid receipt")
	ErrInvalidInput      = errors.New("invalid input")
)

// IsConflict reports errors that mean "someone else changed this first".
// Callers recover by refreshing their view instead of surfacing the error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidState)
}

var codes = map[error]string{
	ErrSlotConflict:      "slot_conflict",
	ErrShopClosed:        "shop_closed",
	ErrInvalidServices:   "invalid_services",
	ErrInvalidTransition: "invalid_transition",
	ErrNotAuthorized:     "not_authorized",
	ErrNotFound:          "not_found",
	ErrInvalidState:      "invalid_state",
	ErrSlotElapsed:       "slot_elapsed",
	ErrSlotOffGrid:       "slot_off_grid",
	ErrReasonRequired:    "reason_required",
	ErrInvalidReceipt:    "invalid_receipt",
	ErrInvalidInput:      "invalid_input",
}

// Code returns the stable wire code for err, or "internal".
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}

// FromCode maps a wire code back to its sentinel. Unknown codes return nil.
func FromCode(code string) error {
	for sentinel, c := range codes {
		if c == code {
			return sentinel
		}
	}
	return nil
}
