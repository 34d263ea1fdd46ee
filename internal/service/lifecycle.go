package service

import (
	"fmt"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/pricing"

	"github.com/shopspring/decimal"
)

// ManageCommand is one lifecycle action requested by an actor.
type ManageCommand struct {
	ActorID   int64                `json:"-"`
	BookingID int64                `json:"booking_id"`
	Action    models.Action        `json:"action"`
	Reason    string               `json:"reason,omitempty"`
	Receipt   *models.ReceiptInput `json:"receipt,omitempty"`
}

type transition struct {
	from       []models.BookingStatus
	to         models.BookingStatus
	barberOnly bool
}

var transitions = map[models.Action]transition{
	models.ActionAccept:   {from: []models.BookingStatus{models.StatusRequested}, to: models.StatusAccepted, barberOnly: true},
	models.ActionReject:   {from: []models.BookingStatus{models.StatusRequested}, to: models.StatusRejected, barberOnly: true},
	models.ActionCancel:   {from: []models.BookingStatus{models.StatusRequested, models.StatusAccepted}, to: models.StatusCancelled},
	models.ActionComplete: {from: []models.BookingStatus{models.StatusAccepted}, to: models.StatusCompleted, barberOnly: true},
}

// validate checks the command on its own, before any booking is loaded.
func (c *ManageCommand) validate() error {
	if _, ok := transitions[c.Action]; !ok {
		return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, c.Action)
	}
	c.Reason = strings.TrimSpace(c.Reason)
	switch c.Action {
	case models.ActionReject, models.ActionCancel:
		if c.Reason == "" {
			return domain.ErrReasonRequired
		}
	case models.ActionComplete:
		if c.Receipt == nil {
			return fmt.Errorf("%w: receipt is required to complete", domain.ErrInvalidReceipt)
		}
	}
	return nil
}

// decide runs inside the write transaction against the current row.
func decide(b *models.Booking, cmd ManageCommand) (*models.BookingUpdate, error) {
	t := transitions[cmd.Action]

	var role models.Role
	switch cmd.ActorID {
	case b.BarberID:
		role = models.RoleBarber
	case b.CustomerID:
		role = models.RoleCustomer
	default:
		return nil, domain.ErrNotAuthorized
	}
	if t.barberOnly && role != models.RoleBarber {
		return nil, domain.ErrNotAuthorized
	}

	// a retried accept by the same barber succeeds without side effects
	if cmd.Action == models.ActionAccept && b.Status == models.StatusAccepted {
		return &models.BookingUpdate{Noop: true}, nil
	}

	allowed := false
	for _, s := range t.from {
		if b.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: cannot %s a %s booking", domain.ErrInvalidTransition, cmd.Action, b.Status)
	}

	upd := &models.BookingUpdate{Status: t.to}
	switch cmd.Action {
	case models.ActionReject, models.ActionCancel:
		reason := cmd.Reason
		upd.Reason = &reason
		upd.CancelledBy = &role
	case models.ActionComplete:
		receipt, err := pricing.FromInput(b, *cmd.Receipt)
		if err != nil {
			return nil, err
		}
		upd.Receipt = pricing.Settle(receipt)
		upd.FinalPrice = decimal.NewNullDecimal(pricing.Charged(receipt))
	}
	return upd, nil
}
