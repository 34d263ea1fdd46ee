package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

// DashboardAPI is the part of Client a Dashboard needs.
type DashboardAPI interface {
	ListBarberBookings(ctx context.Context, barberID int64, statuses []models.BookingStatus, date string) ([]models.Booking, error)
	ManageBooking(ctx context.Context, bookingID int64, action models.Action, reason string, receipt *models.ReceiptInput) (*models.Booking, error)
	GetShop(ctx context.Context, shopID int64) (*models.Shop, error)
	SetShopOpen(ctx context.Context, shopID int64, open bool) (*models.Shop, error)
}

// Dashboard is a barber session: the pending request list kept fresh by
// change hints, and the shop open switch.
type Dashboard struct {
	api      DashboardAPI
	changes  domain.ChangeSubscriber
	barberID int64
	shopID   int64
	logger   zerolog.Logger

	// read on every hint, so closing the shop takes effect without resubscribing
	shopOpen atomic.Bool

	mu       sync.Mutex
	pending  []models.Booking
	lastHint int64
}

func NewDashboard(api DashboardAPI, changes domain.ChangeSubscriber, barberID, shopID int64, logger *zerolog.Logger) *Dashboard {
	return &Dashboard{
		api:      api,
		changes:  changes,
		barberID: barberID,
		shopID:   shopID,
		logger:   logger.With().Str("component", "dashboard").Int64("barber_id", barberID).Logger(),
	}
}

// Load reads the shop flag and the pending list.
func (d *Dashboard) Load(ctx context.Context) error {
	shop, err := d.api.GetShop(ctx, d.shopID)
	if err != nil {
		return err
	}
	d.shopOpen.Store(shop.IsOpen)
	return d.RefreshPending(ctx)
}

func (d *Dashboard) ShopOpen() bool {
	return d.shopOpen.Load()
}

func (d *Dashboard) Pending() []models.Booking {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Booking(nil), d.pending...)
}

// LastHint is the outbox id of the newest change hint handled.
func (d *Dashboard) LastHint() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastHint
}

func (d *Dashboard) RefreshPending(ctx context.Context) error {
	list, err := d.api.ListBarberBookings(ctx, d.barberID, []models.BookingStatus{models.StatusRequested}, "")
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.pending = list
	d.mu.Unlock()
	return nil
}

// SetShopOpen flips the flag before the server confirms it and flips it
// back if the write fails.
func (d *Dashboard) SetShopOpen(ctx context.Context, open bool) error {
	prev := d.shopOpen.Swap(open)
	shop, err := d.api.SetShopOpen(ctx, d.shopID, open)
	if err != nil {
		d.shopOpen.CompareAndSwap(open, prev)
		return err
	}
	d.shopOpen.Store(shop.IsOpen)
	return nil
}

// Run subscribes to change hints and re-fetches the pending list on each
// one while the shop is open. It returns when ctx ends or the stream closes.
func (d *Dashboard) Run(ctx context.Context) error {
	changes, err := d.changes.Subscribe(ctx, d.barberID)
	if err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			d.handle(ctx, change)
		}
	}
}

func (d *Dashboard) handle(ctx context.Context, change models.BookingChange) {
	d.mu.Lock()
	if change.EventID > d.lastHint {
		d.lastHint = change.EventID
	}
	d.mu.Unlock()

	if !d.shopOpen.Load() {
		return
	}
	if err := d.RefreshPending(ctx); err != nil {
		d.logger.Warn().Err(err).Int64("event_id", change.EventID).Msg("pending refresh failed")
	}
}

func (d *Dashboard) Accept(ctx context.Context, bookingID int64) error {
	return d.decide(ctx, bookingID, models.ActionAccept, "")
}

func (d *Dashboard) Reject(ctx context.Context, bookingID int64, reason string) error {
	return d.decide(ctx, bookingID, models.ActionReject, reason)
}

// decide removes the request from the list up front and puts it back when
// the server refuses for a reason other than a lost race.
func (d *Dashboard) decide(ctx context.Context, bookingID int64, action models.Action, reason string) error {
	d.mu.Lock()
	var removed *models.Booking
	for i := range d.pending {
		if d.pending[i].ID == bookingID {
			b := d.pending[i]
			removed = &b
			d.pending = append(d.pending[:i:i], d.pending[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	_, err := d.api.ManageBooking(ctx, bookingID, action, reason, nil)
	if err == nil {
		return nil
	}
	if domain.IsConflict(err) {
		d.logger.Debug().Err(err).Int64("booking_id", bookingID).Str("action", string(action)).Msg("request changed underneath, refreshing")
		return d.RefreshPending(ctx)
	}
	if removed != nil {
		d.restore(*removed)
	}
	return err
}

func (d *Dashboard) restore(b models.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		if p.ID == b.ID {
			return
		}
	}
	d.pending = append(d.pending, b)
	sort.Slice(d.pending, func(i, j int) bool {
		return d.pending[i].SlotStart.Before(d.pending[j].SlotStart)
	})
}
