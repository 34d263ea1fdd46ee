package service

import (
	"context"
	"testing"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeAt(t *testing.T, e *env, svc *BookingService, slot time.Time, discount int64) *models.Booking {
	t.Helper()
	ctx := context.Background()
	req := e.request(e.haircut)
	req.SlotStart = slot
	b, err := svc.RequestBooking(ctx, e.customer, req)
	require.NoError(t, err)
	_, err = svc.ManageBooking(ctx, ManageCommand{ActorID: e.barber, BookingID: b.ID, Action: models.ActionAccept})
	require.NoError(t, err)
	done, err := svc.ManageBooking(ctx, ManageCommand{
		ActorID:   e.barber,
		BookingID: b.ID,
		Action:    models.ActionComplete,
		Receipt:   &models.ReceiptInput{Discount: decimal.NewFromInt(discount)},
	})
	require.NoError(t, err)
	return done
}

func TestBarberStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bookings := NewBookingService(e.db, nil, nil)
	stats := NewStatsService(e.db, nil)

	completeAt(t, e, bookings, e.slot, 0)      // 60
	completeAt(t, e, bookings, e.nextSlot, 15) // 45
	nextDay := e.slot.AddDate(0, 0, 1)
	completeAt(t, e, bookings, nextDay, 0)

	req := e.request(e.beard)
	req.SlotStart = e.slot.Add(time.Hour)
	_, err := bookings.RequestBooking(ctx, e.customer, req)
	require.NoError(t, err)

	from := e.slot.Add(-time.Hour)
	to := e.slot.Add(3 * time.Hour)
	got, err := stats.GetBarberStats(ctx, e.barber, e.barber, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Completed)
	assert.Equal(t, "105", got.Revenue.String())

	_, err = stats.GetBarberStats(ctx, e.customer, e.barber, from, to)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = stats.GetBarberStats(ctx, e.barber, e.barber, to, from)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListEarnings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bookings := NewBookingService(e.db, nil, nil)
	stats := NewStatsService(e.db, nil)

	older := completeAt(t, e, bookings, e.slot.AddDate(0, 0, -10), 0)
	recent := completeAt(t, e, bookings, e.slot, 0)
	// "now" sits at the end of the recent booking's day
	stats.now = func() time.Time { return e.slot.Add(4 * time.Hour) }

	today, err := stats.ListEarnings(ctx, e.barber, e.barber, models.PeriodToday)
	require.NoError(t, err)
	require.Len(t, today.Bookings, 1)
	assert.Equal(t, recent.ID, today.Bookings[0].ID)
	assert.Equal(t, "60", today.Total.String())

	all, err := stats.ListEarnings(ctx, e.barber, e.barber, models.PeriodAll)
	require.NoError(t, err)
	require.Len(t, all.Bookings, 2)
	assert.Equal(t, recent.ID, all.Bookings[0].ID)
	assert.Equal(t, older.ID, all.Bookings[1].ID)
	assert.Equal(t, "120", all.Total.String())

	month, err := stats.ListEarnings(ctx, e.barber, e.barber, models.PeriodMonth)
	require.NoError(t, err)
	assert.Len(t, month.Bookings, 2)

	week, err := stats.ListEarnings(ctx, e.barber, e.barber, models.PeriodWeek)
	require.NoError(t, err)
	assert.Len(t, week.Bookings, 1)
}

type saverFunc func(e *models.Earnings, loc *time.Location) (string, error)

func (f saverFunc) SaveEarnings(e *models.Earnings, loc *time.Location) (string, error) { return f(e, loc) }

func TestExportEarnings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bookings := NewBookingService(e.db, nil, nil)
	stats := NewStatsService(e.db, nil)
	completeAt(t, e, bookings, e.slot, 0)

	var gotLoc *time.Location
	saver := saverFunc(func(out *models.Earnings, loc *time.Location) (string, error) {
		gotLoc = loc
		assert.Len(t, out.Bookings, 1)
		return "/tmp/earnings.xlsx", nil
	})

	path, out, err := stats.ExportEarnings(ctx, e.barber, e.barber, models.PeriodAll, saver)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/earnings.xlsx", path)
	assert.Equal(t, "60", out.Total.String())
	require.NotNil(t, gotLoc)
	assert.Equal(t, "Europe/Berlin", gotLoc.String())

	_, _, err = stats.ExportEarnings(ctx, e.customer, e.barber, models.PeriodAll, saver)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	failing := saverFunc(func(*models.Earnings, *time.Location) (string, error) { return "", assert.AnError })
	_, _, err = stats.ExportEarnings(ctx, e.barber, e.barber, models.PeriodAll, failing)
	assert.ErrorIs(t, err, assert.AnError)
}
