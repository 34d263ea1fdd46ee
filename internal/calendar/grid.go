// Package calendar derives a barber's bookable slots from working hours,
// blocks and bookings.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata" // barbers may configure any IANA zone

	"barberbook/internal/domain"
	"barberbook/internal/models"
)

// Grid is a barber's daily slot layout in local time.
type Grid struct {
	startMin int
	endMin   int
	step     int
	loc      *time.Location
}

func GridFor(b *models.Barber) (Grid, error) {
	loc, err := b.Location()
	if err != nil {
		return Grid{}, err
	}
	start, err := parseClock(b.WorkStart)
	if err != nil {
		return Grid{}, fmt.Errorf("work_start: %w", err)
	}
	end, err := parseClock(b.WorkEnd)
	if err != nil {
		return Grid{}, fmt.Errorf("work_end: %w", err)
	}
	if end <= start {
		return Grid{}, fmt.Errorf("working window %s-%s is empty", b.WorkStart, b.WorkEnd)
	}
	if b.SlotMinutes <= 0 {
		return Grid{}, fmt.Errorf("slot_minutes must be positive, got %d", b.SlotMinutes)
	}
	return Grid{startMin: start, endMin: end, step: b.SlotMinutes, loc: loc}, nil
}

func parseClock(raw string) (int, error) {
	t, err := time.Parse(models.ClockLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q must be HH:MM", domain.ErrInvalidInput, raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (g Grid) Location() *time.Location { return g.loc }

// ParseDate resolves a YYYY-MM-DD date in the barber's timezone.
func (g Grid) ParseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, g.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", domain.ErrInvalidInput, date)
	}
	return day, nil
}

// Starts lists every slot start of the given local day, in order.
func (g Grid) Starts(day time.Time) []time.Time {
	y, m, d := day.In(g.loc).Date()
	out := make([]time.Time, 0, (g.endMin-g.startMin)/g.step)
	for off := g.startMin; off+g.step <= g.endMin; off += g.step {
		out = append(out, time.Date(y, m, d, off/60, off%60, 0, 0, g.loc))
	}
	return out
}

// Bounds returns the half-open interval covering the local day's slots.
func (g Grid) Bounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.In(g.loc).Date()
	from := time.Date(y, m, d, g.startMin/60, g.startMin%60, 0, 0, g.loc)
	to := time.Date(y, m, d, g.endMin/60, g.endMin%60, 0, 0, g.loc)
	return from, to
}

// DateOf is the local calendar date a slot belongs to.
func (g Grid) DateOf(slotStart time.Time) string {
	return slotStart.In(g.loc).Format(models.DateLayout)
}

// Check returns ErrSlotOffGrid unless slotStart is one of the day's slot boundaries.
func (g Grid) Check(slotStart time.Time) error {
	for _, s := range g.Starts(slotStart) {
		if s.Equal(slotStart) {
			return nil
		}
	}
	return domain.ErrSlotOffGrid
}
