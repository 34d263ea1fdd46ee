package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

// ScheduleAPI is the part of Client a ScheduleView needs.
type ScheduleAPI interface {
	GetBarberSchedule(ctx context.Context, barberID int64, date string) (*models.DaySchedule, error)
	ToggleSlot(ctx context.Context, barberID int64, slotStart time.Time) (models.SlotStatus, error)
}

// ScheduleView holds one barber day and toggles slots optimistically.
type ScheduleView struct {
	api      ScheduleAPI
	barberID int64
	date     string
	logger   zerolog.Logger

	mu    sync.Mutex
	slots []models.Slot
}

func NewScheduleView(api ScheduleAPI, barberID int64, date string, logger *zerolog.Logger) *ScheduleView {
	return &ScheduleView{
		api:      api,
		barberID: barberID,
		date:     date,
		logger:   logger.With().Str("component", "schedule_view").Int64("barber_id", barberID).Logger(),
	}
}

func (v *ScheduleView) Refresh(ctx context.Context) error {
	day, err := v.api.GetBarberSchedule(ctx, v.barberID, v.date)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.slots = day.Slots
	v.date = day.Date
	v.mu.Unlock()
	return nil
}

// Slots returns a copy of the current view.
func (v *ScheduleView) Slots() []models.Slot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Slot(nil), v.slots...)
}

// Toggle flips a free slot to unavailable or back before the server answers.
// A failed write restores the view as it was; conflicts are absorbed by a
// refresh because the server state moved on.
func (v *ScheduleView) Toggle(ctx context.Context, slotStart time.Time) error {
	v.mu.Lock()
	idx := -1
	for i := range v.slots {
		if v.slots[i].Start.Equal(slotStart) {
			idx = i
			break
		}
	}
	if idx < 0 {
		v.mu.Unlock()
		return fmt.Errorf("%w: slot %s is not in this view", domain.ErrSlotOffGrid, slotStart.Format(time.RFC3339))
	}
	switch v.slots[idx].Status {
	case models.SlotFree:
	case models.SlotUnavailable:
	default:
		v.mu.Unlock()
		return domain.ErrInvalidState
	}
	snapshot := append([]models.Slot(nil), v.slots...)
	if v.slots[idx].Status == models.SlotFree {
		v.slots[idx].Status = models.SlotUnavailable
	} else {
		v.slots[idx].Status = models.SlotFree
	}
	v.mu.Unlock()

	status, err := v.api.ToggleSlot(ctx, v.barberID, slotStart)
	if err != nil {
		v.mu.Lock()
		v.slots = snapshot
		v.mu.Unlock()
		if domain.IsConflict(err) {
			v.logger.Debug().Err(err).Time("slot_start", slotStart).Msg("toggle lost a race, refreshing")
			return v.Refresh(ctx)
		}
		return err
	}

	v.mu.Lock()
	if idx < len(v.slots) && v.slots[idx].Start.Equal(slotStart) {
		v.slots[idx].Status = status
	}
	v.mu.Unlock()
	return nil
}
