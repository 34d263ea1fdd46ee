package calendar

import (
	"time"

	"barberbook/internal/models"
)

var rank = map[models.SlotStatus]int{
	models.SlotFree:        0,
	models.SlotUnavailable: 1,
	models.SlotRequested:   2,
	models.SlotCompleted:   3,
	models.SlotAccepted:    4,
}

func slotStatusOf(s models.BookingStatus) (models.SlotStatus, bool) {
	if !s.Holds() {
		return "", false
	}
	switch s {
	case models.StatusRequested:
		return models.SlotRequested, true
	case models.StatusAccepted:
		return models.SlotAccepted, true
	case models.StatusCompleted:
		return models.SlotCompleted, true
	default:
		return "", false
	}
}

// Build tags each start with its status. Bookings outrank blocks; rejected and
// cancelled bookings never occupy a slot.
func Build(starts []time.Time, occupants []models.SlotOccupant, blocks []time.Time) []models.Slot {
	slots := make([]models.Slot, len(starts))
	index := make(map[int64]int, len(starts))
	for i, s := range starts {
		slots[i] = models.Slot{Start: s.UTC(), Status: models.SlotFree}
		index[s.Unix()] = i
	}

	for _, b := range blocks {
		if i, ok := index[b.Unix()]; ok {
			slots[i].Status = models.SlotUnavailable
		}
	}

	for _, o := range occupants {
		i, ok := index[o.SlotStart.Unix()]
		if !ok {
			continue
		}
		st, ok := slotStatusOf(o.Status)
		if !ok || rank[st] <= rank[slots[i].Status] {
			continue
		}
		slots[i].Status = st
		slots[i].BookingID = o.BookingID
		slots[i].CustomerName = o.CustomerName
	}
	return slots
}

// MarkPast flags slots whose start is not after now. It returns a copy.
func MarkPast(slots []models.Slot, now time.Time) []models.Slot {
	out := make([]models.Slot, len(slots))
	for i, s := range slots {
		s.Past = !s.Start.After(now)
		out[i] = s
	}
	return out
}
