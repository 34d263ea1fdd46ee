package repository

import (
	"context"
	"sync"
	"time"

	"barberbook/internal/models"
)

type memoryEntry struct {
	slots     []models.Slot
	expiresAt time.Time
}

// MemoryScheduleCache is the in-process fallback when Redis is unavailable.
type MemoryScheduleCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryScheduleCache(ttl time.Duration) *MemoryScheduleCache {
	return &MemoryScheduleCache{ttl: ttl, now: time.Now}
}

func (r *MemoryScheduleCache) Get(_ context.Context, barberID int64, date string) ([]models.Slot, bool, error) {
	key := scheduleKey(barberID, date)
	val, ok := r.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.Delete(key)
		return nil, false, nil
	}
	return append([]models.Slot(nil), entry.slots...), true, nil
}

func (r *MemoryScheduleCache) Set(_ context.Context, barberID int64, date string, slots []models.Slot) error {
	r.entries.Store(scheduleKey(barberID, date), &memoryEntry{
		slots:     append([]models.Slot(nil), slots...),
		expiresAt: r.now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryScheduleCache) Invalidate(_ context.Context, barberID int64, date string) error {
	r.entries.Delete(scheduleKey(barberID, date))
	return nil
}
