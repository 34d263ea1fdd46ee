package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverScheduleCache serves from the primary cache and switches to the
// fallback on the first primary error, probing the primary again once a
// minute. Invalidations go to both so a recovered primary never serves a
// schedule that was dropped while it was down.
type FailoverScheduleCache struct {
	primary  domain.ScheduleCache
	fallback domain.ScheduleCache
	logger   zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverScheduleCache(primary, fallback domain.ScheduleCache, logger *zerolog.Logger) *FailoverScheduleCache {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "schedule_cache").Logger()
	}
	return &FailoverScheduleCache{primary: primary, fallback: fallback, logger: log}
}

func (r *FailoverScheduleCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary schedule cache failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverScheduleCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverScheduleCache) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary schedule cache recovered")
	}
}

func (r *FailoverScheduleCache) Get(ctx context.Context, barberID int64, date string) ([]models.Slot, bool, error) {
	if r.usePrimary() {
		slots, ok, err := r.primary.Get(ctx, barberID, date)
		if err == nil {
			r.recovered()
			return slots, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.Get(ctx, barberID, date)
}

func (r *FailoverScheduleCache) Set(ctx context.Context, barberID int64, date string, slots []models.Slot) error {
	if r.usePrimary() {
		err := r.primary.Set(ctx, barberID, date, slots)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Set(ctx, barberID, date, slots)
}

func (r *FailoverScheduleCache) Invalidate(ctx context.Context, barberID int64, date string) error {
	if err := r.primary.Invalidate(ctx, barberID, date); err != nil {
		r.markDown(err)
	}
	return r.fallback.Invalidate(ctx, barberID, date)
}

// IsDegraded reports whether reads are currently served by the fallback.
func (r *FailoverScheduleCache) IsDegraded() bool {
	return r.isDown.Load()
}
