package service

import (
	"context"
	"fmt"
	"time"

	"barberbook/internal/calendar"
	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/metrics"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

// ScheduleService renders barber days and toggles slot availability.
type ScheduleService struct {
	repo     domain.ScheduleRepository
	cache    domain.ScheduleCache
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewScheduleService builds the service. cache may be nil, in which case
// every read goes to the database.
func NewScheduleService(repo domain.ScheduleRepository, cache domain.ScheduleCache, eventBus domain.EventPublisher, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		repo:     repo,
		cache:    cache,
		eventBus: publisherOr(eventBus),
		logger:   loggerOr(logger, "schedule"),
		now:      time.Now,
	}
}

func (s *ScheduleService) activeBarber(ctx context.Context, barberID int64) (*models.Barber, calendar.Grid, error) {
	barber, err := s.repo.GetBarber(ctx, barberID)
	if err != nil {
		return nil, calendar.Grid{}, err
	}
	if !barber.IsActive {
		return nil, calendar.Grid{}, fmt.Errorf("barber %d is inactive: %w", barberID, domain.ErrNotFound)
	}
	grid, err := calendar.GridFor(barber)
	if err != nil {
		return nil, calendar.Grid{}, fmt.Errorf("barber %d has a broken calendar: %w", barberID, err)
	}
	return barber, grid, nil
}

func (s *ScheduleService) GetBarberSchedule(ctx context.Context, barberID int64, date string) (*models.DaySchedule, error) {
	barber, grid, err := s.activeBarber(ctx, barberID)
	if err != nil {
		return nil, err
	}
	day, err := grid.ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = day.Format(models.DateLayout)

	slots, err := s.loadDay(ctx, barberID, grid, day, date)
	if err != nil {
		return nil, err
	}

	return &models.DaySchedule{
		BarberID: barberID,
		Date:     date,
		Timezone: barber.Timezone,
		Slots:    calendar.MarkPast(slots, s.now()),
	}, nil
}

func (s *ScheduleService) loadDay(ctx context.Context, barberID int64, grid calendar.Grid, day time.Time, date string) ([]models.Slot, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, barberID, date)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Int64("barber_id", barberID).Str("date", date).Msg("schedule cache read failed")
		case ok:
			metrics.CacheHit()
			return cached, nil
		}
		metrics.CacheMiss()
	}

	from, to := grid.Bounds(day)
	occupants, err := s.repo.ListSlotOccupants(ctx, barberID, from, to)
	if err != nil {
		return nil, err
	}
	blocks, err := s.repo.ListSlotBlocks(ctx, barberID, from, to)
	if err != nil {
		return nil, err
	}
	slots := calendar.Build(grid.Starts(day), occupants, blocks)

	if s.cache != nil {
		if err := s.cache.Set(ctx, barberID, date, slots); err != nil {
			s.logger.Warn().Err(err).Int64("barber_id", barberID).Str("date", date).Msg("schedule cache write failed")
		}
	}
	return slots, nil
}

// ToggleSlotAvailability flips a free slot to unavailable or back and returns
// the new status. Only the barber may toggle their own slots.
func (s *ScheduleService) ToggleSlotAvailability(ctx context.Context, actorID, barberID int64, slotStart time.Time) (models.SlotStatus, error) {
	if actorID != barberID {
		return "", domain.ErrNotAuthorized
	}
	_, grid, err := s.activeBarber(ctx, barberID)
	if err != nil {
		return "", err
	}
	if err := grid.Check(slotStart); err != nil {
		return "", err
	}
	if !slotStart.After(s.now()) {
		return "", domain.ErrSlotElapsed
	}

	blocked, err := s.repo.ToggleSlotBlock(ctx, barberID, slotStart)
	if err != nil {
		return "", err
	}
	status := models.SlotFree
	if blocked {
		status = models.SlotUnavailable
	}

	s.invalidate(ctx, barberID, grid.DateOf(slotStart))
	if err := s.eventBus.PublishJSON(events.EventSlotToggled, events.SlotEventPayload{
		BarberID:  barberID,
		SlotStart: slotStart.UTC(),
		Status:    string(status),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish slot toggle")
	}
	return status, nil
}

func (s *ScheduleService) invalidate(ctx context.Context, barberID int64, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, barberID, date); err != nil {
		s.logger.Warn().Err(err).Int64("barber_id", barberID).Str("date", date).Msg("schedule cache invalidation failed")
	}
}

// Listen drops cached days touched by committed booking changes.
func (s *ScheduleService) Listen(bus *events.EventBus) {
	bus.Subscribe(func(ev *events.Event) error {
		var p events.BookingEventPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		ctx := context.Background()
		_, grid, err := s.activeBarber(ctx, p.BarberID)
		if err != nil {
			return err
		}
		s.invalidate(ctx, p.BarberID, grid.DateOf(p.SlotStart))
		return nil
	}, events.EventBookingRequested, events.EventBookingTransitioned)
}
