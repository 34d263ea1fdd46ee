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

type BookingService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:     repo,
		eventBus: publisherOr(eventBus),
		logger:   loggerOr(logger, "booking"),
		now:      time.Now,
	}
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.Code(err)
}

// RequestBooking creates a requested booking for the customer. Slot shape and
// time are checked here; everything that races with other writers is checked
// by the repository inside one write transaction.
func (s *BookingService) RequestBooking(ctx context.Context, customerID int64, req models.BookingRequest) (b *models.Booking, err error) {
	defer func() { metrics.IncBookingRequest(resultOf(err)) }()

	req.CustomerID = customerID
	if req.CustomerID == 0 || req.BarberID == 0 || req.ShopID == 0 {
		return nil, fmt.Errorf("%w: customer, barber and shop are required", domain.ErrInvalidInput)
	}
	if req.CustomerID == req.BarberID {
		return nil, fmt.Errorf("%w: a barber cannot book their own slot", domain.ErrInvalidInput)
	}

	barber, err := s.repo.GetBarber(ctx, req.BarberID)
	if err != nil {
		return nil, err
	}
	if !barber.IsActive || barber.ShopID != req.ShopID {
		return nil, fmt.Errorf("barber %d in shop %d: %w", req.BarberID, req.ShopID, domain.ErrNotFound)
	}
	grid, err := calendar.GridFor(barber)
	if err != nil {
		return nil, err
	}
	if err := grid.Check(req.SlotStart); err != nil {
		return nil, err
	}
	if !req.SlotStart.After(s.now()) {
		return nil, domain.ErrSlotElapsed
	}

	b, err = s.repo.CreateBookingRequest(ctx, &req)
	if err != nil {
		s.logger.Debug().Err(err).Int64("barber_id", req.BarberID).Time("slot_start", req.SlotStart).Msg("booking request refused")
		return nil, err
	}

	s.logger.Info().Int64("booking_id", b.ID).Int64("barber_id", b.BarberID).Time("slot_start", b.SlotStart).Msg("booking requested")
	s.publishEvent(events.EventBookingRequested, b, "", customerID)
	return b, nil
}

// ManageBooking applies one lifecycle action atomically.
func (s *BookingService) ManageBooking(ctx context.Context, cmd ManageCommand) (b *models.Booking, err error) {
	defer func() { metrics.IncTransition(string(cmd.Action), resultOf(err)) }()

	if err := cmd.validate(); err != nil {
		return nil, err
	}

	noop := false
	b, err = s.repo.TransitionBooking(ctx, cmd.BookingID, func(cur *models.Booking) (*models.BookingUpdate, error) {
		upd, err := decide(cur, cmd)
		if err == nil && upd.Noop {
			noop = true
		}
		return upd, err
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return b, nil
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("action", string(cmd.Action)).
		Str("status", string(b.Status)).
		Int64("actor_id", cmd.ActorID).
		Msg("booking transitioned")
	s.publishEvent(events.EventBookingTransitioned, b, cmd.Action, cmd.ActorID)
	return b, nil
}

// GetBooking is visible to the booking's customer and barber only.
func (s *BookingService) GetBooking(ctx context.Context, actorID, id int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != b.CustomerID && actorID != b.BarberID {
		return nil, domain.ErrNotAuthorized
	}
	return b, nil
}

// ListCustomerBookings returns the customer's bookings, newest slot first.
func (s *BookingService) ListCustomerBookings(ctx context.Context, customerID int64, statuses []models.BookingStatus) ([]models.Booking, error) {
	return s.repo.ListBookings(ctx, models.BookingFilter{
		CustomerID: &customerID,
		Statuses:   statuses,
		Newest:     true,
	})
}

// ListBarberBookings feeds the barber dashboard. An empty date lists every day.
func (s *BookingService) ListBarberBookings(ctx context.Context, actorID, barberID int64, statuses []models.BookingStatus, date string) ([]models.Booking, error) {
	if actorID != barberID {
		return nil, domain.ErrNotAuthorized
	}
	filter := models.BookingFilter{BarberID: &barberID, Statuses: statuses}
	if date != "" {
		barber, err := s.repo.GetBarber(ctx, barberID)
		if err != nil {
			return nil, err
		}
		grid, err := calendar.GridFor(barber)
		if err != nil {
			return nil, err
		}
		day, err := grid.ParseDate(date)
		if err != nil {
			return nil, err
		}
		from, to := grid.Bounds(day)
		filter.From, filter.To = &from, &to
	}
	return s.repo.ListBookings(ctx, filter)
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, action models.Action, actorID int64) {
	err := s.eventBus.PublishJSON(eventType, events.BookingEventPayload{
		BookingID:  b.ID,
		BarberID:   b.BarberID,
		CustomerID: b.CustomerID,
		Status:     string(b.Status),
		Action:     string(action),
		SlotStart:  b.SlotStart,
		ActorID:    actorID,
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", b.ID).Str("event", eventType).Msg("event handler failed")
	}
}
