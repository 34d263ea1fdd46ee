package service

import (
	"context"
	"fmt"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type StatsService struct {
	repo   domain.Repository
	logger *zerolog.Logger
	now    func() time.Time
}

func NewStatsService(repo domain.Repository, logger *zerolog.Logger) *StatsService {
	return &StatsService{repo: repo, logger: loggerOr(logger, "stats"), now: time.Now}
}

// revenueOf is what a completed booking earned: the charged amount, or the
// booked price for rows completed before receipts existed.
func revenueOf(b *models.Booking) decimal.Decimal {
	if b.FinalPrice.Valid {
		return b.FinalPrice.Decimal
	}
	return b.Price
}

// GetBarberStats sums completed bookings whose slot falls in [from, to).
func (s *StatsService) GetBarberStats(ctx context.Context, actorID, barberID int64, from, to time.Time) (*models.BarberStats, error) {
	if actorID != barberID {
		return nil, domain.ErrNotAuthorized
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty stats range", domain.ErrInvalidInput)
	}
	if _, err := s.repo.GetBarber(ctx, barberID); err != nil {
		return nil, err
	}

	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{
		BarberID: &barberID,
		Statuses: []models.BookingStatus{models.StatusCompleted},
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return nil, err
	}

	stats := &models.BarberStats{BarberID: barberID, From: from.UTC(), To: to.UTC(), Revenue: decimal.Zero}
	for i := range bookings {
		stats.Revenue = stats.Revenue.Add(revenueOf(&bookings[i]))
		stats.Completed++
	}
	return stats, nil
}

// EarningsSaver persists an earnings report and returns where it went.
type EarningsSaver interface {
	SaveEarnings(e *models.Earnings, loc *time.Location) (string, error)
}

// ListEarnings returns completed bookings of the period, newest first. Period
// boundaries follow the barber's timezone.
func (s *StatsService) ListEarnings(ctx context.Context, actorID, barberID int64, period models.EarningsPeriod) (*models.Earnings, error) {
	out, _, err := s.earnings(ctx, actorID, barberID, period)
	return out, err
}

// ExportEarnings saves the period's earnings with slot times in the barber's
// timezone and returns the saved path alongside the report.
func (s *StatsService) ExportEarnings(ctx context.Context, actorID, barberID int64, period models.EarningsPeriod, saver EarningsSaver) (string, *models.Earnings, error) {
	out, loc, err := s.earnings(ctx, actorID, barberID, period)
	if err != nil {
		return "", nil, err
	}
	path, err := saver.SaveEarnings(out, loc)
	if err != nil {
		return "", nil, fmt.Errorf("export earnings: %w", err)
	}
	s.logger.Info().Int64("barber_id", barberID).Str("period", string(period)).Str("path", path).Msg("earnings exported")
	return path, out, nil
}

func (s *StatsService) earnings(ctx context.Context, actorID, barberID int64, period models.EarningsPeriod) (*models.Earnings, *time.Location, error) {
	if actorID != barberID {
		return nil, nil, domain.ErrNotAuthorized
	}
	barber, err := s.repo.GetBarber(ctx, barberID)
	if err != nil {
		return nil, nil, err
	}
	loc, err := barber.Location()
	if err != nil {
		return nil, nil, err
	}

	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{
		BarberID: &barberID,
		Statuses: []models.BookingStatus{models.StatusCompleted},
		From:     period.Since(s.now(), loc),
		Newest:   true,
	})
	if err != nil {
		return nil, nil, err
	}

	out := &models.Earnings{BarberID: barberID, Period: period, Total: decimal.Zero, Bookings: bookings}
	for i := range bookings {
		out.Total = out.Total.Add(revenueOf(&bookings[i]))
	}
	if out.Bookings == nil {
		out.Bookings = []models.Booking{}
	}
	return out, loc, nil
}
