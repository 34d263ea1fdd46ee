package api

import (
	"context"
	"strings"

	"barberbook/internal/api/bookingv1"
	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/service"

	"github.com/rs/zerolog"
)

// Services bundles what the transports dispatch to.
type Services struct {
	Bookings *service.BookingService
	Schedule *service.ScheduleService
	Catalog  *service.CatalogService
	Stats    *service.StatsService
	Changes  domain.ChangeSubscriber
	Exporter service.EarningsSaver
}

// BookingGRPC implements bookingv1.BookingServiceServer on top of the services.
type BookingGRPC struct {
	bookingv1.UnimplementedBookingServiceServer
	svc    *Services
	logger zerolog.Logger
}

func NewBookingGRPC(svc *Services, logger zerolog.Logger) *BookingGRPC {
	return &BookingGRPC{svc: svc, logger: logger}
}

// fail logs errors that will be hidden from the caller and maps the rest.
func (g *BookingGRPC) fail(method string, err error) error {
	if code, _, _, _ := classify(err); code == "internal" {
		g.logger.Error().Err(err).Str("method", method).Msg("request failed")
	}
	return grpcError(err)
}

func (g *BookingGRPC) GetBarberSchedule(ctx context.Context, req *bookingv1.GetBarberScheduleRequest) (*models.DaySchedule, error) {
	day, err := g.svc.Schedule.GetBarberSchedule(ctx, req.BarberID, strings.TrimSpace(req.Date))
	if err != nil {
		return nil, g.fail("GetBarberSchedule", err)
	}
	return day, nil
}

func (g *BookingGRPC) RequestBooking(ctx context.Context, req *bookingv1.RequestBookingRequest) (*models.Booking, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	b, err := g.svc.Bookings.RequestBooking(ctx, actor, models.BookingRequest{
		BarberID:      req.BarberID,
		ShopID:        req.ShopID,
		SlotStart:     req.SlotStart,
		ServiceIDs:    req.ServiceIDs,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, g.fail("RequestBooking", err)
	}
	return b, nil
}

func (g *BookingGRPC) ManageBooking(ctx context.Context, req *bookingv1.ManageBookingRequest) (*models.Booking, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	b, err := g.svc.Bookings.ManageBooking(ctx, service.ManageCommand{
		ActorID:   actor,
		BookingID: req.BookingID,
		Action:    models.Action(strings.ToLower(strings.TrimSpace(req.Action))),
		Reason:    req.Reason,
		Receipt:   req.Receipt,
	})
	if err != nil {
		return nil, g.fail("ManageBooking", err)
	}
	return b, nil
}

func (g *BookingGRPC) ToggleSlotAvailability(ctx context.Context, req *bookingv1.ToggleSlotAvailabilityRequest) (*bookingv1.ToggleSlotAvailabilityResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	st, err := g.svc.Schedule.ToggleSlotAvailability(ctx, actor, req.BarberID, req.SlotStart)
	if err != nil {
		return nil, g.fail("ToggleSlotAvailability", err)
	}
	return &bookingv1.ToggleSlotAvailabilityResponse{BarberID: req.BarberID, SlotStart: req.SlotStart.UTC(), Status: st}, nil
}

func (g *BookingGRPC) GetBooking(ctx context.Context, req *bookingv1.GetBookingRequest) (*models.Booking, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	b, err := g.svc.Bookings.GetBooking(ctx, actor, req.BookingID)
	if err != nil {
		return nil, g.fail("GetBooking", err)
	}
	return b, nil
}

func (g *BookingGRPC) GetBarberStats(ctx context.Context, req *bookingv1.GetBarberStatsRequest) (*models.BarberStats, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	stats, err := g.svc.Stats.GetBarberStats(ctx, actor, req.BarberID, req.From, req.To)
	if err != nil {
		return nil, g.fail("GetBarberStats", err)
	}
	return stats, nil
}

// SubscribeBookingChanges streams hints for the caller's own barber id until
// the client goes away.
func (g *BookingGRPC) SubscribeBookingChanges(req *bookingv1.SubscribeBookingChangesRequest, stream bookingv1.BookingChangesServerStream) error {
	ctx := stream.Context()
	actor, err := actorFrom(ctx)
	if err != nil {
		return grpcError(err)
	}
	if actor != req.BarberID {
		return grpcError(domain.ErrNotAuthorized)
	}

	changes, err := g.svc.Changes.Subscribe(ctx, req.BarberID)
	if err != nil {
		return g.fail("SubscribeBookingChanges", err)
	}
	g.logger.Debug().Int64("barber_id", req.BarberID).Msg("change stream opened")

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := stream.Send(&change); err != nil {
				return err
			}
		}
	}
}
