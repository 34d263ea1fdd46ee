package bookingv1

import (
	"context"

	"barberbook/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "barberbook.booking.v1.BookingService"

// Full method names, as seen by interceptors.
const (
	MethodGetBarberSchedule       = "/" + ServiceName + "/GetBarberSchedule"
	MethodRequestBooking          = "/" + ServiceName + "/RequestBooking"
	MethodManageBooking           = "/" + ServiceName + "/ManageBooking"
	MethodToggleSlotAvailability  = "/" + ServiceName + "/ToggleSlotAvailability"
	MethodGetBooking              = "/" + ServiceName + "/GetBooking"
	MethodGetBarberStats          = "/" + ServiceName + "/GetBarberStats"
	MethodSubscribeBookingChanges = "/" + ServiceName + "/SubscribeBookingChanges"
)

type BookingServiceServer interface {
	GetBarberSchedule(context.Context, *GetBarberScheduleRequest) (*models.DaySchedule, error)
	RequestBooking(context.Context, *RequestBookingRequest) (*models.Booking, error)
	ManageBooking(context.Context, *ManageBookingRequest) (*models.Booking, error)
	ToggleSlotAvailability(context.Context, *ToggleSlotAvailabilityRequest) (*ToggleSlotAvailabilityResponse, error)
	GetBooking(context.Context, *GetBookingRequest) (*models.Booking, error)
	GetBarberStats(context.Context, *GetBarberStatsRequest) (*models.BarberStats, error)
	SubscribeBookingChanges(*SubscribeBookingChangesRequest, BookingChangesServerStream) error
}

// UnimplementedBookingServiceServer can be embedded to stay forward compatible.
type UnimplementedBookingServiceServer struct{}

func (UnimplementedBookingServiceServer) GetBarberSchedule(context.Context, *GetBarberScheduleRequest) (*models.DaySchedule, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBarberSchedule not implemented")
}
func (UnimplementedBookingServiceServer) RequestBooking(context.Context, *RequestBookingRequest) (*models.Booking, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestBooking not implemented")
}
func (UnimplementedBookingServiceServer) ManageBooking(context.Context, *ManageBookingRequest) (*models.Booking, error) {
	return nil, status.Error(codes.Unimplemented, "method ManageBooking not implemented")
}
func (UnimplementedBookingServiceServer) ToggleSlotAvailability(context.Context, *ToggleSlotAvailabilityRequest) (*ToggleSlotAvailabilityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ToggleSlotAvailability not implemented")
}
func (UnimplementedBookingServiceServer) GetBooking(context.Context, *GetBookingRequest) (*models.Booking, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBooking not implemented")
}
func (UnimplementedBookingServiceServer) GetBarberStats(context.Context, *GetBarberStatsRequest) (*models.BarberStats, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBarberStats not implemented")
}
func (UnimplementedBookingServiceServer) SubscribeBookingChanges(*SubscribeBookingChangesRequest, BookingChangesServerStream) error {
	return status.Error(codes.Unimplemented, "method SubscribeBookingChanges not implemented")
}

// BookingChangesServerStream is the server side of SubscribeBookingChanges.
type BookingChangesServerStream interface {
	Send(*models.BookingChange) error
	grpc.ServerStream
}

type bookingChangesServerStream struct {
	grpc.ServerStream
}

func (s *bookingChangesServerStream) Send(m *models.BookingChange) error {
	return s.ServerStream.SendMsg(m)
}

func unaryHandler[Req any, Resp any](method string, call func(BookingServiceServer, context.Context, *Req) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeBookingChangesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BookingServiceServer).SubscribeBookingChanges(in, &bookingChangesServerStream{stream})
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBarberSchedule", Handler: unaryHandler(MethodGetBarberSchedule, BookingServiceServer.GetBarberSchedule)},
		{MethodName: "RequestBooking", Handler: unaryHandler(MethodRequestBooking, BookingServiceServer.RequestBooking)},
		{MethodName: "ManageBooking", Handler: unaryHandler(MethodManageBooking, BookingServiceServer.ManageBooking)},
		{MethodName: "ToggleSlotAvailability", Handler: unaryHandler(MethodToggleSlotAvailability, BookingServiceServer.ToggleSlotAvailability)},
		{MethodName: "GetBooking", Handler: unaryHandler(MethodGetBooking, BookingServiceServer.GetBooking)},
		{MethodName: "GetBarberStats", Handler: unaryHandler(MethodGetBarberStats, BookingServiceServer.GetBarberStats)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SubscribeBookingChanges", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "barberbook/booking/v1",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
