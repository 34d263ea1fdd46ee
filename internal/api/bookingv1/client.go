package bookingv1

import (
	"context"

	"barberbook/internal/models"

	"google.golang.org/grpc"
)

type BookingServiceClient interface {
	GetBarberSchedule(ctx context.Context, in *GetBarberScheduleRequest, opts ...grpc.CallOption) (*models.DaySchedule, error)
	RequestBooking(ctx context.Context, in *RequestBookingRequest, opts ...grpc.CallOption) (*models.Booking, error)
	ManageBooking(ctx context.Context, in *ManageBookingRequest, opts ...grpc.CallOption) (*models.Booking, error)
	ToggleSlotAvailability(ctx context.Context, in *ToggleSlotAvailabilityRequest, opts ...grpc.CallOption) (*ToggleSlotAvailabilityResponse, error)
	GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*models.Booking, error)
	GetBarberStats(ctx context.Context, in *GetBarberStatsRequest, opts ...grpc.CallOption) (*models.BarberStats, error)
	SubscribeBookingChanges(ctx context.Context, in *SubscribeBookingChangesRequest, opts ...grpc.CallOption) (BookingChangesClientStream, error)
}

type bookingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBookingServiceClient selects the JSON codec on every call.
func NewBookingServiceClient(cc grpc.ClientConnInterface) BookingServiceClient {
	return &bookingServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *bookingServiceClient) GetBarberSchedule(ctx context.Context, in *GetBarberScheduleRequest, opts ...grpc.CallOption) (*models.DaySchedule, error) {
	return invoke[models.DaySchedule](ctx, c.cc, MethodGetBarberSchedule, in, opts)
}

func (c *bookingServiceClient) RequestBooking(ctx context.Context, in *RequestBookingRequest, opts ...grpc.CallOption) (*models.Booking, error) {
	return invoke[models.Booking](ctx, c.cc, MethodRequestBooking, in, opts)
}

func (c *bookingServiceClient) ManageBooking(ctx context.Context, in *ManageBookingRequest, opts ...grpc.CallOption) (*models.Booking, error) {
	return invoke[models.Booking](ctx, c.cc, MethodManageBooking, in, opts)
}

func (c *bookingServiceClient) ToggleSlotAvailability(ctx context.Context, in *ToggleSlotAvailabilityRequest, opts ...grpc.CallOption) (*ToggleSlotAvailabilityResponse, error) {
	return invoke[ToggleSlotAvailabilityResponse](ctx, c.cc, MethodToggleSlotAvailability, in, opts)
}

func (c *bookingServiceClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*models.Booking, error) {
	return invoke[models.Booking](ctx, c.cc, MethodGetBooking, in, opts)
}

func (c *bookingServiceClient) GetBarberStats(ctx context.Context, in *GetBarberStatsRequest, opts ...grpc.CallOption) (*models.BarberStats, error) {
	return invoke[models.BarberStats](ctx, c.cc, MethodGetBarberStats, in, opts)
}

func (c *bookingServiceClient) SubscribeBookingChanges(ctx context.Context, in *SubscribeBookingChangesRequest, opts ...grpc.CallOption) (BookingChangesClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodSubscribeBookingChanges, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &bookingChangesClientStream{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// BookingChangesClientStream is the client side of SubscribeBookingChanges.
type BookingChangesClientStream interface {
	Recv() (*models.BookingChange, error)
	grpc.ClientStream
}

type bookingChangesClientStream struct {
	grpc.ClientStream
}

func (x *bookingChangesClientStream) Recv() (*models.BookingChange, error) {
	m := new(models.BookingChange)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
