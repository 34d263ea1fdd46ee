package client

import (
	"context"
	"errors"
	"io"
	"strconv"

	"barberbook/internal/api/bookingv1"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// StreamSubscriber receives booking change hints over gRPC. It satisfies
// domain.ChangeSubscriber, so a Dashboard can run against a remote server.
type StreamSubscriber struct {
	client   bookingv1.BookingServiceClient
	actorID  int64
	apiKey   string
	apiExtra string
	logger   zerolog.Logger
}

func NewStreamSubscriber(cc grpc.ClientConnInterface, apiKey, apiExtra string, actorID int64, logger *zerolog.Logger) *StreamSubscriber {
	return &StreamSubscriber{
		client:   bookingv1.NewBookingServiceClient(cc),
		actorID:  actorID,
		apiKey:   apiKey,
		apiExtra: apiExtra,
		logger:   logger.With().Str("component", "change_stream").Logger(),
	}
}

func (s *StreamSubscriber) outgoing(ctx context.Context) context.Context {
	kv := []string{"x-user-id", strconv.FormatInt(s.actorID, 10)}
	if s.apiKey != "" {
		kv = append(kv, "x-api-key", s.apiKey, "x-api-extra", s.apiExtra)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// Subscribe opens the stream and forwards hints until ctx ends or the
// server closes it. The channel is closed afterwards.
func (s *StreamSubscriber) Subscribe(ctx context.Context, barberID int64) (<-chan models.BookingChange, error) {
	stream, err := s.client.SubscribeBookingChanges(s.outgoing(ctx), &bookingv1.SubscribeBookingChangesRequest{BarberID: barberID})
	if err != nil {
		return nil, err
	}

	out := make(chan models.BookingChange)
	go func() {
		defer close(out)
		for {
			change, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
					s.logger.Warn().Err(err).Int64("barber_id", barberID).Msg("change stream ended")
				}
				return
			}
			select {
			case out <- *change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
