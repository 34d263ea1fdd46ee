package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"barberbook/internal/logging"
	"barberbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Broadcaster fans booking change hints out to live barber sessions.
type Broadcaster interface {
	Publish(ctx context.Context, barberID int64, change models.BookingChange) error
	Subscribe(ctx context.Context, barberID int64) (<-chan models.BookingChange, error)
}

const subscriberBuffer = 32

// RedisBroadcaster uses Redis pub/sub so every API instance sees every change.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

func NewRedisBroadcaster(client *redis.Client, prefix string, logger *zerolog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client: client,
		prefix: prefix,
		logger: logging.Component(logger, "broadcaster"),
	}
}

func (b *RedisBroadcaster) channel(barberID int64) string {
	return b.prefix + strconv.FormatInt(barberID, 10)
}

func (b *RedisBroadcaster) Publish(ctx context.Context, barberID int64, change models.BookingChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(barberID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe returns once the Redis subscription is confirmed. The channel is
// closed when ctx ends.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, barberID int64) (<-chan models.BookingChange, error) {
	ps := b.client.Subscribe(ctx, b.channel(barberID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan models.BookingChange, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change models.BookingChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("drop undecodable change")
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// LocalHub is the in-process broadcaster used when Redis is not configured.
type LocalHub struct {
	mu     sync.RWMutex
	subs   map[int64]map[chan models.BookingChange]struct{}
	logger zerolog.Logger
}

func NewLocalHub(logger *zerolog.Logger) *LocalHub {
	return &LocalHub{
		subs:   make(map[int64]map[chan models.BookingChange]struct{}),
		logger: logging.Component(logger, "local_hub"),
	}
}

// Publish never blocks. A subscriber whose buffer is full misses the hint and
// catches up on its next re-fetch.
func (h *LocalHub) Publish(_ context.Context, barberID int64, change models.BookingChange) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[barberID] {
		select {
		case ch <- change:
		default:
			h.logger.Warn().Int64("barber_id", barberID).Int64("event_id", change.EventID).Msg("subscriber lagging, hint dropped")
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(ctx context.Context, barberID int64) (<-chan models.BookingChange, error) {
	ch := make(chan models.BookingChange, subscriberBuffer)

	h.mu.Lock()
	if h.subs[barberID] == nil {
		h.subs[barberID] = make(map[chan models.BookingChange]struct{})
	}
	h.subs[barberID][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[barberID], ch)
		if len(h.subs[barberID]) == 0 {
			delete(h.subs, barberID)
		}
		h.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Subscribers reports the number of live sessions for a barber.
func (h *LocalHub) Subscribers(barberID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[barberID])
}
