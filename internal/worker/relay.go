package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/events"
	"barberbook/internal/logging"
	"barberbook/internal/metrics"
	"barberbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	outboxRetention = 7 * 24 * time.Hour
	purgeEvery      = time.Hour
)

// OutboxStore is the slice of the database the relay needs.
type OutboxStore interface {
	GetPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	GetFailedOutbox(ctx context.Context) ([]models.OutboxEvent, error)
	UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	PurgeOutbox(ctx context.Context, olderThan time.Time) (int64, error)
}

// Relay drains the outbox into the broadcaster. Delivery is at-least-once:
// a row is marked completed only after the publish succeeded.
type Relay struct {
	store         OutboxStore
	broadcaster   Broadcaster
	redis         *redis.Client
	retryPolicy   RetryPolicy
	pollInterval  time.Duration
	batchSize     int
	deadLetterKey string
	wake          chan struct{}
	lastPurge     time.Time
	logger        zerolog.Logger
	now           func() time.Time
}

// NewRelay builds a relay with sane defaults. redisClient only carries the
// dead-letter list and may be nil.
func NewRelay(store OutboxStore, broadcaster Broadcaster, redisClient *redis.Client, cfg config.RelayConfig, logger *zerolog.Logger) *Relay {
	retry := PolicyFromConfig(cfg)
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.DeadLetterKey == "" {
		cfg.DeadLetterKey = "bookings:outbox:dead"
	}

	return &Relay{
		store:         store,
		broadcaster:   broadcaster,
		redis:         redisClient,
		retryPolicy:   retry,
		pollInterval:  cfg.PollInterval,
		batchSize:     cfg.BatchSize,
		deadLetterKey: cfg.DeadLetterKey,
		wake:          make(chan struct{}, 1),
		logger:        logging.Component(logger, "relay"),
		now:           time.Now,
	}
}

// Notify wakes the relay ahead of its next poll. It never blocks.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Listen wakes the relay whenever a booking change commits in this process.
func (r *Relay) Listen(bus *events.EventBus) {
	bus.Subscribe(func(*events.Event) error {
		r.Notify()
		return nil
	}, events.EventBookingRequested, events.EventBookingTransitioned)
}

// Start runs until ctx is done.
func (r *Relay) Start(ctx context.Context) {
	r.logger.Info().Dur("poll_interval", r.pollInterval).Msg("relay started")
	defer r.logger.Info().Msg("relay stopped")

	if failed, err := r.store.GetFailedOutbox(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to count dead outbox events")
	} else if len(failed) > 0 {
		r.logger.Warn().Int("count", len(failed)).Msg("outbox has undelivered failed events")
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("relay pass failed")
		}
		r.maybePurge(ctx)

		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		case <-ticker.C:
		}
	}
}

// RunOnce delivers every due event in batches and returns how many were
// published. A failed status write ends the pass: the row is still due, and
// fetching it again at once would republish it in a loop.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	published := 0
	for {
		pending, err := r.store.GetPendingOutbox(ctx, r.batchSize)
		if err != nil {
			return published, fmt.Errorf("fetch pending outbox: %w", err)
		}
		for i := range pending {
			ok, err := r.process(ctx, &pending[i])
			if ok {
				published++
			}
			if err != nil {
				return published, fmt.Errorf("outbox event %d: %w", pending[i].ID, err)
			}
		}
		if len(pending) < r.batchSize || ctx.Err() != nil {
			return published, ctx.Err()
		}
	}
}

// process publishes one event and records the outcome. The error is set only
// when the outcome could not be stored.
func (r *Relay) process(ctx context.Context, ev *models.OutboxEvent) (bool, error) {
	var booking models.Booking
	if err := json.Unmarshal([]byte(ev.Payload), &booking); err != nil {
		return false, r.fail(ctx, ev, fmt.Errorf("decode payload: %w", err))
	}

	change := models.BookingChange{
		EventID:    ev.ID,
		Event:      ev.EventType,
		Booking:    booking,
		OccurredAt: ev.CreatedAt,
	}
	if err := r.broadcaster.Publish(ctx, ev.BarberID, change); err != nil {
		return false, r.retryOrFail(ctx, ev, err)
	}
	metrics.IncRelayPublished()
	metrics.ObserveRelayLag(r.now().Sub(ev.CreatedAt))

	if err := r.store.UpdateOutboxStatus(ctx, ev.ID, models.OutboxCompleted, "", nil); err != nil {
		return true, fmt.Errorf("mark completed: %w", err)
	}
	return true, nil
}

func (r *Relay) retryOrFail(ctx context.Context, ev *models.OutboxEvent, cause error) error {
	attempt := ev.RetryCount + 1
	if attempt >= r.retryPolicy.MaxRetries {
		return r.fail(ctx, ev, cause)
	}

	next := r.now().Add(r.retryPolicy.NextDelay(attempt))
	if err := r.store.UpdateOutboxStatus(ctx, ev.ID, models.OutboxRetry, cause.Error(), &next); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	metrics.IncRelayRetried()
	r.logger.Warn().Err(cause).Int64("event_id", ev.ID).Int("attempt", attempt).Time("next_retry_at", next).Msg("relay publish failed, will retry")
	return nil
}

func (r *Relay) fail(ctx context.Context, ev *models.OutboxEvent, cause error) error {
	if err := r.store.UpdateOutboxStatus(ctx, ev.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	metrics.IncRelayFailed()
	r.logger.Error().Err(cause).Int64("event_id", ev.ID).Int64("booking_id", ev.BookingID).Msg("outbox event given up")
	r.pushDeadLetter(ctx, ev, cause)
	return nil
}

func (r *Relay) pushDeadLetter(ctx context.Context, ev *models.OutboxEvent, cause error) {
	if r.redis == nil {
		return
	}
	dead := *ev
	msg := cause.Error()
	dead.Status = models.OutboxFailed
	dead.LastError = &msg

	data, err := json.Marshal(dead)
	if err != nil {
		r.logger.Error().Err(err).Int64("event_id", ev.ID).Msg("failed to encode dead letter")
		return
	}
	if err := r.redis.LPush(ctx, r.deadLetterKey, data).Err(); err != nil {
		r.logger.Error().Err(err).Int64("event_id", ev.ID).Msg("failed to push dead letter")
	}
}

func (r *Relay) maybePurge(ctx context.Context) {
	now := r.now()
	if now.Sub(r.lastPurge) < purgeEvery {
		return
	}
	r.lastPurge = now

	n, err := r.store.PurgeOutbox(ctx, now.Add(-outboxRetention))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to purge outbox")
		return
	}
	if n > 0 {
		r.logger.Info().Int64("purged", n).Msg("purged delivered outbox events")
	}
}
