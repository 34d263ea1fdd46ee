package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisScheduleCache keeps rendered day schedules in Redis under
// schedule:<barber>:<date>.
type RedisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisScheduleCache(client *redis.Client, ttl time.Duration) *RedisScheduleCache {
	return &RedisScheduleCache{client: client, ttl: ttl}
}

func scheduleKey(barberID int64, date string) string {
	return fmt.Sprintf("schedule:%d:%s", barberID, date)
}

func (r *RedisScheduleCache) Get(ctx context.Context, barberID int64, date string) ([]models.Slot, bool, error) {
	if r.client == nil {
		return nil, false, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, scheduleKey(barberID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get schedule from redis: %w", err)
	}

	var slots []models.Slot
	if err := json.Unmarshal(val, &slots); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return slots, true, nil
}

func (r *RedisScheduleCache) Set(ctx context.Context, barberID int64, date string, slots []models.Slot) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	if err := r.client.Set(ctx, scheduleKey(barberID, date), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set schedule in redis: %w", err)
	}
	return nil
}

func (r *RedisScheduleCache) Invalidate(ctx context.Context, barberID int64, date string) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := r.client.Del(ctx, scheduleKey(barberID, date)).Err(); err != nil {
		return fmt.Errorf("failed to delete schedule from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
