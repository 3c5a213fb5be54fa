package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hilot/internal/config"
	"hilot/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisTelemetryRepository stores the provider location feed. Entries
// expire on their own; the engine only ever reads the latest report.
type RedisTelemetryRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisTelemetryRepository(client *redis.Client, ttl time.Duration) *RedisTelemetryRepository {
	return &RedisTelemetryRepository{client: client, ttl: ttl}
}

func (r *RedisTelemetryRepository) GetLocation(ctx context.Context, providerID int64) (*models.ProviderLocation, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := locationKey(providerID)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location from redis: %w", err)
	}

	var location models.ProviderLocation
	if err := json.Unmarshal([]byte(val), &location); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location: %w", err)
	}
	return &location, nil
}

func (r *RedisTelemetryRepository) SetLocation(ctx context.Context, location *models.ProviderLocation) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	key := locationKey(location.ProviderID)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set location in redis: %w", err)
	}
	return nil
}

func (r *RedisTelemetryRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	counterKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, counterKey, window)
	}
	return count <= int64(limit), nil
}

func locationKey(providerID int64) string {
	return fmt.Sprintf("provider_location:%d", providerID)
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
