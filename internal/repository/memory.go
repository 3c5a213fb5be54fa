package repository

import (
	"context"
	"sync"
	"time"

	"hilot/internal/models"
)

// MemoryTelemetryRepository keeps the location feed in process, used as a
// standalone store in tests and as the failover target in production.
type MemoryTelemetryRepository struct {
	locations  sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryTelemetryRepository(ttl time.Duration) *MemoryTelemetryRepository {
	return &MemoryTelemetryRepository{ttl: ttl}
}

func (r *MemoryTelemetryRepository) GetLocation(ctx context.Context, providerID int64) (*models.ProviderLocation, error) {
	val, ok := r.locations.Load(providerID)
	if !ok {
		return nil, nil
	}
	location := val.(*models.ProviderLocation)
	if r.ttl > 0 && time.Since(location.ReportedAt) > r.ttl {
		r.locations.Delete(providerID)
		return nil, nil
	}
	return location, nil
}

func (r *MemoryTelemetryRepository) SetLocation(ctx context.Context, location *models.ProviderLocation) error {
	r.locations.Store(location.ProviderID, location)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryTelemetryRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
