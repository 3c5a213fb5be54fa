package repository

import (
	"context"
	"sync/atomic"
	"time"

	"hilot/internal/domain"
	"hilot/internal/models"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long the failover waits before probing the
// primary again.
const recoveryInterval = time.Minute

// FailoverTelemetryRepository serves from the primary store until it
// errors, then from the fallback, probing the primary periodically.
type FailoverTelemetryRepository struct {
	primary   domain.TelemetryRepository
	fallback  domain.TelemetryRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverTelemetryRepository(primary, fallback domain.TelemetryRepository, logger *zerolog.Logger) *FailoverTelemetryRepository {
	return &FailoverTelemetryRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverTelemetryRepository) GetLocation(ctx context.Context, providerID int64) (*models.ProviderLocation, error) {
	if r.primaryUsable() {
		location, err := r.primary.GetLocation(ctx, providerID)
		if err == nil {
			r.isDown.Store(false)
			return location, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetLocation(ctx, providerID)
}

func (r *FailoverTelemetryRepository) SetLocation(ctx context.Context, location *models.ProviderLocation) error {
	if r.primaryUsable() {
		err := r.primary.SetLocation(ctx, location)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetLocation(ctx, location)
}

func (r *FailoverTelemetryRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.primaryUsable() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

// primaryUsable reports whether the primary should be tried: either it is
// healthy, or enough time passed since the last failure to probe again.
func (r *FailoverTelemetryRepository) primaryUsable() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return time.Since(last) > recoveryInterval
}

func (r *FailoverTelemetryRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary telemetry store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}
