package worker

import (
	"context"
	"errors"
	"time"

	"hilot/internal/database"
	"hilot/internal/metrics"
	"hilot/internal/models"

	"github.com/rs/zerolog"
)

// BookingTimeouts is the slice of the booking service the sweeper needs.
type BookingTimeouts interface {
	TimeoutPending(ctx context.Context, booking *models.Booking) error
}

// PendingLister reads the sweep candidates.
type PendingLister interface {
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)
}

// TimeoutSweeper auto-rejects pending bookings whose accept window elapsed.
// It runs independently of request handling; each booking is swept through
// the same CAS transition providers use, so a racing accept resolves to a
// single winner.
type TimeoutSweeper struct {
	bookings PendingLister
	timeouts BookingTimeouts
	window   time.Duration
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewTimeoutSweeper(bookings PendingLister, timeouts BookingTimeouts, window, interval time.Duration, logger *zerolog.Logger) *TimeoutSweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &TimeoutSweeper{
		bookings: bookings,
		timeouts: timeouts,
		window:   window,
		interval: interval,
		logger:   logger.With().Str("component", "timeout-sweeper").Logger(),
		now:      time.Now,
	}
}

// Run sweeps until the context is cancelled. A single booking's failure is
// logged and skipped; it never stops the loop or the rest of the batch.
func (w *TimeoutSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().Dur("window", w.window).Dur("interval", w.interval).Msg("timeout sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("timeout sweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce processes every pending booking past its accept deadline.
func (w *TimeoutSweeper) SweepOnce(ctx context.Context) {
	cutoff := w.now().Add(-w.window)
	expired, err := w.bookings.ListPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		metrics.IncSweepError()
		w.logger.Error().Err(err).Msg("list expired bookings")
		return
	}

	for _, booking := range expired {
		if err := w.timeouts.TimeoutPending(ctx, booking); err != nil {
			// An invalid transition means a provider accepted between the
			// listing and the swap; that is the race resolving correctly.
			if errors.Is(err, database.ErrInvalidTransition) || errors.Is(err, database.ErrConcurrentModification) {
				continue
			}
			metrics.IncSweepError()
			w.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("timeout booking")
			continue
		}
		w.logger.Info().
			Int64("booking_id", booking.ID).
			Str("booking_number", booking.BookingNumber).
			Msg("booking auto-rejected on accept timeout")
	}
}
