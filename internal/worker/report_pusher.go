package worker

import (
	"context"
	"encoding/json"
	"time"

	"hilot/internal/domain"
	"hilot/internal/events"
	"hilot/internal/models"

	"github.com/rs/zerolog"
)

// ReportPusher drains settlement events into an external report sink with
// retry. Delivery is best effort: the ledger stays authoritative, the sink
// is a mirror.
type ReportPusher struct {
	repo   domain.Repository
	sink   domain.ReportSink
	policy RetryPolicy
	queue  chan int64
	logger zerolog.Logger
}

func NewReportPusher(repo domain.Repository, sink domain.ReportSink, policy RetryPolicy, logger *zerolog.Logger) *ReportPusher {
	return &ReportPusher{
		repo:   repo,
		sink:   sink,
		policy: policy,
		queue:  make(chan int64, models.WorkerQueueSize),
		logger: logger.With().Str("component", "report-pusher").Logger(),
	}
}

// Subscribe enqueues settled bookings from the event bus. The handler never
// blocks publishers: a full queue drops the row with a log line.
func (p *ReportPusher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingSettled, func(event *events.Event) error {
		var payload events.SettlementEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		select {
		case p.queue <- payload.BookingID:
		default:
			p.logger.Warn().Int64("booking_id", payload.BookingID).Msg("report queue full, dropping row")
		}
		return nil
	})
}

// Run delivers queued rows until the context is cancelled.
func (p *ReportPusher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bookingID := <-p.queue:
			p.deliver(ctx, bookingID)
		}
	}
}

func (p *ReportPusher) deliver(ctx context.Context, bookingID int64) {
	booking, err := p.repo.GetBooking(ctx, bookingID)
	if err != nil {
		p.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("report row fetch failed")
		return
	}

	for attempt := 1; attempt <= p.policy.MaxRetries; attempt++ {
		err = p.sink.AppendSettlement(ctx, booking)
		if err == nil {
			p.logger.Debug().Int64("booking_id", bookingID).Msg("settlement row delivered")
			return
		}

		delay := p.policy.NextDelay(attempt)
		p.logger.Warn().Err(err).
			Int64("booking_id", bookingID).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("report delivery failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	p.logger.Error().Int64("booking_id", bookingID).Msg("report delivery abandoned after retries")
}
