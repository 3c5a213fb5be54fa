package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"hilot/internal/config"
	"hilot/internal/database"
	"hilot/internal/domain"
	"hilot/internal/events"
	"hilot/internal/fees"
	"hilot/internal/metrics"
	"hilot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// bookingNumberAttempts bounds retries when a generated number collides.
const bookingNumberAttempts = 5

// advanceOrder maps each in-service status to its only legal successor.
var advanceOrder = map[string]string{
	models.StatusAccepted:        models.StatusProviderEnRoute,
	models.StatusProviderEnRoute: models.StatusProviderArrived,
	models.StatusProviderArrived: models.StatusInProgress,
	models.StatusInProgress:      models.StatusCompleted,
}

type BookingService struct {
	repo             domain.Repository
	eventBus         domain.EventPublisher
	telemetry        domain.TelemetryRepository
	feePolicy        fees.Policy
	refunds          config.BookingConfig
	arrivalStaleness time.Duration
	logger           *zerolog.Logger
	now              func() time.Time
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, telemetry domain.TelemetryRepository, feePolicy fees.Policy, bookingCfg config.BookingConfig, arrivalStaleness time.Duration, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:             repo,
		eventBus:         eventBus,
		telemetry:        telemetry,
		feePolicy:        feePolicy,
		refunds:          bookingCfg,
		arrivalStaleness: arrivalStaleness,
		logger:           logger,
		now:              time.Now,
	}
}

// CreateBookingRequest carries everything needed to open a booking.
type CreateBookingRequest struct {
	CustomerID    int64
	CustomerName  string
	ProviderID    int64
	ProviderName  string
	ShopID        int64
	ServiceName   string
	ServiceAmount int64
	TravelFee     int64
	PaymentMethod string
	ScheduledAt   time.Time
}

// CreateBooking validates the request, runs cash admission control when the
// payment method is cash, and opens the booking in pending status.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if req.CustomerID == 0 {
		return nil, errors.New("customer is required")
	}
	if req.ProviderID == 0 {
		return nil, errors.New("provider is required")
	}
	if req.ServiceAmount <= 0 {
		return nil, fmt.Errorf("service amount must be positive, got %d", req.ServiceAmount)
	}
	if req.TravelFee < 0 {
		return nil, fmt.Errorf("travel fee cannot be negative, got %d", req.TravelFee)
	}
	switch req.PaymentMethod {
	case models.PaymentCash, models.PaymentGCash, models.PaymentCard:
	default:
		return nil, fmt.Errorf("unknown payment method %q", req.PaymentMethod)
	}
	if req.ScheduledAt.Before(s.now()) {
		return nil, errors.New("scheduled time is in the past")
	}

	totalAmount := req.ServiceAmount + req.TravelFee

	if req.PaymentMethod == models.PaymentCash {
		ownerType, ownerID := cashOwner(req.ProviderID, req.ShopID)
		admission, err := s.CheckCashAdmission(ctx, ownerType, ownerID, totalAmount)
		if err != nil {
			return nil, err
		}
		if !admission.Allowed {
			return nil, &database.InsufficientBalanceError{
				Required:  admission.RequiredFee,
				Available: admission.Balance,
			}
		}
	}

	booking := &models.Booking{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		ProviderID:    req.ProviderID,
		ProviderName:  req.ProviderName,
		ShopID:        req.ShopID,
		ServiceName:   req.ServiceName,
		ServiceAmount: req.ServiceAmount,
		TravelFee:     req.TravelFee,
		TotalAmount:   totalAmount,
		PaymentMethod: req.PaymentMethod,
		ScheduledAt:   req.ScheduledAt,
	}

	var err error
	for attempt := 0; attempt < bookingNumberAttempts; attempt++ {
		booking.BookingNumber = newBookingNumber()
		err = s.repo.CreateBooking(ctx, booking)
		if !errors.Is(err, database.ErrDuplicateBookingNumber) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(models.StatusPending)
	s.publishBookingEvent(events.EventBookingCreated, booking, models.ActorCustomer, "")
	return booking, nil
}

// AcceptBooking moves a pending booking to accepted. Only the assigned
// provider may accept; a losing race surfaces as an invalid transition.
func (s *BookingService) AcceptBooking(ctx context.Context, bookingID, providerID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != providerID {
		return nil, fmt.Errorf("%w: provider %d is not assigned to booking %s",
			database.ErrNotAuthorized, providerID, booking.BookingNumber)
	}

	acceptedAt := s.now()
	err = s.repo.TransitionBookingStatus(ctx, booking.ID, booking.Version, database.StatusChange{
		From:       []string{models.StatusPending},
		To:         models.StatusAccepted,
		AcceptedAt: &acceptedAt,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(models.StatusAccepted)
	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publishBookingEvent(events.EventBookingAccepted, updated, models.ActorProvider, "")
	return updated, nil
}

// RejectBooking lets the assigned provider decline a pending booking.
// The wallet is untouched.
func (s *BookingService) RejectBooking(ctx context.Context, bookingID, providerID int64, reason string) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.ProviderID != providerID {
		return fmt.Errorf("%w: provider %d is not assigned to booking %s",
			database.ErrNotAuthorized, providerID, booking.BookingNumber)
	}

	err = s.repo.TransitionBookingStatus(ctx, booking.ID, booking.Version, database.StatusChange{
		From:   []string{models.StatusPending},
		To:     models.StatusRejected,
		Reason: reason,
	})
	if err != nil {
		return err
	}

	metrics.IncBookingTransition(models.StatusRejected)
	booking.Status = models.StatusRejected
	s.publishBookingEvent(events.EventBookingRejected, booking, models.ActorProvider, reason)
	return nil
}

// AdvanceStatus moves the booking to the next in-service status. Statuses
// cannot be skipped and only the assigned provider may advance. Advancing
// an already completed booking to completed is an idempotent no-op so
// client retries stay safe.
func (s *BookingService) AdvanceStatus(ctx context.Context, bookingID, providerID int64, next string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ProviderID != providerID {
		return nil, fmt.Errorf("%w: provider %d is not assigned to booking %s",
			database.ErrNotAuthorized, providerID, booking.BookingNumber)
	}

	if next == models.StatusCompleted && booking.Status == models.StatusCompleted {
		return booking, nil
	}

	expected, ok := advanceOrder[booking.Status]
	if !ok || expected != next {
		return nil, fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, booking.Status, next)
	}

	if next == models.StatusProviderArrived {
		if err := s.checkArrivalTelemetry(ctx, booking.ProviderID); err != nil {
			return nil, err
		}
	}

	if next == models.StatusCompleted {
		if err := s.settle(ctx, booking); err != nil {
			return nil, err
		}
	} else {
		err = s.repo.TransitionBookingStatus(ctx, booking.ID, booking.Version, database.StatusChange{
			From: []string{booking.Status},
			To:   next,
		})
		if err != nil {
			return nil, err
		}
	}

	metrics.IncBookingTransition(next)
	return s.repo.GetBooking(ctx, bookingID)
}

// CancelBooking cancels on behalf of the customer (pending/accepted only)
// or an administrator (any non-terminal status). The refund owed for
// prepaid bookings is computed against scheduledAt and frozen on the row.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, actorType string, actorID int64, reason string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var from []string
	var refund int64
	switch actorType {
	case models.ActorCustomer:
		if booking.CustomerID != actorID {
			return nil, fmt.Errorf("%w: customer %d does not own booking %s",
				database.ErrNotAuthorized, actorID, booking.BookingNumber)
		}
		from = []string{models.StatusPending, models.StatusAccepted}
		refund = s.refundAmount(booking, s.now())
	case models.ActorAdmin:
		from = []string{
			models.StatusPending, models.StatusAccepted, models.StatusProviderEnRoute,
			models.StatusProviderArrived, models.StatusInProgress,
		}
		// Platform-initiated cancellations refund everything that was prepaid.
		if booking.PaymentMethod != models.PaymentCash {
			refund = booking.TotalAmount
		}
	default:
		return nil, fmt.Errorf("%w: %s cannot cancel bookings", database.ErrNotAuthorized, actorType)
	}

	cancelledAt := s.now()
	err = s.repo.TransitionBookingStatus(ctx, booking.ID, booking.Version, database.StatusChange{
		From:         from,
		To:           models.StatusCancelled,
		Reason:       reason,
		CancelledAt:  &cancelledAt,
		RefundAmount: &refund,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(models.StatusCancelled)
	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publishBookingEvent(events.EventBookingCancelled, updated, actorType, reason)
	return updated, nil
}

// HideBooking flags a booking hidden from one party's list view without
// altering the record.
func (s *BookingService) HideBooking(ctx context.Context, bookingID int64, viewerType string, viewerID int64) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	switch {
	case viewerType == models.ActorCustomer && booking.CustomerID == viewerID:
	case viewerType == models.ActorProvider && booking.ProviderID == viewerID:
	case viewerType == models.ActorShop && booking.ShopID == viewerID:
	default:
		return fmt.Errorf("%w: %s %d is not a party to booking %s",
			database.ErrNotAuthorized, viewerType, viewerID, booking.BookingNumber)
	}
	return s.repo.HideBooking(ctx, bookingID, viewerType, viewerID)
}

// ListBookings returns a party's visible bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, viewerType string, viewerID int64, page, pageSize int) ([]*models.Booking, error) {
	return s.repo.ListBookingsForViewer(ctx, viewerType, viewerID, page, pageSize)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	return s.repo.GetBookingByNumber(ctx, number)
}

// CashAdmission is the outcome of the pre-booking wallet solvency check.
type CashAdmission struct {
	Allowed     bool  `json:"allowed"`
	RequiredFee int64 `json:"required_fee"`
	Balance     int64 `json:"balance"`
	Shortfall   int64 `json:"shortfall"`
	TopUpNeeded int64 `json:"top_up_needed"`
}

// CheckCashAdmission verifies the collecting owner's wallet can cover the
// platform fee a cash booking of this size would incur. Pure pre-condition
// check; nothing is posted.
func (s *BookingService) CheckCashAdmission(ctx context.Context, ownerType string, ownerID int64, totalAmount int64) (*CashAdmission, error) {
	requiredFee, err := s.feePolicy.EstimatePlatformFee(totalAmount)
	if err != nil {
		return nil, err
	}
	balance, err := s.repo.GetWalletBalance(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}

	admission := &CashAdmission{
		Allowed:     balance >= requiredFee,
		RequiredFee: requiredFee,
		Balance:     balance,
	}
	if !admission.Allowed {
		admission.Shortfall = requiredFee - balance
		admission.TopUpNeeded = admission.Shortfall
	}
	return admission, nil
}

// TimeoutPending auto-rejects one pending booking whose accept window has
// elapsed. Called by the sweep; a racing provider accept wins or loses the
// CAS cleanly.
func (s *BookingService) TimeoutPending(ctx context.Context, booking *models.Booking) error {
	err := s.repo.TransitionBookingStatus(ctx, booking.ID, booking.Version, database.StatusChange{
		From:   []string{models.StatusPending},
		To:     models.StatusRejected,
		Reason: models.RejectReasonTimeout,
	})
	if err != nil {
		return err
	}

	metrics.IncAcceptTimeout()
	booking.Status = models.StatusRejected
	s.publishBookingEvent(events.EventBookingRejected, booking, "system", models.RejectReasonTimeout)
	return nil
}

// AcceptDeadline returns when the accept window closes for a booking.
func (s *BookingService) AcceptDeadline(booking *models.Booking) time.Time {
	return booking.CreatedAt.Add(s.refunds.AcceptTimeout())
}

// settle computes the fee split and posts it with the completion flip in
// one atomic unit. Fee percentages are revalidated here on every call so a
// broken configuration blocks settlement instead of posting bad amounts.
func (s *BookingService) settle(ctx context.Context, booking *models.Booking) error {
	split, err := s.feePolicy.Split(booking.TotalAmount, booking.ShopAffiliated())
	if err != nil {
		return err
	}

	postings := settlementPostings(booking, split)
	err = s.repo.SettleBooking(ctx, booking.ID, booking.Version,
		split.PlatformFee, split.ProviderEarning, split.ShopEarning, postings)
	if errors.Is(err, database.ErrBookingSettled) {
		return nil
	}
	if errors.Is(err, database.ErrConcurrentModification) {
		// Lost the race; if the winner completed the booking this retry is
		// a no-op success.
		current, readErr := s.repo.GetBooking(ctx, booking.ID)
		if readErr != nil {
			return readErr
		}
		if current.Status == models.StatusCompleted {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}

	metrics.IncSettlement(booking.PaymentMethod)
	for _, posting := range postings {
		metrics.IncLedgerPosting(posting.Type)
	}
	s.publishSettlementEvent(booking, split)
	return nil
}

// settlementPostings builds the ledger entries for one completed booking.
// Online payments credit earnings out of money the platform collected; cash
// bookings instead debit the platform fee from the collecting owner, who
// already holds the full amount. Admission control checked that wallet at
// creation, so a shortfall here is a race we absorb by allowing negative.
func settlementPostings(booking *models.Booking, split fees.Split) []database.LedgerPosting {
	if booking.PaymentMethod == models.PaymentCash {
		ownerType, ownerID := booking.SettlementOwner()
		return []database.LedgerPosting{{
			OwnerType:     ownerType,
			OwnerID:       ownerID,
			Type:          models.TrxPlatformFee,
			Amount:        split.PlatformFee,
			BookingID:     booking.ID,
			Method:        booking.PaymentMethod,
			Note:          "platform fee for cash booking " + booking.BookingNumber,
			AllowNegative: true,
		}}
	}

	postings := []database.LedgerPosting{{
		OwnerType: models.OwnerProvider,
		OwnerID:   booking.ProviderID,
		Type:      models.TrxEarning,
		Amount:    split.ProviderEarning,
		BookingID: booking.ID,
		Method:    booking.PaymentMethod,
		Note:      "earning for booking " + booking.BookingNumber,
	}}
	if booking.ShopAffiliated() {
		postings = append(postings, database.LedgerPosting{
			OwnerType: models.OwnerShop,
			OwnerID:   booking.ShopID,
			Type:      models.TrxEarning,
			Amount:    split.ShopEarning,
			BookingID: booking.ID,
			Method:    booking.PaymentMethod,
			Note:      "shop share for booking " + booking.BookingNumber,
		})
	}
	return postings
}

// refundAmount applies the time-based cancellation policy against the
// booking's scheduled time. Cash bookings were never prepaid, so there is
// nothing to refund.
func (s *BookingService) refundAmount(booking *models.Booking, now time.Time) int64 {
	if booking.PaymentMethod == models.PaymentCash {
		return 0
	}

	lead := booking.ScheduledAt.Sub(now)
	full := time.Duration(s.refunds.CancellationFullRefundHours) * time.Hour
	partial := time.Duration(s.refunds.CancellationPartialRefundHours) * time.Hour

	switch {
	case lead >= full:
		return booking.TotalAmount
	case lead >= partial:
		return int64(math.Round(float64(booking.TotalAmount) * s.refunds.CancellationPartialRefundPct / 100))
	default:
		return 0
	}
}

func (s *BookingService) checkArrivalTelemetry(ctx context.Context, providerID int64) error {
	if s.telemetry == nil || s.arrivalStaleness <= 0 {
		return nil
	}
	location, err := s.telemetry.GetLocation(ctx, providerID)
	if err != nil {
		// The feed is advisory infrastructure; never block arrival on its
		// outage, only on stale data it did deliver.
		s.logger.Warn().Err(err).Int64("provider_id", providerID).Msg("telemetry lookup failed")
		return nil
	}
	if location == nil {
		return fmt.Errorf("%w: no location report for provider %d", database.ErrInvalidTransition, providerID)
	}
	if !location.FreshWithin(s.arrivalStaleness, s.now()) {
		return fmt.Errorf("%w: provider %d location report is stale", database.ErrInvalidTransition, providerID)
	}
	return nil
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking, changedBy, reason string) {
	if s.eventBus == nil {
		return
	}
	changedAt := s.now()
	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		CustomerID:    booking.CustomerID,
		ProviderID:    booking.ProviderID,
		ShopID:        booking.ShopID,
		Status:        booking.Status,
		Reason:        reason,
		PaymentMethod: booking.PaymentMethod,
		TotalAmount:   booking.TotalAmount,
		RefundAmount:  booking.RefundAmount,
		ScheduledAt:   booking.ScheduledAt,
		ChangedBy:     changedBy,
		ChangedAt:     &changedAt,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) publishSettlementEvent(booking *models.Booking, split fees.Split) {
	if s.eventBus == nil {
		return
	}
	payload := events.SettlementEventPayload{
		BookingID:       booking.ID,
		BookingNumber:   booking.BookingNumber,
		ProviderID:      booking.ProviderID,
		ShopID:          booking.ShopID,
		PaymentMethod:   booking.PaymentMethod,
		TotalAmount:     booking.TotalAmount,
		PlatformFee:     split.PlatformFee,
		ProviderEarning: split.ProviderEarning,
		ShopEarning:     split.ShopEarning,
	}
	if err := s.eventBus.PublishJSON(events.EventBookingSettled, payload); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("publish settlement event error")
	}
}

func cashOwner(providerID, shopID int64) (string, int64) {
	if shopID != 0 {
		return models.OwnerShop, shopID
	}
	return models.OwnerProvider, providerID
}

func newBookingNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "HB-" + raw[:10]
}
