package service

import (
	"context"
	"fmt"

	"hilot/internal/config"
	"hilot/internal/database"
	"hilot/internal/domain"
	"hilot/internal/events"
	"hilot/internal/metrics"
	"hilot/internal/models"

	"github.com/rs/zerolog"
)

type PayoutService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	cfg      config.PayoutConfig
	logger   *zerolog.Logger
}

func NewPayoutService(repo domain.Repository, eventBus domain.EventPublisher, cfg config.PayoutConfig, logger *zerolog.Logger) *PayoutService {
	return &PayoutService{repo: repo, eventBus: eventBus, cfg: cfg, logger: logger}
}

// RequestPayout reserves the amount immediately: the PAYOUT debit posts in
// the same transaction that creates the pending record, so the balance can
// never be spent twice while an admin reviews the request.
func (s *PayoutService) RequestPayout(ctx context.Context, ownerType string, ownerID, amount int64, method, accountInfo string) (*models.Payout, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return nil, err
	}
	if amount < s.cfg.MinAmount {
		return nil, fmt.Errorf("payout amount %d is below the minimum %d", amount, s.cfg.MinAmount)
	}
	if amount <= s.cfg.FlatFee {
		return nil, fmt.Errorf("payout amount %d does not cover the %d fee", amount, s.cfg.FlatFee)
	}
	if method == "" {
		return nil, fmt.Errorf("payout method is required")
	}

	payout := &models.Payout{
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		Amount:      amount,
		Fee:         s.cfg.FlatFee,
		NetAmount:   amount - s.cfg.FlatFee,
		Method:      method,
		AccountInfo: accountInfo,
	}

	if err := s.repo.CreatePayoutWithDebit(ctx, payout); err != nil {
		return nil, err
	}

	metrics.IncLedgerPosting(models.TrxPayout)
	metrics.IncPayout(models.PayoutPending)
	s.publishPayoutEvent(events.EventPayoutRequested, payout)
	return payout, nil
}

// ProcessPayout completes an open payout with the external transfer's
// reference number. Admin-only. The reserving debit already happened, so
// no ledger entry is posted.
func (s *PayoutService) ProcessPayout(ctx context.Context, payoutID int64, actorType, referenceNumber string) (*models.Payout, error) {
	if err := requireAdmin(actorType); err != nil {
		return nil, err
	}
	if referenceNumber == "" {
		return nil, fmt.Errorf("reference number is required to complete a payout")
	}

	payout, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CompletePayout(ctx, payout.ID, payout.Version, referenceNumber); err != nil {
		return nil, err
	}

	metrics.IncPayout(models.PayoutCompleted)
	updated, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	s.publishPayoutEvent(events.EventPayoutCompleted, updated)
	return updated, nil
}

// MarkProcessing flags a pending payout as being worked on. Admin-only.
func (s *PayoutService) MarkProcessing(ctx context.Context, payoutID int64, actorType string) error {
	if err := requireAdmin(actorType); err != nil {
		return err
	}
	payout, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return err
	}
	return s.repo.MarkPayoutProcessing(ctx, payout.ID, payout.Version)
}

// RejectPayout declines an open payout and reverses the reservation with an
// offsetting REFUND credit. The owner's balance ends numerically where it
// was before the request, via two distinct rows.
func (s *PayoutService) RejectPayout(ctx context.Context, payoutID int64, actorType, reason string) (*models.Payout, error) {
	if err := requireAdmin(actorType); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required")
	}

	payout, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RejectPayoutWithRefund(ctx, payout.ID, payout.Version, reason); err != nil {
		return nil, err
	}

	metrics.IncPayout(models.PayoutRejected)
	metrics.IncLedgerPosting(models.TrxRefund)
	updated, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	s.publishPayoutEvent(events.EventPayoutRejected, updated)
	return updated, nil
}

func (s *PayoutService) GetPayout(ctx context.Context, id int64) (*models.Payout, error) {
	return s.repo.GetPayout(ctx, id)
}

// GetPayoutHistory returns one page of an owner's payouts, newest first.
func (s *PayoutService) GetPayoutHistory(ctx context.Context, ownerType string, ownerID int64, page, pageSize int) ([]*models.Payout, int64, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListPayouts(ctx, ownerType, ownerID, page, pageSize)
}

// ListOpenPayouts returns the admin review queue.
func (s *PayoutService) ListOpenPayouts(ctx context.Context, actorType string) ([]*models.Payout, error) {
	if err := requireAdmin(actorType); err != nil {
		return nil, err
	}
	return s.repo.ListOpenPayouts(ctx)
}

func (s *PayoutService) publishPayoutEvent(eventType string, payout *models.Payout) {
	if s.eventBus == nil {
		return
	}
	payload := events.PayoutEventPayload{
		PayoutID:        payout.ID,
		OwnerType:       payout.OwnerType,
		OwnerID:         payout.OwnerID,
		Amount:          payout.Amount,
		NetAmount:       payout.NetAmount,
		Method:          payout.Method,
		Status:          payout.Status,
		ReferenceNumber: payout.ReferenceNumber,
		FailureReason:   payout.FailureReason,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Int64("payout_id", payout.ID).Msg("publish payout event error")
	}
}

func requireAdmin(actorType string) error {
	if actorType != models.ActorAdmin {
		return fmt.Errorf("%w: %s cannot manage payouts", database.ErrNotAuthorized, actorType)
	}
	return nil
}
