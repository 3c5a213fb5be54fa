package service

import (
	"context"
	"fmt"

	"hilot/internal/database"
	"hilot/internal/domain"
	"hilot/internal/events"
	"hilot/internal/metrics"
	"hilot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type WalletService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewWalletService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *WalletService {
	return &WalletService{repo: repo, eventBus: eventBus, logger: logger}
}

// TopUp credits the owner's wallet, used to pre-fund platform-fee
// collection for cash bookings. Reference defaults to a generated id when
// the gateway did not supply one.
func (s *WalletService) TopUp(ctx context.Context, ownerType string, ownerID, amount int64, method, reference string) (*models.WalletTransaction, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("top-up amount must be positive, got %d", amount)
	}
	if reference == "" {
		reference = "TU-" + uuid.NewString()[:8]
	}

	trx, err := s.repo.PostTransaction(ctx, database.LedgerPosting{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Type:      models.TrxTopUp,
		Amount:    amount,
		Method:    method,
		Reference: reference,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLedgerPosting(models.TrxTopUp)
	s.publishWalletEvent(trx)
	return trx, nil
}

// Adjust posts a signed correction entry. Admin-only at the boundary; the
// ledger stays append-only, so corrections never edit existing rows.
func (s *WalletService) Adjust(ctx context.Context, ownerType string, ownerID, signedAmount int64, note string) (*models.WalletTransaction, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return nil, err
	}

	trx, err := s.repo.PostTransaction(ctx, database.LedgerPosting{
		OwnerType:     ownerType,
		OwnerID:       ownerID,
		Type:          models.TrxAdjustment,
		Amount:        signedAmount,
		Note:          note,
		AllowNegative: true,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLedgerPosting(models.TrxAdjustment)
	return trx, nil
}

func (s *WalletService) GetBalance(ctx context.Context, ownerType string, ownerID int64) (int64, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return 0, err
	}
	return s.repo.GetWalletBalance(ctx, ownerType, ownerID)
}

func (s *WalletService) ListTransactions(ctx context.Context, ownerType string, ownerID int64, page, pageSize int) ([]*models.WalletTransaction, int64, error) {
	if err := validateOwner(ownerType, ownerID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListTransactions(ctx, ownerType, ownerID, page, pageSize)
}

// VerifyLedger replays an owner's ledger and compares it against the
// materialized balance. Used by operational checks; a mismatch means the
// atomicity contract was broken somewhere.
func (s *WalletService) VerifyLedger(ctx context.Context, ownerType string, ownerID int64) error {
	balance, err := s.repo.GetWalletBalance(ctx, ownerType, ownerID)
	if err != nil {
		return err
	}
	replayed, err := s.repo.SumTransactions(ctx, ownerType, ownerID)
	if err != nil {
		return err
	}
	if balance != replayed {
		return fmt.Errorf("ledger mismatch for %s %d: balance %d, replay %d",
			ownerType, ownerID, balance, replayed)
	}
	return nil
}

func (s *WalletService) publishWalletEvent(trx *models.WalletTransaction) {
	if s.eventBus == nil {
		return
	}
	payload := events.WalletEventPayload{
		OwnerType:    trx.OwnerType,
		OwnerID:      trx.OwnerID,
		Amount:       trx.Amount,
		BalanceAfter: trx.BalanceAfter,
		Method:       trx.Method,
		Reference:    trx.Reference,
	}
	if err := s.eventBus.PublishJSON(events.EventWalletTopUp, payload); err != nil {
		s.logger.Error().Err(err).Int64("owner_id", trx.OwnerID).Msg("publish wallet event error")
	}
}

func validateOwner(ownerType string, ownerID int64) error {
	if ownerType != models.OwnerProvider && ownerType != models.OwnerShop {
		return fmt.Errorf("unknown owner type %q", ownerType)
	}
	if ownerID == 0 {
		return fmt.Errorf("owner id is required")
	}
	return nil
}
