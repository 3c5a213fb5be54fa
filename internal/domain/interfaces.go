package domain

import (
	"context"
	"time"

	"hilot/internal/database"
	"hilot/internal/models"
)

// Repository is the persistence surface the services depend on.
type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error)
	TransitionBookingStatus(ctx context.Context, id, version int64, change database.StatusChange) error
	SettleBooking(ctx context.Context, id, version int64, platformFee, providerEarning, shopEarning int64, postings []database.LedgerPosting) error
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)
	ListBookingsForViewer(ctx context.Context, viewerType string, viewerID int64, page, pageSize int) ([]*models.Booking, error)
	HideBooking(ctx context.Context, bookingID int64, viewerType string, viewerID int64) error
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)

	PostTransaction(ctx context.Context, posting database.LedgerPosting) (*models.WalletTransaction, error)
	GetWalletBalance(ctx context.Context, ownerType string, ownerID int64) (int64, error)
	SumTransactions(ctx context.Context, ownerType string, ownerID int64) (int64, error)
	ListTransactions(ctx context.Context, ownerType string, ownerID int64, page, pageSize int) ([]*models.WalletTransaction, int64, error)

	CreatePayoutWithDebit(ctx context.Context, payout *models.Payout) error
	GetPayout(ctx context.Context, id int64) (*models.Payout, error)
	CompletePayout(ctx context.Context, id, version int64, referenceNumber string) error
	MarkPayoutProcessing(ctx context.Context, id, version int64) error
	RejectPayoutWithRefund(ctx context.Context, id, version int64, reason string) error
	ListPayouts(ctx context.Context, ownerType string, ownerID int64, page, pageSize int) ([]*models.Payout, int64, error)
	ListOpenPayouts(ctx context.Context) ([]*models.Payout, error)
}

// EventPublisher fans domain events out to in-process consumers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TelemetryRepository reads the provider location feed. The engine only
// consumes it to gate the arrival transition.
type TelemetryRepository interface {
	GetLocation(ctx context.Context, providerID int64) (*models.ProviderLocation, error)
	SetLocation(ctx context.Context, location *models.ProviderLocation) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ReportSink receives settlement rows for external reporting.
type ReportSink interface {
	AppendSettlement(ctx context.Context, booking *models.Booking) error
}
