package service

import (
	"context"
	"testing"
	"time"

	"hilot/internal/config"
	"hilot/internal/database"
	"hilot/internal/events"
	"hilot/internal/fees"
	"hilot/internal/metrics"
	"hilot/internal/models"
	"hilot/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() fees.Policy {
	return fees.Policy{
		PlatformPct:            20,
		ShopPct:                30,
		ProviderShopPct:        50,
		ProviderIndependentPct: 80,
	}
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		AcceptTimeoutSeconds:           30,
		SweepIntervalSeconds:           5,
		CancellationFullRefundHours:    24,
		CancellationPartialRefundHours: 12,
		CancellationPartialRefundPct:   70,
	}
}

func newTestBookingService(t *testing.T) (*BookingService, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := NewBookingService(db, events.NewEventBus(), nil, testPolicy(), testBookingConfig(), 0, &logger)
	return svc, db
}

func validRequest() CreateBookingRequest {
	return CreateBookingRequest{
		CustomerID:    1,
		CustomerName:  "Test Customer",
		ProviderID:    101,
		ProviderName:  "Test Provider",
		ServiceName:   "Swedish Massage 60min",
		ServiceAmount: 100000,
		TravelFee:     15000,
		PaymentMethod: models.PaymentGCash,
		ScheduledAt:   time.Now().Add(48 * time.Hour),
	}
}

func topUp(t *testing.T, db *database.DB, ownerType string, ownerID, amount int64) {
	t.Helper()
	_, err := db.PostTransaction(context.Background(), database.LedgerPosting{
		OwnerType: ownerType, OwnerID: ownerID, Type: models.TrxTopUp, Amount: amount,
	})
	require.NoError(t, err)
}

func completeBooking(t *testing.T, svc *BookingService, bookingID, providerID int64) *models.Booking {
	t.Helper()
	ctx := context.Background()
	_, err := svc.AcceptBooking(ctx, bookingID, providerID)
	require.NoError(t, err)
	var booking *models.Booking
	for _, next := range []string{
		models.StatusProviderEnRoute, models.StatusProviderArrived,
		models.StatusInProgress, models.StatusCompleted,
	} {
		booking, err = svc.AdvanceStatus(ctx, bookingID, providerID, next)
		require.NoError(t, err)
	}
	return booking
}

func TestCreateBooking(t *testing.T) {
	svc, _ := newTestBookingService(t)

	booking, err := svc.CreateBooking(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotZero(t, booking.ID)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, int64(115000), booking.TotalAmount)
	assert.Regexp(t, `^HB-[0-9A-F]{10}$`, booking.BookingNumber)
}

func TestCreateBooking_Validation(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateBookingRequest)
	}{
		{"missing customer", func(r *CreateBookingRequest) { r.CustomerID = 0 }},
		{"missing provider", func(r *CreateBookingRequest) { r.ProviderID = 0 }},
		{"zero amount", func(r *CreateBookingRequest) { r.ServiceAmount = 0 }},
		{"negative travel fee", func(r *CreateBookingRequest) { r.TravelFee = -1 }},
		{"bad payment method", func(r *CreateBookingRequest) { r.PaymentMethod = "barter" }},
		{"scheduled in the past", func(r *CreateBookingRequest) { r.ScheduledAt = time.Now().Add(-time.Hour) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.CreateBooking(ctx, req)
			assert.Error(t, err)
		})
	}
}

func TestCreateBooking_CashAdmission(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	req := validRequest()
	req.PaymentMethod = models.PaymentCash

	// Empty wallet: the booking is refused with the shortfall.
	_, err := svc.CreateBooking(ctx, req)
	require.Error(t, err)
	ibe, ok := database.AsInsufficientBalance(err)
	require.True(t, ok)
	assert.Equal(t, int64(23000), ibe.Required)
	assert.Equal(t, int64(23000), ibe.Shortfall())

	// Exact fee coverage admits the booking.
	topUp(t, db, models.OwnerProvider, 101, 23000)
	booking, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, booking.Status)
}

func TestCreateBooking_CashAdmissionShopWallet(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	req := validRequest()
	req.PaymentMethod = models.PaymentCash
	req.ShopID = 5

	// The shop collects cash for affiliated providers, so its wallet is the
	// one checked.
	topUp(t, db, models.OwnerProvider, 101, 50000)
	_, err := svc.CreateBooking(ctx, req)
	assert.ErrorIs(t, err, database.ErrInsufficientBalance)

	topUp(t, db, models.OwnerShop, 5, 23000)
	_, err = svc.CreateBooking(ctx, req)
	assert.NoError(t, err)
}

func TestAcceptBooking(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	accepted, err := svc.AcceptBooking(ctx, booking.ID, 101)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)
}

func TestAcceptBooking_WrongProvider(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.AcceptBooking(ctx, booking.ID, 999)
	assert.ErrorIs(t, err, database.ErrNotAuthorized)
}

func TestRejectBooking(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, svc.RejectBooking(ctx, booking.ID, 101, "fully booked"))

	got, err := svc.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "fully booked", got.StatusReason)

	// Terminal: accepting afterwards fails.
	_, err = svc.AcceptBooking(ctx, booking.ID, 101)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestAdvanceStatus_NoSkipping(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.AcceptBooking(ctx, booking.ID, 101)
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(ctx, booking.ID, 101, models.StatusInProgress)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestAdvanceStatus_SettlesOnlineIndependent(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	completed := completeBooking(t, svc, booking.ID, 101)

	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.True(t, completed.Settled())
	assert.Equal(t, int64(23000), completed.PlatformFee)
	assert.Equal(t, int64(92000), completed.ProviderEarning)
	assert.Equal(t, int64(0), completed.ShopEarning)

	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(92000), balance)
}

func TestAdvanceStatus_SettlesOnlineShopAffiliated(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	req := validRequest()
	req.ShopID = 5
	booking, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	completed := completeBooking(t, svc, booking.ID, 101)

	assert.Equal(t, int64(23000), completed.PlatformFee)
	assert.Equal(t, int64(57500), completed.ProviderEarning)
	assert.Equal(t, int64(34500), completed.ShopEarning)

	providerBalance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(57500), providerBalance)

	shopBalance, err := db.GetWalletBalance(ctx, models.OwnerShop, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(34500), shopBalance)
}

func TestAdvanceStatus_SettlesCash(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	topUp(t, db, models.OwnerProvider, 101, 30000)

	req := validRequest()
	req.PaymentMethod = models.PaymentCash
	booking, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	completed := completeBooking(t, svc, booking.ID, 101)
	assert.True(t, completed.Settled())

	// Cash settlement is a single platform-fee debit; the provider keeps the
	// cash they collected in person.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), balance)

	transactions, _, err := db.ListTransactions(ctx, models.OwnerProvider, 101, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.TrxPlatformFee, transactions[0].Type)
	assert.Equal(t, int64(-23000), transactions[0].Amount)
}

func TestAdvanceStatus_DoubleCompleteIsIdempotent(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)
	completeBooking(t, svc, booking.ID, 101)

	again, err := svc.AdvanceStatus(ctx, booking.ID, 101, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, again.Status)

	// The wallet shows exactly one settlement.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(92000), balance)
}

func TestAdvanceStatus_ArrivalTelemetryGate(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	telemetry := repository.NewMemoryTelemetryRepository(2 * time.Minute)
	svc := NewBookingService(db, events.NewEventBus(), telemetry, testPolicy(), testBookingConfig(), 2*time.Minute, &logger)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.AcceptBooking(ctx, booking.ID, 101)
	require.NoError(t, err)
	_, err = svc.AdvanceStatus(ctx, booking.ID, 101, models.StatusProviderEnRoute)
	require.NoError(t, err)

	// No location report yet: arrival is refused.
	_, err = svc.AdvanceStatus(ctx, booking.ID, 101, models.StatusProviderArrived)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)

	require.NoError(t, telemetry.SetLocation(ctx, &models.ProviderLocation{
		ProviderID: 101, Latitude: 14.55, Longitude: 121.02, ReportedAt: time.Now(),
	}))
	_, err = svc.AdvanceStatus(ctx, booking.ID, 101, models.StatusProviderArrived)
	assert.NoError(t, err)
}

func TestCancelBooking_RefundTiers(t *testing.T) {
	tests := []struct {
		name   string
		lead   time.Duration
		refund int64
	}{
		{"full refund before 24h", 25 * time.Hour, 115000},
		{"partial refund before 12h", 18 * time.Hour, 80500},
		{"no refund inside 12h", 6 * time.Hour, 0},
		{"exact 24h boundary", 24 * time.Hour, 115000},
		{"exact 12h boundary", 12 * time.Hour, 80500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestBookingService(t)
			ctx := context.Background()

			// Pin the clock so boundary leads stay exact.
			fixedNow := time.Now()
			svc.now = func() time.Time { return fixedNow }

			req := validRequest()
			req.ScheduledAt = fixedNow.Add(tt.lead)
			booking, err := svc.CreateBooking(ctx, req)
			require.NoError(t, err)

			cancelled, err := svc.CancelBooking(ctx, booking.ID, models.ActorCustomer, 1, "change of plans")
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, cancelled.Status)
			assert.Equal(t, tt.refund, cancelled.RefundAmount)
		})
	}
}

func TestCancelBooking_CashNeverRefunds(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	topUp(t, db, models.OwnerProvider, 101, 30000)
	req := validRequest()
	req.PaymentMethod = models.PaymentCash
	req.ScheduledAt = time.Now().Add(72 * time.Hour)
	booking, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	cancelled, err := svc.CancelBooking(ctx, booking.ID, models.ActorCustomer, 1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cancelled.RefundAmount)
}

func TestCancelBooking_CustomerCannotCancelInService(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.AcceptBooking(ctx, booking.ID, 101)
	require.NoError(t, err)
	_, err = svc.AdvanceStatus(ctx, booking.ID, 101, models.StatusProviderEnRoute)
	require.NoError(t, err)

	_, err = svc.CancelBooking(ctx, booking.ID, models.ActorCustomer, 1, "")
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestCancelBooking_AdminCancelsInService(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.AcceptBooking(ctx, booking.ID, 101)
	require.NoError(t, err)
	_, err = svc.AdvanceStatus(ctx, booking.ID, 101, models.StatusProviderEnRoute)
	require.NoError(t, err)

	cancelled, err := svc.CancelBooking(ctx, booking.ID, models.ActorAdmin, 1, "provider incident")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	// Platform cancellations refund the full prepaid amount regardless of timing.
	assert.Equal(t, int64(115000), cancelled.RefundAmount)
}

func TestCancelBooking_WrongCustomer(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.CancelBooking(ctx, booking.ID, models.ActorCustomer, 77, "")
	assert.ErrorIs(t, err, database.ErrNotAuthorized)
}

func TestCancelBooking_TerminalStatus(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)
	completeBooking(t, svc, booking.ID, 101)

	_, err = svc.CancelBooking(ctx, booking.ID, models.ActorAdmin, 1, "")
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestHideBooking_PartyCheck(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, svc.HideBooking(ctx, booking.ID, models.ActorCustomer, 1))
	require.NoError(t, svc.HideBooking(ctx, booking.ID, models.ActorProvider, 101))

	err = svc.HideBooking(ctx, booking.ID, models.ActorCustomer, 42)
	assert.ErrorIs(t, err, database.ErrNotAuthorized)
	err = svc.HideBooking(ctx, booking.ID, models.ActorShop, 5)
	assert.ErrorIs(t, err, database.ErrNotAuthorized)
}

func TestTimeoutPending(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, svc.TimeoutPending(ctx, booking))

	got, err := svc.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, models.RejectReasonTimeout, got.StatusReason)
}

func TestTimeoutPending_LosesRaceToAccept(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.AcceptBooking(ctx, booking.ID, 101)
	require.NoError(t, err)

	// The sweep holds a stale snapshot; its CAS must fail cleanly.
	err = svc.TimeoutPending(ctx, booking)
	assert.Error(t, err)

	got, err := svc.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
}

func TestCheckCashAdmission(t *testing.T) {
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	admission, err := svc.CheckCashAdmission(ctx, models.OwnerProvider, 101, 115000)
	require.NoError(t, err)
	assert.False(t, admission.Allowed)
	assert.Equal(t, int64(23000), admission.RequiredFee)
	assert.Equal(t, int64(23000), admission.TopUpNeeded)

	topUp(t, db, models.OwnerProvider, 101, 23000)
	admission, err = svc.CheckCashAdmission(ctx, models.OwnerProvider, 101, 115000)
	require.NoError(t, err)
	assert.True(t, admission.Allowed)
	assert.Zero(t, admission.Shortfall)
}

func TestGetBookingByNumber(t *testing.T) {
	svc, _ := newTestBookingService(t)
	ctx := context.Background()

	created, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	found, err := svc.GetBookingByNumber(ctx, created.BookingNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.GetBookingByNumber(ctx, "HB-MISSING001")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAcceptDeadline(t *testing.T) {
	svc, _ := newTestBookingService(t)

	booking, err := svc.CreateBooking(context.Background(), validRequest())
	require.NoError(t, err)

	deadline := svc.AcceptDeadline(booking)
	assert.Equal(t, booking.CreatedAt.Add(30*time.Second), deadline)
}

// ledgerPostingCount reads the posting counter for one transaction type from
// the default registry.
func ledgerPostingCount(t *testing.T, trxType string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "hilot_ledger_postings_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "type" && label.GetValue() == trxType {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSettlementPostingsCounted(t *testing.T) {
	metrics.Register()
	svc, db := newTestBookingService(t)
	ctx := context.Background()

	// Shop-affiliated online booking settles with two earning rows.
	req := validRequest()
	req.ShopID = 5
	booking, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	earningsBefore := ledgerPostingCount(t, models.TrxEarning)
	completeBooking(t, svc, booking.ID, req.ProviderID)
	assert.Equal(t, earningsBefore+2, ledgerPostingCount(t, models.TrxEarning))

	// A cash booking settles with a single platform fee debit.
	topUp(t, db, models.OwnerProvider, 101, 30000)
	cashReq := validRequest()
	cashReq.PaymentMethod = models.PaymentCash
	cashBooking, err := svc.CreateBooking(ctx, cashReq)
	require.NoError(t, err)

	feesBefore := ledgerPostingCount(t, models.TrxPlatformFee)
	completeBooking(t, svc, cashBooking.ID, cashReq.ProviderID)
	assert.Equal(t, feesBefore+1, ledgerPostingCount(t, models.TrxPlatformFee))
}
