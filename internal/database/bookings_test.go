package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"hilot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func createTestBooking(t *testing.T, db *DB, number string, paymentMethod string, shopID int64) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		BookingNumber: number,
		CustomerID:    1,
		CustomerName:  "Test Customer",
		ProviderID:    101,
		ProviderName:  "Test Provider",
		ShopID:        shopID,
		ServiceName:   "Swedish Massage 60min",
		ServiceAmount: 100000,
		TravelFee:     15000,
		TotalAmount:   115000,
		PaymentMethod: paymentMethod,
		ScheduledAt:   time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestCreateBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	booking := createTestBooking(t, db, "HB-AAAA000001", models.PaymentGCash, 0)

	assert.NotZero(t, booking.ID)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, int64(1), booking.Version)

	got, err := db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "HB-AAAA000001", got.BookingNumber)
	assert.Equal(t, int64(115000), got.TotalAmount)
	assert.Nil(t, got.AcceptedAt)
}

func TestCreateBooking_DuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	createTestBooking(t, db, "HB-DUP0000001", models.PaymentGCash, 0)

	dup := &models.Booking{
		BookingNumber: "HB-DUP0000001",
		CustomerID:    2,
		ProviderID:    102,
		ServiceAmount: 50000,
		TotalAmount:   50000,
		PaymentMethod: models.PaymentCash,
		ScheduledAt:   time.Now().Add(time.Hour),
	}
	err := db.CreateBooking(context.Background(), dup)
	assert.ErrorIs(t, err, ErrDuplicateBookingNumber)
}

func TestGetBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetBooking(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionBookingStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := createTestBooking(t, db, "HB-TRANS00001", models.PaymentGCash, 0)

	acceptedAt := time.Now()
	err := db.TransitionBookingStatus(ctx, booking.ID, booking.Version, StatusChange{
		From:       []string{models.StatusPending},
		To:         models.StatusAccepted,
		AcceptedAt: &acceptedAt,
	})
	require.NoError(t, err)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.AcceptedAt)
}

func TestTransitionBookingStatus_InvalidTransition(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := createTestBooking(t, db, "HB-INVAL00001", models.PaymentGCash, 0)

	// pending -> in_progress skips accepted
	err := db.TransitionBookingStatus(ctx, booking.ID, booking.Version, StatusChange{
		From: []string{models.StatusAccepted},
		To:   models.StatusInProgress,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionBookingStatus_StaleVersion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := createTestBooking(t, db, "HB-STALE00001", models.PaymentGCash, 0)

	err := db.TransitionBookingStatus(ctx, booking.ID, booking.Version, StatusChange{
		From: []string{models.StatusPending},
		To:   models.StatusAccepted,
	})
	require.NoError(t, err)

	// Same version again: the row moved on, but pending is still a valid
	// From for a cancel, so this surfaces as a version race.
	err = db.TransitionBookingStatus(ctx, booking.ID, booking.Version, StatusChange{
		From: []string{models.StatusAccepted},
		To:   models.StatusProviderEnRoute,
	})
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestTransitionBookingStatus_ConcurrentAccepts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := createTestBooking(t, db, "HB-RACE000001", models.PaymentGCash, 0)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.TransitionBookingStatus(ctx, booking.ID, booking.Version, StatusChange{
				From: []string{models.StatusPending},
				To:   models.StatusAccepted,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one accept must win")

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestSettleBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := createTestBooking(t, db, "HB-SETTLE0001", models.PaymentGCash, 5)
	advanceToInProgress(t, db, booking)

	current, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)

	postings := []LedgerPosting{
		{OwnerType: models.OwnerProvider, OwnerID: 101, Type: models.TrxEarning, Amount: 57500, BookingID: booking.ID},
		{OwnerType: models.OwnerShop, OwnerID: 5, Type: models.TrxEarning, Amount: 34500, BookingID: booking.ID},
	}
	err = db.SettleBooking(ctx, booking.ID, current.Version, 23000, 57500, 34500, postings)
	require.NoError(t, err)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.True(t, got.Settled())
	assert.Equal(t, int64(23000), got.PlatformFee)
	assert.Equal(t, int64(57500), got.ProviderEarning)
	assert.Equal(t, int64(34500), got.ShopEarning)

	providerBalance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(57500), providerBalance)

	shopBalance, err := db.GetWalletBalance(ctx, models.OwnerShop, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(34500), shopBalance)
}

func TestSettleBooking_Twice(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := createTestBooking(t, db, "HB-SETTLE0002", models.PaymentGCash, 0)
	advanceToInProgress(t, db, booking)

	current, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)

	postings := []LedgerPosting{
		{OwnerType: models.OwnerProvider, OwnerID: 101, Type: models.TrxEarning, Amount: 92000, BookingID: booking.ID},
	}
	require.NoError(t, db.SettleBooking(ctx, booking.ID, current.Version, 23000, 92000, 0, postings))

	err = db.SettleBooking(ctx, booking.ID, current.Version+1, 23000, 92000, 0, postings)
	assert.ErrorIs(t, err, ErrBookingSettled)

	// No double posting.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(92000), balance)
}

func TestSettleBooking_FailedPostingRollsBack(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := createTestBooking(t, db, "HB-SETTLE0003", models.PaymentCash, 0)
	advanceToInProgress(t, db, booking)

	current, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)

	// Cash collection debit without AllowNegative fails against an empty
	// wallet; the status flip must roll back with it.
	postings := []LedgerPosting{
		{OwnerType: models.OwnerProvider, OwnerID: 101, Type: models.TrxPlatformFee, Amount: 23000, BookingID: booking.ID},
	}
	err = db.SettleBooking(ctx, booking.ID, current.Version, 23000, 92000, 0, postings)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.False(t, got.Settled())
}

func TestListPendingCreatedBefore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	stale := createTestBooking(t, db, "HB-SWEEP00001", models.PaymentGCash, 0)
	accepted := createTestBooking(t, db, "HB-SWEEP00002", models.PaymentGCash, 0)
	require.NoError(t, db.TransitionBookingStatus(ctx, accepted.ID, accepted.Version, StatusChange{
		From: []string{models.StatusPending},
		To:   models.StatusAccepted,
	}))

	pending, err := db.ListPendingCreatedBefore(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stale.ID, pending[0].ID)

	pending, err = db.ListPendingCreatedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListBookingsForViewer_AndHide(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	first := createTestBooking(t, db, "HB-VIEW000001", models.PaymentGCash, 0)
	second := createTestBooking(t, db, "HB-VIEW000002", models.PaymentGCash, 0)

	bookings, err := db.ListBookingsForViewer(ctx, models.ActorCustomer, 1, 1, 20)
	require.NoError(t, err)
	assert.Len(t, bookings, 2)

	// Hiding only affects the hiding party's listing.
	require.NoError(t, db.HideBooking(ctx, first.ID, models.ActorCustomer, 1))

	bookings, err = db.ListBookingsForViewer(ctx, models.ActorCustomer, 1, 1, 20)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, second.ID, bookings[0].ID)

	providerView, err := db.ListBookingsForViewer(ctx, models.ActorProvider, 101, 1, 20)
	require.NoError(t, err)
	assert.Len(t, providerView, 2)

	// Hiding twice is a no-op.
	require.NoError(t, db.HideBooking(ctx, first.ID, models.ActorCustomer, 1))
}

func TestHideBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.HideBooking(context.Background(), 4242, models.ActorCustomer, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	inRange := createTestBooking(t, db, "HB-RANGE00001", models.PaymentGCash, 0)

	outOfRange := &models.Booking{
		BookingNumber: "HB-RANGE00002",
		CustomerID:    1,
		ProviderID:    101,
		ServiceAmount: 50000,
		TotalAmount:   50000,
		PaymentMethod: models.PaymentGCash,
		ScheduledAt:   time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, db.CreateBooking(ctx, outOfRange))

	bookings, err := db.GetBookingsByDateRange(ctx, time.Now(), time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, inRange.ID, bookings[0].ID)
}

// advanceToInProgress walks a fresh booking through the happy path up to
// in_progress.
func advanceToInProgress(t *testing.T, db *DB, booking *models.Booking) {
	t.Helper()
	ctx := context.Background()
	steps := []string{
		models.StatusAccepted,
		models.StatusProviderEnRoute,
		models.StatusProviderArrived,
		models.StatusInProgress,
	}
	from := models.StatusPending
	version := booking.Version
	for _, to := range steps {
		err := db.TransitionBookingStatus(ctx, booking.ID, version, StatusChange{
			From: []string{from},
			To:   to,
		})
		require.NoError(t, err, fmt.Sprintf("%s -> %s", from, to))
		from = to
		version++
	}
}
