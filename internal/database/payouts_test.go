package database

import (
	"context"
	"testing"

	"hilot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fundWallet(t *testing.T, db *DB, ownerType string, ownerID, amount int64) {
	t.Helper()
	_, err := db.PostTransaction(context.Background(), LedgerPosting{
		OwnerType: ownerType, OwnerID: ownerID, Type: models.TrxTopUp, Amount: amount,
	})
	require.NoError(t, err)
}

func TestCreatePayoutWithDebit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerProvider, 101, 100000)

	payout := &models.Payout{
		OwnerType:   models.OwnerProvider,
		OwnerID:     101,
		Amount:      60000,
		Fee:         1500,
		NetAmount:   58500,
		Method:      models.PaymentGCash,
		AccountInfo: "0917xxxxxxx",
	}
	require.NoError(t, db.CreatePayoutWithDebit(ctx, payout))

	assert.NotZero(t, payout.ID)
	assert.Equal(t, models.PayoutPending, payout.Status)

	// The full requested amount is reserved immediately.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), balance)
}

func TestCreatePayoutWithDebit_InsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerProvider, 101, 30000)

	payout := &models.Payout{
		OwnerType: models.OwnerProvider,
		OwnerID:   101,
		Amount:    60000,
		NetAmount: 58500,
		Method:    models.PaymentGCash,
	}
	err := db.CreatePayoutWithDebit(ctx, payout)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Neither the payout row nor the debit survived.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), balance)

	open, err := db.ListOpenPayouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCompletePayout(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerProvider, 101, 100000)
	payout := &models.Payout{
		OwnerType: models.OwnerProvider, OwnerID: 101,
		Amount: 60000, NetAmount: 58500, Method: models.PaymentGCash,
	}
	require.NoError(t, db.CreatePayoutWithDebit(ctx, payout))

	require.NoError(t, db.CompletePayout(ctx, payout.ID, payout.Version, "GC-REF-777"))

	got, err := db.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, got.Status)
	assert.Equal(t, "GC-REF-777", got.ReferenceNumber)
	require.NotNil(t, got.ProcessedAt)

	// Completion posts nothing; the reservation already left the wallet.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), balance)
}

func TestCompletePayout_AlreadyTerminal(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerProvider, 101, 100000)
	payout := &models.Payout{
		OwnerType: models.OwnerProvider, OwnerID: 101,
		Amount: 60000, NetAmount: 58500, Method: models.PaymentGCash,
	}
	require.NoError(t, db.CreatePayoutWithDebit(ctx, payout))
	require.NoError(t, db.CompletePayout(ctx, payout.ID, payout.Version, "GC-REF-1"))

	err := db.CompletePayout(ctx, payout.ID, payout.Version+1, "GC-REF-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkPayoutProcessing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerShop, 5, 100000)
	payout := &models.Payout{
		OwnerType: models.OwnerShop, OwnerID: 5,
		Amount: 60000, NetAmount: 58500, Method: models.PaymentCard,
	}
	require.NoError(t, db.CreatePayoutWithDebit(ctx, payout))

	require.NoError(t, db.MarkPayoutProcessing(ctx, payout.ID, payout.Version))

	got, err := db.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutProcessing, got.Status)

	// Processing can still complete.
	require.NoError(t, db.CompletePayout(ctx, payout.ID, got.Version, "BANK-42"))
}

func TestRejectPayoutWithRefund(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerProvider, 101, 100000)
	payout := &models.Payout{
		OwnerType: models.OwnerProvider, OwnerID: 101,
		Amount: 60000, NetAmount: 58500, Method: models.PaymentGCash,
	}
	require.NoError(t, db.CreatePayoutWithDebit(ctx, payout))

	require.NoError(t, db.RejectPayoutWithRefund(ctx, payout.ID, payout.Version, "invalid account"))

	got, err := db.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutRejected, got.Status)
	assert.Equal(t, "invalid account", got.FailureReason)

	// The reservation is reversed by an offsetting credit, not deletion.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)

	transactions, total, err := db.ListTransactions(ctx, models.OwnerProvider, 101, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, models.TrxRefund, transactions[0].Type)
	assert.Equal(t, payout.ID, transactions[0].PayoutID)
}

func TestRejectPayout_AlreadyCompleted(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerProvider, 101, 100000)
	payout := &models.Payout{
		OwnerType: models.OwnerProvider, OwnerID: 101,
		Amount: 60000, NetAmount: 58500, Method: models.PaymentGCash,
	}
	require.NoError(t, db.CreatePayoutWithDebit(ctx, payout))
	require.NoError(t, db.CompletePayout(ctx, payout.ID, payout.Version, "GC-REF-9"))

	err := db.RejectPayoutWithRefund(ctx, payout.ID, payout.Version+1, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// No spurious refund.
	balance, err := db.GetWalletBalance(ctx, models.OwnerProvider, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), balance)
}

func TestListPayouts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fundWallet(t, db, models.OwnerProvider, 101, 500000)
	for i := 0; i < 3; i++ {
		payout := &models.Payout{
			OwnerType: models.OwnerProvider, OwnerID: 101,
			Amount: 50000, NetAmount: 48500, Method: models.PaymentGCash,
		}
		require.NoError(t, db.CreatePayoutWithDebit(ctx, payout))
	}

	payouts, total, err := db.ListPayouts(ctx, models.OwnerProvider, 101, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, payouts, 2)

	open, err := db.ListOpenPayouts(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 3)
}
