package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hilot/internal/models"
)

// LedgerPosting describes one entry to append. Amount is a positive
// magnitude for typed credits and debits; adjustments pass it signed.
// AllowNegative permits the balance to go below zero, used only for
// adjustments and platform-fee collection on cash shortfalls.
type LedgerPosting struct {
	OwnerType     string
	OwnerID       int64
	Type          string
	Amount        int64
	BookingID     int64
	PayoutID      int64
	Method        string
	Reference     string
	Note          string
	AllowNegative bool
}

func (p LedgerPosting) signedAmount() (int64, error) {
	switch {
	case models.Credits(p.Type):
		if p.Amount <= 0 {
			return 0, fmt.Errorf("credit posting requires positive amount, got %d", p.Amount)
		}
		return p.Amount, nil
	case models.Debits(p.Type):
		if p.Amount <= 0 {
			return 0, fmt.Errorf("debit posting requires positive amount, got %d", p.Amount)
		}
		return -p.Amount, nil
	case p.Type == models.TrxAdjustment:
		if p.Amount == 0 {
			return 0, errors.New("adjustment posting requires a non-zero signed amount")
		}
		return p.Amount, nil
	default:
		return 0, fmt.Errorf("unknown transaction type %q", p.Type)
	}
}

// PostTransaction appends one ledger row and updates the owner's balance as
// a single atomic unit. A failed precondition leaves nothing written.
func (db *DB) PostTransaction(ctx context.Context, posting LedgerPosting) (*models.WalletTransaction, error) {
	// The versioned balance update cannot race within one transaction, but
	// concurrent callers can still collide between begin and update; a short
	// retry absorbs that without surfacing a spurious conflict.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		trx, err := db.postTransactionOnce(ctx, posting)
		if err == nil {
			return trx, nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (db *DB) postTransactionOnce(ctx context.Context, posting LedgerPosting) (*models.WalletTransaction, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	trx, err := db.postTransactionTx(ctx, tx, posting)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return trx, nil
}

func (db *DB) postTransactionTx(ctx context.Context, tx *sql.Tx, posting LedgerPosting) (*models.WalletTransaction, error) {
	signed, err := posting.signedAmount()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO wallet_accounts (owner_type, owner_id, balance, version, updated_at)
		 VALUES (?, ?, 0, 1, ?)`,
		posting.OwnerType, posting.OwnerID, now); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet account: %w", err)
	}

	var balance, version int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance, version FROM wallet_accounts WHERE owner_type = ? AND owner_id = ?`,
		posting.OwnerType, posting.OwnerID).Scan(&balance, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet balance: %w", err)
	}

	newBalance := balance + signed
	if newBalance < 0 && !posting.AllowNegative {
		return nil, &InsufficientBalanceError{Required: -signed, Available: balance}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE wallet_accounts SET balance = ?, version = version + 1, updated_at = ?
		 WHERE owner_type = ? AND owner_id = ? AND version = ?`,
		newBalance, now, posting.OwnerType, posting.OwnerID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrConcurrentModification
	}

	insert, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (
			owner_type, owner_id, type, amount, balance_before, balance_after,
			booking_id, payout_id, method, reference, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		posting.OwnerType, posting.OwnerID, posting.Type, signed, balance, newBalance,
		posting.BookingID, posting.PayoutID, posting.Method, posting.Reference, posting.Note, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet transaction: %w", err)
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction id: %w", err)
	}

	return &models.WalletTransaction{
		ID:            id,
		OwnerType:     posting.OwnerType,
		OwnerID:       posting.OwnerID,
		Type:          posting.Type,
		Amount:        signed,
		BalanceBefore: balance,
		BalanceAfter:  newBalance,
		BookingID:     posting.BookingID,
		PayoutID:      posting.PayoutID,
		Method:        posting.Method,
		Reference:     posting.Reference,
		Note:          posting.Note,
		CreatedAt:     now,
	}, nil
}

// GetWalletBalance returns the materialized balance, zero for owners that
// have never transacted.
func (db *DB) GetWalletBalance(ctx context.Context, ownerType string, ownerID int64) (int64, error) {
	var balance int64
	err := db.db.QueryRowContext(ctx,
		`SELECT balance FROM wallet_accounts WHERE owner_type = ? AND owner_id = ?`,
		ownerType, ownerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return balance, nil
}

// SumTransactions replays the ledger for an owner. At any point in time the
// result must equal the materialized balance.
func (db *DB) SumTransactions(ctx context.Context, ownerType string, ownerID int64) (int64, error) {
	var sum sql.NullInt64
	err := db.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM wallet_transactions WHERE owner_type = ? AND owner_id = ?`,
		ownerType, ownerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum.Int64, nil
}

// ListTransactions returns one page of an owner's ledger, newest first,
// along with the total row count for pagination.
func (db *DB) ListTransactions(ctx context.Context, ownerType string, ownerID int64, page, pageSize int) ([]*models.WalletTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > models.MaxPageSize {
		pageSize = models.DefaultPageSize
	}

	var total int64
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wallet_transactions WHERE owner_type = ? AND owner_id = ?`,
		ownerType, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := db.db.QueryContext(ctx,
		`SELECT id, owner_type, owner_id, type, amount, balance_before, balance_after,
		        booking_id, payout_id, method, reference, note, created_at
		 FROM wallet_transactions WHERE owner_type = ? AND owner_id = ?
		 ORDER BY id DESC LIMIT ? OFFSET ?`,
		ownerType, ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.WalletTransaction
	for rows.Next() {
		trx := &models.WalletTransaction{}
		err := rows.Scan(
			&trx.ID, &trx.OwnerType, &trx.OwnerID, &trx.Type, &trx.Amount,
			&trx.BalanceBefore, &trx.BalanceAfter, &trx.BookingID, &trx.PayoutID,
			&trx.Method, &trx.Reference, &trx.Note, &trx.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, trx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}
