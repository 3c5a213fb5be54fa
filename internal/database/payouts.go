package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hilot/internal/models"
)

const payoutColumns = `id, owner_type, owner_id, amount, fee, net_amount, method, account_info,
       status, reference_number, failure_reason, processed_at, created_at, updated_at, version`

// CreatePayoutWithDebit inserts the payout record and posts the reserving
// PAYOUT debit in one transaction. An insufficient balance rolls back both.
func (db *DB) CreatePayoutWithDebit(ctx context.Context, payout *models.Payout) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin payout transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO payouts (
			owner_type, owner_id, amount, fee, net_amount, method, account_info,
			status, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payout.OwnerType, payout.OwnerID, payout.Amount, payout.Fee, payout.NetAmount,
		payout.Method, payout.AccountInfo, models.PayoutPending, now, now, 1)
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get payout id: %w", err)
	}

	if _, err := db.postTransactionTx(ctx, tx, LedgerPosting{
		OwnerType: payout.OwnerType,
		OwnerID:   payout.OwnerID,
		Type:      models.TrxPayout,
		Amount:    payout.Amount,
		PayoutID:  id,
		Method:    payout.Method,
		Note:      "payout reservation",
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payout transaction: %w", err)
	}

	payout.ID = id
	payout.Status = models.PayoutPending
	payout.CreatedAt = now
	payout.UpdatedAt = now
	payout.Version = 1
	return nil
}

func (db *DB) GetPayout(ctx context.Context, id int64) (*models.Payout, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = ?`, id)
	p, err := scanPayout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// CompletePayout moves an open payout to completed with its external
// reference number. The reserving debit already happened at request time,
// so no ledger entry is posted here.
func (db *DB) CompletePayout(ctx context.Context, id, version int64, referenceNumber string) error {
	now := time.Now()
	result, err := db.db.ExecContext(ctx,
		`UPDATE payouts
		 SET status = ?, reference_number = ?, processed_at = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND status IN (?, ?)`,
		models.PayoutCompleted, referenceNumber, now, now,
		id, version, models.PayoutPending, models.PayoutProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete payout: %w", err)
	}
	return db.checkPayoutSwap(ctx, result, id, models.PayoutCompleted)
}

// MarkPayoutProcessing flags an admin as working on the payout.
func (db *DB) MarkPayoutProcessing(ctx context.Context, id, version int64) error {
	result, err := db.db.ExecContext(ctx,
		`UPDATE payouts SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND status = ?`,
		models.PayoutProcessing, time.Now(), id, version, models.PayoutPending)
	if err != nil {
		return fmt.Errorf("failed to mark payout processing: %w", err)
	}
	return db.checkPayoutSwap(ctx, result, id, models.PayoutProcessing)
}

// RejectPayoutWithRefund moves an open payout to rejected and reverses the
// reservation with an offsetting REFUND credit, in one transaction. The
// original PAYOUT row is never touched.
func (db *DB) RejectPayoutWithRefund(ctx context.Context, id, version int64, reason string) error {
	payout, err := db.GetPayout(ctx, id)
	if err != nil {
		return err
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rejection transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE payouts SET status = ?, failure_reason = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND status IN (?, ?)`,
		models.PayoutRejected, reason, time.Now(),
		id, version, models.PayoutPending, models.PayoutProcessing)
	if err != nil {
		return fmt.Errorf("failed to reject payout: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Release the write transaction before re-reading; the pool is a
		// single connection.
		_ = tx.Rollback()
		return db.explainPayoutSwapFailure(ctx, id, models.PayoutRejected)
	}

	if _, err := db.postTransactionTx(ctx, tx, LedgerPosting{
		OwnerType: payout.OwnerType,
		OwnerID:   payout.OwnerID,
		Type:      models.TrxRefund,
		Amount:    payout.Amount,
		PayoutID:  id,
		Note:      "payout rejected: " + reason,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// ListPayouts returns one page of an owner's payout history, newest first.
func (db *DB) ListPayouts(ctx context.Context, ownerType string, ownerID int64, page, pageSize int) ([]*models.Payout, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > models.MaxPageSize {
		pageSize = models.DefaultPageSize
	}

	var total int64
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payouts WHERE owner_type = ? AND owner_id = ?`,
		ownerType, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}

	rows, err := db.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE owner_type = ? AND owner_id = ?
		 ORDER BY id DESC LIMIT ? OFFSET ?`,
		ownerType, ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

// ListOpenPayouts returns all pending/processing payouts for admin review.
func (db *DB) ListOpenPayouts(ctx context.Context) ([]*models.Payout, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE status IN (?, ?) ORDER BY created_at ASC`,
		models.PayoutPending, models.PayoutProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to list open payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

func (db *DB) checkPayoutSwap(ctx context.Context, result sql.Result, id int64, to string) error {
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	return db.explainPayoutSwapFailure(ctx, id, to)
}

func (db *DB) explainPayoutSwapFailure(ctx context.Context, id int64, to string) error {
	current, err := db.GetPayout(ctx, id)
	if err != nil {
		return err
	}
	if current.Open() {
		return ErrConcurrentModification
	}
	return fmt.Errorf("%w: payout %s -> %s", ErrInvalidTransition, current.Status, to)
}

func scanPayout(row rowScanner) (*models.Payout, error) {
	p := &models.Payout{}
	var processedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.OwnerType, &p.OwnerID, &p.Amount, &p.Fee, &p.NetAmount,
		&p.Method, &p.AccountInfo, &p.Status, &p.ReferenceNumber, &p.FailureReason,
		&processedAt, &p.CreatedAt, &p.UpdatedAt, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		p.ProcessedAt = &processedAt.Time
	}
	return p, nil
}
