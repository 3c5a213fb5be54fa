package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hilot/internal/models"

	"github.com/mattn/go-sqlite3"
)

const bookingColumns = `id, booking_number, customer_id, customer_name, provider_id, provider_name,
       shop_id, service_name, service_amount, travel_fee, total_amount, payment_method,
       platform_fee, provider_earning, shop_earning, refund_amount, status, status_reason,
       scheduled_at, accepted_at, completed_at, cancelled_at, settled_at,
       created_at, updated_at, version`

// StatusChange describes one compare-and-swap transition. From lists the
// statuses the booking must currently be in; everything else is written
// atomically with the status flip.
type StatusChange struct {
	From         []string
	To           string
	Reason       string
	AcceptedAt   *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	RefundAmount *int64
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				booking_number, customer_id, customer_name, provider_id, provider_name,
				shop_id, service_name, service_amount, travel_fee, total_amount,
				payment_method, status, status_reason, scheduled_at, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query,
		booking.BookingNumber,
		booking.CustomerID,
		booking.CustomerName,
		booking.ProviderID,
		booking.ProviderName,
		booking.ShopID,
		booking.ServiceName,
		booking.ServiceAmount,
		booking.TravelFee,
		booking.TotalAmount,
		booking.PaymentMethod,
		models.StatusPending,
		"",
		booking.ScheduledAt,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err, "bookings.booking_number") {
			return ErrDuplicateBookingNumber
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.Status = models.StatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return db.scanBookingRow(db.db.QueryRowContext(ctx, query, id))
}

func (db *DB) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_number = ?`
	return db.scanBookingRow(db.db.QueryRowContext(ctx, query, number))
}

// TransitionBookingStatus applies one CAS transition. On a failed swap it
// re-reads the row to distinguish a genuinely invalid transition from a
// version race, so two concurrent accepts resolve to exactly one winner.
func (db *DB) TransitionBookingStatus(ctx context.Context, id, version int64, change StatusChange) error {
	set := []string{"status = ?", "version = version + 1", "updated_at = ?"}
	args := []any{change.To, time.Now()}

	if change.Reason != "" {
		set = append(set, "status_reason = ?")
		args = append(args, change.Reason)
	}
	if change.AcceptedAt != nil {
		set = append(set, "accepted_at = ?")
		args = append(args, *change.AcceptedAt)
	}
	if change.CompletedAt != nil {
		set = append(set, "completed_at = ?")
		args = append(args, *change.CompletedAt)
	}
	if change.CancelledAt != nil {
		set = append(set, "cancelled_at = ?")
		args = append(args, *change.CancelledAt)
	}
	if change.RefundAmount != nil {
		set = append(set, "refund_amount = ?")
		args = append(args, *change.RefundAmount)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(change.From)), ", ")
	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id = ? AND version = ? AND status IN (%s)`,
		strings.Join(set, ", "), placeholders)
	args = append(args, id, version)
	for _, from := range change.From {
		args = append(args, from)
	}

	result, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	current, err := db.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	for _, from := range change.From {
		if current.Status == from {
			return ErrConcurrentModification
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, change.To)
}

// SettleBooking flips the booking to completed and posts the settlement
// ledger entries in a single transaction, freezing the fee amounts on the
// booking row. The CAS on status/version guarantees at most one settlement.
func (db *DB) SettleBooking(ctx context.Context, id, version int64, platformFee, providerEarning, shopEarning int64, postings []LedgerPosting) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settlement transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings
		 SET status = ?, platform_fee = ?, provider_earning = ?, shop_earning = ?,
		     completed_at = ?, settled_at = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND status = ? AND settled_at IS NULL`,
		models.StatusCompleted, platformFee, providerEarning, shopEarning,
		now, now, now, id, version, models.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to settle booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Release the write transaction before re-reading; the pool is a
		// single connection.
		_ = tx.Rollback()
		current, err := db.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if current.Settled() {
			return ErrBookingSettled
		}
		if current.Status == models.StatusInProgress {
			return ErrConcurrentModification
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, models.StatusCompleted)
	}

	for _, posting := range postings {
		if _, err := db.postTransactionTx(ctx, tx, posting); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListPendingCreatedBefore returns pending bookings older than the cutoff,
// for the accept-timeout sweep.
func (db *DB) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? AND created_at <= ? ORDER BY created_at ASC`
	rows, err := db.db.QueryContext(ctx, query, models.StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending bookings: %w", err)
	}
	defer rows.Close()
	return db.scanBookings(rows)
}

// ListBookingsForViewer returns a party's bookings, newest first, excluding
// rows the viewer chose to hide. The records themselves are never deleted.
func (db *DB) ListBookingsForViewer(ctx context.Context, viewerType string, viewerID int64, page, pageSize int) ([]*models.Booking, error) {
	var partyColumn string
	switch viewerType {
	case models.ActorCustomer:
		partyColumn = "customer_id"
	case models.ActorProvider:
		partyColumn = "provider_id"
	case models.ActorShop:
		partyColumn = "shop_id"
	default:
		return nil, fmt.Errorf("unknown viewer type %q", viewerType)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > models.MaxPageSize {
		pageSize = models.DefaultPageSize
	}

	query := fmt.Sprintf(`SELECT `+bookingColumns+` FROM bookings b
		WHERE b.%s = ?
		  AND NOT EXISTS (
			SELECT 1 FROM booking_visibility v
			WHERE v.booking_id = b.id AND v.viewer_type = ? AND v.viewer_id = ?
		  )
		ORDER BY b.created_at DESC LIMIT ? OFFSET ?`, partyColumn)

	rows, err := db.db.QueryContext(ctx, query, viewerID, viewerType, viewerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()
	return db.scanBookings(rows)
}

// HideBooking marks a booking hidden for one viewer without touching the
// booking row itself.
func (db *DB) HideBooking(ctx context.Context, bookingID int64, viewerType string, viewerID int64) error {
	if _, err := db.GetBooking(ctx, bookingID); err != nil {
		return err
	}
	query := `INSERT OR IGNORE INTO booking_visibility (booking_id, viewer_type, viewer_id, hidden_at)
	          VALUES (?, ?, ?, ?)`
	if _, err := db.db.ExecContext(ctx, query, bookingID, viewerType, viewerID, time.Now()); err != nil {
		return fmt.Errorf("failed to hide booking: %w", err)
	}
	return nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE scheduled_at >= ? AND scheduled_at < ? ORDER BY scheduled_at ASC`
	rows, err := db.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()
	return db.scanBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanBookingRow(row rowScanner) (*models.Booking, error) {
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var acceptedAt, completedAt, cancelledAt, settledAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.CustomerID, &b.CustomerName, &b.ProviderID, &b.ProviderName,
		&b.ShopID, &b.ServiceName, &b.ServiceAmount, &b.TravelFee, &b.TotalAmount, &b.PaymentMethod,
		&b.PlatformFee, &b.ProviderEarning, &b.ShopEarning, &b.RefundAmount, &b.Status, &b.StatusReason,
		&b.ScheduledAt, &acceptedAt, &completedAt, &cancelledAt, &settledAt,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		b.AcceptedAt = &acceptedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		b.CancelledAt = &cancelledAt.Time
	}
	if settledAt.Valid {
		b.SettledAt = &settledAt.Time
	}
	return b, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(sqliteErr.Error(), constraint)
	}
	return false
}
