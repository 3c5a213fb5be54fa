package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent postings.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_number TEXT UNIQUE NOT NULL,
            customer_id INTEGER NOT NULL,
            customer_name TEXT NOT NULL DEFAULT '',
            provider_id INTEGER NOT NULL,
            provider_name TEXT NOT NULL DEFAULT '',
            shop_id INTEGER NOT NULL DEFAULT 0,
            service_name TEXT NOT NULL DEFAULT '',
            service_amount INTEGER NOT NULL,
            travel_fee INTEGER NOT NULL DEFAULT 0,
            total_amount INTEGER NOT NULL,
            payment_method TEXT NOT NULL,
            platform_fee INTEGER NOT NULL DEFAULT 0,
            provider_earning INTEGER NOT NULL DEFAULT 0,
            shop_earning INTEGER NOT NULL DEFAULT 0,
            refund_amount INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            status_reason TEXT NOT NULL DEFAULT '',
            scheduled_at DATETIME NOT NULL,
            accepted_at DATETIME,
            completed_at DATETIME,
            cancelled_at DATETIME,
            settled_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,

		`CREATE TABLE IF NOT EXISTS wallet_accounts (
            owner_type TEXT NOT NULL,
            owner_id INTEGER NOT NULL,
            balance INTEGER NOT NULL DEFAULT 0,
            version INTEGER NOT NULL DEFAULT 1,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (owner_type, owner_id)
        )`,

		`CREATE TABLE IF NOT EXISTS wallet_transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_type TEXT NOT NULL,
            owner_id INTEGER NOT NULL,
            type TEXT NOT NULL,
            amount INTEGER NOT NULL,
            balance_before INTEGER NOT NULL,
            balance_after INTEGER NOT NULL,
            booking_id INTEGER NOT NULL DEFAULT 0,
            payout_id INTEGER NOT NULL DEFAULT 0,
            method TEXT NOT NULL DEFAULT '',
            reference TEXT NOT NULL DEFAULT '',
            note TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS payouts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_type TEXT NOT NULL,
            owner_id INTEGER NOT NULL,
            amount INTEGER NOT NULL,
            fee INTEGER NOT NULL DEFAULT 0,
            net_amount INTEGER NOT NULL,
            method TEXT NOT NULL,
            account_info TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            reference_number TEXT NOT NULL DEFAULT '',
            failure_reason TEXT NOT NULL DEFAULT '',
            processed_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,

		`CREATE TABLE IF NOT EXISTS booking_visibility (
            booking_id INTEGER NOT NULL,
            viewer_type TEXT NOT NULL,
            viewer_id INTEGER NOT NULL,
            hidden_at DATETIME NOT NULL,
            PRIMARY KEY (booking_id, viewer_type, viewer_id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_provider ON bookings(provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_scheduled ON bookings(scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_trx_owner ON wallet_transactions(owner_type, owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_trx_booking ON wallet_transactions(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_owner ON payouts(owner_type, owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
