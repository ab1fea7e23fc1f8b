// Package sqlite implements the gateway's storage ports on an embedded
// SQLite database. It serves single-node deployments and the test
// suites; the postgres package is its production counterpart.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hackload-kz/payment-sub008/internal/application"
)

// timeLayout always renders six fractional digits in UTC. Stored
// timestamps must sort lexicographically and round-trip at the exact
// precision the audit hash covers, which rules out the RFC3339 layouts
// that trim zeros.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// lease backs the retention leader election. SQLite deployments are
	// single-process, so a local mutex is the whole election.
	lease sync.Mutex
}

// Open opens (or creates) the database at the given path and ensures all
// required tables exist. Pass ":memory:" for an in-memory database.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One connection serves every caller. SQLite allows a single writer
	// at a time, and a second pooled connection to a :memory: DSN would
	// be a second empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			captured_amount INTEGER NOT NULL DEFAULT 0,
			refunded_amount INTEGER NOT NULL DEFAULT 0,
			refund_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			failure_reason TEXT,
			auth_ref TEXT,
			created_at TEXT NOT NULL,
			authorized_at TEXT,
			confirmed_at TEXT,
			cancelled_at TEXT,
			refunded_at TEXT,
			expires_at TEXT NOT NULL,
			version INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_merchant_order ON payments(merchant_id, order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status_expires ON payments(status, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_merchant_created ON payments(merchant_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			payment_id TEXT NOT NULL,
			parent_transaction_id TEXT,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			amount INTEGER NOT NULL,
			fee_amount INTEGER NOT NULL DEFAULT 0,
			net_amount INTEGER NOT NULL DEFAULT 0,
			attempt_number INTEGER NOT NULL,
			max_retry_attempts INTEGER NOT NULL,
			next_retry_at TEXT,
			failure_reason TEXT,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			FOREIGN KEY (payment_id) REFERENCES payments(id)
		)`,
		// Failed attempts stay out of the index so a retry can append
		// under the next attempt number while a replay of a live record
		// is refused.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_live_attempt
			ON transactions(payment_id, type, attempt_number) WHERE status != 'FAILED'`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_payment ON transactions(payment_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			seq_no INTEGER NOT NULL,
			snapshot_before BLOB,
			snapshot_after BLOB NOT NULL,
			integrity_hash TEXT NOT NULL,
			is_sensitive INTEGER NOT NULL DEFAULT 0,
			is_archived INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			UNIQUE (entity_id, seq_no)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,

		`CREATE TABLE IF NOT EXISTS order_claims (
			merchant_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			payment_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (merchant_id, order_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}

// executor is the shared query surface of *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txStore is the transaction-scoped view handed to WithinTx closures.
type txStore struct {
	q executor
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.TxStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AcquireRetentionLease takes the process-local retention lease. The
// returned release func must be called once when the cycle ends.
func (s *Store) AcquireRetentionLease(ctx context.Context) (func(), bool, error) {
	if !s.lease.TryLock() {
		return nil, false, nil
	}
	return s.lease.Unlock, true, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseStoredTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseStoredTime(ns.String)
	return &t
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
