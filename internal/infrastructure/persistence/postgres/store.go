// Package postgres implements the gateway's storage ports on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence"
)

// retentionLeaseKey is the advisory lock key for the retention leader
// lease. One instance at a time may run retention cycles.
const retentionLeaseKey = 824663

type Store struct {
	db     *persistence.DB
	logger *slog.Logger
}

func NewStore(db *persistence.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// txStore is the transaction-scoped view of the store. Everything written
// through it commits or rolls back with the surrounding transaction.
type txStore struct {
	q persistence.Executor
}

// WithinTx runs fn inside one database transaction. Any error rolls the
// whole unit back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.TxStore) error) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AcquireRetentionLease takes the advisory lock backing the retention
// leader lease on a dedicated connection. The connection is held until
// release so the lock stays session-bound to this instance.
func (s *Store) AcquireRetentionLease(ctx context.Context) (func(), bool, error) {
	conn, err := s.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection for lease: %w", err)
	}

	var acquired bool
	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", retentionLeaseKey).Scan(&acquired)
	if err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try retention lease: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", retentionLeaseKey); err != nil {
			s.logger.Error("failed to release retention lease", "error", err)
		}
		conn.Release()
	}
	return release, true, nil
}
