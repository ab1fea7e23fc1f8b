package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence"
)

const transactionColumns = `
	id, payment_id, parent_transaction_id,
	type, status,
	amount, fee_amount, net_amount,
	attempt_number, max_retry_attempts, next_retry_at, failure_reason,
	created_at, completed_at
`

// AppendTransaction inserts a ledger record. The partial unique index on
// (payment_id, type, attempt_number) refuses a second live record for the
// same attempt; failed attempts stay out of the index so retries can reuse
// the slot's successor numbers freely.
func (t *txStore) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := t.q.Exec(ctx, query,
		txn.ID, txn.PaymentID, txn.ParentTransactionID,
		string(txn.Type), string(txn.Status),
		txn.Amount, txn.FeeAmount, txn.NetAmount,
		txn.AttemptNumber, txn.MaxRetryAttempts, txn.NextRetryAt, txn.FailureReason,
		txn.CreatedAt, txn.CompletedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.NewDuplicateTransactionError(txn.PaymentID, txn.Type, txn.AttemptNumber)
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransactions(ctx context.Context, paymentID string) ([]*domain.Transaction, error) {
	return getTransactions(ctx, s.db.Pool, paymentID)
}

func (t *txStore) GetTransactions(ctx context.Context, paymentID string) ([]*domain.Transaction, error) {
	return getTransactions(ctx, t.q, paymentID)
}

func getTransactions(ctx context.Context, q persistence.Executor, paymentID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE payment_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transaction, error) {
		var m transactionRow
		err := row.Scan(
			&m.ID, &m.PaymentID, &m.ParentTransactionID,
			&m.Type, &m.Status,
			&m.Amount, &m.FeeAmount, &m.NetAmount,
			&m.AttemptNumber, &m.MaxRetryAttempts, &m.NextRetryAt, &m.FailureReason,
			&m.CreatedAt, &m.CompletedAt,
		)
		return m.toDomain(), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return results, nil
}

func (s *Store) AggregateLedger(ctx context.Context, paymentID string) (domain.LedgerAggregate, error) {
	return aggregateLedger(ctx, s.db.Pool, paymentID)
}

func (t *txStore) AggregateLedger(ctx context.Context, paymentID string) (domain.LedgerAggregate, error) {
	return aggregateLedger(ctx, t.q, paymentID)
}

// aggregateLedger folds completed records into per-type totals in one pass.
func aggregateLedger(ctx context.Context, q persistence.Executor, paymentID string) (domain.LedgerAggregate, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'AUTHORIZATION' THEN amount ELSE 0 END), 0) AS authorized_total,
			COALESCE(SUM(CASE WHEN type = 'CAPTURE' THEN amount ELSE 0 END), 0) AS captured_total,
			COALESCE(SUM(CASE WHEN type = 'REFUND' THEN amount ELSE 0 END), 0) AS refunded_total,
			COALESCE(SUM(CASE WHEN type IN ('REVERSAL', 'VOID') THEN amount ELSE 0 END), 0) AS reversed_total
		FROM transactions
		WHERE payment_id = $1 AND status = 'COMPLETED'
	`

	var agg domain.LedgerAggregate
	err := q.QueryRow(ctx, query, paymentID).Scan(
		&agg.AuthorizedTotal, &agg.CapturedTotal, &agg.RefundedTotal, &agg.ReversedTotal,
	)
	if err != nil {
		return domain.LedgerAggregate{}, fmt.Errorf("aggregate ledger: %w", err)
	}
	return agg, nil
}
