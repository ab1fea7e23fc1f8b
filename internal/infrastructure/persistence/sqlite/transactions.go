package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hackload-kz/payment-sub008/internal/domain"
)

const transactionColumns = `
	id, payment_id, parent_transaction_id,
	type, status,
	amount, fee_amount, net_amount,
	attempt_number, max_retry_attempts, next_retry_at, failure_reason,
	created_at, completed_at
`

func (t *txStore) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`

	_, err := t.q.ExecContext(ctx, query,
		txn.ID, txn.PaymentID, txn.ParentTransactionID,
		string(txn.Type), string(txn.Status),
		txn.Amount, txn.FeeAmount, txn.NetAmount,
		txn.AttemptNumber, txn.MaxRetryAttempts, formatNullableTime(txn.NextRetryAt), txn.FailureReason,
		formatTime(txn.CreatedAt), formatNullableTime(txn.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDuplicateTransactionError(txn.PaymentID, txn.Type, txn.AttemptNumber)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransactions(ctx context.Context, paymentID string) ([]*domain.Transaction, error) {
	return getTransactions(ctx, s.db, paymentID)
}

func (t *txStore) GetTransactions(ctx context.Context, paymentID string) ([]*domain.Transaction, error) {
	return getTransactions(ctx, t.q, paymentID)
}

func getTransactions(ctx context.Context, q executor, paymentID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE payment_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var results []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, txn)
	}
	return results, rows.Err()
}

func (s *Store) AggregateLedger(ctx context.Context, paymentID string) (domain.LedgerAggregate, error) {
	return aggregateLedger(ctx, s.db, paymentID)
}

func (t *txStore) AggregateLedger(ctx context.Context, paymentID string) (domain.LedgerAggregate, error) {
	return aggregateLedger(ctx, t.q, paymentID)
}

func aggregateLedger(ctx context.Context, q executor, paymentID string) (domain.LedgerAggregate, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'AUTHORIZATION' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'CAPTURE' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'REFUND' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type IN ('REVERSAL', 'VOID') THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE payment_id = ? AND status = 'COMPLETED'
	`

	var agg domain.LedgerAggregate
	err := q.QueryRowContext(ctx, query, paymentID).Scan(
		&agg.AuthorizedTotal, &agg.CapturedTotal, &agg.RefundedTotal, &agg.ReversedTotal,
	)
	if err != nil {
		return domain.LedgerAggregate{}, fmt.Errorf("aggregate ledger: %w", err)
	}
	return agg, nil
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var (
		id, paymentID, txType, status   string
		parentID                        sql.NullString
		amount, feeAmount, netAmount    int64
		attemptNumber, maxRetryAttempts int
		nextRetryAt, failureReason      sql.NullString
		createdAt                       string
		completedAt                     sql.NullString
	)

	err := row.Scan(
		&id, &paymentID, &parentID,
		&txType, &status,
		&amount, &feeAmount, &netAmount,
		&attemptNumber, &maxRetryAttempts, &nextRetryAt, &failureReason,
		&createdAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	return domain.ReconstituteTransaction(
		id, paymentID, nullableString(parentID),
		domain.TransactionType(txType), domain.TransactionStatus(status),
		amount, feeAmount, netAmount,
		attemptNumber, maxRetryAttempts,
		parseNullableTime(nextRetryAt), nullableString(failureReason),
		parseStoredTime(createdAt), parseNullableTime(completedAt),
	), nil
}
