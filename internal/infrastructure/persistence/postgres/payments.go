package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence"
)

const paymentColumns = `
	id, merchant_id, order_id, amount, currency,
	captured_amount, refunded_amount, refund_count,
	status, failure_reason, auth_ref,
	created_at, authorized_at, confirmed_at, cancelled_at, refunded_at, expires_at,
	version
`

func (t *txStore) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	return createPayment(ctx, t.q, payment)
}

func createPayment(ctx context.Context, q persistence.Executor, p *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := q.Exec(ctx, query,
		p.ID, p.MerchantID, p.OrderID, p.Amount, p.Currency,
		p.CapturedAmount, p.RefundedAmount, p.RefundCount,
		string(p.Status), p.FailureReason, p.AuthRef,
		p.CreatedAt, p.AuthorizedAt, p.ConfirmedAt, p.CancelledAt, p.RefundedAt, p.ExpiresAt,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return getPayment(ctx, s.db.Pool, id)
}

func (t *txStore) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return getPayment(ctx, t.q, id)
}

func getPayment(ctx context.Context, q persistence.Executor, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(q.QueryRow(ctx, query, id), id)
}

func (s *Store) GetPaymentByOrder(ctx context.Context, merchantID, orderID string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE merchant_id = $1 AND order_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(s.db.Pool.QueryRow(ctx, query, merchantID, orderID), orderID)
}

// UpdatePaymentVersioned persists the payment through a conditional write.
// The update only matches while the stored version equals expectedVersion;
// zero rows means another writer committed first.
func (t *txStore) UpdatePaymentVersioned(ctx context.Context, payment *domain.Payment, expectedVersion int64) error {
	query := `
		UPDATE payments
		SET status = $1,
			captured_amount = $2, refunded_amount = $3, refund_count = $4,
			failure_reason = $5, auth_ref = $6,
			authorized_at = $7, confirmed_at = $8, cancelled_at = $9, refunded_at = $10,
			expires_at = $11,
			version = version + 1
		WHERE id = $12 AND version = $13
	`

	tag, err := t.q.Exec(ctx, query,
		string(payment.Status),
		payment.CapturedAmount, payment.RefundedAmount, payment.RefundCount,
		payment.FailureReason, payment.AuthRef,
		payment.AuthorizedAt, payment.ConfirmedAt, payment.CancelledAt, payment.RefundedAt,
		payment.ExpiresAt,
		payment.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewConcurrentModificationError(payment.ID, expectedVersion)
	}

	payment.Version = expectedVersion + 1
	return nil
}

func (t *txStore) ClaimOrder(ctx context.Context, merchantID, orderID, paymentID string) error {
	query := `
		INSERT INTO order_claims (merchant_id, order_id, payment_id, created_at)
		VALUES ($1, $2, $3, now())
	`
	_, err := t.q.Exec(ctx, query, merchantID, orderID, paymentID)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.NewDuplicateOrderError(merchantID, orderID)
		}
		return fmt.Errorf("failed to claim order: %w", err)
	}
	return nil
}

func (t *txStore) ReleaseOrder(ctx context.Context, merchantID, orderID string) error {
	query := `DELETE FROM order_claims WHERE merchant_id = $1 AND order_id = $2`
	if _, err := t.q.Exec(ctx, query, merchantID, orderID); err != nil {
		return fmt.Errorf("failed to release order claim: %w", err)
	}
	return nil
}

// ListExpiredPayments finds payments still waiting for authorization whose
// deadline passed before asOf.
func (s *Store) ListExpiredPayments(ctx context.Context, asOf time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN ('INIT', 'NEW', 'FORM_SHOWED')
		  AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`

	rows, err := s.db.Pool.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired payments: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		var m paymentRow
		err := row.Scan(
			&m.ID, &m.MerchantID, &m.OrderID, &m.Amount, &m.Currency,
			&m.CapturedAmount, &m.RefundedAmount, &m.RefundCount,
			&m.Status, &m.FailureReason, &m.AuthRef,
			&m.CreatedAt, &m.AuthorizedAt, &m.ConfirmedAt, &m.CancelledAt, &m.RefundedAt, &m.ExpiresAt,
			&m.Version,
		)
		return m.toDomain(), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan expired payments: %w", err)
	}
	return results, nil
}

// SumInitiatedAmount totals the amounts a merchant initiated since the
// given instant. Payments that ended without moving money do not count
// against the daily limit.
func (s *Store) SumInitiatedAmount(ctx context.Context, merchantID string, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE merchant_id = $1
		  AND created_at >= $2
		  AND status NOT IN ('REJECTED', 'CANCELLED', 'EXPIRED')
	`

	var total int64
	if err := s.db.Pool.QueryRow(ctx, query, merchantID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum initiated amounts: %w", err)
	}
	return total, nil
}

// scanPayment converts a database row into a domain Payment.
func scanPayment(row pgx.Row, id string) (*domain.Payment, error) {
	var m paymentRow
	err := row.Scan(
		&m.ID, &m.MerchantID, &m.OrderID, &m.Amount, &m.Currency,
		&m.CapturedAmount, &m.RefundedAmount, &m.RefundCount,
		&m.Status, &m.FailureReason, &m.AuthRef,
		&m.CreatedAt, &m.AuthorizedAt, &m.ConfirmedAt, &m.CancelledAt, &m.RefundedAt, &m.ExpiresAt,
		&m.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return m.toDomain(), nil
}
