package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/domain"
)

const paymentColumns = `
	id, merchant_id, order_id, amount, currency,
	captured_amount, refunded_amount, refund_count,
	status, failure_reason, auth_ref,
	created_at, authorized_at, confirmed_at, cancelled_at, refunded_at, expires_at,
	version
`

func (t *txStore) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`

	_, err := t.q.ExecContext(ctx, query,
		p.ID, p.MerchantID, p.OrderID, p.Amount, p.Currency,
		p.CapturedAmount, p.RefundedAmount, p.RefundCount,
		string(p.Status), p.FailureReason, p.AuthRef,
		formatTime(p.CreatedAt), formatNullableTime(p.AuthorizedAt), formatNullableTime(p.ConfirmedAt),
		formatNullableTime(p.CancelledAt), formatNullableTime(p.RefundedAt), formatTime(p.ExpiresAt),
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return getPayment(ctx, s.db, id)
}

func (t *txStore) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return getPayment(ctx, t.q, id)
}

func getPayment(ctx context.Context, q executor, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	return scanPayment(q.QueryRowContext(ctx, query, id), id)
}

func (s *Store) GetPaymentByOrder(ctx context.Context, merchantID, orderID string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE merchant_id = ? AND order_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(s.db.QueryRowContext(ctx, query, merchantID, orderID), orderID)
}

// UpdatePaymentVersioned persists the payment through a conditional
// write. Zero matched rows means another writer committed first.
func (t *txStore) UpdatePaymentVersioned(ctx context.Context, p *domain.Payment, expectedVersion int64) error {
	query := `
		UPDATE payments
		SET status = ?,
			captured_amount = ?, refunded_amount = ?, refund_count = ?,
			failure_reason = ?, auth_ref = ?,
			authorized_at = ?, confirmed_at = ?, cancelled_at = ?, refunded_at = ?,
			expires_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`

	res, err := t.q.ExecContext(ctx, query,
		string(p.Status),
		p.CapturedAmount, p.RefundedAmount, p.RefundCount,
		p.FailureReason, p.AuthRef,
		formatNullableTime(p.AuthorizedAt), formatNullableTime(p.ConfirmedAt),
		formatNullableTime(p.CancelledAt), formatNullableTime(p.RefundedAt),
		formatTime(p.ExpiresAt),
		p.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected == 0 {
		return domain.NewConcurrentModificationError(p.ID, expectedVersion)
	}

	p.Version = expectedVersion + 1
	return nil
}

func (t *txStore) ClaimOrder(ctx context.Context, merchantID, orderID, paymentID string) error {
	query := `INSERT INTO order_claims (merchant_id, order_id, payment_id, created_at) VALUES (?,?,?,?)`
	_, err := t.q.ExecContext(ctx, query, merchantID, orderID, paymentID, formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDuplicateOrderError(merchantID, orderID)
		}
		return fmt.Errorf("claim order: %w", err)
	}
	return nil
}

func (t *txStore) ReleaseOrder(ctx context.Context, merchantID, orderID string) error {
	query := `DELETE FROM order_claims WHERE merchant_id = ? AND order_id = ?`
	if _, err := t.q.ExecContext(ctx, query, merchantID, orderID); err != nil {
		return fmt.Errorf("release order claim: %w", err)
	}
	return nil
}

func (s *Store) ListExpiredPayments(ctx context.Context, asOf time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN ('INIT', 'NEW', 'FORM_SHOWED')
		  AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, formatTime(asOf), limit)
	if err != nil {
		return nil, fmt.Errorf("query expired payments: %w", err)
	}
	defer rows.Close()

	var results []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows, "")
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *Store) SumInitiatedAmount(ctx context.Context, merchantID string, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE merchant_id = ?
		  AND created_at >= ?
		  AND status NOT IN ('REJECTED', 'CANCELLED', 'EXPIRED')
	`

	var total int64
	if err := s.db.QueryRowContext(ctx, query, merchantID, formatTime(since)).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum initiated amounts: %w", err)
	}
	return total, nil
}

// scanner is the shared Scan surface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner, id string) (*domain.Payment, error) {
	var (
		pID, merchantID, orderID, currency, status string
		amount, capturedAmount, refundedAmount     int64
		refundCount                                int
		version                                    int64
		failureReason, authRef                     sql.NullString
		createdAt, expiresAt                       string
		authorizedAt, confirmedAt                  sql.NullString
		cancelledAt, refundedAt                    sql.NullString
	)

	err := row.Scan(
		&pID, &merchantID, &orderID, &amount, &currency,
		&capturedAmount, &refundedAmount, &refundCount,
		&status, &failureReason, &authRef,
		&createdAt, &authorizedAt, &confirmedAt, &cancelledAt, &refundedAt, &expiresAt,
		&version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(id)
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	return domain.Reconstitute(
		pID, merchantID, orderID,
		amount, currency,
		capturedAmount, refundedAmount, refundCount,
		domain.PaymentStatus(status),
		nullableString(failureReason), nullableString(authRef),
		parseStoredTime(createdAt),
		parseNullableTime(authorizedAt), parseNullableTime(confirmedAt),
		parseNullableTime(cancelledAt), parseNullableTime(refundedAt),
		parseStoredTime(expiresAt),
		version,
	), nil
}
