package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// storageFailure passes domain rule errors through untouched and wraps
// everything else, so embedding layers always see a stable error code.
func storageFailure(op string, err error) error {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return application.NewStorageError(op, err)
}

// paymentSnapshot is the audit projection of a payment. Old entries must
// rehash to their stored value forever, so the shape is pinned here
// instead of borrowing the domain struct.
type paymentSnapshot struct {
	ID             string  `json:"id"`
	MerchantID     string  `json:"merchant_id"`
	OrderID        string  `json:"order_id"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	CapturedAmount int64   `json:"captured_amount"`
	RefundedAmount int64   `json:"refunded_amount"`
	RefundCount    int     `json:"refund_count"`
	Status         string  `json:"status"`
	FailureReason  *string `json:"failure_reason,omitempty"`
	AuthRef        *string `json:"auth_ref,omitempty"`
	Version        int64   `json:"version"`
}

func snapshotPayment(p *domain.Payment) []byte {
	b, _ := json.Marshal(paymentSnapshot{
		ID:             p.ID,
		MerchantID:     p.MerchantID,
		OrderID:        p.OrderID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		CapturedAmount: p.CapturedAmount,
		RefundedAmount: p.RefundedAmount,
		RefundCount:    p.RefundCount,
		Status:         string(p.Status),
		FailureReason:  p.FailureReason,
		AuthRef:        p.AuthRef,
		Version:        p.Version,
	})
	return b
}

// appendPaymentAudit chains one entry for the payment inside the same
// atomic unit as the state change it describes.
func appendPaymentAudit(ctx context.Context, tx application.TxStore, p *domain.Payment, action string, before []byte) error {
	entry, err := domain.NewAuditEntry(
		uuid.New().String(),
		domain.EntityPayment,
		p.ID,
		action,
		before,
		snapshotPayment(p),
		sensitiveAction(action),
	)
	if err != nil {
		return err
	}
	return tx.AppendAuditEntry(ctx, entry)
}

// sensitiveAction marks the money-moving actions whose audit entries the
// retention worker re-verifies.
func sensitiveAction(action string) bool {
	switch action {
	case domain.ActionPaymentAuthorized,
		domain.ActionPaymentCaptured,
		domain.ActionPaymentConfirmed,
		domain.ActionPaymentCancelled,
		domain.ActionPaymentRefunded:
		return true
	}
	return false
}

// newAttempt builds a ledger record numbered after every attempt already
// recorded for its type, failed ones included.
func newAttempt(existing []*domain.Transaction, paymentID string, txType domain.TransactionType, amount int64) (*domain.Transaction, error) {
	txn, err := domain.NewTransaction(uuid.New().String(), paymentID, txType, amount)
	if err != nil {
		return nil, err
	}
	txn.AttemptNumber = nextAttemptNumber(existing, txType)
	return txn, nil
}

func nextAttemptNumber(existing []*domain.Transaction, txType domain.TransactionType) int {
	attempt := 1
	for _, t := range existing {
		if t.Type == txType && t.AttemptNumber >= attempt {
			attempt = t.AttemptNumber + 1
		}
	}
	return attempt
}

// firstCompletedCapture finds the capture record a refund settles against.
func firstCompletedCapture(existing []*domain.Transaction) *domain.Transaction {
	for _, t := range existing {
		if t.Type == domain.TxTypeCapture && t.Status == domain.TxStatusCompleted {
			return t
		}
	}
	return nil
}
