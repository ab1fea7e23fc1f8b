package services

import (
	"context"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// Refund returns captured funds. A zero amount refunds everything still
// captured. Partial refunds need the merchant's permission; refunding the
// last captured unit ends the payment in REFUNDED. The refund record
// points at the capture it settles against.
func (s *PaymentService) Refund(ctx context.Context, cmd RefundCommand) (*domain.Payment, error) {
	current, err := s.store.GetPayment(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	limits, err := s.merchants.GetLimits(ctx, current.MerchantID)
	if err != nil {
		return nil, err
	}

	return s.updatePayment(ctx, cmd.PaymentID, func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error) {
		return refundMutation(ctx, tx, payment, cmd.Amount, &limits)
	})
}

// refundMutation is the shared refund path. Cancel on a confirmed payment
// delegates here with a nil limits, which skips the partial-refund check
// because that path always refunds the full remainder.
func refundMutation(ctx context.Context, tx application.TxStore, payment *domain.Payment, amount int64, limits *domain.MerchantLimits) (*mutation, error) {
	now := time.Now().UTC()
	remaining := payment.RemainingCaptured()
	if amount == 0 {
		amount = remaining
	}

	if err := payment.Refund(amount, now); err != nil {
		return nil, err
	}
	if limits != nil && amount < remaining && !limits.AllowPartialRefunds {
		return nil, domain.NewPartialRefundNotAllowedError(payment.MerchantID)
	}

	existing, err := tx.GetTransactions(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	txn, err := newAttempt(existing, payment.ID, domain.TxTypeRefund, amount)
	if err != nil {
		return nil, err
	}
	if parent := firstCompletedCapture(existing); parent != nil {
		txn.ParentTransactionID = &parent.ID
	}
	if err := txn.Complete(now); err != nil {
		return nil, err
	}

	return &mutation{action: domain.ActionPaymentRefunded, transactions: []*domain.Transaction{txn}}, nil
}
