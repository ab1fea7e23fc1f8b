package services

import (
	"context"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// Cancel abandons a payment. What that means depends on how far it got:
// before authorization it is a plain status change; an authorized payment
// gets its uncaptured remainder reversed; a confirmed payment is refunded
// in full and ends REFUNDED rather than CANCELLED. The audit entry always
// records the cancel request that triggered it.
func (s *PaymentService) Cancel(ctx context.Context, cmd CancelCommand) (*domain.Payment, error) {
	return s.updatePayment(ctx, cmd.PaymentID, func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error) {
		now := time.Now().UTC()

		switch payment.Status {
		case domain.StatusAuthorized:
			reversal := payment.RemainingAuthorized()
			if err := payment.Cancel(cmd.Reason, now); err != nil {
				return nil, err
			}
			existing, err := tx.GetTransactions(ctx, payment.ID)
			if err != nil {
				return nil, err
			}
			txn, err := newAttempt(existing, payment.ID, domain.TxTypeReversal, reversal)
			if err != nil {
				return nil, err
			}
			if err := txn.Complete(now); err != nil {
				return nil, err
			}
			return &mutation{action: domain.ActionPaymentCancelled, transactions: []*domain.Transaction{txn}}, nil

		case domain.StatusConfirmed, domain.StatusPartialRefunded:
			m, err := refundMutation(ctx, tx, payment, 0, nil)
			if err != nil {
				return nil, err
			}
			m.action = domain.ActionPaymentCancelled
			return m, nil

		default:
			// No money moved yet, or the status forbids cancelling at all;
			// the transition table decides which.
			if err := payment.Cancel(cmd.Reason, now); err != nil {
				return nil, err
			}
			return &mutation{action: domain.ActionPaymentCancelled}, nil
		}
	})
}
