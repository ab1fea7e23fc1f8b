package services

import (
	"context"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// Confirm captures authorized funds. A zero amount captures everything
// still authorized. Capturing the full remainder moves the payment to
// CONFIRMED; a partial capture leaves it AUTHORIZED and needs the
// merchant's partial-capture permission.
func (s *PaymentService) Confirm(ctx context.Context, cmd ConfirmCommand) (*domain.Payment, error) {
	current, err := s.store.GetPayment(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	limits, err := s.merchants.GetLimits(ctx, current.MerchantID)
	if err != nil {
		return nil, err
	}

	return s.updatePayment(ctx, cmd.PaymentID, func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error) {
		now := time.Now().UTC()
		remaining := payment.RemainingAuthorized()
		amount := cmd.Amount
		if amount == 0 {
			amount = remaining
		}

		if err := payment.Capture(amount, now); err != nil {
			return nil, err
		}
		if amount < remaining && !limits.AllowPartialCaptures {
			return nil, domain.NewPartialCaptureNotAllowedError(payment.MerchantID)
		}

		existing, err := tx.GetTransactions(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		txn, err := newAttempt(existing, payment.ID, domain.TxTypeCapture, amount)
		if err != nil {
			return nil, err
		}
		if err := txn.Complete(now); err != nil {
			return nil, err
		}

		action := domain.ActionPaymentCaptured
		if payment.Status == domain.StatusConfirmed {
			action = domain.ActionPaymentConfirmed
		}
		return &mutation{action: action, transactions: []*domain.Transaction{txn}}, nil
	})
}
