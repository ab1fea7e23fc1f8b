package services

import (
	"context"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// Authorize records the acquirer's verdict on the payment. Approval moves
// it to AUTHORIZED with a completed authorization on the ledger; a decline
// ends it in REJECTED with a declined record and frees the order for
// another attempt. Either way the verdict is final for this call.
func (s *PaymentService) Authorize(ctx context.Context, cmd AuthorizeCommand) (*domain.Payment, error) {
	return s.updatePayment(ctx, cmd.PaymentID, func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error) {
		existing, err := tx.GetTransactions(ctx, payment.ID)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()

		if !cmd.Result.Approved {
			reason := declineReason(cmd.Result)
			if err := payment.Reject(reason); err != nil {
				return nil, err
			}
			txn, err := newAttempt(existing, payment.ID, domain.TxTypeAuthorization, payment.Amount)
			if err != nil {
				return nil, err
			}
			if err := txn.Decline(reason, now); err != nil {
				return nil, err
			}
			return &mutation{action: domain.ActionPaymentRejected, transactions: []*domain.Transaction{txn}}, nil
		}

		if err := payment.Authorize(cmd.Result.AuthRef, now); err != nil {
			return nil, err
		}
		txn, err := newAttempt(existing, payment.ID, domain.TxTypeAuthorization, payment.Amount)
		if err != nil {
			return nil, err
		}
		if err := txn.Complete(now); err != nil {
			return nil, err
		}
		return &mutation{action: domain.ActionPaymentAuthorized, transactions: []*domain.Transaction{txn}}, nil
	})
}

func declineReason(result domain.BankResult) string {
	switch {
	case result.Message == "":
		return result.Code
	case result.Code == "":
		return result.Message
	default:
		return result.Code + ": " + result.Message
	}
}
