// Package services implements the payment lifecycle operations on top of
// the storage and merchant-config ports.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/monitoring"
)

// PaymentService drives payments through their lifecycle. Every mutating
// operation follows the same protocol: read the payment and its version,
// reconcile the stored counters against the ledger, apply the domain
// mutation, then commit the payment update, ledger appends and audit entry
// as one atomic unit gated on the version still matching.
type PaymentService struct {
	store      application.Store
	merchants  application.MerchantConfigProvider
	logger     *slog.Logger
	paymentTTL time.Duration
}

func NewPaymentService(
	store application.Store,
	merchants application.MerchantConfigProvider,
	logger *slog.Logger,
	paymentTTL time.Duration,
) *PaymentService {
	return &PaymentService{
		store:      store,
		merchants:  merchants,
		logger:     logger,
		paymentTTL: paymentTTL,
	}
}

// mutation is what one lifecycle operation wants persisted alongside the
// payment row itself.
type mutation struct {
	action       string
	transactions []*domain.Transaction
}

// updatePayment runs one state-changing operation under the optimistic
// concurrency protocol. When a concurrent writer commits first the
// conditional update matches nothing, the whole unit rolls back, and the
// caller gets ErrConcurrentModification with no side effects. Retrying is
// the caller's decision, never done here.
func (s *PaymentService) updatePayment(
	ctx context.Context,
	paymentID string,
	mutate func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error),
) (*domain.Payment, error) {
	var updated *domain.Payment
	var from domain.PaymentStatus

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx application.TxStore) error {
		payment, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}

		agg, err := tx.AggregateLedger(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := domain.ReconcileAggregate(payment, agg); err != nil {
			return err
		}

		from = payment.Status
		before := snapshotPayment(payment)
		expectedVersion := payment.Version

		m, err := mutate(ctx, tx, payment)
		if err != nil {
			return err
		}

		if err := tx.UpdatePaymentVersioned(ctx, payment, expectedVersion); err != nil {
			return err
		}
		for _, txn := range m.transactions {
			if err := tx.AppendTransaction(ctx, txn); err != nil {
				return err
			}
		}

		// A payment that ended without moving money frees its order for
		// another attempt, in the same commit.
		switch payment.Status {
		case domain.StatusRejected, domain.StatusCancelled, domain.StatusExpired:
			if err := tx.ReleaseOrder(ctx, payment.MerchantID, payment.OrderID); err != nil {
				return err
			}
		}

		if err := appendPaymentAudit(ctx, tx, payment, m.action, before); err != nil {
			return err
		}

		updated = payment
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConcurrentModification):
			monitoring.VersionConflicts.Inc()
		case errors.Is(err, domain.ErrIntegrityViolation):
			monitoring.IntegrityFailures.Inc()
			s.logger.Error("ledger drift detected", "payment_id", paymentID, "error", err)
		}
		return nil, storageFailure("update payment", err)
	}

	if updated.Status != from {
		monitoring.PaymentTransitions.WithLabelValues(string(from), string(updated.Status)).Inc()
	}
	return updated, nil
}
