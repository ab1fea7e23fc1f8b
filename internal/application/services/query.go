package services

import (
	"context"

	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/monitoring"
)

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

func (s *PaymentService) GetPaymentByOrder(ctx context.Context, merchantID, orderID string) (*domain.Payment, error) {
	return s.store.GetPaymentByOrder(ctx, merchantID, orderID)
}

// GetHistory returns the payment's ledger records in creation order.
func (s *PaymentService) GetHistory(ctx context.Context, paymentID string) ([]*domain.Transaction, error) {
	return s.store.GetTransactions(ctx, paymentID)
}

// Aggregate derives the payment's totals from its completed ledger records.
func (s *PaymentService) Aggregate(ctx context.Context, paymentID string) (domain.LedgerAggregate, error) {
	return s.store.AggregateLedger(ctx, paymentID)
}

// GetAuditTrail returns an entity's audit chain in sequence order.
func (s *PaymentService) GetAuditTrail(ctx context.Context, entityID string) ([]*domain.AuditEntry, error) {
	return s.store.GetAuditTrail(ctx, entityID)
}

// VerifyChain replays an entity's whole audit chain against its stored
// hashes. A mismatch surfaces as ErrIntegrityViolation and is never
// repaired.
func (s *PaymentService) VerifyChain(ctx context.Context, entityID string) error {
	entries, err := s.store.GetAuditTrail(ctx, entityID)
	if err != nil {
		return err
	}
	if err := domain.VerifyChain(entries); err != nil {
		monitoring.IntegrityFailures.Inc()
		s.logger.Error("audit chain verification failed", "entity_id", entityID, "error", err)
		return err
	}
	return nil
}

// VerifyEntry replays the chain up to and including the entry. Tampering
// with any predecessor fails the entry too, so a clean result vouches for
// the whole prefix.
func (s *PaymentService) VerifyEntry(ctx context.Context, entryID string) error {
	entry, err := s.store.GetAuditEntry(ctx, entryID)
	if err != nil {
		return err
	}
	trail, err := s.store.GetAuditTrail(ctx, entry.EntityID)
	if err != nil {
		return err
	}

	var prefix []*domain.AuditEntry
	for _, e := range trail {
		if e.SeqNo > entry.SeqNo {
			break
		}
		prefix = append(prefix, e)
	}

	if err := domain.VerifyChain(prefix); err != nil {
		monitoring.IntegrityFailures.Inc()
		s.logger.Error("audit entry verification failed",
			"entry_id", entryID,
			"entity_id", entry.EntityID,
			"seq_no", entry.SeqNo,
			"error", err,
		)
		return err
	}
	return nil
}
