package services

import (
	"context"
	"time"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/monitoring"
)

// Expire closes a payment that never reached authorization before its
// deadline. System-triggered by the expiration sweep; a payment whose
// deadline has not passed yet stays untouched.
func (s *PaymentService) Expire(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.updatePayment(ctx, paymentID, func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error) {
		if err := payment.MarkExpired(time.Now().UTC()); err != nil {
			return nil, err
		}
		return &mutation{action: domain.ActionPaymentExpired}, nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ExpiredPayments.Inc()
	return payment, nil
}
