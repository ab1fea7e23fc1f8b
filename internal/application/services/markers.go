package services

import (
	"context"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

// MarkNew records that the checkout link was handed to the customer.
func (s *PaymentService) MarkNew(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.updatePayment(ctx, paymentID, func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error) {
		if err := payment.MarkNew(); err != nil {
			return nil, err
		}
		return &mutation{action: domain.ActionPaymentNew}, nil
	})
}

// MarkFormShowed records that the hosted payment form rendered.
func (s *PaymentService) MarkFormShowed(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.updatePayment(ctx, paymentID, func(ctx context.Context, tx application.TxStore, payment *domain.Payment) (*mutation, error) {
		if err := payment.MarkFormShowed(); err != nil {
			return nil, err
		}
		return &mutation{action: domain.ActionPaymentFormShowed}, nil
	})
}
