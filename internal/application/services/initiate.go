package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackload-kz/payment-sub008/internal/application"
	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/monitoring"
)

// Initiate registers a new payment for a merchant order after checking the
// merchant's amount, currency and daily-volume policy. The order claim and
// the payment row commit together, so of two racing initiates for the same
// (merchant, order) pair exactly one creates a payment and the other gets
// ErrDuplicateOrder.
func (s *PaymentService) Initiate(ctx context.Context, cmd InitiateCommand) (*domain.Payment, error) {
	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, err
	}

	limits, err := s.merchants.GetLimits(ctx, cmd.MerchantID)
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateAmount(money); err != nil {
		return nil, err
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	initiated, err := s.store.SumInitiatedAmount(ctx, cmd.MerchantID, dayStart)
	if err != nil {
		return nil, err
	}
	if !limits.WithinDailyLimit(initiated, cmd.Amount) {
		return nil, domain.NewDailyLimitExceededError(cmd.MerchantID, limits.DailyLimit)
	}

	payment, err := domain.NewPayment(uuid.New().String(), cmd.MerchantID, cmd.OrderID, money, s.paymentTTL)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx application.TxStore) error {
		if err := tx.ClaimOrder(ctx, cmd.MerchantID, cmd.OrderID, payment.ID); err != nil {
			return err
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		return appendPaymentAudit(ctx, tx, payment, domain.ActionPaymentCreated, nil)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOrder) {
			monitoring.DuplicateOrders.Inc()
		}
		return nil, storageFailure("create payment", err)
	}

	s.logger.Info("payment initiated",
		"payment_id", payment.ID,
		"merchant_id", payment.MerchantID,
		"order_id", payment.OrderID,
		"amount", payment.Amount,
		"currency", payment.Currency,
	)
	return payment, nil
}
