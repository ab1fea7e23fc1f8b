package testhelpers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackload-kz/payment-sub008/internal/application/services"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

const TestMerchantID = "merchant-test"

// DefaultLimits returns a permissive merchant policy for testing.
func DefaultLimits() domain.MerchantLimits {
	return domain.MerchantLimits{
		MerchantID:           TestMerchantID,
		MinAmount:            100,
		MaxAmount:            1_000_000,
		DailyLimit:           0,
		SupportedCurrencies:  []string{"KZT", "USD"},
		AllowPartialRefunds:  true,
		AllowPartialCaptures: true,
	}
}

// DefaultInitiateCommand returns a valid initiate command for testing.
func DefaultInitiateCommand() services.InitiateCommand {
	return services.InitiateCommand{
		MerchantID: TestMerchantID,
		OrderID:    "order-" + uuid.New().String(),
		Amount:     1000,
		Currency:   "KZT",
	}
}

// ApprovedResult returns an approving acquirer verdict.
func ApprovedResult() domain.BankResult {
	return domain.BankResult{
		Approved: true,
		AuthRef:  "auth-" + uuid.New().String(),
	}
}

// DeclinedResult returns a declining acquirer verdict.
func DeclinedResult() domain.BankResult {
	return domain.BankResult{
		Approved: false,
		Code:     "card_declined",
		Message:  "insufficient funds",
	}
}

// CreateAuthorizedPayment walks a fresh payment to AUTHORIZED.
func CreateAuthorizedPayment(t *testing.T, ctx context.Context, svc *services.PaymentService) *domain.Payment {
	t.Helper()

	payment, err := svc.Initiate(ctx, DefaultInitiateCommand())
	require.NoError(t, err)

	_, err = svc.MarkNew(ctx, payment.ID)
	require.NoError(t, err)
	_, err = svc.MarkFormShowed(ctx, payment.ID)
	require.NoError(t, err)

	payment, err = svc.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: payment.ID,
		Result:    ApprovedResult(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAuthorized, payment.Status)

	return payment
}

// CreateConfirmedPayment walks a fresh payment to CONFIRMED with the full
// amount captured.
func CreateConfirmedPayment(t *testing.T, ctx context.Context, svc *services.PaymentService) *domain.Payment {
	t.Helper()

	payment := CreateAuthorizedPayment(t, ctx, svc)

	payment, err := svc.Confirm(ctx, services.ConfirmCommand{PaymentID: payment.ID})
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, payment.Status)

	return payment
}
