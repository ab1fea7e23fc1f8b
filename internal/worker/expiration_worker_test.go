package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackload-kz/payment-sub008/internal/application/services"
	"github.com/hackload-kz/payment-sub008/internal/application/services/testhelpers"
	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/merchant"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence/sqlite"
	"github.com/hackload-kz/payment-sub008/internal/worker"
)

type expirationFixture struct {
	store *sqlite.Store
	// expired issues payments whose deadline already passed.
	expired *services.PaymentService
	live    *services.PaymentService
	worker  *worker.ExpirationWorker
}

func newExpirationFixture(t *testing.T, batchSize int) *expirationFixture {
	t.Helper()

	store := testhelpers.NewStore(t)
	provider := merchant.NewStaticProvider(testhelpers.DefaultLimits())
	logger := testhelpers.QuietLogger()

	expired := services.NewPaymentService(store, provider, logger, -time.Minute)
	return &expirationFixture{
		store:   store,
		expired: expired,
		live:    services.NewPaymentService(store, provider, logger, 15*time.Minute),
		worker:  worker.NewExpirationWorker(store, expired, time.Minute, batchSize, logger),
	}
}

func TestExpirationWorker_MarksOverduePayments(t *testing.T) {
	ctx := context.Background()
	f := newExpirationFixture(t, 10)

	var overdue []*domain.Payment
	for i := 0; i < 3; i++ {
		p, err := f.expired.Initiate(ctx, testhelpers.DefaultInitiateCommand())
		require.NoError(t, err)
		overdue = append(overdue, p)
	}

	fresh, err := f.live.Initiate(ctx, testhelpers.DefaultInitiateCommand())
	require.NoError(t, err)

	// Past its deadline, but the authorization beat the sweep to it.
	won, err := f.expired.Initiate(ctx, testhelpers.DefaultInitiateCommand())
	require.NoError(t, err)
	_, err = f.expired.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: won.ID,
		Result:    testhelpers.ApprovedResult(),
	})
	require.NoError(t, err)

	require.NoError(t, f.worker.RunOnce(ctx))

	for _, p := range overdue {
		saved, err := f.live.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusExpired, saved.Status)

		trail, err := f.live.GetAuditTrail(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionPaymentExpired, trail[len(trail)-1].Action)
	}

	saved, err := f.live.GetPayment(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInit, saved.Status)

	saved, err = f.live.GetPayment(ctx, won.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthorized, saved.Status)

	// Expiry released the order claims.
	_, err = f.live.Initiate(ctx, services.InitiateCommand{
		MerchantID: overdue[0].MerchantID,
		OrderID:    overdue[0].OrderID,
		Amount:     overdue[0].Amount,
		Currency:   overdue[0].Currency,
	})
	require.NoError(t, err)
}

func TestExpirationWorker_BoundsSweepByBatchSize(t *testing.T) {
	ctx := context.Background()
	f := newExpirationFixture(t, 2)

	for i := 0; i < 5; i++ {
		_, err := f.expired.Initiate(ctx, testhelpers.DefaultInitiateCommand())
		require.NoError(t, err)
	}

	// Payments the sweep already handled drop out of the due list.
	countExpired := func() int {
		t.Helper()
		due, err := f.store.ListExpiredPayments(ctx, time.Now().UTC(), 100)
		require.NoError(t, err)
		return 5 - len(due)
	}

	require.NoError(t, f.worker.RunOnce(ctx))
	assert.Equal(t, 2, countExpired())

	require.NoError(t, f.worker.RunOnce(ctx))
	assert.Equal(t, 4, countExpired())

	require.NoError(t, f.worker.RunOnce(ctx))
	assert.Equal(t, 5, countExpired())

	// Nothing left to sweep.
	require.NoError(t, f.worker.RunOnce(ctx))
}

func TestExpirationWorker_EmptySweep(t *testing.T) {
	ctx := context.Background()
	f := newExpirationFixture(t, 10)

	require.NoError(t, f.worker.RunOnce(ctx))
}
