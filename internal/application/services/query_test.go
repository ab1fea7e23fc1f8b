package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/hackload-kz/payment-sub008/internal/application/services"
	"github.com/hackload-kz/payment-sub008/internal/application/services/testhelpers"
	"github.com/hackload-kz/payment-sub008/internal/domain"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/merchant"
	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence/sqlite"
)

type QueryTestSuite struct {
	suite.Suite
	store   *sqlite.Store
	service *services.PaymentService
}

func TestQuerySuite(t *testing.T) {
	suite.Run(t, new(QueryTestSuite))
}

// SetupTest runs before each test
func (suite *QueryTestSuite) SetupTest() {
	suite.store = testhelpers.NewStore(suite.T())
	suite.service = services.NewPaymentService(
		suite.store,
		merchant.NewStaticProvider(testhelpers.DefaultLimits()),
		testhelpers.QuietLogger(),
		testTTL,
	)
}

func (suite *QueryTestSuite) Test_GetPayment_NotFound() {
	ctx := context.Background()
	t := suite.T()

	_, err := suite.service.GetPayment(ctx, "payment-missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func (suite *QueryTestSuite) Test_GetPaymentByOrder_NotFound() {
	ctx := context.Background()
	t := suite.T()

	_, err := suite.service.GetPaymentByOrder(ctx, testhelpers.TestMerchantID, "order-missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func (suite *QueryTestSuite) Test_GetHistory_OrdersByCreation() {
	ctx := context.Background()
	t := suite.T()
	payment := testhelpers.CreateConfirmedPayment(t, ctx, suite.service)

	_, err := suite.service.Refund(ctx, services.RefundCommand{PaymentID: payment.ID, Amount: 300})
	require.NoError(t, err)
	_, err = suite.service.Refund(ctx, services.RefundCommand{PaymentID: payment.ID, Amount: 200})
	require.NoError(t, err)

	history, err := suite.service.GetHistory(ctx, payment.ID)

	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, domain.TxTypeAuthorization, history[0].Type)
	assert.Equal(t, domain.TxTypeCapture, history[1].Type)
	assert.Equal(t, domain.TxTypeRefund, history[2].Type)
	assert.Equal(t, domain.TxTypeRefund, history[3].Type)
	assert.Equal(t, int64(300), history[2].Amount)
	assert.Equal(t, int64(200), history[3].Amount)
}

func (suite *QueryTestSuite) Test_Aggregate_EmptyLedger() {
	ctx := context.Background()
	t := suite.T()

	payment, err := suite.service.Initiate(ctx, testhelpers.DefaultInitiateCommand())
	require.NoError(t, err)

	agg, err := suite.service.Aggregate(ctx, payment.ID)

	require.NoError(t, err)
	assert.Zero(t, agg.AuthorizedTotal)
	assert.Zero(t, agg.CapturedTotal)
	assert.Zero(t, agg.RefundedTotal)
	assert.Zero(t, agg.ReversedTotal)
}

func (suite *QueryTestSuite) Test_GetAuditTrail_SequencesFromOne() {
	ctx := context.Background()
	t := suite.T()
	payment := testhelpers.CreateConfirmedPayment(t, ctx, suite.service)

	trail, err := suite.service.GetAuditTrail(ctx, payment.ID)

	require.NoError(t, err)
	require.Len(t, trail, 5)
	for i, entry := range trail {
		assert.Equal(t, int64(i+1), entry.SeqNo)
		assert.Equal(t, domain.EntityPayment, entry.EntityType)
		assert.Equal(t, payment.ID, entry.EntityID)
		assert.NotEmpty(t, entry.IntegrityHash)
	}
}

func (suite *QueryTestSuite) Test_VerifyEntry_CleanChain() {
	ctx := context.Background()
	t := suite.T()
	payment := testhelpers.CreateConfirmedPayment(t, ctx, suite.service)

	trail, err := suite.service.GetAuditTrail(ctx, payment.ID)
	require.NoError(t, err)

	for _, entry := range trail {
		assert.NoError(t, suite.service.VerifyEntry(ctx, entry.ID))
	}
}

func (suite *QueryTestSuite) Test_VerifyEntry_NotFound() {
	ctx := context.Background()
	t := suite.T()

	err := suite.service.VerifyEntry(ctx, "entry-missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuditEntryNotFound)
}

func (suite *QueryTestSuite) Test_VerifyChain_EmptyTrail() {
	ctx := context.Background()
	t := suite.T()

	// An entity with no entries has nothing to dispute.
	require.NoError(t, suite.service.VerifyChain(ctx, "entity-missing"))
}
