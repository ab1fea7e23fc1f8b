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

type AuthorizeTestSuite struct {
	suite.Suite
	store   *sqlite.Store
	service *services.PaymentService
}

func TestAuthorizeSuite(t *testing.T) {
	suite.Run(t, new(AuthorizeTestSuite))
}

// SetupTest runs before each test
func (suite *AuthorizeTestSuite) SetupTest() {
	suite.store = testhelpers.NewStore(suite.T())
	suite.service = services.NewPaymentService(
		suite.store,
		merchant.NewStaticProvider(testhelpers.DefaultLimits()),
		testhelpers.QuietLogger(),
		testTTL,
	)
}

// ============================================================================
// HAPPY PATH TESTS
// ============================================================================

func (suite *AuthorizeTestSuite) Test_Authorize_Approved_Success() {
	ctx := context.Background()
	t := suite.T()

	payment, err := suite.service.Initiate(ctx, testhelpers.DefaultInitiateCommand())
	require.NoError(t, err)
	_, err = suite.service.MarkNew(ctx, payment.ID)
	require.NoError(t, err)
	_, err = suite.service.MarkFormShowed(ctx, payment.ID)
	require.NoError(t, err)

	result := testhelpers.ApprovedResult()
	updated, err := suite.service.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: payment.ID,
		Result:    result,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthorized, updated.Status)
	require.NotNil(t, updated.AuthRef)
	assert.Equal(t, result.AuthRef, *updated.AuthRef)
	assert.NotNil(t, updated.AuthorizedAt)
	assert.Equal(t, int64(4), updated.Version)

	history, err := suite.service.GetHistory(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TxTypeAuthorization, history[0].Type)
	assert.Equal(t, domain.TxStatusCompleted, history[0].Status)
	assert.Equal(t, payment.Amount, history[0].Amount)
	assert.Equal(t, 1, history[0].AttemptNumber)

	agg, err := suite.service.Aggregate(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.Amount, agg.AuthorizedTotal)
	assert.Zero(t, agg.CapturedTotal)
}

func (suite *AuthorizeTestSuite) Test_Authorize_DirectlyFromInit_Succeeds() {
	ctx := context.Background()
	t := suite.T()

	payment, err := suite.service.Initiate(ctx, testhelpers.DefaultInitiateCommand())
	require.NoError(t, err)

	updated, err := suite.service.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: payment.ID,
		Result:    testhelpers.ApprovedResult(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusAuthorized, updated.Status)
}

// ============================================================================
// DECLINE TESTS
// ============================================================================

func (suite *AuthorizeTestSuite) Test_Authorize_Declined_EndsRejected() {
	ctx := context.Background()
	t := suite.T()

	payment, err := suite.service.Initiate(ctx, testhelpers.DefaultInitiateCommand())
	require.NoError(t, err)

	updated, err := suite.service.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: payment.ID,
		Result:    testhelpers.DeclinedResult(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, "card_declined: insufficient funds", *updated.FailureReason)
	assert.Nil(t, updated.AuthRef)

	history, err := suite.service.GetHistory(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TxStatusDeclined, history[0].Status)
	require.NotNil(t, history[0].FailureReason)

	// The declined attempt never counts toward the ledger totals.
	agg, err := suite.service.Aggregate(ctx, payment.ID)
	require.NoError(t, err)
	assert.Zero(t, agg.AuthorizedTotal)
}

func (suite *AuthorizeTestSuite) Test_Authorize_Declined_FreesOrderForRetry() {
	ctx := context.Background()
	t := suite.T()
	cmd := testhelpers.DefaultInitiateCommand()

	first, err := suite.service.Initiate(ctx, cmd)
	require.NoError(t, err)

	_, err = suite.service.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: first.ID,
		Result:    testhelpers.DeclinedResult(),
	})
	require.NoError(t, err)

	// The merchant can try the same order again with a fresh payment.
	second, err := suite.service.Initiate(ctx, cmd)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	found, err := suite.service.GetPaymentByOrder(ctx, cmd.MerchantID, cmd.OrderID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

// ============================================================================
// EDGE CASE TESTS
// ============================================================================

func (suite *AuthorizeTestSuite) Test_Authorize_TerminalPayment_ReturnsError() {
	ctx := context.Background()
	t := suite.T()

	payment, err := suite.service.Initiate(ctx, testhelpers.DefaultInitiateCommand())
	require.NoError(t, err)
	_, err = suite.service.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: payment.ID,
		Result:    testhelpers.DeclinedResult(),
	})
	require.NoError(t, err)

	_, err = suite.service.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: payment.ID,
		Result:    testhelpers.ApprovedResult(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func (suite *AuthorizeTestSuite) Test_Authorize_UnknownPayment_ReturnsError() {
	ctx := context.Background()
	t := suite.T()

	_, err := suite.service.Authorize(ctx, services.AuthorizeCommand{
		PaymentID: "payment-missing",
		Result:    testhelpers.ApprovedResult(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}
