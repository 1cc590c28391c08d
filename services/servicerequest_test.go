package services

import (
	"context"
	"testing"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRequestFlow(t *testing.T) {
	db := newTestDB(t)
	svc := NewServiceRequestService(db)

	requester := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	plumberUser := createUser(t, db, "plombier@test.bj", models.RoleTenant)
	electricianUser := createUser(t, db, "electricien@test.bj", models.RoleProvider)

	_, err := svc.RegisterProvider(plumberUser, "Plomberie Express", "plumbing")
	require.NoError(t, err)
	_, err = svc.RegisterProvider(electricianUser, "Elec Benin", "electricity")
	require.NoError(t, err)

	request, err := svc.Create(requester, "Fuite d'eau", "Fuite sous l'evier de la cuisine")
	require.NoError(t, err)
	assert.Equal(t, models.ServiceRequestStatusPending, request.Status)
	assert.Equal(t, "SR", request.Reference[:2])
	assert.Len(t, request.Reference, 10)

	t.Run("non provider cannot quote", func(t *testing.T) {
		other := createUser(t, db, "random@test.bj", models.RoleTenant)
		_, err := svc.SubmitQuote(request.ID, other, decimal.NewFromInt(20000), "")
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("requester cannot quote own request", func(t *testing.T) {
		_, err := svc.SubmitQuote(request.ID, requester, decimal.NewFromInt(20000), "")
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	quoteA, err := svc.SubmitQuote(request.ID, plumberUser, decimal.NewFromInt(25000), "disponible demain")
	require.NoError(t, err)
	quoteB, err := svc.SubmitQuote(request.ID, electricianUser, decimal.NewFromInt(30000), "")
	require.NoError(t, err)

	updated, err := svc.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceRequestStatusQuoted, updated.Status)

	t.Run("only the requester accepts", func(t *testing.T) {
		_, err := svc.AcceptQuote(request.ID, quoteA.ID, plumberUser)
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})

	accepted, err := svc.AcceptQuote(request.ID, quoteA.ID, requester)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceRequestStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedQuoteID)
	assert.Equal(t, quoteA.ID, *accepted.AcceptedQuoteID)

	// The losing quote was rejected in the same transaction.
	var losing models.ServiceQuote
	require.NoError(t, db.First(&losing, quoteB.ID).Error)
	assert.Equal(t, models.QuoteStatusRejected, losing.Status)

	t.Run("accepting twice fails", func(t *testing.T) {
		_, err := svc.AcceptQuote(request.ID, quoteA.ID, requester)
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})
}

// Service payments use the 5% platform fee and pay out to the quoting
// provider, not the landlord.
func TestInitiateServicePayment(t *testing.T) {
	db := newTestDB(t)
	requests := NewServiceRequestService(db)
	bookings := NewBookingService(db)
	payments := NewPaymentService(db, bookings).
		WithGateways(okGateway("fedapay", "77001"), okGateway("mtn_momo", "m"), okGateway("moov_money", "m"))

	requester := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	providerUser := createUser(t, db, "plombier@test.bj", models.RoleProvider)
	_, err := requests.RegisterProvider(providerUser, "Plomberie Express", "plumbing")
	require.NoError(t, err)

	request, err := requests.Create(requester, "Fuite d'eau", "")
	require.NoError(t, err)

	t.Run("payment requires an accepted quote", func(t *testing.T) {
		_, err := payments.InitiateServicePayment(context.Background(), request.ID, requester, InitiatePaymentInput{
			Method: models.PaymentMethodMTNMoMo,
		})
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	quote, err := requests.SubmitQuote(request.ID, providerUser, decimal.NewFromInt(40000), "")
	require.NoError(t, err)
	_, err = requests.AcceptQuote(request.ID, quote.ID, requester)
	require.NoError(t, err)

	result, err := payments.InitiateServicePayment(context.Background(), request.ID, requester, InitiatePaymentInput{
		Method:      models.PaymentMethodMTNMoMo,
		PhoneNumber: "+22997000001",
	})
	require.NoError(t, err)
	requireDecimalEqual(t, "40000", result.Amount)

	payment, err := payments.GetPaymentByReference(result.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentTypeService, payment.PaymentType)
	assert.Equal(t, providerUser.ID, payment.ReceiverID)
	requireDecimalEqual(t, "2000", payment.Fee) // 5% platform fee
	requireDecimalEqual(t, "38000", payment.NetAmount)
}
