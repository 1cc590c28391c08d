package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/gateways"
	"github.com/avent-visseho/lokahome-api/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway satisfies gateways.PaymentGateway without any network.
type fakeGateway struct {
	name       string
	initiate   func(req gateways.InitiateRequest) (*gateways.InitiateResult, error)
	lastStatus string
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) Initiate(_ context.Context, req gateways.InitiateRequest) (*gateways.InitiateResult, error) {
	return g.initiate(req)
}

func (g *fakeGateway) CheckStatus(_ context.Context, _ string) (string, json.RawMessage, error) {
	return g.lastStatus, nil, nil
}

func okGateway(name, providerRef string) *fakeGateway {
	return &fakeGateway{
		name: name,
		initiate: func(req gateways.InitiateRequest) (*gateways.InitiateResult, error) {
			return &gateways.InitiateResult{
				ProviderReference: providerRef,
				PaymentURL:        "https://checkout.test/" + req.Reference,
				Raw:               json.RawMessage(`{"ok":true}`),
			}, nil
		},
	}
}

// newApprovedBooking sets up a landlord, a tenant and an approved booking
// worth 105000 XOF, ready for checkout.
func newApprovedBooking(t *testing.T) (*PaymentService, *BookingService, *models.User, *models.Booking) {
	t.Helper()
	db := newTestDB(t)
	bookings := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenant := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	booking, err := bookings.CreateBooking(tenant, CreateBookingInput{
		PropertyID:  property.ID,
		CheckIn:     futureDate(10),
		CheckOut:    futureDate(20),
		GuestsCount: 1,
	})
	require.NoError(t, err)
	_, err = bookings.Approve(booking.ID, landlord, "")
	require.NoError(t, err)

	payments := NewPaymentService(db, bookings).
		WithGateways(okGateway("fedapay", "fp-1"), okGateway("mtn_momo", "momo-1"), okGateway("moov_money", "moov-1"))
	return payments, bookings, tenant, booking
}

func TestInitiateBookingPayment(t *testing.T) {
	payments, _, tenant, booking := newApprovedBooking(t)

	result, err := payments.InitiateBookingPayment(context.Background(), booking.ID, tenant, InitiatePaymentInput{
		Method: models.PaymentMethodFedaPay,
	})
	require.NoError(t, err)

	assert.Len(t, result.Reference, 13)
	assert.Equal(t, "PAY", result.Reference[:3])
	assert.Equal(t, "https://checkout.test/"+result.Reference, result.PaymentURL)
	requireDecimalEqual(t, "105000", result.Amount)

	payment, err := payments.GetPaymentByReference(result.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, payment.Status)
	assert.Equal(t, "fp-1", payment.ProviderReference)
	assert.Equal(t, tenant.ID, payment.PayerID)
	requireDecimalEqual(t, "2625", payment.Fee)      // 2.5% platform fee
	requireDecimalEqual(t, "102375", payment.NetAmount)
}

func TestInitiateBookingPaymentGuards(t *testing.T) {
	payments, bookings, tenant, booking := newApprovedBooking(t)

	t.Run("unsupported method", func(t *testing.T) {
		_, err := payments.InitiateBookingPayment(context.Background(), booking.ID, tenant, InitiatePaymentInput{
			Method: "carrier_pigeon",
		})
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("only the tenant pays", func(t *testing.T) {
		other := &models.User{Role: models.RoleTenant}
		other.ID = 9999
		_, err := payments.InitiateBookingPayment(context.Background(), booking.ID, other, InitiatePaymentInput{
			Method: models.PaymentMethodFedaPay,
		})
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("booking must be approved", func(t *testing.T) {
		_, err := bookings.Cancel(booking.ID, tenant, "")
		require.NoError(t, err)

		_, err = payments.InitiateBookingPayment(context.Background(), booking.ID, tenant, InitiatePaymentInput{
			Method: models.PaymentMethodFedaPay,
		})
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})
}

func TestInitiatePaymentProviderDecline(t *testing.T) {
	payments, _, tenant, booking := newApprovedBooking(t)
	payments.WithGateways(&fakeGateway{
		name: "fedapay",
		initiate: func(_ gateways.InitiateRequest) (*gateways.InitiateResult, error) {
			return nil, &gateways.GatewayError{Provider: "fedapay", Code: "declined", Message: "insufficient funds"}
		},
	}, okGateway("mtn_momo", "m"), okGateway("moov_money", "m"))

	_, err := payments.InitiateBookingPayment(context.Background(), booking.ID, tenant, InitiatePaymentInput{
		Method: models.PaymentMethodFedaPay,
	})
	require.Error(t, err)

	// The failed attempt stays on record.
	history, total, err := payments.GetUserPayments(tenant.ID, "", "", 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, models.PaymentStatusFailed, history[0].Status)
	assert.Equal(t, "declined", history[0].ErrorCode)
	assert.NotNil(t, history[0].FailedAt)
}

// A transport timeout means the provider may still settle the payment, so
// the row has to stay pending for the webhook to reconcile.
func TestInitiatePaymentTimeoutStaysPending(t *testing.T) {
	payments, _, tenant, booking := newApprovedBooking(t)
	payments.WithGateways(&fakeGateway{
		name: "fedapay",
		initiate: func(_ gateways.InitiateRequest) (*gateways.InitiateResult, error) {
			return nil, &gateways.GatewayError{Provider: "fedapay", Code: "timeout", Message: "request timed out", Timeout: true}
		},
	}, okGateway("mtn_momo", "m"), okGateway("moov_money", "m"))

	_, err := payments.InitiateBookingPayment(context.Background(), booking.ID, tenant, InitiatePaymentInput{
		Method: models.PaymentMethodFedaPay,
	})
	require.Error(t, err)
	assert.True(t, gateways.IsTimeout(err))

	history, total, err := payments.GetUserPayments(tenant.ID, "", "", 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, models.PaymentStatusPending, history[0].Status)
	assert.Nil(t, history[0].FailedAt)
}

func TestRefund(t *testing.T) {
	payments, _, tenant, booking := newApprovedBooking(t)
	admin := &models.User{Role: models.RoleAdmin}
	admin.ID = 777

	result, err := payments.InitiateBookingPayment(context.Background(), booking.ID, tenant, InitiatePaymentInput{
		Method: models.PaymentMethodFedaPay,
	})
	require.NoError(t, err)
	payment, err := payments.GetPaymentByReference(result.Reference)
	require.NoError(t, err)

	t.Run("only completed payments refund", func(t *testing.T) {
		_, err := payments.Refund(payment.ID, tenant, nil, "change of plans")
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	require.NoError(t, payments.db.Model(payment).Update("status", models.PaymentStatusCompleted).Error)

	t.Run("refund cannot exceed the paid amount", func(t *testing.T) {
		amount := decimal.NewFromInt(150000)
		_, err := payments.Refund(payment.ID, tenant, &amount, "")
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("refund must be positive", func(t *testing.T) {
		amount := decimal.Zero
		_, err := payments.Refund(payment.ID, tenant, &amount, "")
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("stranger cannot refund", func(t *testing.T) {
		stranger := &models.User{Role: models.RoleTenant}
		stranger.ID = 555
		_, err := payments.Refund(payment.ID, stranger, nil, "")
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("partial refund by admin", func(t *testing.T) {
		amount := decimal.NewFromInt(50000)
		refunded, err := payments.Refund(payment.ID, admin, &amount, "geste commercial")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
		require.NotNil(t, refunded.RefundAmount)
		requireDecimalEqual(t, "50000", *refunded.RefundAmount)
		assert.NotNil(t, refunded.RefundedAt)
	})
}

// Two racing refund requests must not both be accepted; the second would
// silently overwrite the first's amount and reason.
func TestRefundConcurrent(t *testing.T) {
	payments, _, tenant, booking := newApprovedBooking(t)
	admin := &models.User{Role: models.RoleAdmin}
	admin.ID = 777

	result, err := payments.InitiateBookingPayment(context.Background(), booking.ID, tenant, InitiatePaymentInput{
		Method: models.PaymentMethodFedaPay,
	})
	require.NoError(t, err)
	payment, err := payments.GetPaymentByReference(result.Reference)
	require.NoError(t, err)
	require.NoError(t, payments.db.Model(payment).Update("status", models.PaymentStatusCompleted).Error)

	amounts := []decimal.Decimal{decimal.NewFromInt(30000), decimal.NewFromInt(70000)}

	var wg sync.WaitGroup
	results := make([]error, len(amounts))
	for i := range amounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = payments.Refund(payment.ID, admin, &amounts[i], "double demande")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, errs.ErrBusinessRule)
		}
	}
	assert.Equal(t, 1, succeeded)

	refunded, err := payments.GetPayment(payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundAmount)
	winner := 0
	if results[0] != nil {
		winner = 1
	}
	requireDecimalEqual(t, amounts[winner].String(), *refunded.RefundAmount)
}
