package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/gateways"
	"github.com/avent-visseho/lokahome-api/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Platform fee rates. Overridable through PLATFORM_FEE_BOOKING and
// PLATFORM_FEE_SERVICE (percent values, e.g. "2.5").
var (
	defaultBookingFeeRate = decimal.NewFromFloat(0.025)
	defaultServiceFeeRate = decimal.NewFromFloat(0.05)
)

// InitiatePaymentInput carries the checkout request.
type InitiatePaymentInput struct {
	Method      string
	PhoneNumber string
	ReturnURL   string
}

// InitiatePaymentResult is what the API hands back to the client: either a
// redirect URL (FedaPay) or phone instructions (mobile money).
type InitiatePaymentResult struct {
	PaymentID    uint            `json:"paymentID"`
	Reference    string          `json:"reference"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Method       string          `json:"paymentMethod"`
	PaymentURL   string          `json:"paymentURL,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
}

// PaymentService owns the payment lifecycle:
//
//	PENDING -> PROCESSING -> COMPLETED | FAILED
//	COMPLETED -> REFUNDED
//	any non-terminal -> CANCELLED
//
// Rows are never deleted; failed attempts stay as audit trail.
type PaymentService struct {
	db       *gorm.DB
	bookings *BookingService

	fedapay   gateways.PaymentGateway
	mtnMomo   gateways.PaymentGateway
	moovMoney gateways.PaymentGateway

	bookingFeeRate decimal.Decimal
	serviceFeeRate decimal.Decimal
}

func NewPaymentService(db *gorm.DB, bookings *BookingService) *PaymentService {
	return &PaymentService{
		db:             db,
		bookings:       bookings,
		fedapay:        gateways.NewFedaPay(),
		mtnMomo:        gateways.NewMTNMoMo(),
		moovMoney:      gateways.NewMoovMoney(),
		bookingFeeRate: feeRateFromEnv("PLATFORM_FEE_BOOKING", defaultBookingFeeRate),
		serviceFeeRate: feeRateFromEnv("PLATFORM_FEE_SERVICE", defaultServiceFeeRate),
	}
}

// WithGateways swaps the provider adapters; tests use it to stub the network.
func (s *PaymentService) WithGateways(fedapay, mtn, moov gateways.PaymentGateway) *PaymentService {
	s.fedapay = fedapay
	s.mtnMomo = mtn
	s.moovMoney = moov
	return s
}

func feeRateFromEnv(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	percent, err := decimal.NewFromString(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default", key, v)
		return fallback
	}
	return percent.Div(decimal.NewFromInt(100))
}

// gatewayFor maps a payment method onto its adapter. The method set is
// closed; an unsupported method is a business-rule rejection, not a crash.
func (s *PaymentService) gatewayFor(method string) (gateways.PaymentGateway, error) {
	switch method {
	case models.PaymentMethodFedaPay:
		return s.fedapay, nil
	case models.PaymentMethodMTNMoMo:
		return s.mtnMomo, nil
	case models.PaymentMethodMoovMoney:
		return s.moovMoney, nil
	default:
		return nil, fmt.Errorf("unsupported payment method %q: %w", method, errs.ErrBusinessRule)
	}
}

func (s *PaymentService) GetPayment(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Preload("Booking").First(&payment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payment %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *PaymentService) GetPaymentByReference(reference string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Where("reference = ?", reference).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payment %s: %w", reference, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *PaymentService) GetPaymentByProviderReference(providerRef string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Where("provider_reference = ?", providerRef).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payment with provider reference %s: %w", providerRef, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// InitiateBookingPayment starts the checkout for an approved booking owned
// by the payer. The payment row is persisted before the provider call so a
// failed attempt still leaves an audit trail.
func (s *PaymentService) InitiateBookingPayment(ctx context.Context, bookingID uint, payer *models.User, in InitiatePaymentInput) (*InitiatePaymentResult, error) {
	booking, err := s.bookings.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status != models.BookingStatusApproved {
		return nil, fmt.Errorf("booking must be approved before payment: %w", errs.ErrBusinessRule)
	}
	if booking.TenantID != payer.ID {
		return nil, fmt.Errorf("you can only pay for your own bookings: %w", errs.ErrForbidden)
	}
	if booking.Property == nil {
		return nil, fmt.Errorf("booking property: %w", errs.ErrNotFound)
	}

	payment, err := s.createPayment(paymentDraft{
		bookingID:   &booking.ID,
		payerID:     payer.ID,
		receiverID:  booking.Property.OwnerID,
		amount:      booking.TotalAmount,
		feeRate:     s.bookingFeeRate,
		currency:    booking.Currency,
		method:      in.Method,
		paymentType: models.PaymentTypeBooking,
		phone:       in.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	return s.processPayment(ctx, payment, payer, "Réservation "+booking.Reference, in.ReturnURL)
}

// InitiateServicePayment starts the checkout for a service request whose
// quote was accepted.
func (s *PaymentService) InitiateServicePayment(ctx context.Context, serviceRequestID uint, payer *models.User, in InitiatePaymentInput) (*InitiatePaymentResult, error) {
	var request models.ServiceRequest
	err := s.db.First(&request, serviceRequestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("service request %d: %w", serviceRequestID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if request.Status != models.ServiceRequestStatusAccepted {
		return nil, fmt.Errorf("a quote must be accepted before payment: %w", errs.ErrBusinessRule)
	}
	if request.RequesterID != payer.ID {
		return nil, fmt.Errorf("you can only pay for your own service requests: %w", errs.ErrForbidden)
	}
	if request.AcceptedQuoteID == nil {
		return nil, fmt.Errorf("accepted quote: %w", errs.ErrNotFound)
	}

	var quote models.ServiceQuote
	if err := s.db.Preload("Provider").First(&quote, *request.AcceptedQuoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("accepted quote: %w", errs.ErrNotFound)
		}
		return nil, err
	}
	if quote.Provider == nil {
		return nil, fmt.Errorf("quote provider: %w", errs.ErrNotFound)
	}

	payment, err := s.createPayment(paymentDraft{
		serviceRequestID: &request.ID,
		payerID:          payer.ID,
		receiverID:       quote.Provider.UserID,
		amount:           quote.Amount,
		feeRate:          s.serviceFeeRate,
		currency:         quote.Currency,
		method:           in.Method,
		paymentType:      models.PaymentTypeService,
		phone:            in.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	return s.processPayment(ctx, payment, payer, "Service "+request.Reference, in.ReturnURL)
}

type paymentDraft struct {
	bookingID        *uint
	serviceRequestID *uint
	payerID          uint
	receiverID       uint
	amount           decimal.Decimal
	feeRate          decimal.Decimal
	currency         string
	method           string
	paymentType      string
	phone            string
}

func (s *PaymentService) createPayment(d paymentDraft) (*models.Payment, error) {
	if _, err := s.gatewayFor(d.method); err != nil {
		return nil, err
	}

	fee := d.amount.Mul(d.feeRate).Round(2)
	payment := &models.Payment{
		BookingID:        d.bookingID,
		ServiceRequestID: d.serviceRequestID,
		PayerID:          d.payerID,
		ReceiverID:       d.receiverID,
		Amount:           d.amount,
		Fee:              fee,
		NetAmount:        d.amount.Sub(fee),
		Currency:         d.currency,
		PaymentMethod:    d.method,
		PaymentType:      d.paymentType,
		Status:           models.PaymentStatusPending,
		PhoneNumber:      d.phone,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		reference, err := generateUniqueReference(tx, &models.Payment{}, "PAY", 10)
		if err != nil {
			return err
		}
		payment.Reference = reference
		return tx.Create(payment).Error
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// processPayment delegates to the provider adapter. Adapter success moves
// the payment to PROCESSING. An explicit decline moves it to FAILED; a
// timeout leaves it PENDING, because the provider-side transaction may
// still have succeeded and the webhook will settle it.
func (s *PaymentService) processPayment(ctx context.Context, payment *models.Payment, payer *models.User, description, returnURL string) (*InitiatePaymentResult, error) {
	gateway, err := s.gatewayFor(payment.PaymentMethod)
	if err != nil {
		return nil, err
	}

	result, err := gateway.Initiate(ctx, gateways.InitiateRequest{
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: description,
		Reference:   payment.Reference,
		Phone:       payment.PhoneNumber,
		ReturnURL:   returnURL,
		Customer: gateways.Customer{
			Email:     payer.Email,
			FirstName: payer.FirstName,
			LastName:  payer.LastName,
			Phone:     payment.PhoneNumber,
		},
		Metadata: map[string]string{"payment_reference": payment.Reference},
	})
	if err != nil {
		s.recordInitiationFailure(payment, err)
		return nil, fmt.Errorf("payment initiation failed: %w", err)
	}

	payment.Status = models.PaymentStatusProcessing
	payment.ProviderReference = result.ProviderReference
	if len(result.Raw) > 0 {
		payment.ProviderResponse = datatypes.JSON(result.Raw)
	}
	if err := s.db.Save(payment).Error; err != nil {
		return nil, err
	}

	return &InitiatePaymentResult{
		PaymentID:    payment.ID,
		Reference:    payment.Reference,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		Method:       payment.PaymentMethod,
		PaymentURL:   result.PaymentURL,
		Instructions: result.Instructions,
	}, nil
}

func (s *PaymentService) recordInitiationFailure(payment *models.Payment, gwErr error) {
	if gateways.IsTimeout(gwErr) {
		// Unknown outcome: keep the payment pending so the webhook or a
		// later status poll can reconcile it. Never mark it failed.
		payment.ErrorMessage = gwErr.Error()
		if err := s.db.Save(payment).Error; err != nil {
			log.Printf("could not record gateway timeout on payment %s: %v", payment.Reference, err)
		}
		return
	}

	now := time.Now()
	payment.Status = models.PaymentStatusFailed
	payment.FailedAt = &now
	payment.ErrorMessage = gwErr.Error()
	var typed *gateways.GatewayError
	if errors.As(gwErr, &typed) {
		payment.ErrorCode = typed.Code
	}
	if err := s.db.Save(payment).Error; err != nil {
		log.Printf("could not record gateway failure on payment %s: %v", payment.Reference, err)
	}
}

// Refund marks a completed payment refunded. The provider-side reversal is
// a follow-up external call; the transition is recorded first regardless so
// the intent is auditable.
func (s *PaymentService) Refund(id uint, actor *models.User, amount *decimal.Decimal, reason string) (*models.Payment, error) {
	payment, err := s.GetPayment(id)
	if err != nil {
		return nil, err
	}

	if payment.PayerID != actor.ID && !actor.IsAdmin() {
		return nil, fmt.Errorf("only the payer may request a refund: %w", errs.ErrForbidden)
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("only completed payments can be refunded: %w", errs.ErrBusinessRule)
	}

	refundAmount := payment.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount.GreaterThan(payment.Amount) {
		return nil, fmt.Errorf("refund amount cannot exceed the paid amount: %w", errs.ErrBusinessRule)
	}
	if refundAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("refund amount must be positive: %w", errs.ErrValidation)
	}

	// Conditional write so two concurrent refund requests cannot both
	// succeed; the loser sees the payment already refunded.
	now := time.Now()
	res := s.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"status":        models.PaymentStatusRefunded,
			"refund_amount": refundAmount,
			"refund_reason": reason,
			"refunded_at":   &now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("only completed payments can be refunded: %w", errs.ErrBusinessRule)
	}

	payment.Status = models.PaymentStatusRefunded
	payment.RefundAmount = &refundAmount
	payment.RefundReason = reason
	payment.RefundedAt = &now
	return payment, nil
}

// GetUserPayments returns the user's history as payer or receiver.
func (s *PaymentService) GetUserPayments(userID uint, paymentType, status string, page, perPage int) ([]models.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := s.db.Model(&models.Payment{}).
		Where("payer_id = ? OR receiver_id = ?", userID, userID)
	if paymentType != "" {
		query = query.Where("payment_type = ?", paymentType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// TransactionSummary aggregates a user's completed payments over a period.
type TransactionSummary struct {
	TotalReceived    decimal.Decimal `json:"totalReceived"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	TotalFees        decimal.Decimal `json:"totalFees"`
	NetBalance       decimal.Decimal `json:"netBalance"`
	Currency         string          `json:"currency"`
	TransactionCount int             `json:"transactionCount"`
	PeriodStart      time.Time       `json:"periodStart"`
	PeriodEnd        time.Time       `json:"periodEnd"`
}

func (s *PaymentService) GetTransactionSummary(userID uint, start, end time.Time) (*TransactionSummary, error) {
	var payments []models.Payment
	err := s.db.
		Where("(payer_id = ? OR receiver_id = ?)", userID, userID).
		Where("status = ?", models.PaymentStatusCompleted).
		Where("paid_at >= ? AND paid_at <= ?", start, end).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	summary := &TransactionSummary{
		TotalReceived: decimal.Zero,
		TotalPaid:     decimal.Zero,
		TotalFees:     decimal.Zero,
		Currency:      "XOF",
		PeriodStart:   start,
		PeriodEnd:     end,
	}
	for _, p := range payments {
		if p.ReceiverID == userID {
			summary.TotalReceived = summary.TotalReceived.Add(p.NetAmount)
		}
		if p.PayerID == userID {
			summary.TotalPaid = summary.TotalPaid.Add(p.Amount)
			summary.TotalFees = summary.TotalFees.Add(p.Fee)
		}
	}
	summary.NetBalance = summary.TotalReceived.Sub(summary.TotalPaid)
	summary.TransactionCount = len(payments)
	return summary, nil
}
