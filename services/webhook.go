package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/gateways"
	"github.com/avent-visseho/lokahome-api/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookService reconciles provider callbacks into payment state. All
// handlers are idempotent: a redelivered event carrying a status the
// payment already holds is a no-op, and a terminal payment never regresses.
type WebhookService struct {
	db            *gorm.DB
	payments      *PaymentService
	bookings      *BookingService
	notifications *NotificationService
	mailer        *Mailer

	fedapay *gateways.FedaPay
}

func NewWebhookService(db *gorm.DB, payments *PaymentService, bookings *BookingService) *WebhookService {
	return &WebhookService{
		db:       db,
		payments: payments,
		bookings: bookings,
		fedapay:  gateways.NewFedaPay(),
	}
}

func (s *WebhookService) WithNotifications(n *NotificationService) *WebhookService {
	s.notifications = n
	return s
}

func (s *WebhookService) WithMailer(m *Mailer) *WebhookService {
	s.mailer = m
	return s
}

// fedaPayStatus maps FedaPay transaction statuses onto payment statuses.
// Unknown statuses map to PROCESSING so a new provider status never
// terminates a payment by accident.
func fedaPayStatus(providerStatus string) string {
	switch providerStatus {
	case "approved", "transferred":
		return models.PaymentStatusCompleted
	case "declined":
		return models.PaymentStatusFailed
	case "canceled":
		return models.PaymentStatusCancelled
	case "refunded":
		return models.PaymentStatusRefunded
	default:
		return models.PaymentStatusProcessing
	}
}

// mobileMoneyStatus maps MTN MoMo and Moov statuses. Both rails use the
// same uppercase vocabulary.
func mobileMoneyStatus(providerStatus string) string {
	switch providerStatus {
	case "SUCCESSFUL":
		return models.PaymentStatusCompleted
	case "FAILED":
		return models.PaymentStatusFailed
	case "CANCELLED":
		return models.PaymentStatusCancelled
	default:
		return models.PaymentStatusProcessing
	}
}

type fedaPayEvent struct {
	Name   string `json:"name"`
	Entity struct {
		ID       int64             `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"entity"`
}

// HandleFedaPay processes a FedaPay webhook delivery. The signature is
// verified only when a webhook secret is configured; the skip is logged so
// a misconfigured deployment is visible.
func (s *WebhookService) HandleFedaPay(rawBody []byte, signature string) error {
	if s.fedapay.SignatureConfigured() {
		if !s.fedapay.VerifySignature(rawBody, signature) {
			return fmt.Errorf("fedapay webhook signature mismatch: %w", errs.ErrForbidden)
		}
	} else {
		log.Println("fedapay webhook secret not configured, skipping signature check")
	}

	var event fedaPayEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return fmt.Errorf("fedapay webhook payload: %w", errs.ErrValidation)
	}

	providerRef := fmt.Sprintf("%d", event.Entity.ID)
	payment, err := s.payments.GetPaymentByProviderReference(providerRef)
	if errors.Is(err, errs.ErrNotFound) {
		// Redirect checkouts can fire the webhook before our row stored
		// the transaction id. The metadata reference is the fallback.
		if ref := event.Entity.Metadata["payment_reference"]; ref != "" {
			payment, err = s.payments.GetPaymentByReference(ref)
		}
	}
	if err != nil {
		return err
	}

	return s.applyStatus(payment, event.Entity.Status, fedaPayStatus(event.Entity.Status), rawBody)
}

type mobileMoneyEvent struct {
	ReferenceID   string `json:"referenceId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// HandleMobileMoney processes MTN MoMo and Moov Money callbacks. The two
// rails share a payload shape; provider names the source for logging only.
func (s *WebhookService) HandleMobileMoney(provider string, rawBody []byte) error {
	var event mobileMoneyEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return fmt.Errorf("%s webhook payload: %w", provider, errs.ErrValidation)
	}

	providerRef := event.ReferenceID
	if providerRef == "" {
		providerRef = event.TransactionID
	}
	if providerRef == "" {
		return fmt.Errorf("%s webhook without reference: %w", provider, errs.ErrValidation)
	}

	payment, err := s.payments.GetPaymentByProviderReference(providerRef)
	if err != nil {
		return err
	}

	return s.applyStatus(payment, event.Status, mobileMoneyStatus(event.Status), rawBody)
}

// applyStatus is the single write path for webhook-driven transitions.
// Ordering rules:
//
//	same status twice        -> no-op (redelivery)
//	terminal payment         -> no-op, logged (late or out-of-order event)
//	PENDING|PROCESSING -> X  -> applied
//
// Deliveries are concurrent and at least once, so the transition is one
// conditional UPDATE guarded by the allowed source statuses. Concurrent
// redeliveries race for that row and exactly one wins; only the winner
// cascades, which keeps ConfirmOnPayment to a single invocation.
func (s *WebhookService) applyStatus(payment *models.Payment, providerStatus, newStatus string, rawBody []byte) error {
	if payment.Status == newStatus {
		log.Printf("payment %s: duplicate %s delivery ignored", payment.Reference, newStatus)
		return nil
	}

	// REFUNDED may follow COMPLETED; everything else moves only from a
	// non-terminal status.
	fromStatuses := []string{models.PaymentStatusPending, models.PaymentStatusProcessing}
	if newStatus == models.PaymentStatusRefunded {
		fromStatuses = append(fromStatuses, models.PaymentStatusCompleted)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          newStatus,
		"provider_status": providerStatus,
	}
	if len(rawBody) > 0 {
		updates["provider_response"] = datatypes.JSON(rawBody)
	}
	switch newStatus {
	case models.PaymentStatusCompleted:
		updates["paid_at"] = &now
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		updates["failed_at"] = &now
	case models.PaymentStatusRefunded:
		updates["refunded_at"] = &now
	}

	res := s.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", payment.ID, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("payment %s: ignoring %s event, payment already settled", payment.Reference, newStatus)
		return nil
	}

	payment.Status = newStatus
	payment.ProviderStatus = providerStatus
	if len(rawBody) > 0 {
		payment.ProviderResponse = datatypes.JSON(rawBody)
	}
	switch newStatus {
	case models.PaymentStatusCompleted:
		payment.PaidAt = &now
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		payment.FailedAt = &now
	case models.PaymentStatusRefunded:
		payment.RefundedAt = &now
	}

	if newStatus == models.PaymentStatusCompleted {
		s.onPaymentCompleted(payment)
	}
	return nil
}

// onPaymentCompleted cascades a settled booking payment into the booking
// confirmation. Runs at most once per payment because applyStatus only
// calls it when its guarded update won the transition into COMPLETED.
func (s *WebhookService) onPaymentCompleted(payment *models.Payment) {
	if payment.BookingID == nil || payment.PaymentType != models.PaymentTypeBooking {
		if s.notifications != nil {
			go s.notifications.NotifyPaymentReceived(payment)
		}
		return
	}

	booking, err := s.bookings.ConfirmOnPayment(*payment.BookingID)
	if err != nil {
		if errors.Is(err, errs.ErrBusinessRule) {
			// The booking left APPROVED between checkout and settlement.
			// Money moved but the stay cannot be confirmed; this needs a
			// human, so make it loud.
			log.Printf("RECONCILIATION: payment %s completed but booking %d not confirmable: %v",
				payment.Reference, *payment.BookingID, err)
		} else {
			log.Printf("payment %s: booking confirmation failed: %v", payment.Reference, err)
		}
		return
	}

	if s.notifications != nil {
		go s.notifications.NotifyPaymentReceived(payment)
	}
	if s.mailer != nil {
		var tenant models.User
		if err := s.db.First(&tenant, booking.TenantID).Error; err == nil {
			go s.mailer.SendBookingConfirmation(booking, &tenant)
		}
	}
}
