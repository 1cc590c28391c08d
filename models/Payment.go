package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment statuses. COMPLETED may still move to REFUNDED; every other
// terminal status is final.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusCancelled  = "cancelled"
)

// Payment methods.
const (
	PaymentMethodFedaPay      = "fedapay"
	PaymentMethodMTNMoMo      = "mtn_momo"
	PaymentMethodMoovMoney    = "moov_money"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCash         = "cash"
)

// Payment types.
const (
	PaymentTypeBooking      = "booking"
	PaymentTypeDeposit      = "deposit"
	PaymentTypeService      = "service"
	PaymentTypeSubscription = "subscription"
	PaymentTypeRefund       = "refund"
)

// Payment is one attempt to move money for a booking or a service request.
// Rows are never deleted; they form the audit trail.
type Payment struct {
	gorm.Model
	BookingID        *uint `json:"bookingID" gorm:"index"`
	ServiceRequestID *uint `json:"serviceRequestID" gorm:"index"`
	PayerID          uint  `json:"payerID" gorm:"not null;index"`
	ReceiverID       uint  `json:"receiverID" gorm:"not null;index"`

	Reference string `json:"reference" gorm:"type:varchar(50);uniqueIndex;not null"`

	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Fee       decimal.Decimal `json:"fee" gorm:"type:numeric(12,2);not null"`
	NetAmount decimal.Decimal `json:"netAmount" gorm:"type:numeric(12,2);not null"`
	Currency  string          `json:"currency" gorm:"type:varchar(3);default:XOF"`

	PaymentMethod string `json:"paymentMethod" gorm:"type:varchar(20);not null"`
	PaymentType   string `json:"paymentType" gorm:"type:varchar(20);not null"`

	Status string `json:"status" gorm:"type:varchar(20);default:pending;index"`

	// Provider side. ProviderResponse is an opaque blob kept for audit;
	// status mapping never reads it.
	ProviderReference string         `json:"providerReference" gorm:"type:varchar(100);index"`
	ProviderStatus    string         `json:"providerStatus" gorm:"type:varchar(50)"`
	ProviderResponse  datatypes.JSON `json:"providerResponse"`

	PaidAt   *time.Time `json:"paidAt"`
	FailedAt *time.Time `json:"failedAt"`

	ErrorCode    string `json:"errorCode" gorm:"type:varchar(50)"`
	ErrorMessage string `json:"errorMessage"`

	RefundAmount *decimal.Decimal `json:"refundAmount" gorm:"type:numeric(12,2)"`
	RefundReason string           `json:"refundReason"`
	RefundedAt   *time.Time       `json:"refundedAt"`

	// Mobile money only
	PhoneNumber string `json:"phoneNumber" gorm:"type:varchar(20)"`

	Booking        *Booking        `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
	ServiceRequest *ServiceRequest `json:"serviceRequest,omitempty" gorm:"foreignKey:ServiceRequestID"`
}

// IsTerminal reports whether the payment settled. COMPLETED counts as
// terminal even though REFUNDED may still follow.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}
