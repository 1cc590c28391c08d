package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Booking statuses. PENDING, APPROVED, CONFIRMED and ACTIVE block the
// property's dates; REJECTED, CANCELLED and COMPLETED never do.
const (
	BookingStatusPending   = "pending"   // awaiting landlord approval
	BookingStatusApproved  = "approved"  // landlord approved, awaiting payment
	BookingStatusConfirmed = "confirmed" // payment received
	BookingStatusActive    = "active"    // tenant has moved in
	BookingStatusCompleted = "completed" // rental period ended
	BookingStatusCancelled = "cancelled"
	BookingStatusRejected  = "rejected"
)

// BlockingBookingStatuses are the statuses that occupy a property's dates
// for the overlap check.
var BlockingBookingStatuses = []string{
	BookingStatusPending,
	BookingStatusApproved,
	BookingStatusConfirmed,
	BookingStatusActive,
}

// Booking is a tenant's claim on a property for a half-open
// [check-in, check-out) date range.
type Booking struct {
	gorm.Model
	PropertyID uint   `json:"propertyID" gorm:"not null;index"`
	TenantID   uint   `json:"tenantID" gorm:"not null;index"`
	Reference  string `json:"reference" gorm:"type:varchar(20);uniqueIndex;not null"`

	CheckIn  time.Time `json:"checkIn" gorm:"not null"`
	CheckOut time.Time `json:"checkOut" gorm:"not null"`

	Status string `json:"status" gorm:"type:varchar(20);default:pending;index"`

	BasePrice     decimal.Decimal  `json:"basePrice" gorm:"type:numeric(12,2);not null"`
	ServiceFee    decimal.Decimal  `json:"serviceFee" gorm:"type:numeric(12,2);not null"`
	DepositAmount *decimal.Decimal `json:"depositAmount" gorm:"type:numeric(12,2)"`
	TotalAmount   decimal.Decimal  `json:"totalAmount" gorm:"type:numeric(12,2);not null"`
	Currency      string           `json:"currency" gorm:"type:varchar(3);default:XOF"`

	GuestsCount int `json:"guestsCount" gorm:"default:1"`

	TenantNotes   string `json:"tenantNotes"`
	LandlordNotes string `json:"landlordNotes"`

	CancelledAt        *time.Time `json:"cancelledAt"`
	CancelledBy        string     `json:"cancelledBy" gorm:"type:varchar(20)"` // tenant, landlord, admin
	CancellationReason string     `json:"cancellationReason"`

	ContractSignedAt *time.Time `json:"contractSignedAt"`
	ContractURL      string     `json:"contractURL"`

	Property *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Tenant   *User     `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Payments []Payment `json:"payments,omitempty" gorm:"foreignKey:BookingID"`
}

// Nights is the stay length of the half-open date range.
func (b *Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

// IsTerminal reports whether the booking can no longer change state.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRejected:
		return true
	}
	return false
}
