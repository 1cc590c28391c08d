package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service request statuses.
const (
	ServiceRequestStatusPending    = "pending" // waiting for quotes
	ServiceRequestStatusQuoted     = "quoted"
	ServiceRequestStatusAccepted   = "accepted" // a quote was accepted, payable
	ServiceRequestStatusInProgress = "in_progress"
	ServiceRequestStatusCompleted  = "completed"
	ServiceRequestStatusCancelled  = "cancelled"
)

// Quote statuses.
const (
	QuoteStatusPending  = "pending"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
	QuoteStatusExpired  = "expired"
)

// ServiceProvider is the professional profile behind quotes.
type ServiceProvider struct {
	gorm.Model
	UserID       uint   `json:"userID" gorm:"not null;uniqueIndex"`
	BusinessName string `json:"businessName"`
	Category     string `json:"category" gorm:"type:varchar(50)"` // plumbing, electricity, cleaning, moving
	IsVerified   *bool  `json:"isVerified"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// ServiceRequest is a tenant's ask for a home service. Once a quote is
// accepted it becomes a payment target, structurally like a booking.
type ServiceRequest struct {
	gorm.Model
	RequesterID     uint   `json:"requesterID" gorm:"not null;index"`
	Reference       string `json:"reference" gorm:"type:varchar(20);uniqueIndex;not null"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Status          string `json:"status" gorm:"type:varchar(20);default:pending;index"`
	AcceptedQuoteID *uint  `json:"acceptedQuoteID"`

	Requester *User          `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	Quotes    []ServiceQuote `json:"quotes,omitempty" gorm:"foreignKey:ServiceRequestID"`
}

type ServiceQuote struct {
	gorm.Model
	ServiceRequestID uint            `json:"serviceRequestID" gorm:"not null;index"`
	ProviderID       uint            `json:"providerID" gorm:"not null;index"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency         string          `json:"currency" gorm:"type:varchar(3);default:XOF"`
	Message          string          `json:"message"`
	Status           string          `json:"status" gorm:"type:varchar(20);default:pending"`

	Provider *ServiceProvider `json:"provider,omitempty" gorm:"foreignKey:ProviderID"`
}
