package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property listing statuses. Only active listings are bookable.
const (
	PropertyStatusDraft    = "draft"
	PropertyStatusPending  = "pending"
	PropertyStatusActive   = "active"
	PropertyStatusRented   = "rented"
	PropertyStatusInactive = "inactive"
	PropertyStatusRejected = "rejected"
)

// Rental periods the listed price refers to.
const (
	RentalPeriodDaily   = "daily"
	RentalPeriodWeekly  = "weekly"
	RentalPeriodMonthly = "monthly"
	RentalPeriodYearly  = "yearly"
)

type Property struct {
	gorm.Model
	OwnerID      uint    `json:"ownerID" gorm:"not null;index"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	PropertyType string  `json:"propertyType"` // apartment, house, studio, villa
	AddressLine1 string  `json:"addressLine1"`
	AddressLine2 string  `json:"addressLine2"`
	City         string  `json:"city"`
	Country      string  `json:"country"`
	Lat          float32 `json:"lat"`
	Lng          float32 `json:"lng"`

	Bedrooms  int     `json:"bedrooms"`
	Bathrooms float32 `json:"bathrooms"`

	// Pricing. Price is per RentalPeriod; the booking service normalizes
	// it to a nightly rate.
	Price        decimal.Decimal  `json:"price" gorm:"type:numeric(12,2);not null"`
	RentalPeriod string           `json:"rentalPeriod" gorm:"type:varchar(10);default:monthly"`
	Deposit      *decimal.Decimal `json:"deposit" gorm:"type:numeric(12,2)"`
	Currency     string           `json:"currency" gorm:"type:varchar(3);default:XOF"`

	// Booking constraints
	MaxOccupants int `json:"maxOccupants"`
	MinimumStay  int `json:"minimumStay"` // in nights

	Amenities datatypes.JSON `json:"amenities"`
	Images    datatypes.JSON `json:"images"`

	Status      string `json:"status" gorm:"type:varchar(20);default:pending;index"`
	IsAvailable *bool  `json:"isAvailable" gorm:"default:true"`

	Bookings []Booking `json:"bookings,omitempty" gorm:"foreignKey:PropertyID"`
	Owner    *User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}

// Bookable reports whether the listing can accept new bookings at all.
func (p *Property) Bookable() bool {
	if p.Status != PropertyStatusActive {
		return false
	}
	return p.IsAvailable == nil || *p.IsAvailable
}

// Custom JSON marshaling so Amenities and Images are always arrays and the
// owner never drags its own property list into the payload.
func (p *Property) MarshalJSON() ([]byte, error) {
	type Alias Property
	aux := &struct {
		Amenities []string `json:"amenities"`
		Images    []string `json:"images"`
		Owner     *User    `json:"owner,omitempty"`
		*Alias
	}{
		Amenities: []string{},
		Images:    []string{},
		Alias:     (*Alias)(p),
	}

	if p.Amenities != nil {
		var amenities []string
		if err := json.Unmarshal(p.Amenities, &amenities); err == nil {
			aux.Amenities = amenities
		}
	}

	if p.Images != nil {
		var images []string
		if err := json.Unmarshal(p.Images, &images); err == nil {
			aux.Images = images
		}
	}

	if p.Owner != nil && p.Owner.ID > 0 {
		ownerCopy := *p.Owner
		ownerCopy.Properties = nil
		aux.Owner = &ownerCopy
	}

	return json.Marshal(aux)
}
