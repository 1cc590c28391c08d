package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/models"
	"github.com/avent-visseho/lokahome-api/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var serviceFeeRate = decimal.NewFromFloat(0.05) // 5% of base price

// PriceBreakdown is the pricing calculator's output. All values are rounded
// to 2 fraction digits here, at the point of presentation, never at
// intermediate steps.
type PriceBreakdown struct {
	Nights        int              `json:"nights"`
	PricePerNight decimal.Decimal  `json:"pricePerNight"`
	BasePrice     decimal.Decimal  `json:"basePrice"`
	ServiceFee    decimal.Decimal  `json:"serviceFee"`
	Deposit       *decimal.Decimal `json:"deposit"`
	TotalAmount   decimal.Decimal  `json:"totalAmount"`
	Currency      string           `json:"currency"`
}

// CalculatePrice normalizes the property's rate to a nightly rate, applies
// the service fee and adds the deposit. Pure; no side effects.
func CalculatePrice(property *models.Property, checkIn, checkOut time.Time) PriceBreakdown {
	nights := int(checkOut.Sub(checkIn).Hours() / 24)

	pricePerNight := property.Price
	switch property.RentalPeriod {
	case models.RentalPeriodMonthly:
		pricePerNight = property.Price.Div(decimal.NewFromInt(30))
	case models.RentalPeriodWeekly:
		pricePerNight = property.Price.Div(decimal.NewFromInt(7))
	case models.RentalPeriodYearly:
		pricePerNight = property.Price.Div(decimal.NewFromInt(365))
	}

	basePrice := pricePerNight.Mul(decimal.NewFromInt(int64(nights)))
	serviceFee := basePrice.Mul(serviceFeeRate)

	total := basePrice.Add(serviceFee)
	if property.Deposit != nil {
		total = total.Add(*property.Deposit)
	}

	return PriceBreakdown{
		Nights:        nights,
		PricePerNight: pricePerNight.Round(2),
		BasePrice:     basePrice.Round(2),
		ServiceFee:    serviceFee.Round(2),
		Deposit:       property.Deposit,
		TotalAmount:   total.Round(2),
		Currency:      property.Currency,
	}
}

// AvailabilityResult answers a pre-booking availability query.
type AvailabilityResult struct {
	IsAvailable bool           `json:"isAvailable"`
	PropertyID  uint           `json:"propertyID"`
	CheckIn     time.Time      `json:"checkIn"`
	CheckOut    time.Time      `json:"checkOut"`
	Price       PriceBreakdown `json:"price"`
}

type CreateBookingInput struct {
	PropertyID  uint
	CheckIn     time.Time
	CheckOut    time.Time
	GuestsCount int
	TenantNotes string
}

type UpdateBookingInput struct {
	CheckIn     *time.Time
	CheckOut    *time.Time
	GuestsCount *int
	TenantNotes *string
}

// BookingService owns the booking lifecycle:
//
//	PENDING -> APPROVED | REJECTED
//	APPROVED -> CONFIRMED (payment) | CANCELLED
//	CONFIRMED -> ACTIVE | CANCELLED
//	ACTIVE -> COMPLETED | CANCELLED
//
// REJECTED, COMPLETED and CANCELLED are terminal.
type BookingService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{db: db}
}

// WithNotifications attaches the fire-and-forget notifier.
func (s *BookingService) WithNotifications(n *NotificationService) *BookingService {
	s.notifications = n
	return s
}

func (s *BookingService) GetBooking(id uint) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.
		Preload("Property").
		Preload("Property.Owner").
		Preload("Tenant").
		Preload("Payments").
		First(&booking, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *BookingService) GetBookingByReference(reference string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.
		Preload("Property").
		Preload("Property.Owner").
		Preload("Tenant").
		Where("reference = ?", reference).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %s: %w", reference, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// CheckAvailability answers whether [checkIn, checkOut) is free and what it
// would cost. Read-only; CreateBooking re-checks under lock at commit time.
func (s *BookingService) CheckAvailability(propertyID uint, checkIn, checkOut time.Time) (*AvailabilityResult, error) {
	if err := validateDates(checkIn, checkOut); err != nil {
		return nil, err
	}

	var property models.Property
	if err := s.db.First(&property, propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("property %d: %w", propertyID, errs.ErrNotFound)
		}
		return nil, err
	}

	if !property.Bookable() {
		return nil, fmt.Errorf("property is not available for booking: %w", errs.ErrBusinessRule)
	}

	conflict, err := HasConflict(s.db, propertyID, checkIn, checkOut, 0)
	if err != nil {
		return nil, err
	}

	return &AvailabilityResult{
		IsAvailable: !conflict,
		PropertyID:  propertyID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Price:       CalculatePrice(&property, checkIn, checkOut),
	}, nil
}

// CreateBooking validates the request and persists a PENDING booking. The
// conflict check and the insert run in one transaction holding a write lock
// on the property row, so concurrent attempts for the same property
// serialize and the loser sees the winner's booking.
func (s *BookingService) CreateBooking(tenant *models.User, in CreateBookingInput) (*models.Booking, error) {
	if err := validateDates(in.CheckIn, in.CheckOut); err != nil {
		return nil, err
	}
	today := time.Now().Truncate(24 * time.Hour)
	if in.CheckIn.Before(today) {
		return nil, fmt.Errorf("check-in date cannot be in the past: %w", errs.ErrValidation)
	}

	var booking *models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Lock the property row first so concurrent booking attempts for
		// the same property queue behind us before their conflict check.
		lock := tx.Model(&models.Property{}).
			Where("id = ?", in.PropertyID).
			Update("updated_at", time.Now())
		if lock.Error != nil {
			return lock.Error
		}
		if lock.RowsAffected == 0 {
			return fmt.Errorf("property %d: %w", in.PropertyID, errs.ErrNotFound)
		}

		var property models.Property
		if err := tx.First(&property, in.PropertyID).Error; err != nil {
			return err
		}

		if !property.Bookable() {
			return fmt.Errorf("property is not available for booking: %w", errs.ErrBusinessRule)
		}
		if property.OwnerID == tenant.ID {
			return fmt.Errorf("cannot book your own property: %w", errs.ErrBusinessRule)
		}
		if property.MinimumStay > 0 {
			nights := int(in.CheckOut.Sub(in.CheckIn).Hours() / 24)
			if nights < property.MinimumStay {
				return fmt.Errorf("minimum stay is %d nights: %w", property.MinimumStay, errs.ErrBusinessRule)
			}
		}
		if property.MaxOccupants > 0 && in.GuestsCount > property.MaxOccupants {
			return fmt.Errorf("maximum occupants: %d: %w", property.MaxOccupants, errs.ErrBusinessRule)
		}

		conflict, err := HasConflict(tx, in.PropertyID, in.CheckIn, in.CheckOut, 0)
		if err != nil {
			return err
		}
		if conflict {
			return fmt.Errorf("dates are no longer available: %w", errs.ErrConflict)
		}

		price := CalculatePrice(&property, in.CheckIn, in.CheckOut)

		reference, err := generateUniqueReference(tx, &models.Booking{}, "BK", 8)
		if err != nil {
			return err
		}

		guests := in.GuestsCount
		if guests < 1 {
			guests = 1
		}

		booking = &models.Booking{
			PropertyID:    in.PropertyID,
			TenantID:      tenant.ID,
			Reference:     reference,
			CheckIn:       in.CheckIn,
			CheckOut:      in.CheckOut,
			Status:        models.BookingStatusPending,
			BasePrice:     price.BasePrice,
			ServiceFee:    price.ServiceFee,
			DepositAmount: price.Deposit,
			TotalAmount:   price.TotalAmount,
			Currency:      property.Currency,
			GuestsCount:   guests,
			TenantNotes:   in.TenantNotes,
		}
		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(booking, "Nouvelle demande de réservation")
	return booking, nil
}

// UpdateBooking lets the owning tenant edit a PENDING booking. A date change
// re-runs the conflict check (excluding this booking) and recomputes the
// price under the same per-property lock as CreateBooking.
func (s *BookingService) UpdateBooking(id uint, actor *models.User, in UpdateBookingInput) (*models.Booking, error) {
	booking, err := s.GetBooking(id)
	if err != nil {
		return nil, err
	}

	if booking.TenantID != actor.ID {
		return nil, fmt.Errorf("only the tenant may edit this booking: %w", errs.ErrForbidden)
	}
	if booking.Status != models.BookingStatusPending {
		return nil, fmt.Errorf("only pending bookings can be edited: %w", errs.ErrForbidden)
	}

	if in.GuestsCount != nil {
		booking.GuestsCount = *in.GuestsCount
	}
	if in.TenantNotes != nil {
		booking.TenantNotes = *in.TenantNotes
	}

	datesChanged := in.CheckIn != nil || in.CheckOut != nil
	if !datesChanged {
		// Conditional write on the status so a concurrent approval is not
		// silently reverted by saving the stale row.
		res := s.db.Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, models.BookingStatusPending).
			Updates(map[string]interface{}{
				"guests_count": booking.GuestsCount,
				"tenant_notes": booking.TenantNotes,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("only pending bookings can be edited: %w", errs.ErrForbidden)
		}
		return booking, nil
	}

	newCheckIn := booking.CheckIn
	newCheckOut := booking.CheckOut
	if in.CheckIn != nil {
		newCheckIn = *in.CheckIn
	}
	if in.CheckOut != nil {
		newCheckOut = *in.CheckOut
	}
	if err := validateDates(newCheckIn, newCheckOut); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		lock := tx.Model(&models.Property{}).
			Where("id = ?", booking.PropertyID).
			Update("updated_at", time.Now())
		if lock.Error != nil {
			return lock.Error
		}

		conflict, err := HasConflict(tx, booking.PropertyID, newCheckIn, newCheckOut, booking.ID)
		if err != nil {
			return err
		}
		if conflict {
			return fmt.Errorf("dates are no longer available: %w", errs.ErrConflict)
		}

		var property models.Property
		if err := tx.First(&property, booking.PropertyID).Error; err != nil {
			return err
		}
		price := CalculatePrice(&property, newCheckIn, newCheckOut)

		booking.CheckIn = newCheckIn
		booking.CheckOut = newCheckOut
		booking.BasePrice = price.BasePrice
		booking.ServiceFee = price.ServiceFee
		booking.DepositAmount = price.Deposit
		booking.TotalAmount = price.TotalAmount

		// The status may have moved since the read outside the
		// transaction, so the write re-checks it.
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, models.BookingStatusPending).
			Updates(map[string]interface{}{
				"check_in":       booking.CheckIn,
				"check_out":      booking.CheckOut,
				"base_price":     booking.BasePrice,
				"service_fee":    booking.ServiceFee,
				"deposit_amount": booking.DepositAmount,
				"total_amount":   booking.TotalAmount,
				"guests_count":   booking.GuestsCount,
				"tenant_notes":   booking.TenantNotes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("only pending bookings can be edited: %w", errs.ErrForbidden)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Approve moves PENDING -> APPROVED. Property owner or admin only.
func (s *BookingService) Approve(id uint, landlord *models.User, notes string) (*models.Booking, error) {
	booking, err := s.GetBooking(id)
	if err != nil {
		return nil, err
	}

	if err := s.requireOwnerOrAdmin(booking, landlord); err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, fmt.Errorf("booking is no longer pending: %w", errs.ErrBusinessRule)
	}

	booking.Status = models.BookingStatusApproved
	if notes != "" {
		booking.LandlordNotes = notes
	}
	if err := s.db.Save(booking).Error; err != nil {
		return nil, err
	}

	s.notifyStatus(booking, "Réservation approuvée, en attente de paiement")
	return booking, nil
}

// Reject moves PENDING -> REJECTED. Property owner or admin only.
func (s *BookingService) Reject(id uint, landlord *models.User, reason string) (*models.Booking, error) {
	booking, err := s.GetBooking(id)
	if err != nil {
		return nil, err
	}

	if err := s.requireOwnerOrAdmin(booking, landlord); err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, fmt.Errorf("booking is no longer pending: %w", errs.ErrBusinessRule)
	}

	booking.Status = models.BookingStatusRejected
	booking.LandlordNotes = reason
	if err := s.db.Save(booking).Error; err != nil {
		return nil, err
	}

	s.notifyStatus(booking, "Réservation refusée")
	return booking, nil
}

// Cancel is allowed for the tenant, the property owner or an admin, from any
// non-terminal state. Records who cancelled and why.
func (s *BookingService) Cancel(id uint, actor *models.User, reason string) (*models.Booking, error) {
	booking, err := s.GetBooking(id)
	if err != nil {
		return nil, err
	}

	isTenant := booking.TenantID == actor.ID
	isLandlord := booking.Property != nil && booking.Property.OwnerID == actor.ID
	if !isTenant && !isLandlord && !actor.IsAdmin() {
		return nil, fmt.Errorf("not authorized to cancel this booking: %w", errs.ErrForbidden)
	}

	if booking.Status == models.BookingStatusCompleted || booking.Status == models.BookingStatusCancelled {
		return nil, fmt.Errorf("booking can no longer be cancelled: %w", errs.ErrBusinessRule)
	}

	cancelledBy := "landlord"
	if isTenant {
		cancelledBy = "tenant"
	} else if actor.IsAdmin() && !isLandlord {
		cancelledBy = "admin"
	}

	now := time.Now()
	booking.Status = models.BookingStatusCancelled
	booking.CancelledAt = &now
	booking.CancelledBy = cancelledBy
	booking.CancellationReason = reason
	if err := s.db.Save(booking).Error; err != nil {
		return nil, err
	}

	s.notifyStatus(booking, "Réservation annulée")
	return booking, nil
}

// ConfirmOnPayment moves APPROVED -> CONFIRMED. Only the payment side calls
// this; any other current status means the reconciliation went wrong, which
// is a bug, not a user error. Callers must log it loudly.
func (s *BookingService) ConfirmOnPayment(id uint) (*models.Booking, error) {
	booking, err := s.GetBooking(id)
	if err != nil {
		return nil, err
	}

	if booking.Status != models.BookingStatusApproved {
		return nil, fmt.Errorf("booking %s: confirm requires approved status, have %q: %w",
			booking.Reference, booking.Status, errs.ErrBusinessRule)
	}

	booking.Status = models.BookingStatusConfirmed
	if err := s.db.Save(booking).Error; err != nil {
		return nil, err
	}

	s.notifyStatus(booking, "Paiement reçu, réservation confirmée")
	return booking, nil
}

// Activate moves CONFIRMED -> ACTIVE when the tenant moves in.
func (s *BookingService) Activate(id uint, actor *models.User) (*models.Booking, error) {
	return s.progress(id, actor, models.BookingStatusConfirmed, models.BookingStatusActive,
		"Début de la location")
}

// Complete moves ACTIVE -> COMPLETED when the rental period ends.
func (s *BookingService) Complete(id uint, actor *models.User) (*models.Booking, error) {
	return s.progress(id, actor, models.BookingStatusActive, models.BookingStatusCompleted,
		"Location terminée")
}

func (s *BookingService) progress(id uint, actor *models.User, from, to, notice string) (*models.Booking, error) {
	booking, err := s.GetBooking(id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(booking, actor); err != nil {
		return nil, err
	}
	if booking.Status != from {
		return nil, fmt.Errorf("booking must be %s, have %q: %w", from, booking.Status, errs.ErrBusinessRule)
	}
	booking.Status = to
	if err := s.db.Save(booking).Error; err != nil {
		return nil, err
	}
	s.notifyStatus(booking, notice)
	return booking, nil
}

func (s *BookingService) GetTenantBookings(tenantID uint, status string, page, perPage int) ([]models.Booking, int64, error) {
	query := s.db.Model(&models.Booking{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return s.paginate(query, page, perPage)
}

func (s *BookingService) GetLandlordBookings(ownerID uint, status string, page, perPage int) ([]models.Booking, int64, error) {
	query := s.db.Model(&models.Booking{}).
		Joins("JOIN properties ON properties.id = bookings.property_id").
		Where("properties.owner_id = ?", ownerID)
	if status != "" {
		query = query.Where("bookings.status = ?", status)
	}
	return s.paginate(query, page, perPage)
}

func (s *BookingService) GetPropertyBookings(propertyID uint, status string, page, perPage int) ([]models.Booking, int64, error) {
	query := s.db.Model(&models.Booking{}).Where("property_id = ?", propertyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return s.paginate(query, page, perPage)
}

func (s *BookingService) paginate(query *gorm.DB, page, perPage int) ([]models.Booking, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	err := query.
		Preload("Property").
		Preload("Tenant").
		Order("bookings.created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (s *BookingService) requireOwnerOrAdmin(booking *models.Booking, actor *models.User) error {
	if actor.IsAdmin() {
		return nil
	}
	if booking.Property != nil && booking.Property.OwnerID == actor.ID {
		return nil
	}
	return fmt.Errorf("not the property owner: %w", errs.ErrForbidden)
}

func (s *BookingService) notifyStatus(booking *models.Booking, message string) {
	if s.notifications == nil || booking == nil {
		return
	}
	go s.notifications.NotifyBookingStatus(booking, message)
}

func validateDates(checkIn, checkOut time.Time) error {
	if !checkOut.After(checkIn) {
		return fmt.Errorf("check-out must be after check-in: %w", errs.ErrValidation)
	}
	return nil
}

// generateUniqueReference produces a reference code and retries on
// collision. Running out of retries means the random source is broken.
func generateUniqueReference(db *gorm.DB, model interface{}, prefix string, n int) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		reference := utils.GenerateReference(prefix, n)
		if reference == "" {
			continue
		}
		var count int64
		if err := db.Model(model).Where("reference = ?", reference).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return reference, nil
		}
		log.Printf("reference collision on %s, regenerating", reference)
	}
	return "", fmt.Errorf("could not generate a unique %s reference", prefix)
}
