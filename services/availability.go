package services

import (
	"time"

	"github.com/avent-visseho/lokahome-api/models"

	"gorm.io/gorm"
)

// Overlaps reports whether the half-open intervals [inA, outA) and
// [inB, outB) intersect. A checkout on the same day as another booking's
// check-in does not conflict.
func Overlaps(inA, outA, inB, outB time.Time) bool {
	return inA.Before(outB) && inB.Before(outA)
}

// HasConflict reports whether any blocking-status booking occupies part of
// [checkIn, checkOut) for the property. excludeBookingID skips one booking
// (used when a tenant edits their own dates); pass 0 to exclude nothing.
// Every call re-reads current state, since a stale answer would admit a
// double booking. The query runs on the caller's db handle and participates
// in its transaction.
func HasConflict(db *gorm.DB, propertyID uint, checkIn, checkOut time.Time, excludeBookingID uint) (bool, error) {
	var count int64
	query := db.Model(&models.Booking{}).
		Where("property_id = ?", propertyID).
		Where("status IN ?", models.BlockingBookingStatuses).
		Where("check_in < ? AND check_out > ?", checkOut, checkIn)

	if excludeBookingID != 0 {
		query = query.Where("id <> ?", excludeBookingID)
	}

	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListConflicts returns the blocking bookings that overlap
// [checkIn, checkOut) for the property, ordered by check-in.
func ListConflicts(db *gorm.DB, propertyID uint, checkIn, checkOut time.Time, excludeBookingID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	query := db.
		Where("property_id = ?", propertyID).
		Where("status IN ?", models.BlockingBookingStatuses).
		Where("check_in < ? AND check_out > ?", checkOut, checkIn).
		Order("check_in ASC")

	if excludeBookingID != 0 {
		query = query.Where("id <> ?", excludeBookingID)
	}

	if err := query.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}
