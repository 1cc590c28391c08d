package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/avent-visseho/lokahome-api/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a file-backed sqlite database in a per-test temp dir.
// File-backed rather than :memory: so concurrent connections in the
// locking tests share one database and honor busy_timeout.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Booking{},
		&models.Payment{},
		&models.ServiceProvider{},
		&models.ServiceRequest{},
		&models.ServiceQuote{},
		&models.Notification{},
		&models.AuditLog{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	user := &models.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Role:      role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createProperty builds an active monthly listing priced at 300000 XOF.
func createProperty(t *testing.T, db *gorm.DB, ownerID uint) *models.Property {
	t.Helper()
	property := &models.Property{
		OwnerID:      ownerID,
		Title:        "Appartement Cotonou",
		City:         "Cotonou",
		Country:      "Benin",
		Price:        decimal.NewFromInt(300000),
		RentalPeriod: models.RentalPeriodMonthly,
		Currency:     "XOF",
		Status:       models.PropertyStatusActive,
		MaxOccupants: 4,
	}
	require.NoError(t, db.Create(property).Error)
	return property
}

// futureDate returns midnight n days from now, matching the date-only
// granularity of booking dates.
func futureDate(n int) time.Time {
	return time.Now().Truncate(24 * time.Hour).AddDate(0, 0, n)
}

func requireDecimalEqual(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	want, err := decimal.NewFromString(expected)
	require.NoError(t, err)
	require.True(t, want.Equal(actual), "expected %s, got %s", expected, actual.String())
}
