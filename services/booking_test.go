package services

import (
	"sync"
	"testing"
	"time"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePrice(t *testing.T) {
	deposit := decimal.NewFromInt(50000)

	tests := []struct {
		name         string
		price        int64
		rentalPeriod string
		deposit      *decimal.Decimal
		nights       int
		wantPerNight string
		wantBase     string
		wantFee      string
		wantTotal    string
	}{
		{
			name:         "monthly rate over ten nights",
			price:        300000,
			rentalPeriod: models.RentalPeriodMonthly,
			nights:       10,
			wantPerNight: "10000",
			wantBase:     "100000",
			wantFee:      "5000",
			wantTotal:    "105000",
		},
		{
			name:         "weekly rate",
			price:        70000,
			rentalPeriod: models.RentalPeriodWeekly,
			nights:       14,
			wantPerNight: "10000",
			wantBase:     "140000",
			wantFee:      "7000",
			wantTotal:    "147000",
		},
		{
			name:         "daily rate is used as is",
			price:        15000,
			rentalPeriod: models.RentalPeriodDaily,
			nights:       3,
			wantPerNight: "15000",
			wantBase:     "45000",
			wantFee:      "2250",
			wantTotal:    "47250",
		},
		{
			name:         "yearly rate",
			price:        365000,
			rentalPeriod: models.RentalPeriodYearly,
			nights:       30,
			wantPerNight: "1000",
			wantBase:     "30000",
			wantFee:      "1500",
			wantTotal:    "31500",
		},
		{
			name:         "deposit added to total",
			price:        300000,
			rentalPeriod: models.RentalPeriodMonthly,
			deposit:      &deposit,
			nights:       10,
			wantPerNight: "10000",
			wantBase:     "100000",
			wantFee:      "5000",
			wantTotal:    "155000",
		},
		{
			name:         "rounding happens at presentation only",
			price:        100000,
			rentalPeriod: models.RentalPeriodMonthly,
			nights:       3,
			wantPerNight: "3333.33",
			wantBase:     "10000",
			wantFee:      "500",
			wantTotal:    "10500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			property := &models.Property{
				Price:        decimal.NewFromInt(tt.price),
				RentalPeriod: tt.rentalPeriod,
				Deposit:      tt.deposit,
				Currency:     "XOF",
			}
			checkIn := futureDate(10)
			checkOut := checkIn.AddDate(0, 0, tt.nights)

			got := CalculatePrice(property, checkIn, checkOut)

			assert.Equal(t, tt.nights, got.Nights)
			requireDecimalEqual(t, tt.wantPerNight, got.PricePerNight)
			requireDecimalEqual(t, tt.wantBase, got.BasePrice)
			requireDecimalEqual(t, tt.wantFee, got.ServiceFee)
			requireDecimalEqual(t, tt.wantTotal, got.TotalAmount)
			assert.Equal(t, "XOF", got.Currency)
		})
	}
}

func TestOverlaps(t *testing.T) {
	day := func(n int) time.Time { return futureDate(n) }

	tests := []struct {
		name string
		inA  int
		outA int
		inB  int
		outB int
		want bool
	}{
		{"identical ranges", 1, 5, 1, 5, true},
		{"partial overlap", 1, 5, 3, 8, true},
		{"contained range", 1, 10, 3, 5, true},
		{"checkout equals checkin does not overlap", 1, 5, 5, 8, false},
		{"checkin equals checkout does not overlap", 5, 8, 1, 5, false},
		{"disjoint ranges", 1, 3, 6, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(day(tt.inA), day(tt.outA), day(tt.inB), day(tt.outB))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateBooking(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenant := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	booking, err := svc.CreateBooking(tenant, CreateBookingInput{
		PropertyID:  property.ID,
		CheckIn:     futureDate(10),
		CheckOut:    futureDate(20),
		GuestsCount: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Len(t, booking.Reference, 10)
	assert.Equal(t, "BK", booking.Reference[:2])
	requireDecimalEqual(t, "100000", booking.BasePrice)
	requireDecimalEqual(t, "5000", booking.ServiceFee)
	requireDecimalEqual(t, "105000", booking.TotalAmount)
	assert.Equal(t, 2, booking.GuestsCount)
}

func TestCreateBookingRejectsInvalidInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenant := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	t.Run("checkout before checkin", func(t *testing.T) {
		_, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID: property.ID,
			CheckIn:    futureDate(10),
			CheckOut:   futureDate(5),
		})
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("checkin in the past", func(t *testing.T) {
		_, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID: property.ID,
			CheckIn:    futureDate(-5),
			CheckOut:   futureDate(5),
		})
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("unknown property", func(t *testing.T) {
		_, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID: 9999,
			CheckIn:    futureDate(10),
			CheckOut:   futureDate(20),
		})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("own property", func(t *testing.T) {
		_, err := svc.CreateBooking(landlord, CreateBookingInput{
			PropertyID: property.ID,
			CheckIn:    futureDate(10),
			CheckOut:   futureDate(20),
		})
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("too many guests", func(t *testing.T) {
		_, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(10),
			CheckOut:    futureDate(20),
			GuestsCount: 12,
		})
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("below minimum stay", func(t *testing.T) {
		require.NoError(t, db.Model(property).Update("minimum_stay", 7).Error)
		defer db.Model(property).Update("minimum_stay", 0)

		_, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(10),
			CheckOut:    futureDate(13),
			GuestsCount: 1,
		})
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("inactive listing", func(t *testing.T) {
		require.NoError(t, db.Model(property).Update("status", models.PropertyStatusInactive).Error)
		defer db.Model(property).Update("status", models.PropertyStatusActive)

		_, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(10),
			CheckOut:    futureDate(20),
			GuestsCount: 1,
		})
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})
}

func TestCreateBookingConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenantA := createUser(t, db, "a@test.bj", models.RoleTenant)
	tenantB := createUser(t, db, "b@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	_, err := svc.CreateBooking(tenantA, CreateBookingInput{
		PropertyID:  property.ID,
		CheckIn:     futureDate(10),
		CheckOut:    futureDate(20),
		GuestsCount: 1,
	})
	require.NoError(t, err)

	t.Run("overlapping dates are rejected", func(t *testing.T) {
		_, err := svc.CreateBooking(tenantB, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(15),
			CheckOut:    futureDate(25),
			GuestsCount: 1,
		})
		assert.ErrorIs(t, err, errs.ErrConflict)
	})

	t.Run("back to back stay is allowed", func(t *testing.T) {
		booking, err := svc.CreateBooking(tenantB, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(20),
			CheckOut:    futureDate(25),
			GuestsCount: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusPending, booking.Status)
	})

	t.Run("cancelled booking does not block", func(t *testing.T) {
		require.NoError(t, db.Model(&models.Booking{}).
			Where("tenant_id = ?", tenantA.ID).
			Update("status", models.BookingStatusCancelled).Error)

		booking, err := svc.CreateBooking(tenantA, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(12),
			CheckOut:    futureDate(18),
			GuestsCount: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusPending, booking.Status)
	})
}

// Two simultaneous attempts on the same dates must produce exactly one
// booking; the loser gets a conflict, never a second row.
func TestCreateBookingConcurrent(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenantA := createUser(t, db, "a@test.bj", models.RoleTenant)
	tenantB := createUser(t, db, "b@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	input := CreateBookingInput{
		PropertyID:  property.ID,
		CheckIn:     futureDate(10),
		CheckOut:    futureDate(20),
		GuestsCount: 1,
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, tenant := range []*models.User{tenantA, tenantB} {
		wg.Add(1)
		go func(i int, tenant *models.User) {
			defer wg.Done()
			_, results[i] = svc.CreateBooking(tenant, input)
		}(i, tenant)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, errs.ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, db.Model(&models.Booking{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestBookingStateMachine(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenant := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	stranger := createUser(t, db, "stranger@test.bj", models.RoleTenant)
	admin := createUser(t, db, "admin@test.bj", models.RoleAdmin)
	property := createProperty(t, db, landlord.ID)

	newBooking := func(t *testing.T, from, to int) *models.Booking {
		t.Helper()
		booking, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(from),
			CheckOut:    futureDate(to),
			GuestsCount: 1,
		})
		require.NoError(t, err)
		return booking
	}

	t.Run("full lifecycle", func(t *testing.T) {
		booking := newBooking(t, 10, 20)

		approved, err := svc.Approve(booking.ID, landlord, "bienvenue")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusApproved, approved.Status)

		confirmed, err := svc.ConfirmOnPayment(booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)

		active, err := svc.Activate(booking.ID, landlord)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusActive, active.Status)

		completed, err := svc.Complete(booking.ID, landlord)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCompleted, completed.Status)
	})

	t.Run("approve requires pending", func(t *testing.T) {
		booking := newBooking(t, 30, 35)
		_, err := svc.Approve(booking.ID, landlord, "")
		require.NoError(t, err)
		_, err = svc.ConfirmOnPayment(booking.ID)
		require.NoError(t, err)

		_, err = svc.Approve(booking.ID, landlord, "")
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("only owner or admin decides", func(t *testing.T) {
		booking := newBooking(t, 40, 45)

		_, err := svc.Approve(booking.ID, stranger, "")
		assert.ErrorIs(t, err, errs.ErrForbidden)

		_, err = svc.Approve(booking.ID, admin, "")
		require.NoError(t, err)
	})

	t.Run("confirm requires approved", func(t *testing.T) {
		booking := newBooking(t, 50, 55)
		_, err := svc.ConfirmOnPayment(booking.ID)
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("reject only from pending", func(t *testing.T) {
		booking := newBooking(t, 60, 65)
		rejected, err := svc.Reject(booking.ID, landlord, "indisponible")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusRejected, rejected.Status)

		_, err = svc.Reject(booking.ID, landlord, "encore")
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("cancel records the actor", func(t *testing.T) {
		booking := newBooking(t, 70, 75)
		cancelled, err := svc.Cancel(booking.ID, tenant, "changement de plan")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
		assert.Equal(t, "tenant", cancelled.CancelledBy)
		assert.NotNil(t, cancelled.CancelledAt)
	})

	t.Run("completed booking cannot be cancelled", func(t *testing.T) {
		booking := newBooking(t, 80, 85)
		_, err := svc.Approve(booking.ID, landlord, "")
		require.NoError(t, err)
		_, err = svc.ConfirmOnPayment(booking.ID)
		require.NoError(t, err)
		_, err = svc.Activate(booking.ID, landlord)
		require.NoError(t, err)
		_, err = svc.Complete(booking.ID, landlord)
		require.NoError(t, err)

		_, err = svc.Cancel(booking.ID, tenant, "trop tard")
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		booking := newBooking(t, 90, 95)
		_, err := svc.Cancel(booking.ID, stranger, "")
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})
}

func TestUpdateBooking(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenant := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	other := createUser(t, db, "other@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	booking, err := svc.CreateBooking(tenant, CreateBookingInput{
		PropertyID:  property.ID,
		CheckIn:     futureDate(10),
		CheckOut:    futureDate(20),
		GuestsCount: 1,
	})
	require.NoError(t, err)

	t.Run("date change reprices", func(t *testing.T) {
		newOut := futureDate(15)
		updated, err := svc.UpdateBooking(booking.ID, tenant, UpdateBookingInput{CheckOut: &newOut})
		require.NoError(t, err)
		requireDecimalEqual(t, "50000", updated.BasePrice)
		requireDecimalEqual(t, "52500", updated.TotalAmount)
	})

	t.Run("only the tenant edits", func(t *testing.T) {
		guests := 2
		_, err := svc.UpdateBooking(booking.ID, other, UpdateBookingInput{GuestsCount: &guests})
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("date change cannot land on another booking", func(t *testing.T) {
		_, err := svc.CreateBooking(other, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(20),
			CheckOut:    futureDate(30),
			GuestsCount: 1,
		})
		require.NoError(t, err)

		newOut := futureDate(25)
		_, err = svc.UpdateBooking(booking.ID, tenant, UpdateBookingInput{CheckOut: &newOut})
		assert.ErrorIs(t, err, errs.ErrConflict)
	})

	t.Run("approved booking is frozen", func(t *testing.T) {
		_, err := svc.Approve(booking.ID, landlord, "")
		require.NoError(t, err)

		guests := 3
		_, err = svc.UpdateBooking(booking.ID, tenant, UpdateBookingInput{GuestsCount: &guests})
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})
}

// An approval landing while the tenant edits must never be reverted to
// pending by the edit's write.
func TestUpdateBookingDoesNotRevertConcurrentApproval(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenant := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	for i := 0; i < 4; i++ {
		booking, err := svc.CreateBooking(tenant, CreateBookingInput{
			PropertyID:  property.ID,
			CheckIn:     futureDate(10 + i*30),
			CheckOut:    futureDate(20 + i*30),
			GuestsCount: 1,
		})
		require.NoError(t, err)

		notes := "arrivée tardive"
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.Approve(booking.ID, landlord, "")
		}()
		go func() {
			defer wg.Done()
			svc.UpdateBooking(booking.ID, tenant, UpdateBookingInput{TenantNotes: &notes})
		}()
		wg.Wait()

		final, err := svc.GetBooking(booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusApproved, final.Status)
	}
}

func TestCheckAvailability(t *testing.T) {
	db := newTestDB(t)
	svc := NewBookingService(db)

	landlord := createUser(t, db, "owner@test.bj", models.RoleLandlord)
	tenant := createUser(t, db, "tenant@test.bj", models.RoleTenant)
	property := createProperty(t, db, landlord.ID)

	result, err := svc.CheckAvailability(property.ID, futureDate(10), futureDate(20))
	require.NoError(t, err)
	assert.True(t, result.IsAvailable)
	requireDecimalEqual(t, "105000", result.Price.TotalAmount)

	_, err = svc.CreateBooking(tenant, CreateBookingInput{
		PropertyID:  property.ID,
		CheckIn:     futureDate(10),
		CheckOut:    futureDate(20),
		GuestsCount: 1,
	})
	require.NoError(t, err)

	result, err = svc.CheckAvailability(property.ID, futureDate(15), futureDate(25))
	require.NoError(t, err)
	assert.False(t, result.IsAvailable)
}
