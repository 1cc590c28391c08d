package routes

import (
	"time"

	"github.com/avent-visseho/lokahome-api/models"
	"github.com/avent-visseho/lokahome-api/services"
	"github.com/avent-visseho/lokahome-api/storage"
	"github.com/avent-visseho/lokahome-api/utils"

	"github.com/kataras/iris/v12"
)

const dateLayout = "2006-01-02"

func currentUser(ctx iris.Context) (*models.User, bool) {
	userID := ctx.Values().Get("userID").(uint)
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return nil, false
	}
	return &user, true
}

func parseDate(ctx iris.Context, value, field string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", field+" must be a date in YYYY-MM-DD format", ctx)
		return time.Time{}, false
	}
	return t, true
}

// CheckAvailability answers the pre-booking question with a quote.
func CheckAvailability(ctx iris.Context) {
	var input CheckAvailabilityInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	checkIn, ok := parseDate(ctx, input.CheckIn, "checkIn")
	if !ok {
		return
	}
	checkOut, ok := parseDate(ctx, input.CheckOut, "checkOut")
	if !ok {
		return
	}

	result, serviceErr := bookingService.CheckAvailability(input.PropertyID, checkIn, checkOut)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.JSON(result)
}

func CreateBooking(ctx iris.Context) {
	var input CreateBookingInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	tenant, ok := currentUser(ctx)
	if !ok {
		return
	}

	checkIn, ok := parseDate(ctx, input.CheckIn, "checkIn")
	if !ok {
		return
	}
	checkOut, ok := parseDate(ctx, input.CheckOut, "checkOut")
	if !ok {
		return
	}

	booking, serviceErr := bookingService.CreateBooking(tenant, services.CreateBookingInput{
		PropertyID:  input.PropertyID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		GuestsCount: input.GuestsCount,
		TenantNotes: input.TenantNotes,
	})
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(booking)
}

func GetBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	booking, serviceErr := bookingService.GetBooking(id)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	isTenant := booking.TenantID == actor.ID
	isLandlord := booking.Property != nil && booking.Property.OwnerID == actor.ID
	if !isTenant && !isLandlord && !actor.IsAdmin() {
		utils.CreateForbidden(ctx)
		return
	}

	ctx.JSON(booking)
}

func UpdateBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input UpdateBookingDatesInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	update := services.UpdateBookingInput{
		GuestsCount: input.GuestsCount,
		TenantNotes: input.TenantNotes,
	}
	if input.CheckIn != "" {
		checkIn, ok := parseDate(ctx, input.CheckIn, "checkIn")
		if !ok {
			return
		}
		update.CheckIn = &checkIn
	}
	if input.CheckOut != "" {
		checkOut, ok := parseDate(ctx, input.CheckOut, "checkOut")
		if !ok {
			return
		}
		update.CheckOut = &checkOut
	}

	booking, serviceErr := bookingService.UpdateBooking(id, actor, update)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.JSON(booking)
}

func ApproveBooking(ctx iris.Context) {
	bookingDecision(ctx, "approve")
}

func RejectBooking(ctx iris.Context) {
	bookingDecision(ctx, "reject")
}

func bookingDecision(ctx iris.Context, decision string) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input BookingDecisionInput
	ctx.ReadJSON(&input) // body optional

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	var booking *models.Booking
	var serviceErr error
	if decision == "approve" {
		booking, serviceErr = bookingService.Approve(id, actor, input.Notes)
	} else {
		booking, serviceErr = bookingService.Reject(id, actor, input.Reason)
	}
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.JSON(booking)
}

func CancelBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input BookingDecisionInput
	ctx.ReadJSON(&input)

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	booking, serviceErr := bookingService.Cancel(id, actor, input.Reason)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.JSON(booking)
}

func ActivateBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	booking, serviceErr := bookingService.Activate(id, actor)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.JSON(booking)
}

func CompleteBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	booking, serviceErr := bookingService.Complete(id, actor)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.JSON(booking)
}

func GetMyBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	status := ctx.URLParamDefault("status", "")
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("perPage", 20)

	bookings, total, err := bookingService.GetTenantBookings(userID, status, page, perPage)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	utils.JSONPage(ctx, bookings, page, perPage, total)
}

func GetLandlordBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	status := ctx.URLParamDefault("status", "")
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("perPage", 20)

	bookings, total, err := bookingService.GetLandlordBookings(userID, status, page, perPage)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	utils.JSONPage(ctx, bookings, page, perPage, total)
}

func GetPropertyBookings(ctx iris.Context) {
	propertyID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	var property models.Property
	if dbErr := storage.DB.First(&property, propertyID).Error; dbErr != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if property.OwnerID != actor.ID && !actor.IsAdmin() {
		utils.CreateForbidden(ctx)
		return
	}

	status := ctx.URLParamDefault("status", "")
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("perPage", 20)

	bookings, total, serviceErr := bookingService.GetPropertyBookings(propertyID, status, page, perPage)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	utils.JSONPage(ctx, bookings, page, perPage, total)
}

type CheckAvailabilityInput struct {
	PropertyID uint   `json:"propertyID" validate:"required"`
	CheckIn    string `json:"checkIn" validate:"required"`
	CheckOut   string `json:"checkOut" validate:"required"`
}

type CreateBookingInput struct {
	PropertyID  uint   `json:"propertyID" validate:"required"`
	CheckIn     string `json:"checkIn" validate:"required"`
	CheckOut    string `json:"checkOut" validate:"required"`
	GuestsCount int    `json:"guestsCount" validate:"required,min=1"`
	TenantNotes string `json:"tenantNotes"`
}

type UpdateBookingDatesInput struct {
	CheckIn     string  `json:"checkIn"`
	CheckOut    string  `json:"checkOut"`
	GuestsCount *int    `json:"guestsCount"`
	TenantNotes *string `json:"tenantNotes"`
}

type BookingDecisionInput struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}
