package routes

import (
	"encoding/json"
	"strconv"

	"github.com/avent-visseho/lokahome-api/models"
	"github.com/avent-visseho/lokahome-api/storage"
	"github.com/avent-visseho/lokahome-api/utils"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"
)

func CreateProperty(ctx iris.Context) {
	var input CreatePropertyInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	userID := ctx.Values().Get("userID").(uint)

	price, priceErr := decimal.NewFromString(input.Price)
	if priceErr != nil || price.LessThanOrEqual(decimal.Zero) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "price must be a positive number", ctx)
		return
	}

	var deposit *decimal.Decimal
	if input.Deposit != "" {
		d, depositErr := decimal.NewFromString(input.Deposit)
		if depositErr != nil || d.IsNegative() {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "deposit must be a non-negative number", ctx)
			return
		}
		deposit = &d
	}

	amenities, _ := json.Marshal(input.Amenities)
	images, _ := json.Marshal(input.Images)

	property := models.Property{
		OwnerID:      userID,
		Title:        input.Title,
		Description:  input.Description,
		PropertyType: input.PropertyType,
		AddressLine1: input.AddressLine1,
		AddressLine2: input.AddressLine2,
		City:         input.City,
		Country:      input.Country,
		Lat:          input.Lat,
		Lng:          input.Lng,
		Bedrooms:     input.Bedrooms,
		Bathrooms:    input.Bathrooms,
		Price:        price,
		RentalPeriod: input.RentalPeriod,
		Deposit:      deposit,
		Currency:     "XOF",
		MaxOccupants: input.MaxOccupants,
		MinimumStay:  input.MinimumStay,
		Amenities:    amenities,
		Images:       images,
		Status:       models.PropertyStatusPending,
	}

	if err := storage.DB.Create(&property).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(property)
}

func GetProperty(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	var property models.Property
	propertyExists, err := getPropertyByID(&property, id)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !propertyExists {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(property)
}

// SearchProperties lists active listings with optional filters.
func SearchProperties(ctx iris.Context) {
	city := ctx.URLParamDefault("city", "")
	propertyType := ctx.URLParamDefault("type", "")
	maxPrice := ctx.URLParamDefault("maxPrice", "")
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("perPage", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := storage.DB.Model(&models.Property{}).
		Where("status = ?", models.PropertyStatusActive)
	if city != "" {
		query = query.Where("lower(city) = lower(?)", city)
	}
	if propertyType != "" {
		query = query.Where("property_type = ?", propertyType)
	}
	if maxPrice != "" {
		if p, err := decimal.NewFromString(maxPrice); err == nil {
			query = query.Where("price <= ?", p)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var properties []models.Property
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&properties).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.JSONPage(ctx, properties, page, perPage, total)
}

func GetUserProperties(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	var properties []models.Property
	if err := storage.DB.Where("owner_id = ?", id).Order("created_at DESC").Find(&properties).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(properties)
}

func UpdateProperty(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	var input UpdatePropertyInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	property, ok := requireOwnedProperty(ctx, id)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if input.Title != "" {
		updates["title"] = input.Title
	}
	if input.Description != "" {
		updates["description"] = input.Description
	}
	if input.Price != "" {
		price, priceErr := decimal.NewFromString(input.Price)
		if priceErr != nil || price.LessThanOrEqual(decimal.Zero) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "price must be a positive number", ctx)
			return
		}
		updates["price"] = price
	}
	if input.RentalPeriod != "" {
		updates["rental_period"] = input.RentalPeriod
	}
	if input.MinimumStay > 0 {
		updates["minimum_stay"] = input.MinimumStay
	}
	if input.MaxOccupants > 0 {
		updates["max_occupants"] = input.MaxOccupants
	}
	if input.IsAvailable != nil {
		updates["is_available"] = *input.IsAvailable
	}
	if input.Amenities != nil {
		raw, _ := json.Marshal(input.Amenities)
		updates["amenities"] = raw
	}
	if input.Images != nil {
		raw, _ := json.Marshal(input.Images)
		updates["images"] = raw
	}

	if len(updates) > 0 {
		if err := storage.DB.Model(property).Updates(updates).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	ctx.JSON(property)
}

func DeleteProperty(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	property, ok := requireOwnedProperty(ctx, id)
	if !ok {
		return
	}

	// A listing with live bookings goes inactive instead of away.
	var liveBookings int64
	storage.DB.Model(&models.Booking{}).
		Where("property_id = ? AND status IN ?", property.ID, models.BlockingBookingStatuses).
		Count(&liveBookings)
	if liveBookings > 0 {
		if err := storage.DB.Model(property).Update("status", models.PropertyStatusInactive).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		ctx.JSON(iris.Map{"deleted": false, "deactivated": true})
		return
	}

	if err := storage.DB.Delete(property).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"deleted": true})
}

// AdminReviewProperty approves or rejects a pending listing.
func AdminReviewProperty(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	var input ReviewPropertyInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var property models.Property
	propertyExists, existsErr := getPropertyByID(&property, id)
	if existsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !propertyExists {
		utils.CreateNotFound(ctx)
		return
	}

	var status string
	switch input.Decision {
	case "approve":
		status = models.PropertyStatusActive
	case "reject":
		status = models.PropertyStatusRejected
	default:
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "decision must be approve or reject", ctx)
		return
	}

	previousStatus := property.Status
	if err := storage.DB.Model(&property).Update("status", status).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	utils.Audit(ctx, "property_review", "property", property.ID,
		iris.Map{"status": previousStatus}, iris.Map{"status": status, "reason": input.Reason})

	if notificationService != nil {
		title := "Annonce approuvée"
		message := "Votre annonce '" + property.Title + "' est maintenant visible."
		if status == models.PropertyStatusRejected {
			title = "Annonce rejetée"
			message = "Votre annonce '" + property.Title + "' a été rejetée."
		}
		go notificationService.Notify(property.OwnerID, "property_status", title, message,
			"property", property.ID, map[string]string{"propertyId": strconv.FormatUint(uint64(property.ID), 10)})
	}

	ctx.JSON(property)
}

func getPropertyByID(property *models.Property, id string) (exists bool, err error) {
	query := storage.DB.Preload("Owner").Where("id = ?", id).Limit(1).Find(&property)
	if query.Error != nil {
		return false, query.Error
	}
	return query.RowsAffected > 0, nil
}

func requireOwnedProperty(ctx iris.Context, id string) (*models.Property, bool) {
	var property models.Property
	propertyExists, err := getPropertyByID(&property, id)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return nil, false
	}
	if !propertyExists {
		utils.CreateNotFound(ctx)
		return nil, false
	}

	userID := ctx.Values().Get("userID").(uint)
	if property.OwnerID != userID {
		utils.CreateForbidden(ctx)
		return nil, false
	}
	return &property, true
}

type CreatePropertyInput struct {
	Title        string   `json:"title" validate:"required,max=256"`
	Description  string   `json:"description"`
	PropertyType string   `json:"propertyType" validate:"required"`
	AddressLine1 string   `json:"addressLine1" validate:"required"`
	AddressLine2 string   `json:"addressLine2"`
	City         string   `json:"city" validate:"required"`
	Country      string   `json:"country" validate:"required"`
	Lat          float32  `json:"lat"`
	Lng          float32  `json:"lng"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    float32  `json:"bathrooms"`
	Price        string   `json:"price" validate:"required"`
	RentalPeriod string   `json:"rentalPeriod" validate:"required,oneof=daily weekly monthly yearly"`
	Deposit      string   `json:"deposit"`
	MaxOccupants int      `json:"maxOccupants"`
	MinimumStay  int      `json:"minimumStay"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images"`
}

type UpdatePropertyInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        string   `json:"price"`
	RentalPeriod string   `json:"rentalPeriod"`
	MinimumStay  int      `json:"minimumStay"`
	MaxOccupants int      `json:"maxOccupants"`
	IsAvailable  *bool    `json:"isAvailable"`
	Amenities    []string `json:"amenities"`
	Images       []string `json:"images"`
}

type ReviewPropertyInput struct {
	Decision string `json:"decision" validate:"required"`
	Reason   string `json:"reason"`
}
