package routes

import (
	"github.com/avent-visseho/lokahome-api/utils"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"
)

func CreateServiceRequest(ctx iris.Context) {
	var input CreateServiceRequestInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	requester, ok := currentUser(ctx)
	if !ok {
		return
	}

	request, err := serviceRequestService.Create(requester, input.Title, input.Description)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(request)
}

func GetServiceRequest(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	request, serviceErr := serviceRequestService.Get(id)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	if request.RequesterID != actor.ID && !actor.IsAdmin() {
		// Providers can see open requests to quote on them.
		providers := request.Status == "pending" || request.Status == "quoted"
		if !providers {
			utils.CreateForbidden(ctx)
			return
		}
	}

	ctx.JSON(request)
}

func ListMyServiceRequests(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	status := ctx.URLParamDefault("status", "")

	requests, err := serviceRequestService.ListForRequester(userID, status)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	ctx.JSON(requests)
}

func ListOpenServiceRequests(ctx iris.Context) {
	requests, err := serviceRequestService.ListOpen()
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	ctx.JSON(requests)
}

func SubmitServiceQuote(ctx iris.Context) {
	requestID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input SubmitQuoteInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	amount, amountErr := decimal.NewFromString(input.Amount)
	if amountErr != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "amount must be a number", ctx)
		return
	}

	provider, ok := currentUser(ctx)
	if !ok {
		return
	}

	quote, serviceErr := serviceRequestService.SubmitQuote(requestID, provider, amount, input.Message)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(quote)
}

func AcceptServiceQuote(ctx iris.Context) {
	requestID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	quoteID, err := ctx.Params().GetUint("quoteID")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	requester, ok := currentUser(ctx)
	if !ok {
		return
	}

	request, serviceErr := serviceRequestService.AcceptQuote(requestID, quoteID, requester)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.JSON(request)
}

func RegisterServiceProvider(ctx iris.Context) {
	var input RegisterProviderInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	provider, err := serviceRequestService.RegisterProvider(user, input.BusinessName, input.Category)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(provider)
}

type CreateServiceRequestInput struct {
	Title       string `json:"title" validate:"required,max=256"`
	Description string `json:"description"`
}

type SubmitQuoteInput struct {
	Amount  string `json:"amount" validate:"required"`
	Message string `json:"message"`
}

type RegisterProviderInput struct {
	BusinessName string `json:"businessName" validate:"required,max=256"`
	Category     string `json:"category" validate:"required,oneof=plumbing electricity cleaning moving other"`
}
