package routes

import (
	"time"

	"github.com/avent-visseho/lokahome-api/services"
	"github.com/avent-visseho/lokahome-api/utils"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"
)

func InitiateBookingPayment(ctx iris.Context) {
	bookingID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input InitiatePaymentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	payer, ok := currentUser(ctx)
	if !ok {
		return
	}

	result, serviceErr := paymentService.InitiateBookingPayment(ctx.Request().Context(), bookingID, payer, services.InitiatePaymentInput{
		Method:      input.PaymentMethod,
		PhoneNumber: utils.NormalizePhoneNumber(input.PhoneNumber),
		ReturnURL:   input.ReturnURL,
	})
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(result)
}

func InitiateServicePayment(ctx iris.Context) {
	requestID, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input InitiatePaymentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	payer, ok := currentUser(ctx)
	if !ok {
		return
	}

	result, serviceErr := paymentService.InitiateServicePayment(ctx.Request().Context(), requestID, payer, services.InitiatePaymentInput{
		Method:      input.PaymentMethod,
		PhoneNumber: utils.NormalizePhoneNumber(input.PhoneNumber),
		ReturnURL:   input.ReturnURL,
	})
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(result)
}

func GetPayment(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	payment, serviceErr := paymentService.GetPayment(id)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	if payment.PayerID != actor.ID && payment.ReceiverID != actor.ID && !actor.IsAdmin() {
		utils.CreateForbidden(ctx)
		return
	}

	ctx.JSON(payment)
}

func GetPaymentByReference(ctx iris.Context) {
	reference := ctx.Params().Get("reference")

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	payment, err := paymentService.GetPaymentByReference(reference)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	if payment.PayerID != actor.ID && payment.ReceiverID != actor.ID && !actor.IsAdmin() {
		utils.CreateForbidden(ctx)
		return
	}

	ctx.JSON(payment)
}

func RefundPayment(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input RefundPaymentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	actor, ok := currentUser(ctx)
	if !ok {
		return
	}

	var amount *decimal.Decimal
	if input.Amount != "" {
		a, amountErr := decimal.NewFromString(input.Amount)
		if amountErr != nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "amount must be a number", ctx)
			return
		}
		amount = &a
	}

	payment, serviceErr := paymentService.Refund(id, actor, amount, input.Reason)
	if serviceErr != nil {
		utils.HandleServiceError(ctx, serviceErr)
		return
	}

	utils.Audit(ctx, "payment_refund", "payment", payment.ID, nil,
		iris.Map{"amount": payment.RefundAmount, "reason": input.Reason})
	ctx.JSON(payment)
}

func GetMyPayments(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	paymentType := ctx.URLParamDefault("type", "")
	status := ctx.URLParamDefault("status", "")
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("perPage", 20)

	payments, total, err := paymentService.GetUserPayments(userID, paymentType, status, page, perPage)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	utils.JSONPage(ctx, payments, page, perPage, total)
}

func GetTransactionSummary(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	end := time.Now()
	start := end.AddDate(0, -1, 0)
	if s := ctx.URLParamDefault("start", ""); s != "" {
		parsed, ok := parseDate(ctx, s, "start")
		if !ok {
			return
		}
		start = parsed
	}
	if e := ctx.URLParamDefault("end", ""); e != "" {
		parsed, ok := parseDate(ctx, e, "end")
		if !ok {
			return
		}
		end = parsed.Add(24*time.Hour - time.Second)
	}

	summary, err := paymentService.GetTransactionSummary(userID, start, end)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	ctx.JSON(summary)
}

type InitiatePaymentInput struct {
	PaymentMethod string `json:"paymentMethod" validate:"required"`
	PhoneNumber   string `json:"phoneNumber"`
	ReturnURL     string `json:"returnURL"`
}

type RefundPaymentInput struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}
