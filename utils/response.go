package utils

import (
	"errors"

	"github.com/avent-visseho/lokahome-api/errs"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
)

type PageMeta struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

func JSONPage(ctx iris.Context, data interface{}, page, perPage int, total int64) {
	ctx.JSON(iris.Map{
		"data":  data,
		"meta":  PageMeta{Page: page, PerPage: perPage, Total: total},
		"links": iris.Map{},
	})
}

func JSONError(ctx iris.Context, status int, code, message string) {
	ctx.StatusCode(status)
	ctx.JSON(iris.Map{"error": code, "message": message})
}

// HandleValidationErrors writes a 400 with per-field details when input
// validation fails, or a generic bad-request for malformed JSON.
func HandleValidationErrors(err error, ctx iris.Context) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make(map[string]string, len(validationErrs))
		for _, fe := range validationErrs {
			fields[fe.Field()] = fe.Tag()
		}
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"error": "validation", "fields": fields})
		return
	}

	JSONError(ctx, iris.StatusBadRequest, "bad_request", err.Error())
}

func CreateError(status int, title string, detail string, ctx iris.Context) {
	ctx.StatusCode(status)
	ctx.JSON(iris.Map{"error": title, "message": detail})
}

func CreateEmailAlreadyRegistered(ctx iris.Context) {
	CreateError(iris.StatusConflict, "Conflict", "Email already registered.", ctx)
}

func CreateNotFound(ctx iris.Context) {
	JSONError(ctx, iris.StatusNotFound, "not_found", "resource not found")
}

func CreateForbidden(ctx iris.Context) {
	JSONError(ctx, iris.StatusForbidden, "forbidden", "access denied")
}

func CreateInternalServerError(ctx iris.Context) {
	JSONError(ctx, iris.StatusInternalServerError, "internal_error", "an internal server error occurred")
}

// HandleServiceError maps the error taxonomy from the service layer onto
// HTTP statuses. Unrecognized errors become a 500.
func HandleServiceError(ctx iris.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		JSONError(ctx, iris.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, errs.ErrForbidden):
		JSONError(ctx, iris.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, errs.ErrConflict):
		JSONError(ctx, iris.StatusConflict, "conflict", err.Error())
	case errors.Is(err, errs.ErrBusinessRule):
		JSONError(ctx, iris.StatusUnprocessableEntity, "business_rule", err.Error())
	case errors.Is(err, errs.ErrValidation):
		JSONError(ctx, iris.StatusBadRequest, "validation", err.Error())
	default:
		CreateInternalServerError(ctx)
	}
}
