package main

import (
	"fmt"
	"log"
	"os"

	"github.com/avent-visseho/lokahome-api/routes"
	"github.com/avent-visseho/lokahome-api/storage"
	"github.com/avent-visseho/lokahome-api/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()
	routes.InitServices()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	// JWT Verifiers
	resetTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("EMAIL_TOKEN_SECRET")))
	resetTokenVerifier.WithDefaultBlocklist()
	resetTokenVerifierMiddleware := resetTokenVerifier.Verify(func() interface{} {
		return new(utils.ForgotPasswordToken)
	})

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/google", routes.GoogleLoginOrSignUp)
		user.Post("/apple", routes.AppleLoginOrSignUp)
		user.Post("/forgotpassword", routes.ForgotPassword)
		user.Post("/resetpassword", resetTokenVerifierMiddleware, routes.ResetPassword)
		user.Get("/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUser)
		user.Patch("/{id}/profile", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateProfile)
		user.Patch("/{id}/pushtoken", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AlterPushToken)
		user.Patch("/{id}/settings/notifications", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AllowsNotifications)
	}

	property := app.Party("/api/property")
	{
		property.Get("/search", routes.SearchProperties)
		property.Get("/{id}", routes.GetProperty)
		property.Get("/userid/{id}", routes.GetUserProperties)
		property.Post("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.CreateProperty)
		property.Patch("/update/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.UpdateProperty)
		property.Delete("/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.DeleteProperty)
		property.Get("/{id:uint}/bookings", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetPropertyBookings)
	}

	booking := app.Party("/api/booking", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		booking.Post("/availability", routes.CheckAvailability)
		booking.Post("/", routes.CreateBooking)
		booking.Get("/my", routes.GetMyBookings)
		booking.Get("/landlord", routes.GetLandlordBookings)
		booking.Get("/{id:uint}", routes.GetBooking)
		booking.Patch("/{id:uint}", routes.UpdateBooking)
		booking.Post("/{id:uint}/approve", routes.ApproveBooking)
		booking.Post("/{id:uint}/reject", routes.RejectBooking)
		booking.Post("/{id:uint}/cancel", routes.CancelBooking)
		booking.Post("/{id:uint}/activate", routes.ActivateBooking)
		booking.Post("/{id:uint}/complete", routes.CompleteBooking)
		booking.Post("/{id:uint}/pay", routes.InitiateBookingPayment)
	}

	payment := app.Party("/api/payment", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		payment.Get("/my", routes.GetMyPayments)
		payment.Get("/summary", routes.GetTransactionSummary)
		payment.Get("/reference/{reference}", routes.GetPaymentByReference)
		payment.Get("/{id:uint}", routes.GetPayment)
		payment.Post("/{id:uint}/refund", routes.RefundPayment)
	}

	service := app.Party("/api/service", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		service.Post("/provider", routes.RegisterServiceProvider)
		service.Post("/request", routes.CreateServiceRequest)
		service.Get("/request/my", routes.ListMyServiceRequests)
		service.Get("/request/open", routes.ListOpenServiceRequests)
		service.Get("/request/{id:uint}", routes.GetServiceRequest)
		service.Post("/request/{id:uint}/quote", routes.SubmitServiceQuote)
		service.Post("/request/{id:uint}/quote/{quoteID:uint}/accept", routes.AcceptServiceQuote)
		service.Post("/request/{id:uint}/pay", routes.InitiateServicePayment)
	}

	notifications := app.Party("/api/notifications", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		notifications.Get("/", routes.GetMyNotifications)
		notifications.Post("/{id:uint}/read", routes.MarkNotificationRead)
		notifications.Post("/read-all", routes.MarkAllNotificationsRead)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Patch("/properties/{id:uint}/review", routes.AdminReviewProperty)
	}

	// Provider callbacks, no auth: identity comes from signatures and
	// provider references.
	webhooks := app.Party("/api/webhooks")
	{
		webhooks.Post("/fedapay", routes.FedaPayWebhook)
		webhooks.Post("/mtn-momo", routes.MTNMoMoWebhook)
		webhooks.Post("/moov-money", routes.MoovMoneyWebhook)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := ":" + port

	fmt.Println("starting server on", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
