package routes

import (
	"github.com/avent-visseho/lokahome-api/services"
	"github.com/avent-visseho/lokahome-api/storage"
)

// Package-level service instances, wired once at startup after the
// database is up.
var (
	notificationService   *services.NotificationService
	bookingService        *services.BookingService
	paymentService        *services.PaymentService
	webhookService        *services.WebhookService
	serviceRequestService *services.ServiceRequestService
	mailer                *services.Mailer
)

// InitServices builds the service graph. Must run after storage.InitializeDB.
func InitServices() {
	mailer = services.NewMailerFromEnv()
	notificationService = services.NewNotificationService(storage.DB)
	bookingService = services.NewBookingService(storage.DB).WithNotifications(notificationService)
	paymentService = services.NewPaymentService(storage.DB, bookingService)
	webhookService = services.NewWebhookService(storage.DB, paymentService, bookingService).
		WithNotifications(notificationService).
		WithMailer(mailer)
	serviceRequestService = services.NewServiceRequestService(storage.DB)
}
