package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/models"

	"gorm.io/gorm"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

// NotificationService persists in-app notifications and fans them out to
// the user's registered Expo push tokens. Push delivery is best effort;
// the database row is the source of truth.
type NotificationService struct {
	db     *gorm.DB
	client *http.Client
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{
		db:     db,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type expoPushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

func (ns *NotificationService) userPushTokens(userID uint) []string {
	var user models.User
	if err := ns.db.First(&user, userID).Error; err != nil {
		log.Printf("push tokens: user %d not found: %v", userID, err)
		return nil
	}
	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		log.Printf("push tokens: user %d has malformed tokens: %v", userID, err)
		return nil
	}
	return tokens
}

func (ns *NotificationService) sendPush(token, title, body string, data map[string]string) error {
	payload, err := json.Marshal(expoPushMessage{
		To:    token,
		Title: title,
		Body:  body,
		Data:  data,
		Sound: "default",
	})
	if err != nil {
		return err
	}

	resp, err := ns.client.Post(expoPushURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("expo push returned %d", resp.StatusCode)
	}
	return nil
}

// Notify stores the notification and pushes it to every device. Push
// failures are logged, never returned: a dead token must not fail the
// business operation that triggered the notification.
func (ns *NotificationService) Notify(userID uint, notifType, title, message, refType string, refID uint, data map[string]string) {
	row := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		RefType: refType,
		RefID:   refID,
	}
	if err := ns.db.Create(&row).Error; err != nil {
		log.Printf("notification for user %d not stored: %v", userID, err)
	}

	for _, token := range ns.userPushTokens(userID) {
		if err := ns.sendPush(token, title, message, data); err != nil {
			log.Printf("push to user %d failed: %v", userID, err)
		}
	}
}

// NotifyBookingStatus tells the interested party about a booking
// transition. A new booking notifies the landlord; every later transition
// notifies the tenant.
func (ns *NotificationService) NotifyBookingStatus(booking *models.Booking, message string) {
	if booking == nil {
		return
	}

	recipient := booking.TenantID
	title := "Mise à jour de réservation"
	if booking.Status == models.BookingStatusPending && booking.Property != nil {
		recipient = booking.Property.OwnerID
		title = "Nouvelle réservation"
	}

	ns.Notify(recipient, "booking_status", title, message, "booking", booking.ID, map[string]string{
		"bookingId": fmt.Sprintf("%d", booking.ID),
		"status":    booking.Status,
	})
}

// NotifyPaymentReceived tells both sides a payment settled.
func (ns *NotificationService) NotifyPaymentReceived(payment *models.Payment) {
	if payment == nil {
		return
	}

	amount := payment.Amount.Round(0).String() + " " + payment.Currency
	ns.Notify(payment.PayerID, "payment_completed", "Paiement confirmé",
		fmt.Sprintf("Votre paiement de %s a été confirmé (réf. %s).", amount, payment.Reference),
		"payment", payment.ID, map[string]string{"paymentId": fmt.Sprintf("%d", payment.ID)})

	ns.Notify(payment.ReceiverID, "payment_received", "Paiement reçu",
		fmt.Sprintf("Vous avez reçu un paiement de %s (réf. %s).", amount, payment.Reference),
		"payment", payment.ID, map[string]string{"paymentId": fmt.Sprintf("%d", payment.ID)})
}

func (ns *NotificationService) ListUserNotifications(userID uint, unreadOnly bool, page, perPage int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := ns.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (ns *NotificationService) MarkRead(id, userID uint) error {
	var notification models.Notification
	err := ns.db.Where("id = ? AND user_id = ?", id, userID).First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("notification %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return err
	}

	now := time.Now()
	return ns.db.Model(&notification).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": &now,
	}).Error
}

func (ns *NotificationService) MarkAllRead(userID uint) error {
	now := time.Now()
	return ns.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now}).Error
}
