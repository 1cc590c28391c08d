package services

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/avent-visseho/lokahome-api/models"

	"github.com/wneessen/go-mail"
)

// Mailer sends transactional email over SMTP. Like push, delivery is best
// effort and never blocks a business operation.
type Mailer struct {
	host      string
	port      int
	user      string
	password  string
	fromName  string
	fromEmail string
}

// NewMailerFromEnv builds the mailer from SMTP_* variables. Returns nil
// when SMTP_HOST is unset so callers can skip mail entirely in dev.
func NewMailerFromEnv() *Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil
	}

	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}

	return &Mailer{
		host:      host,
		port:      port,
		user:      os.Getenv("SMTP_USER"),
		password:  os.Getenv("SMTP_PASSWORD"),
		fromName:  envOr("SMTP_FROM_NAME", "LOKAHOME"),
		fromEmail: envOr("SMTP_FROM_EMAIL", "no-reply@lokahome.bj"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.user),
		mail.WithPassword(m.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{ServerName: m.host}),
	)
	if err != nil {
		return fmt.Errorf("smtp client (host=%s port=%d): %w", m.host, m.port, err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail (host=%s port=%d): %w", m.host, m.port, err)
	}
	return nil
}

// SendBookingConfirmation mails the tenant once a payment settles the
// booking. Safe to call on a nil Mailer.
func (m *Mailer) SendBookingConfirmation(booking *models.Booking, tenant *models.User) {
	if m == nil || booking == nil || tenant == nil || tenant.Email == "" {
		return
	}

	propertyTitle := ""
	if booking.Property != nil {
		propertyTitle = booking.Property.Title
	}

	subject := fmt.Sprintf("Réservation confirmée %s", booking.Reference)
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<body style="margin: 0; padding: 20px; font-family: Arial, sans-serif; background-color: #f4f4f4;">
	<table width="600" cellpadding="0" cellspacing="0" style="margin: 0 auto; background-color: #ffffff; border-radius: 8px;">
		<tr>
			<td style="background-color: #1a7f64; padding: 30px 20px; text-align: center;">
				<h1 style="color: #ffffff; margin: 0; font-size: 24px;">Réservation confirmée</h1>
			</td>
		</tr>
		<tr>
			<td style="padding: 30px;">
				<p>Bonjour %s,</p>
				<p>Votre paiement a été reçu et votre réservation <strong>%s</strong> est confirmée.</p>
				<table width="100%%" cellpadding="6" cellspacing="0" style="border: 1px solid #e0e0e0; border-radius: 6px;">
					<tr><td><strong>Logement</strong></td><td style="text-align: right;">%s</td></tr>
					<tr><td><strong>Arrivée</strong></td><td style="text-align: right;">%s</td></tr>
					<tr><td><strong>Départ</strong></td><td style="text-align: right;">%s</td></tr>
					<tr><td><strong>Total</strong></td><td style="text-align: right;"><strong>%s %s</strong></td></tr>
				</table>
				<p style="margin-top: 20px; color: #666; font-size: 13px;">Présentez cette confirmation lors de votre arrivée.</p>
			</td>
		</tr>
	</table>
</body>
</html>`,
		tenant.FirstName,
		booking.Reference,
		propertyTitle,
		booking.CheckIn.Format("02/01/2006"),
		booking.CheckOut.Format("02/01/2006"),
		booking.TotalAmount.Round(0).String(),
		booking.Currency,
	)

	if err := m.Send(tenant.Email, subject, body); err != nil {
		log.Printf("booking confirmation mail to %s failed: %v", tenant.Email, err)
	}
}

// SendPasswordReset mails the reset link carrying a short-lived token.
func (m *Mailer) SendPasswordReset(to, token string) {
	if m == nil || to == "" {
		return
	}

	link := envOr("APP_URL", "https://lokahome.bj") + "/reset-password?token=" + token
	subject := "Réinitialisation de votre mot de passe"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<body style="margin: 0; padding: 20px; font-family: Arial, sans-serif;">
	<p>Vous avez demandé la réinitialisation de votre mot de passe.</p>
	<p><a href="%s" style="display: inline-block; padding: 12px 24px; background-color: #1a7f64; color: #ffffff; text-decoration: none; border-radius: 6px;">Réinitialiser mon mot de passe</a></p>
	<p style="color: #666; font-size: 13px;">Ce lien expire dans 10 minutes. Si vous n'êtes pas à l'origine de cette demande, ignorez ce message.</p>
</body>
</html>`, link)

	if err := m.Send(to, subject, body); err != nil {
		log.Printf("password reset mail to %s failed: %v", to, err)
	}
}
