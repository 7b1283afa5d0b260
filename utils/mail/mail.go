package mail

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"os"
	"strconv"

	gomail "gopkg.in/gomail.v2"

	"github.com/mantay/busbooking/config"
	"github.com/mantay/busbooking/logger"
)

const bookingConfirmationTemplate = "templates/email/booking_confirmation.html"

var emailTemplates embed.FS
var templatesReady bool

func init() {
	config.LoadEnv()
}

// InitTemplates hands the embedded email templates to this package.
func InitTemplates(fs embed.FS) {
	emailTemplates = fs
	templatesReady = true
}

func sendEmail(toEmail, subject, templatePath string, data interface{}) error {
	if !templatesReady {
		return fmt.Errorf("email templates not initialized")
	}

	mailer := gomail.NewMessage()
	mailer.SetHeader("From", os.Getenv("FROM_EMAIL"))
	mailer.SetHeader("To", toEmail)
	mailer.SetHeader("Subject", subject)

	t, err := template.ParseFS(emailTemplates, templatePath)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to parse email template %s: %v", templatePath, err)
		return fmt.Errorf("failed to parse email template: %w", err)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		logger.ErrorLogger.Errorf("Failed to execute email template %s: %v", templatePath, err)
		return fmt.Errorf("failed to execute email template: %w", err)
	}
	mailer.SetBody("text/html", body.String())

	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		logger.ErrorLogger.Errorf("Invalid SMTP port: %v", err)
		return fmt.Errorf("invalid SMTP port: %w", err)
	}

	smtpHost := os.Getenv("SMTP_HOST")
	dialer := gomail.NewDialer(smtpHost, port, os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"))
	dialer.TLSConfig = &tls.Config{
		InsecureSkipVerify: false,
		ServerName:         smtpHost,
	}

	if err := dialer.DialAndSend(mailer); err != nil {
		logger.ErrorLogger.Errorf("Failed to send email to %s: %v", toEmail, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.InfoLogger.Printf("Sent email to %s", toEmail)
	return nil
}

// BookingConfirmationData feeds the booking confirmation template.
type BookingConfirmationData struct {
	Name          string
	BookingNumber string
	BusName       string
	From          string
	To            string
	JourneyDate   string
	DepartureTime string
	SeatNumbers   []int
	TotalAmount   string
}

// SendBookingConfirmation emails the passenger their ticket details after a
// successful payment.
func SendBookingConfirmation(toEmail string, data BookingConfirmationData) error {
	subject := fmt.Sprintf("Booking %s confirmed", data.BookingNumber)
	return sendEmail(toEmail, subject, bookingConfirmationTemplate, data)
}
