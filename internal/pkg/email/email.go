package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sobat-hris/sobat-backend-go/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxRetries = 3

// EmailService defines the interface for sending emails
type EmailService interface {
	SendNotification(msg NotificationMessage) error
	IsConfigured() bool
}

// NotificationMessage is the content of a workflow notification email.
type NotificationMessage struct {
	To            string
	RecipientName string
	Subject       string
	Title         string
	Message       string
	RequestTitle  string
}

type sendFunc func(addr string, auth sasl.Client, from string, to []string, body *bytes.Reader) error

type emailServiceImpl struct {
	cfg       config.SMTPConfig
	templates *template.Template
	send      sendFunc
	backoff   time.Duration
}

// NewEmailService creates a new email service instance
func NewEmailService(cfg config.SMTPConfig) (EmailService, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	send := func(addr string, auth sasl.Client, from string, to []string, body *bytes.Reader) error {
		return smtp.SendMail(addr, auth, from, to, body)
	}
	if cfg.TLSEnabled {
		send = func(addr string, auth sasl.Client, from string, to []string, body *bytes.Reader) error {
			return smtp.SendMailTLS(addr, auth, from, to, body)
		}
	}

	return &emailServiceImpl{
		cfg:       cfg,
		templates: tmpl,
		send:      send,
		backoff:   time.Second,
	}, nil
}

func (s *emailServiceImpl) IsConfigured() bool {
	return s.cfg.Host != ""
}

type notificationEmailData struct {
	Title         string
	RecipientName string
	Message       string
	RequestTitle  string
	AppName       string
}

// SendNotification renders the notification template and sends it
func (s *emailServiceImpl) SendNotification(msg NotificationMessage) error {
	name := msg.RecipientName
	if name == "" {
		name = msg.To
	}

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, "notification.html", notificationEmailData{
		Title:         msg.Title,
		RecipientName: name,
		Message:       msg.Message,
		RequestTitle:  msg.RequestTitle,
		AppName:       s.cfg.FromName,
	}); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return s.sendHTML(msg.To, msg.Subject, body.String())
}

func (s *emailServiceImpl) sendHTML(to, subject, htmlBody string) error {
	// Skip sending if SMTP is not configured
	if !s.IsConfigured() {
		slog.Warn("SMTP not configured, skipping email send", "to", to, "subject", subject)
		return nil
	}

	from := s.cfg.From
	message := buildMessage(s.cfg.FromName, from, to, subject, htmlBody)

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := s.send(addr, auth, from, []string{to}, bytes.NewReader(message))
		if err == nil {
			slog.Info("Email sent successfully", "to", to, "subject", subject, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.Error("Failed to send email",
			"to", to,
			"subject", subject,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		// Wait before retrying (exponential backoff: 1s, 2s, 4s)
		if attempt < maxRetries {
			time.Sleep(s.backoff * time.Duration(1<<(attempt-1)))
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}

func buildMessage(fromName, from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
