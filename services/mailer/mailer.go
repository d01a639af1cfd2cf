// Package mailer delivers alert events as email. It implements the alerting
// package's EventEmitter contract; deduplication of re-delivered events is
// left to downstream mail infrastructure keyed on the event's idempotency key.
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"time"

	"marketgist_backend/config"
	"marketgist_backend/models"
	"marketgist_backend/services/alerting"
)

// Mailer sends alert emails over SMTP. When no SMTP host is configured the
// mailer runs disabled and only logs the events it would have sent, so a
// development environment never needs mail credentials.
type Mailer struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
	enabled  bool
}

// New creates a mailer from the application config
func New(cfg *config.Config) *Mailer {
	m := &Mailer{
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		enabled:  cfg.SMTPHost != "" && cfg.SMTPFrom != "",
	}
	if !m.enabled {
		log.Println("SMTP_HOST not set, alert email delivery disabled (events will be logged)")
	}
	return m
}

// Emit sends one alert event as an email to the event's recipient
func (m *Mailer) Emit(ctx context.Context, event alerting.Event) error {
	if !m.enabled {
		log.Printf("Alert event (email disabled): key=%s %s %s at $%.2f for %s",
			event.IdempotencyKey, event.Symbol, event.Direction, event.CurrentPrice, event.Recipient)
		return nil
	}

	subject, body := renderAlertEmail(event)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMessage-ID: <%s@marketgist.app>\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.from, event.Recipient, subject, event.IdempotencyKey, body)

	addr := fmt.Sprintf("%s:%d", m.smtpHost, m.smtpPort)

	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.smtpHost)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.from, []string{event.Recipient}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send alert email to %s: %w", event.Recipient, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// renderAlertEmail builds the subject and plain-text body for an alert event
func renderAlertEmail(event alerting.Event) (subject, body string) {
	direction := "risen above"
	if event.Direction == models.AlertTypeLower {
		direction = "dropped below"
	}

	subject = fmt.Sprintf("Price Alert: %s has %s $%g", event.Symbol, direction, event.TargetPrice)
	body = fmt.Sprintf(
		"%s (%s) has %s your target price of $%g.\r\n\r\nCurrent price: $%.2f\r\nTriggered at: %s\r\n\r\nManage your alerts on your MarketGist dashboard.\r\n",
		event.Company, event.Symbol, direction, event.TargetPrice,
		event.CurrentPrice, event.Timestamp.Format(time.RFC1123))
	return subject, body
}
