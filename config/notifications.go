package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotifyTransport selects the outbound delivery mechanism for rendered notifications.
type NotifyTransport string

const (
	NotifyTransportLog      NotifyTransport = "log"
	NotifyTransportSMTP     NotifyTransport = "smtp"
	NotifyTransportMailgun  NotifyTransport = "mailgun"
	NotifyTransportSendGrid NotifyTransport = "sendgrid"
	NotifyTransportSlack    NotifyTransport = "slack"
)

// UnmarshalText implements encoding.TextUnmarshaler for NotifyTransport.
func (n *NotifyTransport) UnmarshalText(text []byte) error {
	v := NotifyTransport(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case NotifyTransportLog, NotifyTransportSMTP, NotifyTransportMailgun, NotifyTransportSendGrid, NotifyTransportSlack:
		*n = v
		return nil
	default:
		return fmt.Errorf("invalid NotifyTransport: %q (valid options: log, smtp, mailgun, sendgrid, slack)", v)
	}
}

// NotificationsConfig controls template rendering and message delivery.
type NotificationsConfig struct {
	Transport NotifyTransport `env:"NOTIFY_TRANSPORT" envDefault:"log"`

	// From is the sender address for email transports.
	From string `env:"NOTIFY_FROM" envDefault:"specops@localhost"`

	// DefaultRecipient receives single-recipient notifications when the payload names no user_email.
	DefaultRecipient string `env:"NOTIFY_DEFAULT_RECIPIENT" envDefault:"team@localhost"`

	// ReviewerRecipient receives HAR review requests.
	ReviewerRecipient string `env:"NOTIFY_REVIEWER_RECIPIENT" envDefault:"reviewers@localhost"`

	// DashboardURL prefixes links rendered into message bodies.
	DashboardURL string `env:"NOTIFY_DASHBOARD_URL" envDefault:"http://localhost:3000"`

	// SendTimeout bounds each individual message delivery.
	SendTimeout time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"15s"`

	SMTP     SMTPConfig     `envPrefix:"NOTIFY_SMTP_"`
	Mailgun  MailgunConfig  `envPrefix:"NOTIFY_MAILGUN_"`
	SendGrid SendGridConfig `envPrefix:"NOTIFY_SENDGRID_"`
	Slack    SlackConfig    `envPrefix:"NOTIFY_SLACK_"`
}

// SMTPConfig configures the net/smtp transport.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"     envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// MailgunConfig configures the Mailgun API transport.
type MailgunConfig struct {
	Domain string `env:"DOMAIN"`
	APIKey string `env:"API_KEY"`
	// APIBase overrides the API endpoint (e.g., the EU region).
	APIBase string `env:"API_BASE"`
}

// SendGridConfig configures the SendGrid v3 API transport.
type SendGridConfig struct {
	APIKey   string `env:"API_KEY"`
	FromName string `env:"FROM_NAME" envDefault:"specops"`
}

// SlackConfig configures the Slack incoming-webhook transport.
type SlackConfig struct {
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"specops"`
	RetryLimit int    `env:"RETRY_LIMIT" envDefault:"3"`
}

// Sanitize normalises notification configuration values.
func (c *NotificationsConfig) Sanitize() {
	if c.Transport == "" {
		c.Transport = NotifyTransportLog
	}
	c.From = strings.TrimSpace(c.From)
	c.DefaultRecipient = strings.TrimSpace(c.DefaultRecipient)
	c.ReviewerRecipient = strings.TrimSpace(c.ReviewerRecipient)
	c.DashboardURL = strings.TrimRight(strings.TrimSpace(c.DashboardURL), "/")
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}

	c.SMTP.Host = strings.TrimSpace(c.SMTP.Host)
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}
	c.Mailgun.Domain = strings.TrimSpace(c.Mailgun.Domain)
	c.Mailgun.APIKey = strings.TrimSpace(c.Mailgun.APIKey)
	c.Mailgun.APIBase = strings.TrimSpace(c.Mailgun.APIBase)
	c.SendGrid.APIKey = strings.TrimSpace(c.SendGrid.APIKey)
	c.Slack.WebhookURL = strings.TrimSpace(c.Slack.WebhookURL)
	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
	if c.Slack.Username == "" {
		c.Slack.Username = "specops"
	}
	if c.Slack.RetryLimit < 0 {
		c.Slack.RetryLimit = 0
	}
}

// Validate reports missing settings for the selected transport.
func (c *NotificationsConfig) Validate() error {
	if c.ReviewerRecipient == "" {
		return errors.New("NOTIFY_REVIEWER_RECIPIENT is required")
	}
	switch c.Transport {
	case NotifyTransportLog:
		return nil
	case NotifyTransportSMTP:
		if c.SMTP.Host == "" {
			return errors.New("NOTIFY_SMTP_HOST is required for smtp transport")
		}
	case NotifyTransportMailgun:
		if c.Mailgun.Domain == "" || c.Mailgun.APIKey == "" {
			return errors.New("NOTIFY_MAILGUN_DOMAIN and NOTIFY_MAILGUN_API_KEY are required for mailgun transport")
		}
	case NotifyTransportSendGrid:
		if c.SendGrid.APIKey == "" {
			return errors.New("NOTIFY_SENDGRID_API_KEY is required for sendgrid transport")
		}
	case NotifyTransportSlack:
		if c.Slack.WebhookURL == "" {
			return errors.New("NOTIFY_SLACK_WEBHOOK_URL is required for slack transport")
		}
	default:
		return fmt.Errorf("unsupported notify transport %q", c.Transport)
	}
	return nil
}
