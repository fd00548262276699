package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/specops-api/config"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/notify/logtransport"
	"github.com/target/specops-api/internal/notify/mailgun"
	"github.com/target/specops-api/internal/notify/sendgrid"
	"github.com/target/specops-api/internal/notify/slack"
	"github.com/target/specops-api/internal/notify/smtp"
)

// NewTransport builds the message transport selected by cfg.Transport.
//
//nolint:ireturn // callers only need the transport contract.
func NewTransport(cfg config.NotificationsConfig, logger *slog.Logger) (core.Transport, error) {
	var (
		tr  core.Transport
		err error
	)
	switch cfg.Transport {
	case config.NotifyTransportLog, "":
		return logtransport.New(logger), nil
	case config.NotifyTransportSMTP:
		tr, err = smtp.New(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.From,
		})
	case config.NotifyTransportMailgun:
		tr, err = mailgun.New(mailgun.Config{
			Domain:  cfg.Mailgun.Domain,
			APIKey:  cfg.Mailgun.APIKey,
			From:    cfg.From,
			APIBase: cfg.Mailgun.APIBase,
		})
	case config.NotifyTransportSendGrid:
		tr, err = sendgrid.New(sendgrid.Config{
			APIKey:   cfg.SendGrid.APIKey,
			From:     cfg.From,
			FromName: cfg.SendGrid.FromName,
		})
	case config.NotifyTransportSlack:
		tr, err = slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.SendTimeout,
			RetryLimit: cfg.Slack.RetryLimit,
		})
	default:
		return nil, fmt.Errorf("unsupported notify transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s transport: %w", cfg.Transport, err)
	}
	return tr, nil
}
