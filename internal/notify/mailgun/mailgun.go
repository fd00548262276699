// Package mailgun delivers notifications through the Mailgun messages API.
package mailgun

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
)

// Config holds the Mailgun account settings.
type Config struct {
	Domain string
	APIKey string
	From   string
	// APIBase overrides the API endpoint, e.g. the EU region.
	APIBase string
}

// Sender is a Mailgun transport.
type Sender struct {
	mg   *mailgun.MailgunImpl
	from string
}

var _ core.Transport = (*Sender)(nil)

// New builds a Mailgun sender.
func New(cfg Config) (*Sender, error) {
	if strings.TrimSpace(cfg.Domain) == "" || strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("invalid Mailgun configuration")
	}
	mg := mailgun.NewMailgun(strings.TrimSpace(cfg.Domain), strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.APIBase); base != "" {
		mg.SetAPIBase(base)
	}
	return &Sender{mg: mg, from: strings.TrimSpace(cfg.From)}, nil
}

// Name implements core.Transport.
func (s *Sender) Name() string { return "mailgun" }

// Send queues msg with Mailgun and returns the queued message id.
func (s *Sender) Send(ctx context.Context, msg model.Message) (string, error) {
	message := s.mg.NewMessage(s.from, msg.Subject, msg.Body)
	if err := message.AddRecipient(msg.Recipient); err != nil {
		return "", fmt.Errorf("add mailgun recipient: %w", err)
	}
	message.AddTag(string(msg.Role))

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	return id, nil
}
