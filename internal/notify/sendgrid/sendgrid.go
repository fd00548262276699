// Package sendgrid delivers notifications through the SendGrid v3 mail API.
package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
)

// Config holds the SendGrid account settings.
type Config struct {
	APIKey   string
	From     string
	FromName string
	// Host overrides the API host; used in tests.
	Host string
}

// Sender is a SendGrid transport.
type Sender struct {
	client *sendgrid.Client
	from   *mail.Email
}

var _ core.Transport = (*Sender)(nil)

// New builds a SendGrid sender.
func New(cfg Config) (*Sender, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("invalid SendGrid configuration")
	}
	client := sendgrid.NewSendClient(key)
	if host := strings.TrimSpace(cfg.Host); host != "" {
		req := sendgrid.GetRequest(key, "/v3/mail/send", host)
		req.Method = http.MethodPost
		client = &sendgrid.Client{Request: req}
	}
	return &Sender{
		client: client,
		from:   mail.NewEmail(strings.TrimSpace(cfg.FromName), strings.TrimSpace(cfg.From)),
	}, nil
}

// Name implements core.Transport.
func (s *Sender) Name() string { return "sendgrid" }

// Send delivers msg and returns SendGrid's X-Message-Id.
func (s *Sender) Send(ctx context.Context, msg model.Message) (string, error) {
	to := mail.NewEmail("", msg.Recipient)
	message := mail.NewSingleEmail(s.from, msg.Subject, to, msg.Body, "")
	message.AddCategories(string(msg.Role))

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("sendgrid send: status code %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
