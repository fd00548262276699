// Package webhook publishes lifecycle envelopes to the notification webhook.
package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/gateway"
	"github.com/target/specops-api/internal/observability/statsd"
)

// Options configures a Publisher.
type Options struct {
	URL   string
	Token string
	// MaxRetries and RetryDelay follow gateway.Options: zero means no retries
	// and no backoff, negative means the gateway defaults.
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    statsd.Sink
	Sleep      gateway.SleepFunc
	Now        func() time.Time
}

// Publisher posts envelopes through a gateway client that carries the producer retry policy.
type Publisher struct {
	client *gateway.Client
	url    string
	logger *slog.Logger
	now    func() time.Time
}

// New builds a Publisher.
func New(opts Options) (*Publisher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client, err := gateway.New(gateway.Options{
		BaseURL:    opts.URL,
		MaxRetries: opts.MaxRetries,
		RetryDelay: opts.RetryDelay,
		Timeout:    opts.Timeout,
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
		Metrics:    opts.Metrics,
		Name:       "webhook",
		Sleep:      opts.Sleep,
	})
	if err != nil {
		return nil, err
	}
	client.Configure(opts.Token)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		client: client,
		url:    opts.URL,
		logger: logger.With("component", "webhook_publisher"),
		now:    now,
	}, nil
}

// Publish posts env and returns the webhook's acknowledgement. A zero timestamp is
// stamped with the current time. 5xx responses are retried, so a dispatch that
// partially failed may deliver its successful messages again.
func (p *Publisher) Publish(ctx context.Context, env model.Envelope) (*model.Ack, error) {
	if env.Timestamp.IsZero() {
		env.Timestamp = p.now().UTC()
	}

	var ack model.Ack
	err := p.client.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   p.url,
		Body:   env,
	}, &ack)
	if err != nil {
		p.logger.ErrorContext(ctx, "publish envelope failed",
			"event_type", env.EventType,
			"correlation_id", env.CorrelationID,
			"error", err,
		)
		return nil, err
	}

	p.logger.InfoContext(ctx, "published envelope",
		"event_type", env.EventType,
		"correlation_id", env.CorrelationID,
		"status", ack.Status,
	)
	return &ack, nil
}
