// Package logtransport writes notifications to the structured log instead of sending them.
package logtransport

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
)

// Transport logs each message at info level.
type Transport struct {
	logger *slog.Logger
}

var _ core.Transport = (*Transport)(nil)

// New builds a log transport.
func New(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{logger: logger.With("component", "log_transport")}
}

// Name implements core.Transport.
func (t *Transport) Name() string { return "log" }

// Send logs msg and returns a generated message id.
func (t *Transport) Send(ctx context.Context, msg model.Message) (string, error) {
	id := uuid.NewString()
	t.logger.InfoContext(ctx, "notification",
		"message_id", id,
		"role", msg.Role,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return id, nil
}
