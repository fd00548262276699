package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/observability/metrics"
	"github.com/target/specops-api/internal/observability/statsd"
)

// Dispatcher handles a decoded event and reports the outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) (*model.Ack, error)
}

// RouterOptions configures a Router.
type RouterOptions struct {
	Dispatcher Dispatcher
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Router validates envelopes and hands each to exactly one dispatcher.
type Router struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewRouter builds a Router.
func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("router requires a dispatcher")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		dispatcher: opts.Dispatcher,
		logger:     logger.With("component", "event_router"),
		metrics:    opts.Metrics,
	}, nil
}

// Route decodes env and dispatches it. Envelopes that fail decoding never reach the
// dispatcher. Identical envelopes are routed independently.
func (r *Router) Route(ctx context.Context, env model.Envelope) (*model.Ack, error) {
	ev, err := Decode(env)
	if err != nil {
		metrics.EmitRoute(r.metrics, string(env.EventType), err)
		r.logger.WarnContext(ctx, "rejected envelope",
			"event_type", env.EventType,
			"correlation_id", env.CorrelationID,
			"error", err,
		)
		return nil, err
	}

	ack, err := r.dispatcher.Dispatch(ctx, ev)
	metrics.EmitRoute(r.metrics, string(env.EventType), err)
	if err != nil {
		r.logger.ErrorContext(ctx, "dispatch failed",
			"event_type", env.EventType,
			"correlation_id", env.CorrelationID,
			"error", err,
		)
		return ack, err
	}

	r.logger.InfoContext(ctx, "routed envelope",
		"event_type", env.EventType,
		"correlation_id", env.CorrelationID,
		"messages", len(ack.Messages),
	)
	return ack, nil
}
