// Package notify renders lifecycle events into messages and delivers them
// through a Transport.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
	"github.com/target/specops-api/internal/events"
	"github.com/target/specops-api/internal/observability/metrics"
	"github.com/target/specops-api/internal/observability/statsd"
)

const defaultSendTimeout = 15 * time.Second

// ErrNoRecipient is reported for a message with neither a payload nor a configured recipient.
var ErrNoRecipient = errors.New("no recipient configured")

// DeliveryRecorder persists the outcome of each send attempt.
type DeliveryRecorder interface {
	Create(ctx context.Context, rec *model.DeliveryRecord) error
}

// Options configures a Dispatcher.
type Options struct {
	Transport core.Transport
	// Recorder is optional; recording failures are logged and never change the outcome.
	Recorder          DeliveryRecorder
	DefaultRecipient  string
	ReviewerRecipient string
	DashboardURL      string
	SendTimeout       time.Duration
	Logger            *slog.Logger
	Metrics           statsd.Sink
	Now               func() time.Time
}

// Dispatcher sends the messages for one event and acknowledges the result.
type Dispatcher struct {
	transport        core.Transport
	recorder         DeliveryRecorder
	defaultRecipient string
	reviewer         string
	dashboardURL     string
	sendTimeout      time.Duration
	logger           *slog.Logger
	metrics          statsd.Sink
	now              func() time.Time
}

var _ events.Dispatcher = (*Dispatcher)(nil)

// New builds a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Transport == nil {
		return nil, errors.New("dispatcher requires a transport")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	reviewer := strings.TrimSpace(opts.ReviewerRecipient)
	if reviewer == "" {
		reviewer = strings.TrimSpace(opts.DefaultRecipient)
	}
	return &Dispatcher{
		transport:        opts.Transport,
		recorder:         opts.Recorder,
		defaultRecipient: strings.TrimSpace(opts.DefaultRecipient),
		reviewer:         reviewer,
		dashboardURL:     strings.TrimRight(strings.TrimSpace(opts.DashboardURL), "/"),
		sendTimeout:      timeout,
		logger:           logger.With("component", "notify_dispatcher", "transport", opts.Transport.Name()),
		metrics:          opts.Metrics,
		now:              now,
	}, nil
}

// Dispatch renders ev and sends every resulting message. Messages are sent
// concurrently and independently; a failed message never prevents the others.
// The returned Ack always reports every message. The error joins one
// dispatch error per failed message.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.Event) (*model.Ack, error) {
	meta := ev.Meta()
	ack := d.baseAck(ev)

	drafts, err := d.compose(ev)
	if err != nil {
		ack.Status = model.AckError
		ack.Message = "failed to render notification"
		ack.Timestamp = d.now().UTC()
		return ack, apperrors.Wrap(err, apperrors.ErrCodeInternal, "render notification")
	}

	results := make([]model.MessageResult, len(drafts))
	errs := make([]error, len(drafts))
	var wg sync.WaitGroup
	for i, dr := range drafts {
		wg.Add(1)
		go func(i int, dr draft) {
			defer wg.Done()
			results[i], errs[i] = d.send(ctx, meta, dr)
		}(i, dr)
	}
	wg.Wait()

	ack.Messages = results
	ack.Timestamp = d.now().UTC()

	joined := errors.Join(errs...)
	sent := ack.SentCount()
	switch {
	case joined == nil && len(results) == 1:
		ack.Status = model.AckSuccess
		ack.Message = "notification sent"
	case joined == nil:
		ack.Status = model.AckSuccess
		ack.Message = fmt.Sprintf("%d notifications sent", sent)
	default:
		ack.Status = model.AckError
		ack.Message = fmt.Sprintf("%d of %d notifications failed: %s",
			len(results)-sent, len(results), strings.Join(failedRecipients(results), ", "))
	}
	return ack, joined
}

func (d *Dispatcher) send(ctx context.Context, meta events.Meta, dr draft) (model.MessageResult, error) {
	res := model.MessageResult{Role: dr.role, Recipient: dr.recipient, Subject: dr.subject}
	msg := model.Message{Role: dr.role, Recipient: dr.recipient, Subject: dr.subject, Body: dr.body}

	start := time.Now()
	var (
		providerID string
		err        error
	)
	if dr.recipient == "" {
		err = ErrNoRecipient
	} else {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		providerID, err = d.transport.Send(sendCtx, msg)
		cancel()
	}

	metrics.EmitNotifyMessage(d.metrics, metrics.NotifyMetric{
		EventType: string(meta.EventType),
		Role:      string(dr.role),
		Transport: d.transport.Name(),
		Duration:  time.Since(start),
		Err:       err,
	})
	d.record(ctx, meta, msg, providerID, err)

	if err != nil {
		res.Error = err.Error()
		d.logger.ErrorContext(ctx, "notification delivery failed",
			"event_type", meta.EventType,
			"correlation_id", meta.CorrelationID,
			"role", dr.role,
			"recipient", dr.recipient,
			"error", err,
		)
		return res, apperrors.Dispatch(recipientLabel(dr), err)
	}

	res.Sent = true
	res.ProviderMessageID = providerID
	d.logger.InfoContext(ctx, "notification sent",
		"event_type", meta.EventType,
		"correlation_id", meta.CorrelationID,
		"role", dr.role,
		"recipient", dr.recipient,
		"provider_message_id", providerID,
	)
	return res, nil
}

func (d *Dispatcher) record(ctx context.Context, meta events.Meta, msg model.Message, providerID string, sendErr error) {
	if d.recorder == nil {
		return
	}
	rec := &model.DeliveryRecord{
		ID:            uuid.NewString(),
		EventType:     meta.EventType,
		CorrelationID: meta.CorrelationID,
		Role:          msg.Role,
		Recipient:     msg.Recipient,
		Subject:       msg.Subject,
		Transport:     d.transport.Name(),
		Status:        model.DeliverySent,
		CreatedAt:     d.now().UTC(),
	}
	if providerID != "" {
		rec.ProviderMessageID = &providerID
	}
	if sendErr != nil {
		rec.Status = model.DeliveryFailed
		msg := sendErr.Error()
		rec.Error = &msg
	}
	if err := d.recorder.Create(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.WarnContext(ctx, "failed to record delivery",
			"event_type", meta.EventType,
			"correlation_id", meta.CorrelationID,
			"error", err,
		)
	}
}

// baseAck echoes the correlation identifiers carried by ev.
func (d *Dispatcher) baseAck(ev events.Event) *model.Ack {
	meta := ev.Meta()
	ack := &model.Ack{EventType: meta.EventType, CorrelationID: meta.CorrelationID}

	switch e := ev.(type) {
	case *events.SpecificationChanged:
		ack.SpecificationID = e.SpecificationID
	case *events.ValidationCompleted:
		ack.ValidationRunID = e.ValidationRunID
		ack.SpecificationID = e.SpecificationID
	case *events.ValidationFailed:
		ack.ValidationRunID = e.ValidationRunID
		ack.SpecificationID = e.SpecificationID
	case *events.HARProcessingCompleted:
		ack.UploadID = e.UploadID
		n := e.ArtifactsSummary.Count()
		ack.ArtifactsCount = &n
	case *events.HARProcessingFailed:
		ack.UploadID = e.UploadID
	case *events.HARReviewRequested:
		ack.UploadID = e.UploadID
		ack.ReviewURL = e.ReviewURL
		n := e.ArtifactsSummary.Count()
		ack.ArtifactsCount = &n
	}
	return ack
}

func recipientLabel(dr draft) string {
	if dr.recipient == "" {
		return string(dr.role) + " recipient"
	}
	return dr.recipient
}

func failedRecipients(results []model.MessageResult) []string {
	var out []string
	for _, r := range results {
		if r.Sent {
			continue
		}
		if r.Recipient == "" {
			out = append(out, string(r.Role)+" recipient")
			continue
		}
		out = append(out, r.Recipient)
	}
	return out
}
