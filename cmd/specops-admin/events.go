package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/target/specops-api/config"
	"github.com/target/specops-api/internal/bootstrap"
	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/webhook"
)

type envelopeOptions struct {
	EventType     string
	CorrelationID int64
	UserID        string
	Payload       string
}

func (o *envelopeOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.EventType, "event-type", "", "Lifecycle event type (required)")
	fs.Int64Var(&o.CorrelationID, "correlation-id", 0, "Id of the entity the event is about")
	fs.StringVar(&o.UserID, "user-id", "", "Acting user id")
	fs.StringVar(&o.Payload, "payload", "{}", "Payload JSON, @file, or - for stdin")
}

// envelope builds the envelope. Unknown event types are passed through so the
// receiver reports them.
func (o *envelopeOptions) envelope(stdin io.Reader, now time.Time) (model.Envelope, error) {
	et := strings.TrimSpace(o.EventType)
	if et == "" {
		return model.Envelope{}, errors.New("--event-type is required")
	}
	payload, err := readPayload(o.Payload, stdin)
	if err != nil {
		return model.Envelope{}, err
	}
	return model.Envelope{
		EventType:     model.EventType(et),
		CorrelationID: o.CorrelationID,
		UserID:        o.UserID,
		Timestamp:     now.UTC(),
		Payload:       payload,
	}, nil
}

func readPayload(arg string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case arg == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		raw = b
	default:
		raw = []byte(arg)
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func runEmit(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("emit", flag.ContinueOnError)
	var opts envelopeOptions
	opts.register(fs)
	url := fs.String("url", cc.Config.Producer.WebhookURL, "Notification webhook URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := opts.envelope(os.Stdin, time.Now())
	if err != nil {
		return err
	}

	p := cc.Config.Producer
	pub, err := webhook.New(webhook.Options{
		URL:        *url,
		Token:      p.Token,
		MaxRetries: p.MaxRetries,
		RetryDelay: time.Duration(p.RetryDelaySeconds) * time.Second,
		Timeout:    time.Duration(p.TimeoutSeconds) * time.Second,
		Logger:     cc.Logger,
	})
	if err != nil {
		return err
	}
	ack, err := pub.Publish(cc.Ctx, env)
	if err != nil {
		return err
	}
	return printAck(cc.Out, ack)
}

// runRoute dispatches an envelope without going through the webhook. With
// --dry-run messages go to the log transport instead of the configured one.
func runRoute(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	var opts envelopeOptions
	opts.register(fs)
	dryRun := fs.Bool("dry-run", false, "Log messages instead of sending them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := opts.envelope(os.Stdin, time.Now())
	if err != nil {
		return err
	}

	cfg := cc.Config
	cfg.Services = string(config.ServiceModeWebhook)
	if *dryRun {
		cfg.Notifications.Transport = config.NotifyTransportLog
	}
	if err := bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	deps := &bootstrap.ServiceDeps{Config: &cfg, Logger: cc.Logger}
	if cfg.Postgres.Enabled && !*dryRun {
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: cc.Logger})
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer closeDB(cc, db)
		deps.DB = db
	}
	svc, err := bootstrap.NewServices(cc.Ctx, deps)
	if err != nil {
		return err
	}

	ack, routeErr := svc.Router.Route(cc.Ctx, env)
	if ack != nil {
		if err := printAck(cc.Out, ack); err != nil {
			return err
		}
	}
	return routeErr
}

func printAck(w io.Writer, ack *model.Ack) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ack)
}
