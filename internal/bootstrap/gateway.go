package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/specops-api/config"
	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/gateway"
	"github.com/target/specops-api/internal/observability/statsd"
)

// GatewayDeps groups what NewGateway needs beyond configuration.
type GatewayDeps struct {
	Config  config.GatewayConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewGateway builds the backend client and establishes its credential.
// In login mode the exchange happens here, so a bad password fails startup.
func NewGateway(ctx context.Context, deps GatewayDeps) (*gateway.Client, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	client, err := gateway.New(gateway.Options{
		BaseURL:    cfg.BaseURL,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay(),
		Timeout:    cfg.RequestTimeout(),
		Logger:     logger,
		Metrics:    deps.Metrics,
		Routes:     jobRoutes(cfg),
		OnCredentialCleared: func() {
			logger.Warn("backend rejected the gateway credential; requests continue unauthenticated",
				"auth_mode", cfg.Auth.Mode)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	switch cfg.Auth.Mode {
	case config.AuthModeToken:
		client.Configure(cfg.Auth.Token)
	case config.AuthModeLogin:
		if err := client.Login(ctx, cfg.Auth.LoginPath, cfg.Auth.Username, cfg.Auth.Password); err != nil {
			return nil, fmt.Errorf("backend login: %w", err)
		}
	case config.AuthModeNone:
	}
	return client, nil
}

// jobRoutes turns per-type path and projection overrides into gateway routes.
// Empty fields keep the gateway defaults.
func jobRoutes(cfg config.GatewayConfig) map[model.JobType]gateway.JobRoute {
	routes := make(map[model.JobType]gateway.JobRoute, len(model.JobTypes()))
	for _, jt := range model.JobTypes() {
		routes[jt] = gateway.JobRoute{
			StatusPath: cfg.StatusPath(jt),
			Projection: cfg.Projection(jt),
		}
	}
	return routes
}
