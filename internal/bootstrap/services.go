package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/specops-api/config"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/data"
	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/events"
	"github.com/target/specops-api/internal/gateway"
	"github.com/target/specops-api/internal/notify"
	"github.com/target/specops-api/internal/observability/statsd"
	"github.com/target/specops-api/internal/service"
	"github.com/target/specops-api/internal/tracker"
	"golang.org/x/sync/errgroup"
)

const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds the wired application services. Fields for disabled
// services are nil.
type ServiceContainer struct {
	Gateway    *gateway.Client
	Tracker    *tracker.Tracker
	Watches    *service.WatchService
	Dispatcher *notify.Dispatcher
	Router     *events.Router
	Deliveries *data.DeliveryRepo
	Metrics    *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewMetrics builds the StatsD client. A disabled config yields a client that drops everything.
func NewMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	client, err := statsd.NewClient(statsd.Config{
		Enabled:       cfg.IsEnabled(),
		Address:       cfg.StatsdAddress,
		Prefix:        cfg.Prefix,
		GlobalTags:    cfg.Tags,
		MaxPacketSize: cfg.MaxPacketSize,
		FlushInterval: cfg.FlushInterval,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build statsd client: %w", err)
	}
	return client, nil
}

// NewServices wires the services enabled in deps.Config.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := NewMetrics(cfg.Observability.Metrics, logger)
	if err != nil {
		return nil, err
	}
	c := &ServiceContainer{Metrics: metrics}
	if deps.DB != nil {
		c.Deliveries = data.NewDeliveryRepo(deps.DB)
	}

	if cfg.Enabled(config.ServiceModeWebhook) {
		if err := c.buildNotifications(cfg, logger); err != nil {
			return nil, err
		}
	}
	if cfg.Enabled(config.ServiceModeWatch) {
		if err := c.buildWatch(ctx, cfg, deps.RedisClient, logger); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *ServiceContainer) buildNotifications(cfg *config.AppConfig, logger *slog.Logger) error {
	transport, err := NewTransport(cfg.Notifications, logger)
	if err != nil {
		return err
	}

	opts := notify.Options{
		Transport:         transport,
		DefaultRecipient:  cfg.Notifications.DefaultRecipient,
		ReviewerRecipient: cfg.Notifications.ReviewerRecipient,
		DashboardURL:      cfg.Notifications.DashboardURL,
		SendTimeout:       cfg.Notifications.SendTimeout,
		Logger:            logger,
		Metrics:           c.Metrics,
	}
	if c.Deliveries != nil {
		opts.Recorder = c.Deliveries
	}
	dispatcher, err := notify.New(opts)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	router, err := events.NewRouter(events.RouterOptions{
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    c.Metrics,
	})
	if err != nil {
		return fmt.Errorf("build event router: %w", err)
	}
	c.Dispatcher = dispatcher
	c.Router = router
	logger.Info("notifications ready", "transport", transport.Name(), "delivery_log", c.Deliveries != nil)
	return nil
}

func (c *ServiceContainer) buildWatch(
	ctx context.Context,
	cfg *config.AppConfig,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) error {
	gw, err := NewGateway(ctx, GatewayDeps{Config: cfg.Gateway, Logger: logger, Metrics: c.Metrics})
	if err != nil {
		return err
	}

	intervals := make(map[model.JobType]time.Duration, len(model.JobTypes()))
	for _, jt := range model.JobTypes() {
		intervals[jt] = cfg.Polling.IntervalFor(jt)
	}
	tr, err := tracker.New(tracker.Options{
		Fetcher:                gw,
		Logger:                 logger,
		Metrics:                c.Metrics,
		Intervals:              intervals,
		MaxConsecutiveFailures: cfg.Polling.MaxConsecutiveFailures,
	})
	if err != nil {
		return fmt.Errorf("build tracker: %w", err)
	}

	var snapshots core.SnapshotRepository
	if redisClient != nil {
		repo := data.NewRedisSnapshotRepo(redisClient, cfg.Redis.KeyPrefix)
		if err := repo.Health(ctx); err != nil {
			return fmt.Errorf("snapshot store: %w", err)
		}
		snapshots = repo
	} else {
		snapshots = data.NewMemorySnapshotRepo(nil)
	}

	watches, err := service.NewWatchService(service.WatchServiceOptions{
		Tracker:     tr,
		Snapshots:   snapshots,
		SnapshotTTL: cfg.Polling.SnapshotTTL,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build watch service: %w", err)
	}

	c.Gateway = gw
	c.Tracker = tr
	c.Watches = watches
	return nil
}

// ServiceOrchestrationConfig contains what RunServicesWithShutdown runs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown serves HTTP until SIGINT/SIGTERM or a server error,
// then stops watches and drains the server.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config with AppConfig is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewHTTPServer(&HTTPServerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(server, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down services...")
		return gracefulStop(shutdownConfig{
			server:   server,
			services: cfg.Services,
			timeout:  cfg.Config.HTTP.ShutdownTimeout,
			logger:   logger,
		})
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		return err
	}
	return nil
}

type shutdownConfig struct {
	server   *http.Server
	services *ServiceContainer
	timeout  time.Duration
	logger   *slog.Logger
}

// gracefulStop drains HTTP first so no new watches arrive, then stops the tracker.
func gracefulStop(cfg shutdownConfig) error {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	var errs []error
	if err := ShutdownHTTPServer(context.Background(), cfg.server, timeout, cfg.logger); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}

	if cfg.services != nil && cfg.services.Watches != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()
		if err := cfg.services.Watches.StopAll(ctx); err != nil {
			cfg.logger.Warn("timeout waiting for tracker to stop", "error", err)
		} else {
			cfg.logger.Info("tracker stopped")
		}
	}
	if cfg.services != nil && cfg.services.Metrics != nil {
		if err := cfg.services.Metrics.Close(); err != nil {
			cfg.logger.Warn("close statsd client", "error", err)
		}
	}
	return errors.Join(errs...)
}
