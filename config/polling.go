package config

import (
	"time"

	"github.com/target/specops-api/internal/domain/model"
)

const minPollInterval = 100 * time.Millisecond

// PollingConfig controls the status reconciliation loop.
type PollingConfig struct {
	// Per-job-type tick intervals.
	HARInterval        time.Duration `env:"POLL_INTERVAL_HAR"        envDefault:"2s"`
	ValidationInterval time.Duration `env:"POLL_INTERVAL_VALIDATION" envDefault:"5s"`
	MockInterval       time.Duration `env:"POLL_INTERVAL_MOCK"       envDefault:"3s"`

	// MaxConsecutiveFailures is how many transient fetch failures in a row stall a job.
	MaxConsecutiveFailures uint32 `env:"POLL_MAX_CONSECUTIVE_FAILURES" envDefault:"5"`

	// SnapshotTTL is how long the watch API keeps the last observation of a finished job.
	SnapshotTTL time.Duration `env:"WATCH_SNAPSHOT_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to polling configuration values.
func (p *PollingConfig) Sanitize() {
	if p.HARInterval < minPollInterval {
		p.HARInterval = 2 * time.Second
	}
	if p.ValidationInterval < minPollInterval {
		p.ValidationInterval = 5 * time.Second
	}
	if p.MockInterval < minPollInterval {
		p.MockInterval = 3 * time.Second
	}
	if p.MaxConsecutiveFailures == 0 {
		p.MaxConsecutiveFailures = 1
	}
	if p.SnapshotTTL < time.Minute {
		p.SnapshotTTL = time.Minute
	}
}

// IntervalFor returns the configured tick interval for a job type.
func (p *PollingConfig) IntervalFor(t model.JobType) time.Duration {
	switch t {
	case model.JobTypeHARProcessing:
		return p.HARInterval
	case model.JobTypeValidationRun:
		return p.ValidationInterval
	case model.JobTypeMockDeployment:
		return p.MockInterval
	default:
		return p.ValidationInterval
	}
}
