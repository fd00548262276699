package config

import (
	"strings"
	"time"

	"github.com/target/specops-api/internal/domain/model"
)

const (
	defaultMaxRetries            = 3
	defaultRetryDelaySeconds     = 1
	defaultRequestTimeoutSeconds = 30
)

// GatewayConfig controls the resilient request gateway used for every backend call.
type GatewayConfig struct {
	// BaseURL is the contract backend root (e.g., "http://localhost:8000").
	BaseURL string `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8000"`

	// MaxRetries is how many times a 5xx or network failure is retried.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`

	// RetryDelaySeconds is the linear backoff base; retry n waits RetryDelaySeconds*n.
	RetryDelaySeconds int `env:"RETRY_DELAY_SECONDS" envDefault:"1"`

	// RequestTimeoutSeconds bounds each call including all retries.
	RequestTimeoutSeconds int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Auth selects how the gateway obtains its credential.
	Auth AuthConfig

	// Status endpoints per job type; "{id}" is replaced with the job id.
	ValidationStatusPath string `env:"BACKEND_STATUS_PATH_VALIDATION" envDefault:"/api/validation-runs/{id}"`
	HARStatusPath        string `env:"BACKEND_STATUS_PATH_HAR"        envDefault:"/api/har/uploads/{id}/status"`
	MockStatusPath       string `env:"BACKEND_STATUS_PATH_MOCK"       envDefault:"/api/mocks/deployments/{id}"`

	// Optional JMESPath projections overriding how a status document maps onto a job.
	// Each expression must evaluate to an object with job fields (id, status, progress, ...).
	ValidationProjection string `env:"BACKEND_STATUS_PROJECTION_VALIDATION"`
	HARProjection        string `env:"BACKEND_STATUS_PROJECTION_HAR"`
	MockProjection       string `env:"BACKEND_STATUS_PROJECTION_MOCK"`
}

// Sanitize applies guardrails to gateway configuration values.
func (g *GatewayConfig) Sanitize() {
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.MaxRetries < 0 {
		g.MaxRetries = defaultMaxRetries
	}
	if g.RetryDelaySeconds < 0 {
		g.RetryDelaySeconds = defaultRetryDelaySeconds
	}
	if g.RequestTimeoutSeconds <= 0 {
		g.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	g.ValidationProjection = strings.TrimSpace(g.ValidationProjection)
	g.HARProjection = strings.TrimSpace(g.HARProjection)
	g.MockProjection = strings.TrimSpace(g.MockProjection)
	g.Auth.Sanitize()
}

// RetryDelay returns the linear backoff base as a duration.
func (g *GatewayConfig) RetryDelay() time.Duration {
	return time.Duration(g.RetryDelaySeconds) * time.Second
}

// RequestTimeout returns the per-call timeout as a duration.
func (g *GatewayConfig) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSeconds) * time.Second
}

// StatusPath returns the configured status endpoint template for a job type.
func (g *GatewayConfig) StatusPath(t model.JobType) string {
	switch t {
	case model.JobTypeValidationRun:
		return g.ValidationStatusPath
	case model.JobTypeHARProcessing:
		return g.HARStatusPath
	case model.JobTypeMockDeployment:
		return g.MockStatusPath
	default:
		return ""
	}
}

// Projection returns the configured JMESPath projection override for a job type, if any.
func (g *GatewayConfig) Projection(t model.JobType) string {
	switch t {
	case model.JobTypeValidationRun:
		return g.ValidationProjection
	case model.JobTypeHARProcessing:
		return g.HARProjection
	case model.JobTypeMockDeployment:
		return g.MockProjection
	default:
		return ""
	}
}

// ProducerConfig mirrors the gateway policy for producer-to-webhook delivery.
type ProducerConfig struct {
	// WebhookURL is the notification webhook the producer posts envelopes to.
	WebhookURL string `env:"N8N_WEBHOOK_URL" envDefault:"http://localhost:8080/webhooks/notifications"`

	// Token is sent as a bearer credential when set.
	Token string `env:"N8N_WEBHOOK_TOKEN"`

	MaxRetries        int `env:"N8N_MAX_RETRIES"         envDefault:"3"`
	RetryDelaySeconds int `env:"N8N_RETRY_DELAY_SECONDS" envDefault:"5"`
	TimeoutSeconds    int `env:"N8N_TIMEOUT_SECONDS"     envDefault:"30"`
}

// Sanitize applies guardrails to producer configuration values.
func (p *ProducerConfig) Sanitize() {
	p.WebhookURL = strings.TrimSpace(p.WebhookURL)
	p.Token = strings.TrimSpace(p.Token)
	if p.MaxRetries < 0 {
		p.MaxRetries = 3
	}
	if p.RetryDelaySeconds < 0 {
		p.RetryDelaySeconds = 5
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = 30
	}
}
