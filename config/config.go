// Package config holds the environment-driven settings for the specops
// services. Each concern lives in its own file; AppConfig composes them.
package config

import (
	"strings"
)

// AppConfig is populated by github.com/caarlos0/env. Call Sanitize after
// parsing so derived fields and guardrails are applied.
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Services is a comma separated list of service modes to run.
	Services string `env:"SERVICES" envDefault:"webhook,watch"`

	Gateway       GatewayConfig
	Producer      ProducerConfig
	Polling       PollingConfig
	Notifications NotificationsConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP          HTTPConfig
	Observability ObservabilityConfig
}

// Sanitize normalises every sub-config.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Services = strings.ToLower(c.Services)
	c.Gateway.Sanitize()
	c.Producer.Sanitize()
	c.Polling.Sanitize()
	c.Notifications.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices parses Services.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// Enabled reports whether mode is listed in Services. An unparsable list
// enables nothing.
func (c *AppConfig) Enabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}
