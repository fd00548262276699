package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/target/specops-api/internal/domain/model"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - webhook",
			input:    "webhook",
			expected: map[ServiceMode]bool{ServiceModeWebhook: true},
		},
		{
			name:     "both services with whitespace",
			input:    " webhook , watch ",
			expected: map[ServiceMode]bool{ServiceModeWebhook: true, ServiceModeWatch: true},
		},
		{
			name:     "duplicate and empty entries",
			input:    "watch,,watch",
			expected: map[ServiceMode]bool{ServiceModeWatch: true},
		},
		{
			name:        "empty string",
			input:       "",
			expected:    map[ServiceMode]bool{},
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,",
			expectError: true,
		},
		{
			name:        "invalid service",
			input:       "webhook,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for input %q, got nil", tt.input)
				}
				if tt.expected != nil && !reflect.DeepEqual(result, tt.expected) {
					t.Errorf("expected %v, got %v", tt.expected, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := &AppConfig{Services: "watch"}
	if cfg.Enabled(ServiceModeWebhook) {
		t.Error("webhook should be disabled")
	}
	if !cfg.Enabled(ServiceModeWatch) {
		t.Error("watch should be enabled")
	}

	cfg.Services = "bogus"
	if cfg.Enabled(ServiceModeWatch) || cfg.Enabled(ServiceModeWebhook) {
		t.Error("invalid service config should enable nothing")
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	if len(modes) != 2 {
		t.Fatalf("expected 2 service modes, got %d", len(modes))
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Gateway.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Gateway.MaxRetries)
	}
	if cfg.Gateway.RetryDelay() != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", cfg.Gateway.RetryDelay())
	}
	if cfg.Gateway.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Gateway.RequestTimeout())
	}
	if got := cfg.Polling.IntervalFor(model.JobTypeHARProcessing); got != 2*time.Second {
		t.Errorf("HAR interval = %v, want 2s", got)
	}
	if got := cfg.Polling.IntervalFor(model.JobTypeValidationRun); got != 5*time.Second {
		t.Errorf("validation interval = %v, want 5s", got)
	}
	if cfg.Polling.MaxConsecutiveFailures != 5 {
		t.Errorf("MaxConsecutiveFailures = %d, want 5", cfg.Polling.MaxConsecutiveFailures)
	}
	if cfg.Producer.MaxRetries != 3 || cfg.Producer.RetryDelaySeconds != 5 || cfg.Producer.TimeoutSeconds != 30 {
		t.Errorf("unexpected producer policy: %+v", cfg.Producer)
	}
	if cfg.Notifications.Transport != NotifyTransportLog {
		t.Errorf("Transport = %q, want log", cfg.Notifications.Transport)
	}
	if cfg.Gateway.Auth.Mode != AuthModeNone {
		t.Errorf("Auth.Mode = %q, want none", cfg.Gateway.Auth.Mode)
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY_SECONDS", "2")
	t.Setenv("BACKEND_BASE_URL", "https://backend.example.com/")
	t.Setenv("BACKEND_AUTH_MODE", "token")
	t.Setenv("BACKEND_API_TOKEN", " abc ")
	t.Setenv("POLL_INTERVAL_MOCK", "10s")
	t.Setenv("NOTIFY_TRANSPORT", "mailgun")
	t.Setenv("NOTIFY_MAILGUN_DOMAIN", "mg.example.com")
	t.Setenv("NOTIFY_MAILGUN_API_KEY", "key-123")
	t.Setenv("N8N_RETRY_DELAY_SECONDS", "7")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Gateway.MaxRetries != 5 || cfg.Gateway.RetryDelay() != 2*time.Second {
		t.Errorf("unexpected retry policy: %+v", cfg.Gateway)
	}
	if cfg.Gateway.BaseURL != "https://backend.example.com" {
		t.Errorf("BaseURL = %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.Auth.Mode != AuthModeToken || cfg.Gateway.Auth.Token != "abc" {
		t.Errorf("unexpected auth: %+v", cfg.Gateway.Auth)
	}
	if cfg.Polling.IntervalFor(model.JobTypeMockDeployment) != 10*time.Second {
		t.Errorf("mock interval = %v", cfg.Polling.MockInterval)
	}
	if err := cfg.Notifications.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if cfg.Producer.RetryDelaySeconds != 7 {
		t.Errorf("producer delay = %d", cfg.Producer.RetryDelaySeconds)
	}
}

func TestAppConfig_ParseEnvRejectsUnknownTransport(t *testing.T) {
	t.Setenv("NOTIFY_TRANSPORT", "pigeon")
	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected parse error for unknown transport")
	}
}

func TestAuthConfig_Sanitize(t *testing.T) {
	tests := []struct {
		name string
		in   AuthConfig
		want AuthMode
	}{
		{"token without token", AuthConfig{Mode: AuthModeToken}, AuthModeNone},
		{"login without password", AuthConfig{Mode: AuthModeLogin, Username: "u"}, AuthModeNone},
		{"login complete", AuthConfig{Mode: AuthModeLogin, Username: "u", Password: "p"}, AuthModeLogin},
		{"unknown mode", AuthConfig{Mode: "weird"}, AuthModeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			cfg.Sanitize()
			if cfg.Mode != tt.want {
				t.Errorf("Mode = %q, want %q", cfg.Mode, tt.want)
			}
			if cfg.LoginPath == "" {
				t.Error("LoginPath should default")
			}
		})
	}
}

func TestNotificationsConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     NotificationsConfig
		wantErr bool
	}{
		{"log", NotificationsConfig{Transport: NotifyTransportLog, ReviewerRecipient: "r@x"}, false},
		{"missing reviewer", NotificationsConfig{Transport: NotifyTransportLog}, true},
		{"smtp missing host", NotificationsConfig{Transport: NotifyTransportSMTP, ReviewerRecipient: "r@x"}, true},
		{"sendgrid missing key", NotificationsConfig{Transport: NotifyTransportSendGrid, ReviewerRecipient: "r@x"}, true},
		{
			"slack ok",
			NotificationsConfig{Transport: NotifyTransportSlack, ReviewerRecipient: "r@x", Slack: SlackConfig{WebhookURL: "https://hooks"}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPollingConfig_Sanitize(t *testing.T) {
	cfg := PollingConfig{}
	cfg.Sanitize()
	if cfg.HARInterval != 2*time.Second || cfg.ValidationInterval != 5*time.Second || cfg.MockInterval != 3*time.Second {
		t.Errorf("unexpected intervals: %+v", cfg)
	}
	if cfg.MaxConsecutiveFailures != 1 {
		t.Errorf("MaxConsecutiveFailures = %d, want 1", cfg.MaxConsecutiveFailures)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "  ", Prefix: ".specops."}
	cfg.Sanitize()
	if cfg.IsEnabled() {
		t.Error("metrics should be disabled without an address")
	}
	if cfg.Prefix != "specops" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}
}

func TestObservabilityMetricsConfig_SanitizeBatching(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "statsd:8125", MaxPacketSize: 100}
	cfg.Sanitize()
	if !cfg.IsEnabled() {
		t.Fatal("metrics should stay enabled with an address")
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want 1s", cfg.FlushInterval)
	}
	if cfg.MaxPacketSize != 512 {
		t.Errorf("MaxPacketSize = %d, want 512", cfg.MaxPacketSize)
	}
}
