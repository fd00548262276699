// Package gateway is the single choke point for calls to the contract backend.
// It owns credential injection, failure classification and the linear retry policy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/observability/statsd"
	"golang.org/x/oauth2"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	defaultTimeout    = 30 * time.Second
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root every request path is resolved against.
	BaseURL string
	// MaxRetries bounds retries of 5xx and network failures. Zero disables
	// retries; negative means defaultMaxRetries.
	MaxRetries int
	// RetryDelay is the linear backoff base; retry n waits RetryDelay*n. Zero
	// retries immediately; negative means defaultRetryDelay.
	RetryDelay time.Duration
	// Timeout bounds one Send including all of its retries.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    statsd.Sink
	// Name tags log lines and metrics; defaults to "backend".
	Name string
	// Routes overrides job endpoints and status projections per job type.
	Routes map[model.JobType]JobRoute

	// Sleep replaces the retry wait; tests use it to observe delays.
	Sleep SleepFunc
	// OnCredentialCleared runs once each time a 401 clears the active credential.
	OnCredentialCleared func()
}

// Client issues backend requests on behalf of one credential session.
// It is safe for concurrent use.
type Client struct {
	base       *url.URL
	hc         *http.Client
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	metrics    statsd.Sink
	name       string
	sleep      SleepFunc
	onCleared  func()
	routes     jobRoutes

	mu    sync.RWMutex
	token *oauth2.Token
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("gateway base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway base url %q must be absolute", raw)
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay < 0 {
		retryDelay = defaultRetryDelay
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "backend"
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	routes, err := buildRoutes(opts.Routes)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:       base,
		hc:         hc,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		timeout:    timeout,
		logger:     logger.With("component", "gateway", "gateway", name),
		metrics:    opts.Metrics,
		name:       name,
		sleep:      sleep,
		onCleared:  opts.OnCredentialCleared,
		routes:     routes,
	}, nil
}

// Configure sets the active credential; subsequent requests carry it.
func (c *Client) Configure(credential string) {
	credential = strings.TrimSpace(credential)
	c.mu.Lock()
	defer c.mu.Unlock()
	if credential == "" {
		c.token = nil
		return
	}
	c.token = &oauth2.Token{AccessToken: credential, TokenType: "Bearer"}
}

// Clear removes the active credential; subsequent requests omit it.
func (c *Client) Clear() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// HasCredential reports whether a credential is currently configured.
func (c *Client) HasCredential() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil
}

func (c *Client) currentToken() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// clearIf drops the credential only if it is still the one a rejected request carried,
// so concurrent 401s for the same credential clear it exactly once.
func (c *Client) clearIf(tok *oauth2.Token) bool {
	if tok == nil {
		return false
	}
	c.mu.Lock()
	cleared := c.token == tok
	if cleared {
		c.token = nil
	}
	c.mu.Unlock()

	if cleared {
		c.logger.Warn("backend rejected credential; cleared")
		if c.onCleared != nil {
			c.onCleared()
		}
	}
	return cleared
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges a username and password for a credential and configures it.
func (c *Client) Login(ctx context.Context, path, username, password string) error {
	var resp loginResponse
	err := c.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   loginRequest{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return errors.New("login response did not include an access_token")
	}
	c.Configure(resp.AccessToken)
	c.logger.InfoContext(ctx, "backend login succeeded", "username", username)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
