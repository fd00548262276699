// Package slack delivers notifications to a Slack incoming webhook as Block
// Kit messages.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultUsername = "specops"
	baseBackoff     = 200 * time.Millisecond
	maxRetryAfter   = 30 * time.Second
	// Slack rejects section text longer than this.
	maxSectionText = 3000
)

// Config describes the webhook and delivery policy.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	// RetryLimit is the number of retries after the first attempt on 429,
	// 5xx or network failures.
	RetryLimit int
	Client     *http.Client
}

// Client posts messages to one webhook.
type Client struct {
	url      string
	channel  string
	username string
	retries  int
	http     *http.Client
	sleep    func(context.Context, time.Duration) error
}

var _ core.Transport = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.WebhookURL)
	if url == "" {
		return nil, errors.New("slack webhook url is required")
	}
	c := &Client{
		url:      url,
		channel:  strings.TrimSpace(cfg.Channel),
		username: strings.TrimSpace(cfg.Username),
		retries:  max(cfg.RetryLimit, 0),
		http:     cfg.Client,
		sleep:    sleepCtx,
	}
	if c.username == "" {
		c.username = defaultUsername
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c, nil
}

func (c *Client) Name() string { return "slack" }

// Send posts msg. Webhooks return no message id, so the id is always "".
func (c *Client) Send(ctx context.Context, msg model.Message) (string, error) {
	body, err := json.Marshal(c.payload(msg))
	if err != nil {
		return "", fmt.Errorf("encode slack payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * baseBackoff
			var re *retryableError
			if errors.As(lastErr, &re) && re.after > 0 {
				wait = re.after
			}
			if err := c.sleep(ctx, wait); err != nil {
				return "", err
			}
		}
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return "", nil
		}
		var re *retryableError
		if !errors.As(lastErr, &re) {
			return "", lastErr
		}
	}
	return "", lastErr
}

// retryableError marks a failure worth another attempt, optionally after the
// delay the server asked for.
type retryableError struct {
	err   error
	after time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryableError{err: fmt.Errorf("slack request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	err = fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &retryableError{err: err, after: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return &retryableError{err: err}
	default:
		return err
	}
}

// retryAfter parses a delay in seconds, capped at maxRetryAfter. Anything else
// yields zero so the default backoff applies.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type webhookPayload struct {
	Text     string  `json:"text"`
	Username string  `json:"username,omitempty"`
	Channel  string  `json:"channel,omitempty"`
	Blocks   []block `json:"blocks"`
}

type block struct {
	Type     string       `json:"type"`
	Text     *textObject  `json:"text,omitempty"`
	Elements []textObject `json:"elements,omitempty"`
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// payload renders a header with the subject, a context line naming the
// recipient and role, and the body as a preformatted section. Text is the
// plain fallback shown in notifications.
func (c *Client) payload(msg model.Message) webhookPayload {
	subject := escape(msg.Subject)
	p := webhookPayload{
		Text:     subject,
		Username: c.username,
		Channel:  c.channel,
		Blocks: []block{
			{Type: "header", Text: &textObject{Type: "plain_text", Text: msg.Subject}},
		},
	}

	var meta []textObject
	if to := strings.TrimSpace(msg.Recipient); to != "" {
		meta = append(meta, textObject{Type: "mrkdwn", Text: "*To:* " + escape(to)})
	}
	if msg.Role != "" {
		meta = append(meta, textObject{Type: "mrkdwn", Text: "*Role:* " + string(msg.Role)})
	}
	if len(meta) > 0 {
		p.Blocks = append(p.Blocks, block{Type: "context", Elements: meta})
	}

	if body := strings.TrimSpace(msg.Body); body != "" {
		text := "```\n" + truncate(escape(body), maxSectionText-8) + "\n```"
		p.Blocks = append(p.Blocks, block{Type: "section", Text: &textObject{Type: "mrkdwn", Text: text}})
	}
	return p
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return slackEscaper.Replace(s) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("…")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
