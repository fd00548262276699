package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/target/specops-api/internal/errors"
	"github.com/target/specops-api/internal/observability/metrics"
	"golang.org/x/oauth2"
)

const maxErrorBody = 4 << 10

// Request describes one backend call.
type Request struct {
	Method string
	// Path is resolved against the client's base URL. Absolute URLs are used as-is.
	Path   string
	Query  url.Values
	Header http.Header
	// Body is JSON-encoded when non-nil.
	Body any
}

type retriedKey struct{}

// markRetried flags ctx so that a nested Send does not start its own retry loop.
func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// Retried reports whether ctx already belongs to a Send that owns the retry loop.
func Retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// Send issues req and decodes a 2xx JSON body into out (which may be nil).
//
// A 401 clears the credential the request carried and fails with an authentication error.
// Other 4xx responses fail immediately with a client error. 5xx responses and network
// failures are retried up to MaxRetries times, waiting RetryDelay*attempt before each retry,
// and fail with a server error once retries are exhausted.
func (c *Client) Send(ctx context.Context, req Request, out any) error {
	start := time.Now()
	attempts, err := c.send(ctx, req, out)
	metrics.EmitGatewayRequest(c.metrics, metrics.GatewayMetric{
		Gateway:  c.name,
		Method:   req.Method,
		Attempts: attempts,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

func (c *Client) send(ctx context.Context, req Request, out any) (int, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return 0, apperrors.Client(0, err.Error())
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return 0, apperrors.Client(0, fmt.Sprintf("encode request body: %v", err))
		}
	}

	maxRetries := c.maxRetries
	if Retried(ctx) {
		maxRetries = 0
	}

	ctx, cancel := context.WithTimeout(markRetried(ctx), c.timeout)
	defer cancel()

	requestID := uuid.NewString()
	log := c.logger.With("method", method, "path", target.Path, "request_id", requestID)

	var lastErr error
	for attempt := 0; ; attempt++ {
		tok := c.currentToken()
		status, respBody, doErr := c.do(ctx, method, target, req.Header, body, tok, requestID, attempt)

		switch {
		case doErr != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return attempt + 1, abandoned(ctxErr, attempt+1)
			}
			lastErr = apperrors.Server(0, "network failure: "+doErr.Error(), doErr)
		case status == http.StatusUnauthorized:
			c.clearIf(tok)
			return attempt + 1, apperrors.Authentication(detailFrom(status, respBody))
		case status >= 200 && status < 300:
			if err := decode(respBody, out); err != nil {
				return attempt + 1, apperrors.Server(status, err.Error(), err)
			}
			if attempt > 0 {
				log.InfoContext(ctx, "backend request succeeded after retry", "attempts", attempt+1)
			}
			return attempt + 1, nil
		case status >= 500:
			lastErr = apperrors.Server(status, detailFrom(status, respBody), nil)
		default:
			return attempt + 1, apperrors.Client(status, detailFrom(status, respBody))
		}

		if attempt >= maxRetries {
			log.WarnContext(ctx, "backend request failed; retries exhausted",
				"attempts", attempt+1, "error", lastErr)
			return attempt + 1, lastErr
		}

		delay := c.retryDelay * time.Duration(attempt+1)
		log.DebugContext(ctx, "retrying backend request", "attempt", attempt+1, "delay", delay, "error", lastErr)
		if err := c.sleep(ctx, delay); err != nil {
			return attempt + 1, abandoned(err, attempt+1)
		}
	}
}

func (c *Client) do(
	ctx context.Context,
	method string,
	target *url.URL,
	header http.Header,
	body []byte,
	tok *oauth2.Token,
	requestID string,
	attempt int,
) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), rdr)
	if err != nil {
		return 0, nil, err
	}
	for k, vals := range header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	if attempt > 0 {
		httpReq.Header.Set("X-Retry-Attempt", strconv.Itoa(attempt))
	}
	if tok != nil {
		tok.SetAuthHeader(httpReq)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	limit := int64(maxErrorBody)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		limit = 32 << 20
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse request path %q: %w", path, err)
	}
	var u *url.URL
	if ref.IsAbs() {
		u = ref
	} else {
		u = c.base.JoinPath(ref.Path)
		if ref.RawQuery != "" {
			u.RawQuery = ref.RawQuery
		}
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vals := range query {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func abandoned(err error, attempts int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "request timed out after %d attempt(s)", attempts)
	}
	return apperrors.Wrapf(err, apperrors.ErrCodeCanceled, "request abandoned after %d attempt(s)", attempts)
}

// detailFrom extracts the backend's error message, preferring a JSON "detail" field.
func detailFrom(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			} else {
				return string(payload.Detail)
			}
		}
		if m := strings.TrimSpace(payload.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(payload.Error); m != "" {
			return m
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "<") {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "HTTP " + strconv.Itoa(status)
}
