package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/http"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
	"github.com/studiopipe/kitsu-fetch/internal/ratelimit"
)

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 512

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorf("[RETRY] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugf("[RETRY] %s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnf("[RETRY] %s %v", msg, keysAndValues)
}

// Client is the read-only tracking-service client. It is safe for concurrent use.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string // always ends in /api
	limiter    *ratelimit.RateLimiter
	logger     *logging.Logger

	mu    sync.RWMutex
	token string

	callsMu     sync.Mutex
	callsByPath map[string]int64
}

// NewClient creates a client for cfg.Host using the proxy-aware HTTP client
// wrapped with transport-level retries for 5xx/429 responses.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	logger = logging.OrNop(logger)

	base := cfg.APIBase()
	if base == "" {
		return nil, errors.New("kitsu host is empty")
	}

	httpClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.APIRetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand the final response back instead of an opaque "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		httpClient:  retryClient.StandardClient(),
		baseURL:     base,
		limiter:     ratelimit.NewRateLimiter(cfg.APIRatePerSec, cfg.APIBurst, logger),
		logger:      logger,
		callsByPath: make(map[string]int64),
	}, nil
}

// BaseURL returns the API root, e.g. https://kitsu.example.com/api.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authorize adds the session's bearer token to req. The download engine uses
// it for file requests.
func (c *Client) Authorize(req *nethttp.Request) {
	if t := c.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
}

// CallCount returns the number of requests issued per path, for debug output.
func (c *Client) CallCount() map[string]int64 {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	out := make(map[string]int64, len(c.callsByPath))
	for k, v := range c.callsByPath {
		out[k] = v
	}
	return out
}

// doRequest performs an HTTP request with authentication and rate limiting.
// The caller owns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	c.callsMu.Lock()
	c.callsByPath[routeOf(path)]++
	c.callsMu.Unlock()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.Authorize(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debugf("API call failed: %s %s - %v", method, path, err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		wait := 5 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		c.logger.Warnf("THROTTLED: %s %s - backing off %s", method, path, wait)
		c.limiter.SetCooldown(wait)
	}

	return resp, nil
}

// getJSON issues a GET bounded by timeout and decodes the body into out.
// Non-2xx responses become *StatusError.
func (c *Client) getJSON(ctx context.Context, path string, timeout time.Duration, out interface{}) error {
	if timeout <= 0 {
		timeout = constants.APIClientTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "GET", path); err != nil {
		return err
	}

	if err := decodeBody(resp, out); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

func checkStatus(resp *nethttp.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method: method,
		Path:   path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// routeOf strips ids and queries so call counts group by endpoint.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if len(p) >= 16 && strings.Count(p, "-") >= 2 {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func decodeBody(resp *nethttp.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return decode(data, out)
}
