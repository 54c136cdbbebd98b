package connection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client carries the HTTP side of the bridge: resty for polling GETs and
// retryablehttp for reply POSTs, with replies rate limited.
type Client struct {
	resty   *resty.Client
	poster  *retryablehttp.Client
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewClient creates an HTTP client. timeout bounds each request; long polls
// must fit within it, so zero disables the timeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	if logger != nil {
		retryClient.Logger = leveledLogger{logger.Sugar()}
	} else {
		retryClient.Logger = nil
	}

	restyClient := resty.New()
	restyClient.
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "devbridge/1.0")

	return &Client{
		resty:   restyClient,
		poster:  retryClient,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
}

// Resty returns the underlying resty client, shared with script loaders.
func (c *Client) Resty() *resty.Client {
	return c.resty
}

// SetRateLimit configures reply rate limiting (requests per second).
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// GetJSON fetches url and decodes the body as a JSON object.
func (c *Client) GetJSON(ctx context.Context, url string) (map[string]interface{}, error) {
	resp, err := c.resty.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode())
	}

	var payload map[string]interface{}
	if err := sonic.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("GET %s: invalid JSON: %w", url, err)
	}
	return payload, nil
}

// Post sends data to url, waiting for the rate limiter first.
func (c *Client) Post(ctx context.Context, url string, data []byte) error {
	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build POST %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.poster.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
