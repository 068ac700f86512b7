package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"opusdl/pkg/config"
	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
	"opusdl/pkg/ratelimit"
	"opusdl/pkg/retry"
)

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Cookies are sent with API and page requests, never with downloads.
	Cookies map[string]string
	// Pacer spaces API and page requests. Nil disables pacing.
	Pacer ratelimit.Limiter
	// Retry covers transport failures. Nil makes a single attempt.
	Retry *retry.Policy
}

// Client is the cookie-bearing HTTP collaborator used by the API. It holds no
// per-request state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	cookies    map[string]string
	pacer      ratelimit.Limiter
	retry      *retry.Policy
	logger     logger.Logger
}

// NewClient creates a new bilibili HTTP client
func NewClient(opts Options, log logger.Logger) *Client {
	log = logger.OrDefault(log)

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultConfig().Bilibili.UserAgent
	}
	if opts.Pacer == nil {
		opts.Pacer = ratelimit.Unlimited{}
	}
	if opts.Retry == nil {
		opts.Retry = &retry.Policy{MaxAttempts: 1, Logger: log}
	}

	cookies := make(map[string]string, len(opts.Cookies))
	for k, v := range opts.Cookies {
		cookies[k] = v
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
			"Referer":         WebBaseURL + "/",
		},
		cookies: cookies,
		pacer:   opts.Pacer,
		retry:   opts.Retry,
		logger:  log,
	}
}

// NewClientFromConfig wires pacing, retries and cookies from the configuration.
func NewClientFromConfig(cfg *config.Config, log logger.Logger) *Client {
	log = logger.OrDefault(log)
	return NewClient(Options{
		Timeout:   cfg.Download.DownloadTimeout,
		UserAgent: cfg.Bilibili.UserAgent,
		Cookies:   cfg.Bilibili.Cookies(),
		Pacer:     ratelimit.NewInterval(cfg.RateLimit.MinInterval, cfg.RateLimit.MaxInterval),
		Retry:     retry.FromConfig(cfg.Retry, log),
	}, log)
}

// HasCookies reports whether every named cookie is set
func (c *Client) HasCookies(names ...string) bool {
	for _, name := range names {
		if c.cookies[name] == "" {
			return false
		}
	}
	return true
}

func (c *Client) cookieHeader() string {
	names := make([]string, 0, len(c.cookies))
	for name := range c.cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: c.cookies[name]}).String())
	}
	return strings.Join(parts, "; ")
}

// doRequest performs a single HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request, withCookies bool) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if withCookies && len(c.cookies) > 0 {
		req.Header.Set("Cookie", c.cookieHeader())
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if apiErr := errs.FromStatusCode(resp.StatusCode); apiErr != nil {
		resp.Body.Close()
		c.logger.WarnWithFields("unexpected HTTP status", map[string]interface{}{
			"url":    req.URL.String(),
			"status": resp.StatusCode,
		})
		return nil, apiErr
	}

	return resp, nil
}

// fetch paces, then performs a cookie-bearing GET with retries and returns the body.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	return retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
			}
		}

		resp, err := c.doRequest(req, true)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Message: fmt.Sprintf("failed to read response body: %v", err),
				Code:    resp.StatusCode,
			}
		}
		return body, nil
	}, c.retry)
}

// GetJSON performs a GET request with query parameters and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, target interface{}) error {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	body, err := c.fetch(ctx, rawURL)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
		}
	}
	return nil
}

// GetText performs a GET request and returns the body as text
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	body, err := c.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Download streams the resource at rawURL into w. Downloads are neither paced
// nor given session cookies; the download pool does its own rate limiting.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	resp, err := c.doRequest(req, false)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to download %s: %v", rawURL, err),
		}
	}
	return n, nil
}
