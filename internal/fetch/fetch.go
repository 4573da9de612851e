// Package fetch retrieves documentation pages and assets over HTTP or through
// a headless browser, with the retry policy the crawl depends on.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/logging"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; PoshDocset/1.0)"

// ChunkSize is the buffer size used when streaming binary downloads to disk.
const ChunkSize = 32 * 1024

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string

	// MaxAttempts bounds transport attempts on 502/503/504 responses.
	MaxAttempts uint
	// Backoff is the first transport retry delay; it doubles on each attempt.
	Backoff time.Duration
	// ResetDelay is the wait before the single retry after a connection reset.
	ResetDelay time.Duration

	// Transport overrides the underlying round tripper.
	Transport http.RoundTripper
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxAttempts: 5,
		Backoff:     time.Second,
		ResetDelay:  2 * time.Second,
	}
}

// Renderer produces fully rendered HTML for pages that need script execution.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Restart(ctx context.Context) error
}

// Client fetches text and binary resources.
type Client struct {
	http    *http.Client
	opts    *Options
	session Renderer
	logger  *zap.Logger
}

// NewClient creates a Client. A nil opts uses DefaultOptions.
func NewClient(opts *Options, logger *zap.Logger) *Client {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	logger = logging.OrNop(logger)

	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &retryTransport{
				base:     base,
				attempts: opts.MaxAttempts,
				backoff:  opts.Backoff,
				logger:   logger,
			},
		},
		opts:   opts,
		logger: logger,
	}
}

// WithSession attaches a render session used by Rendered.
func (c *Client) WithSession(session Renderer) *Client {
	c.session = session
	return c
}

// Text retrieves a URL as text. A connection reset is retried once after
// ResetDelay; any other failure is returned.
func (c *Client) Text(ctx context.Context, urlStr string) (string, error) {
	return c.retryOnReset(ctx, urlStr, func() {
		c.http.CloseIdleConnections()
	}, func() (string, error) {
		return c.getText(ctx, urlStr)
	})
}

// Rendered retrieves a URL through the render session, restarting the
// session before the retry after a connection reset. Without a session it
// behaves like Text.
func (c *Client) Rendered(ctx context.Context, urlStr string) (string, error) {
	if c.session == nil {
		return c.Text(ctx, urlStr)
	}
	return c.retryOnReset(ctx, urlStr, func() {
		if err := c.session.Restart(ctx); err != nil {
			c.logger.Warn("render session restart failed", zap.Error(err))
		}
	}, func() (string, error) {
		html, err := c.session.Render(ctx, urlStr)
		if err != nil {
			return "", &Error{URL: urlStr, Message: "render failed", Cause: err}
		}
		return html, nil
	})
}

// DownloadText fetches a URL as text and writes it to outputPath.
func (c *Client) DownloadText(ctx context.Context, urlStr, outputPath string) error {
	c.logger.Debug("download text", zap.String("url", urlStr), zap.String("path", outputPath))

	text, err := c.Text(ctx, urlStr)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", outputPath, err)
	}
	if err := os.WriteFile(outputPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}

// DownloadBinary streams a URL to outputPath in ChunkSize chunks.
func (c *Client) DownloadBinary(ctx context.Context, urlStr, outputPath string) error {
	c.logger.Debug("download binary", zap.String("url", urlStr), zap.String("path", outputPath))

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", outputPath, err)
	}

	resp, err := c.get(ctx, urlStr)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	if _, err := io.CopyBuffer(f, resp.Body, make([]byte, ChunkSize)); err != nil {
		_ = f.Close()
		return &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}
	return f.Close()
}

func (c *Client) retryOnReset(ctx context.Context, urlStr string, reacquire func(), fn func() (string, error)) (string, error) {
	return retry.DoWithData(fn,
		retry.Attempts(2),
		retry.Delay(c.opts.ResetDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsConnectionReset),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(_ uint, err error) {
			c.logger.Debug("connection reset, retrying", zap.String("url", urlStr), zap.Error(err))
			reacquire()
		}),
	)
}

func (c *Client) getText(ctx context.Context, urlStr string) (string, error) {
	resp, err := c.get(ctx, urlStr)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}
	return string(bodyBytes), nil
}

// get performs the GET and rejects non-2xx responses. The caller closes the body.
func (c *Client) get(ctx context.Context, urlStr string) (*http.Response, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	for key, value := range c.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		return nil, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return resp, nil
}

// IsConnectionReset reports whether err was caused by the peer resetting the connection.
func IsConnectionReset(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}
