// Package fetch - browser.go provides headless browser rendering for pages
// whose content only exists after script execution.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/logging"
)

// DefaultSettleDelay gives client-side scripts time to render after load.
const DefaultSettleDelay = 2 * time.Second

// RenderOptions configures a RenderSession.
type RenderOptions struct {
	Timeout     time.Duration
	SettleDelay time.Duration
	ExecPath    string // Chrome binary; empty lets chromedp locate one
}

// RenderSession owns one headless browser. It is not a singleton: callers
// create it, pass it where rendering is needed and close it when done.
type RenderSession struct {
	parent context.Context
	opts   RenderOptions
	logger *zap.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

// NewRenderSession starts a headless browser bound to ctx.
func NewRenderSession(ctx context.Context, opts RenderOptions, logger *zap.Logger) (*RenderSession, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	s := &RenderSession{
		parent: ctx,
		opts:   opts,
		logger: logging.OrNop(logger),
	}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RenderSession) start() error {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if s.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(s.parent, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run launches the browser so start-up failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start headless browser: %w", err)
	}

	s.browserCtx = browserCtx
	s.allocCancel = allocCancel
	s.browserCancel = browserCancel
	s.logger.Debug("headless browser started")
	return nil
}

// Render navigates to url and returns the document's outer HTML once rendered.
func (s *RenderSession) Render(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil {
		return "", fmt.Errorf("render session is closed")
	}

	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s.logger.Debug("rendering page", zap.String("url", url))

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(s.opts.SettleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	s.logger.Debug("rendered page", zap.String("url", url), zap.Int("bytes", len(html)))
	return html, nil
}

// Restart quits the browser and launches a fresh one.
func (s *RenderSession) Restart(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	s.logger.Debug("restarting headless browser")
	return s.start()
}

// Close quits the browser. It is safe to call more than once.
func (s *RenderSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *RenderSession) closeLocked() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	s.browserCancel = nil
	s.allocCancel = nil
}
