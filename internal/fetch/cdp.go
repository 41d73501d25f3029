package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

type CDPOptions struct {
	Identity Identity
	Headless bool
	Timeout  time.Duration
	Proxy    string
}

// CDPSession drives a dedicated Chrome instance over the DevTools protocol.
type CDPSession struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	logger        *slog.Logger
}

func NewCDPSession(ctx context.Context, opts CDPOptions, logger *slog.Logger) (*CDPSession, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "pt-BR"),
	)
	if opts.Identity.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.Identity.UserAgent))
	}
	if opts.Identity.ViewportWidth > 0 && opts.Identity.ViewportHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Identity.ViewportWidth, opts.Identity.ViewportHeight))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	// The browser outlives the start-up ctx; it is torn down by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &CDPSession{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       opts.Timeout,
		logger:        logger.With("component", "cdp_session"),
	}, nil
}

func (s *CDPSession) Fetch(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html, final string
	var scrolled bool
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Evaluate(`window.scrollBy(0, 400); true`, &scrolled),
		chromedp.Location(&final),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	page := &Page{URL: url, FinalURL: final, Status: 200, HTML: html}
	s.logger.Debug("page fetched", "url", url, "bytes", len(html))

	if err := CheckPage(page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *CDPSession) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}
