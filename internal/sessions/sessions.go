// Package sessions picks the session implementation for a retailer's fetch
// mode.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/browser"
	"github.com/maltedev/retail-price-sweeper/internal/config"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/ratelimit"
)

type Options struct {
	Browser config.BrowserConfig
	Engine  string
	Timeout time.Duration
	// Limiter is shared by every HTTP session of the process.
	Limiter *ratelimit.HostLimiter
}

func FromConfig(cfg *config.Config) Options {
	return Options{
		Browser: cfg.Browser,
		Engine:  cfg.Scraper.Engine,
		Timeout: cfg.Scraper.NavigationTimeout,
		Limiter: ratelimit.NewHostLimiter(cfg.Scraper.HostInterval),
	}
}

// Factory returns a constructor for sessions of the given mode.
func Factory(mode fetch.Mode, opts Options, logger *slog.Logger) (fetch.SessionFactory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch mode {
	case fetch.ModeHTTP:
		return func(_ context.Context, id fetch.Identity) (fetch.Session, error) {
			return fetch.NewHTTPSession(fetch.HTTPOptions{
				Identity:       id,
				Timeout:        opts.Timeout,
				AcceptLanguage: opts.Browser.AcceptLanguage,
				Limiter:        opts.Limiter,
			}, logger), nil
		}, nil

	case fetch.ModeBrowser:
		if opts.Engine == config.EngineChromedp {
			return func(ctx context.Context, id fetch.Identity) (fetch.Session, error) {
				return fetch.NewCDPSession(ctx, fetch.CDPOptions{
					Identity: id,
					Headless: opts.Browser.Headless,
					Timeout:  opts.Timeout,
					Proxy:    opts.Browser.Proxy,
				}, logger)
			}, nil
		}
		return func(_ context.Context, id fetch.Identity) (fetch.Session, error) {
			return browser.New(browserOptions(opts).WithIdentity(id), logger)
		}, nil

	default:
		return nil, fmt.Errorf("unsupported fetch mode %q", mode)
	}
}

func browserOptions(opts Options) *browser.Options {
	bo := browser.DefaultOptions()
	bo.Headless = opts.Browser.Headless
	if opts.Timeout > 0 {
		bo.Timeout = opts.Timeout
	}
	if opts.Browser.AcceptLanguage != "" {
		bo.AcceptLanguage = opts.Browser.AcceptLanguage
	}
	if opts.Browser.TimezoneID != "" {
		bo.TimezoneID = opts.Browser.TimezoneID
	}
	if opts.Browser.Locale != "" {
		bo.Locale = opts.Browser.Locale
	}
	bo.ProxyServer = opts.Browser.Proxy
	return bo
}
