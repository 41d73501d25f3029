package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/maltedev/retail-price-sweeper/internal/ratelimit"
)

type HTTPOptions struct {
	Identity       Identity
	Timeout        time.Duration
	AcceptLanguage string
	Limiter        *ratelimit.HostLimiter
}

// HTTPSession fetches pages with plain GET requests. Each session owns its
// own collector and therefore its own cookie jar.
type HTTPSession struct {
	collector *colly.Collector
	opts      HTTPOptions
	logger    *slog.Logger
	mu        sync.Mutex
	closed    bool
}

func NewHTTPSession(opts HTTPOptions, logger *slog.Logger) *HTTPSession {
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := colly.NewCollector(
		colly.UserAgent(opts.Identity.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(opts.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", opts.AcceptLanguage)
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	})
	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
		r.Ctx.Put("final", r.Request.URL.String())
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put("status", r.StatusCode)
		}
	})

	return &HTTPSession{
		collector: c,
		opts:      opts,
		logger:    logger.With("component", "http_session"),
	}
}

func (s *HTTPSession) Fetch(ctx context.Context, url string) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("http session closed")
	}
	if err := s.opts.Limiter.Wait(ctx, url); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	hdr := http.Header{}
	err := s.collector.Request(http.MethodGet, url, nil, reqCtx, hdr)

	status, _ := reqCtx.GetAny("status").(int)
	if err != nil {
		if status >= 400 {
			return nil, fmt.Errorf("%w: %d for %s", ErrHTTPStatus, status, url)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	body, _ := reqCtx.GetAny("body").([]byte)
	final, _ := reqCtx.GetAny("final").(string)

	page := &Page{URL: url, FinalURL: final, Status: status, HTML: string(body)}
	s.logger.Debug("page fetched", "url", url, "status", status, "bytes", len(body))

	if err := CheckPage(page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *HTTPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
