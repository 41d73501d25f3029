// Package pipeline sweeps a catalog over one retailer: search, validate,
// extract, classify the seller and collect the outcome of every product.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/catalog"
	"github.com/maltedev/retail-price-sweeper/internal/extract"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/match"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/query"
	"github.com/maltedev/retail-price-sweeper/internal/retailers"
	"github.com/maltedev/retail-price-sweeper/internal/retry"
	"github.com/maltedev/retail-price-sweeper/internal/search"
	"github.com/maltedev/retail-price-sweeper/internal/seller"
)

// Controller is the session owner the sweep fetches through. Settle is
// called once per product with its outcome.
type Controller interface {
	fetch.Fetcher
	Settle(ctx context.Context, status models.Status) error
	Close() error
}

type Options struct {
	Threshold float64
	Retry     retry.Policy
	// OnResult observes every result as soon as it is produced.
	OnResult func(models.ProductResult)
}

type Sweeper struct {
	retailer  retailers.Retailer
	ctrl      Controller
	locator   *search.Locator
	extractor *extract.Extractor
	validator *match.Validator
	opts      Options
	logger    *slog.Logger
}

func New(r retailers.Retailer, ctrl Controller, opts Options, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("retailer", r.Key)
	return &Sweeper{
		retailer:  r,
		ctrl:      ctrl,
		locator:   search.NewLocator(r.Results, logger),
		extractor: extract.NewExtractor(r.Detail, logger),
		validator: match.NewValidator(opts.Threshold),
		opts:      opts,
		logger:    logger.With("component", "sweeper"),
	}
}

// Run processes entries in order. Cancellation is honoured between products:
// the product in flight completes, the session is closed and the results
// collected so far are returned together with the context error.
func (s *Sweeper) Run(ctx context.Context, entries []models.CatalogEntry) (*aggregate.Collector, error) {
	collector := aggregate.NewCollector(s.retailer.Key)
	defer func() {
		if err := s.ctrl.Close(); err != nil {
			s.logger.Warn("failed to close session", "error", err)
		}
	}()

	start := time.Now()
	s.logger.Info("sweep started", "products", len(entries))

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			s.logger.Info("sweep cancelled", "processed", i, "products", len(entries))
			return collector, err
		}

		if catalog.Excluded(entry, s.retailer.SkipWords) {
			s.logger.Info("product skipped by retailer skip list", "product", entry.Key())
			continue
		}

		q := query.Build(entry, s.retailer.Search)
		if q.Empty() {
			s.logger.Warn("product skipped, nothing to search for", "index", i)
			continue
		}

		result := s.Product(context.WithoutCancel(ctx), q)
		collector.Add(result)
		if s.opts.OnResult != nil {
			s.opts.OnResult(result)
		}

		s.logger.Info("product checked",
			"product", q.Key,
			"status", result.Status,
			"price", models.Deref(result.Price),
			"seller_matches", result.SellerMatchesRetailer)

		if err := s.ctrl.Settle(ctx, result.Status); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("sweep cancelled", "processed", i+1, "products", len(entries))
				return collector, ctx.Err()
			}
			s.logger.Warn("session restart failed", "error", err)
		}
	}

	s.logger.Info("sweep finished",
		"products", collector.Len(),
		"duration", time.Since(start).Round(time.Millisecond))
	return collector, nil
}

// Product runs the whole per-product flow. Any failure, panics included,
// becomes a FETCH_ERROR result.
func (s *Sweeper) Product(ctx context.Context, q query.Query) (result models.ProductResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while checking product", "product", q.Key, "panic", r)
			result = models.FetchError(q.Key, s.retailer.Key, fmt.Errorf("panic: %v", r))
		}
	}()

	found := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) ([]models.SearchCandidate, error) {
		return s.locator.Locate(ctx, s.ctrl, q.URL)
	})
	if !found.OK() {
		s.logger.Warn("search failed", "product", q.Key, "attempts", found.Attempts, "error", found.Err)
		return models.FetchError(q.Key, s.retailer.Key, found.Err)
	}
	if len(found.Value) == 0 {
		return models.NotFound(q.Key, s.retailer.Key)
	}

	chosen := s.choose(q.Identity, found.Value)

	loaded := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (models.Detail, error) {
		return s.extractor.Load(ctx, s.ctrl, chosen.URL)
	})
	if !loaded.OK() {
		s.logger.Warn("detail page failed", "product", q.Key, "url", chosen.URL, "error", loaded.Err)
		r := models.FetchError(q.Key, s.retailer.Key, loaded.Err)
		r.Link = models.StringPtr(chosen.URL)
		return r
	}
	detail := loaded.Value

	name := detail.Name
	if name == nil {
		name = models.StringPtr(chosen.RawTitle)
	}
	link := models.StringPtr(chosen.URL)

	decision := s.validator.Validate(q.Identity, chosen, models.Deref(detail.Name))
	if !decision.Accepted && s.retailer.DescriptionCheck && detail.Description != nil {
		decision = s.validator.Validate(q.Identity, chosen, models.Deref(name)+" "+*detail.Description)
	}

	if !decision.Accepted {
		s.logger.Info("candidate rejected", "product", q.Key, "title", models.Deref(name), "score", decision.Score, "reason", decision.Reason)
		r := models.NewProductResult(q.Key, s.retailer.Key, models.StatusFoundInvalidMatch, name, nil, link, false)
		r.Score = decision.Score
		return r
	}

	sold := seller.Classify(models.Deref(detail.SellerLabel), s.retailer.Seller)
	if detail.Price == nil {
		s.logger.Debug("no plausible price on detail page", "product", q.Key, "url", chosen.URL)
	}

	r := models.NewProductResult(q.Key, s.retailer.Key, models.StatusFoundValid, name, detail.Price, link, sold)
	r.Score = decision.Score
	return r
}

// choose prefers the first candidate whose card title already validates and
// falls back to the first organic candidate.
func (s *Sweeper) choose(id models.Identity, candidates []models.SearchCandidate) models.SearchCandidate {
	for _, c := range candidates {
		if c.RawTitle == "" {
			continue
		}
		if s.validator.Validate(id, c, c.RawTitle).Accepted {
			return c
		}
	}
	return candidates[0]
}

// IsCancellation reports whether err ended a sweep early on purpose.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
