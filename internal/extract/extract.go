// Package extract pulls structured fields out of a product detail page using
// ordered strategy cascades.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/models"
)

type Config struct {
	Name         []Strategy
	Price        []Strategy
	Seller       []Strategy
	Availability []Strategy
	Description  []Strategy
}

type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		cfg:    cfg,
		logger: logger.With("component", "extractor"),
	}
}

// Load fetches the detail page and extracts its fields.
func (e *Extractor) Load(ctx context.Context, f fetch.Fetcher, url string) (models.Detail, error) {
	page, err := f.Fetch(ctx, url)
	if err != nil {
		return models.Detail{}, fmt.Errorf("failed to fetch detail page: %w", err)
	}
	return e.Extract(page), nil
}

// Extract never fails: fields that no strategy yields stay nil.
func (e *Extractor) Extract(page *fetch.Page) models.Detail {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		e.logger.Warn("failed to parse detail page", "url", page.URL, "error", err)
		return models.Detail{}
	}

	detail := models.Detail{
		Name:         first(doc, e.cfg.Name, nil),
		Price:        first(doc, e.cfg.Price, FormatPrice),
		SellerLabel:  first(doc, e.cfg.Seller, nil),
		Availability: first(doc, e.cfg.Availability, availability),
		Description:  first(doc, e.cfg.Description, nil),
	}

	e.logger.Debug("detail extracted",
		"url", page.URL,
		"name", models.Deref(detail.Name),
		"price", models.Deref(detail.Price),
		"seller", models.Deref(detail.SellerLabel))

	return detail
}

func first(doc *goquery.Document, strategies []Strategy, accept func(string) (string, bool)) *string {
	for _, s := range strategies {
		raw, ok := s.Extract(doc)
		if !ok {
			continue
		}
		if accept != nil {
			if raw, ok = accept(raw); !ok {
				continue
			}
		}
		if v := models.StringPtr(raw); v != nil {
			return v
		}
	}
	return nil
}

// availability trims schema.org URLs to their last segment.
func availability(raw string) (string, bool) {
	if i := strings.LastIndex(raw, "/"); i >= 0 && strings.Contains(raw, "schema.org") {
		raw = raw[i+1:]
	}
	return raw, raw != ""
}
