// Package search locates candidate products on a retailer's search page.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/normalize"
)

const defaultLimit = 10

// Strategy describes one way of reading result cards. Link, Title and
// Sponsored are evaluated inside each card; an empty Link means the card is
// the anchor itself.
type Strategy struct {
	Card          string `mapstructure:"card"`
	Link          string `mapstructure:"link"`
	Title         string `mapstructure:"title"`
	Sponsored     string `mapstructure:"sponsored"`
	SponsoredHref string `mapstructure:"sponsored_href"`
}

type Config struct {
	Strategies []Strategy
	// NoResults are selectors of the retailer's own "nothing found" page and
	// NoResultsText phrases it shows there.
	NoResults     []string
	NoResultsText []string
	Limit         int
}

type Locator struct {
	cfg    Config
	logger *slog.Logger
}

func NewLocator(cfg Config, logger *slog.Logger) *Locator {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		cfg:    cfg,
		logger: logger.With("component", "locator"),
	}
}

// Locate fetches the search page and returns its organic candidates. An empty
// slice covers both "no results" and unrecognised markup.
func (l *Locator) Locate(ctx context.Context, f fetch.Fetcher, searchURL string) ([]models.SearchCandidate, error) {
	page, err := f.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search page: %w", err)
	}
	return l.Parse(page)
}

func (l *Locator) Parse(page *fetch.Page) ([]models.SearchCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, sel := range l.cfg.NoResults {
		if doc.Find(sel).Length() > 0 {
			l.logger.Debug("retailer reported no results", "url", page.URL, "marker", sel)
			return []models.SearchCandidate{}, nil
		}
	}

	if len(l.cfg.NoResultsText) > 0 {
		body := strings.ToLower(normalize.Squash(doc.Find("body").Text()))
		for _, phrase := range l.cfg.NoResultsText {
			if strings.Contains(body, strings.ToLower(phrase)) {
				l.logger.Debug("retailer reported no results", "url", page.URL, "phrase", phrase)
				return []models.SearchCandidate{}, nil
			}
		}
	}

	base, _ := url.Parse(page.BaseURL())

	for i, strategy := range l.cfg.Strategies {
		candidates, sponsored := l.apply(doc, strategy, base)
		if len(candidates) == 0 && sponsored == 0 {
			continue
		}
		l.logger.Debug("search strategy matched",
			"strategy", i,
			"candidates", len(candidates),
			"sponsored_skipped", sponsored)
		return candidates, nil
	}

	l.logger.Debug("no result markup recognised", "url", page.URL)
	return []models.SearchCandidate{}, nil
}

func (l *Locator) apply(doc *goquery.Document, s Strategy, base *url.URL) ([]models.SearchCandidate, int) {
	candidates := []models.SearchCandidate{}
	seen := make(map[string]struct{})
	sponsored := 0

	doc.Find(s.Card).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		link := card
		if s.Link != "" {
			link = card.Find(s.Link).First()
		}

		href, ok := link.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || href == "#" || strings.HasPrefix(href, "javascript:") {
			return true
		}

		if isSponsored(card, href, s) {
			sponsored++
			return true
		}

		abs := resolve(base, href)
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}

		candidates = append(candidates, models.SearchCandidate{
			URL:      abs,
			RawTitle: cardTitle(card, link, s.Title),
		})
		return len(candidates) < l.cfg.Limit
	})

	return candidates, sponsored
}

func isSponsored(card *goquery.Selection, href string, s Strategy) bool {
	if s.SponsoredHref != "" && strings.Contains(href, s.SponsoredHref) {
		return true
	}
	if s.Sponsored == "" {
		return false
	}
	return card.Is(s.Sponsored) || card.Find(s.Sponsored).Length() > 0
}

func cardTitle(card, link *goquery.Selection, titleSel string) string {
	if titleSel != "" {
		if t := normalize.Squash(card.Find(titleSel).First().Text()); t != "" {
			return t
		}
	}
	for _, attr := range []string{"title", "aria-label"} {
		if v, ok := link.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return normalize.Squash(v)
		}
	}
	if v, ok := card.Find("[aria-label]").First().Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
		return normalize.Squash(v)
	}
	return normalize.Squash(link.Text())
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
