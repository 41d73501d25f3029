// Package fetch defines how pages are retrieved for a retailer sweep. A
// Session is one browsing identity: its cookies and cache live exactly as
// long as the session.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrBlocked    = errors.New("blocked by anti-bot protection")
	ErrHTTPStatus = errors.New("unexpected http status")
)

type Mode string

const (
	ModeHTTP    Mode = "http"
	ModeBrowser Mode = "browser"
)

type Page struct {
	URL      string
	FinalURL string
	Status   int
	HTML     string
}

// BaseURL is the address relative links on the page resolve against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

type Session interface {
	Fetcher
	Close() error
}

// Identity is the browser fingerprint a session presents.
type Identity struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

type SessionFactory func(ctx context.Context, id Identity) (Session, error)

var (
	blockTitles = []string{
		"robot check",
		"captcha",
		"access denied",
		"acesso negado",
		"pardon our interruption",
	}
	blockSelectors = []string{
		"#captchacharacters",
		"form[action*='Captcha']",
		"form[action*='captcha']",
		"#px-captcha",
		"iframe[src*='captcha-delivery.com']",
	}
	// Matched against visible body text only; scripts are stripped first.
	blockPhrases = []string{
		"ops! algo deu errado",
		"are you a robot",
		"pardon our interruption",
		"digite os caracteres que você vê",
	}
)

// LooksBlocked reports whether the HTML is an interstitial rather than the
// requested page. Widgets embedded in real pages, such as a reCAPTCHA script
// on a checkout form, do not count.
func LooksBlocked(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, marker := range blockTitles {
		if strings.Contains(title, marker) {
			return true
		}
	}

	for _, selector := range blockSelectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}

	doc.Find("script, style, noscript, template").Remove()
	body := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range blockPhrases {
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

// CheckPage turns blocked or error responses into errors.
func CheckPage(p *Page) error {
	if p.Status >= 400 {
		return fmt.Errorf("%w: %d for %s", ErrHTTPStatus, p.Status, p.URL)
	}
	if LooksBlocked(p.HTML) {
		return fmt.Errorf("%w: %s", ErrBlocked, p.URL)
	}
	return nil
}
