package models

import (
	"strings"
	"time"
)

// CatalogEntry is one product identity to be price-checked across retailers.
// Code and Brand are the validation identity; CustomSearchTerm only changes
// the query sent to the retailer.
type CatalogEntry struct {
	Code             string `json:"produto"`
	Brand            string `json:"marca"`
	Description      string `json:"descricao,omitempty"`
	CustomSearchTerm string `json:"termo_customizado,omitempty"`
}

// Key is the result key used by the aggregator and the spreadsheet rows.
func (e CatalogEntry) Key() string {
	return strings.TrimSpace(strings.TrimSpace(e.Code) + " " + strings.TrimSpace(e.Brand))
}

// Identity is what a candidate is validated against.
type Identity struct {
	Code  string `json:"code"`
	Brand string `json:"brand"`
}

type SearchCandidate struct {
	URL       string `json:"url"`
	RawTitle  string `json:"raw_title"`
	Sponsored bool   `json:"sponsored"`
}

type MatchDecision struct {
	Candidate SearchCandidate `json:"candidate"`
	Accepted  bool            `json:"accepted"`
	Score     float64         `json:"score"`
	Reason    string          `json:"reason,omitempty"`
}

// Detail holds the fields pulled from a product page. Nil means the
// extractor found no plausible value.
type Detail struct {
	Name         *string `json:"name"`
	Price        *string `json:"price"`
	SellerLabel  *string `json:"seller_label"`
	Availability *string `json:"availability"`
	Description  *string `json:"description,omitempty"`
}

type Status string

const (
	StatusFoundValid        Status = "FOUND_VALID"
	StatusFoundInvalidMatch Status = "FOUND_INVALID_MATCH"
	StatusNotFound          Status = "NOT_FOUND"
	StatusFetchError        Status = "FETCH_ERROR"
)

// IsFailure reports whether the status feeds the consecutive-failure counter.
// Anything short of a valid match counts: a degraded session tends to serve
// unrelated products rather than errors.
func (s Status) IsFailure() bool {
	return s != StatusFoundValid
}

type ProductResult struct {
	SearchTerm            string    `json:"searchTerm"`
	Retailer              string    `json:"retailer"`
	Name                  *string   `json:"name"`
	Price                 *string   `json:"price"`
	SellerMatchesRetailer bool      `json:"sellerMatchesRetailer"`
	Link                  *string   `json:"link"`
	Status                Status    `json:"status"`
	Score                 float64   `json:"score,omitempty"`
	Error                 string    `json:"error,omitempty"`
	CheckedAt             time.Time `json:"checkedAt"`
}

// NewProductResult builds a result and suppresses the price unless the match
// is valid and the listing is sold by the retailer itself.
func NewProductResult(term, retailer string, status Status, name, price, link *string, sellerMatches bool) ProductResult {
	if status != StatusFoundValid || !sellerMatches {
		price = nil
	}
	return ProductResult{
		SearchTerm:            term,
		Retailer:              retailer,
		Name:                  name,
		Price:                 price,
		SellerMatchesRetailer: sellerMatches,
		Link:                  link,
		Status:                status,
		CheckedAt:             time.Now(),
	}
}

func NotFound(term, retailer string) ProductResult {
	return NewProductResult(term, retailer, StatusNotFound, nil, nil, nil, false)
}

func FetchError(term, retailer string, err error) ProductResult {
	r := NewProductResult(term, retailer, StatusFetchError, nil, nil, nil, false)
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// StringPtr returns nil for blank strings.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
