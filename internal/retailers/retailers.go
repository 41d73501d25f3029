// Package retailers holds the per-retailer configuration a sweep runs with.
package retailers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/extract"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/query"
	"github.com/maltedev/retail-price-sweeper/internal/search"
	"github.com/maltedev/retail-price-sweeper/internal/seller"
)

var ErrUnknownRetailer = errors.New("unknown retailer")

type Delay struct {
	Min time.Duration
	Max time.Duration
}

type Retailer struct {
	Key     string
	Name    string
	Column  string
	Search  query.Template
	Mode    fetch.Mode
	Results search.Config
	Detail  extract.Config
	Seller  seller.Profile
	Delay   Delay
	// SkipWords exclude catalog entries whose code contains any of them.
	SkipWords []string
	// DescriptionCheck retries a rejected title against the page description.
	DescriptionCheck bool
}

type Registry struct {
	order []string
	byKey map[string]*Retailer
}

func NewRegistry(list []Retailer) *Registry {
	r := &Registry{byKey: make(map[string]*Retailer, len(list))}
	for i := range list {
		ret := list[i]
		r.order = append(r.order, ret.Key)
		r.byKey[ret.Key] = &ret
	}
	return r
}

func (r *Registry) Get(key string) (Retailer, error) {
	ret, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Retailer{}, fmt.Errorf("%w: %q", ErrUnknownRetailer, key)
	}
	return *ret, nil
}

// All returns every retailer in spreadsheet column order.
func (r *Registry) All() []Retailer {
	out := make([]Retailer, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, *r.byKey[k])
	}
	return out
}

func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// Resolve maps keys to retailers, dropping duplicates and keeping the
// requested order. An empty list selects every retailer.
func (r *Registry) Resolve(keys []string) ([]Retailer, error) {
	if len(keys) == 0 {
		return r.All(), nil
	}

	seen := make(map[string]bool, len(keys))
	out := make([]Retailer, 0, len(keys))
	for _, k := range keys {
		ret, err := r.Get(k)
		if err != nil {
			return nil, err
		}
		if seen[ret.Key] {
			continue
		}
		seen[ret.Key] = true
		out = append(out, ret)
	}
	return out, nil
}
