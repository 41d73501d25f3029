// Package query turns catalog entries into retailer search URLs.
package query

import (
	"net/url"
	"strings"

	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/normalize"
)

// Placeholder is replaced by the encoded term in Template.URL.
const Placeholder = "{term}"

type Style string

const (
	// StylePath percent-encodes the term as a path segment (spaces as %20).
	StylePath Style = "path"
	// StyleQuery encodes the term as a query value (spaces as +).
	StyleQuery Style = "query"
	// StyleDashed joins the words with dashes, as slug-style listing URLs expect.
	StyleDashed Style = "dashed"
)

type Template struct {
	URL          string `mapstructure:"url"`
	Style        Style  `mapstructure:"style"`
	StripAccents bool   `mapstructure:"strip_accents"`
}

type Query struct {
	Key      string
	Term     string
	URL      string
	Identity models.Identity
	Custom   bool
}

// Empty reports whether the entry produced nothing to search for.
func (q Query) Empty() bool {
	return q.Term == ""
}

// Build never fails. An entry whose code and brand normalise to nothing
// yields an empty Query that callers skip.
func Build(entry models.CatalogEntry, tmpl Template) Query {
	q := Query{
		Key: entry.Key(),
		Identity: models.Identity{
			Code:  strings.TrimSpace(entry.Code),
			Brand: strings.TrimSpace(entry.Brand),
		},
	}

	if normalize.Text(entry.Code) == "" && normalize.Text(entry.Brand) == "" {
		return Query{}
	}

	term := entry.Key()
	if custom := strings.TrimSpace(entry.CustomSearchTerm); custom != "" {
		term = custom
		q.Custom = true
	}

	q.Term = normalize.Squash(term)
	q.URL = tmpl.Render(q.Term)
	return q
}

// Render substitutes the encoded term into the template URL.
func (t Template) Render(term string) string {
	if t.StripAccents {
		term = normalize.StripAccents(term)
	}
	return strings.ReplaceAll(t.URL, Placeholder, Encode(term, t.Style))
}

func Encode(term string, style Style) string {
	switch style {
	case StyleQuery:
		return url.QueryEscape(term)
	case StyleDashed:
		return url.PathEscape(strings.Join(strings.Fields(strings.ToLower(term)), "-"))
	default:
		return url.PathEscape(term)
	}
}
