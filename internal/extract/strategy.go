package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/retail-price-sweeper/internal/normalize"
)

// Strategy pulls one raw value out of a parsed page.
type Strategy interface {
	Extract(doc *goquery.Document) (string, bool)
}

// Text reads the text of the first element matching Selector whose text
// contains Contains (case-insensitive). With All set, the texts of every
// match are joined.
type Text struct {
	Selector string
	Contains string
	All      bool
}

func (t Text) Extract(doc *goquery.Document) (string, bool) {
	var parts []string
	doc.Find(t.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		txt := normalize.Squash(s.Text())
		if txt == "" {
			return true
		}
		if t.Contains != "" && !strings.Contains(strings.ToLower(txt), strings.ToLower(t.Contains)) {
			return true
		}
		parts = append(parts, txt)
		return t.All
	})
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

type Attr struct {
	Selector string
	Name     string
}

func (a Attr) Extract(doc *goquery.Document) (string, bool) {
	v, ok := doc.Find(a.Selector).First().Attr(a.Name)
	v = normalize.Squash(v)
	return v, ok && v != ""
}

// JSONLD follows Path inside the first schema.org Product found in
// application/ld+json blocks. Arrays along the path resolve to their first
// element.
type JSONLD struct {
	Path []string
}

func (j JSONLD) Extract(doc *goquery.Document) (string, bool) {
	var out string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		product := findProduct(data)
		if product == nil {
			return true
		}
		if v, ok := lookup(product, j.Path); ok {
			out = v
			return false
		}
		return true
	})
	return out, out != ""
}

func findProduct(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProductType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func lookup(v any, path []string) (string, bool) {
	cur := v
	for _, key := range path {
		if arr, ok := cur.([]any); ok {
			if len(arr) == 0 {
				return "", false
			}
			cur = arr[0]
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
	}
	if arr, ok := cur.([]any); ok && len(arr) > 0 {
		cur = arr[0]
	}

	switch t := cur.(type) {
	case string:
		s := normalize.Squash(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Regex returns the first match of Pattern in the text of Selector
// (the whole body when empty).
type Regex struct {
	Selector string
	Pattern  *regexp.Regexp
}

func (r Regex) Extract(doc *goquery.Document) (string, bool) {
	sel := r.Selector
	if sel == "" {
		sel = "body"
	}
	m := r.Pattern.FindString(normalize.Squash(doc.Find(sel).Text()))
	return m, m != ""
}

// PriceParts joins a whole and a fraction element into "R$ whole,fraction".
type PriceParts struct {
	Whole    string
	Fraction string
}

var digitsOnly = regexp.MustCompile(`[^\d.]`)

func (p PriceParts) Extract(doc *goquery.Document) (string, bool) {
	whole := strings.Trim(digitsOnly.ReplaceAllString(doc.Find(p.Whole).First().Text(), ""), ".")
	if whole == "" {
		return "", false
	}
	frac := digitsOnly.ReplaceAllString(doc.Find(p.Fraction).First().Text(), "")
	frac = strings.ReplaceAll(frac, ".", "")
	if frac == "" {
		frac = "00"
	}
	return "R$ " + whole + "," + frac, true
}
