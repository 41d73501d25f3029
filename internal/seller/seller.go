// Package seller decides whether a listing is sold by the retailer itself.
package seller

import (
	"strings"

	"github.com/maltedev/retail-price-sweeper/internal/normalize"
)

// Profile lists the names a retailer signs its own listings with.
// Exclusions win over aliases and disambiguate similarly named third-party
// sellers.
type Profile struct {
	Name       string   `mapstructure:"name"`
	Aliases    []string `mapstructure:"aliases"`
	Exclusions []string `mapstructure:"exclusions"`
}

var (
	soldBy = []string{"VENDIDO E ENTREGUE POR ", "VENDIDO POR ", "VENDIDO PELA ", "VENDIDO PELO "}
	// Shipping and delivery clauses name the logistics partner, not the seller.
	shippedBy = []string{" E ENTREGUE POR ", " ENTREGUE POR ", " E ENVIADO POR ", " ENVIADO POR ", " ENVIADO PELA ", " ENVIADO PELO ", " E ENVIADO "}
)

// Classify reports whether label names the retailer as the seller. When the
// label carries a "vendido por" clause only that clause is considered, so a
// marketplace listing shipped by the retailer does not qualify.
func Classify(label string, p Profile) bool {
	text := sellerClause(normalize.Text(label))
	if text == "" {
		return false
	}

	for _, ex := range p.Exclusions {
		if containsName(text, ex) {
			return false
		}
	}

	if containsName(text, p.Name) {
		return true
	}
	for _, alias := range p.Aliases {
		if containsName(text, alias) {
			return true
		}
	}
	return false
}

func sellerClause(text string) string {
	start, skip := -1, 0
	for _, marker := range soldBy {
		if i := strings.Index(text, marker); i >= 0 && (start < 0 || i < start) {
			start, skip = i, len(marker)
		}
	}
	if start < 0 {
		return text
	}

	clause := text[start+skip:]
	padded := " " + clause + " "
	end := len(clause)
	for _, marker := range shippedBy {
		if i := strings.Index(padded, marker); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(clause[:end])
}

// containsName matches whole words only, so "GAZIN" does not match inside
// "MAGAZINE".
func containsName(text, name string) bool {
	n := normalize.Text(name)
	return n != "" && strings.Contains(" "+text+" ", " "+n+" ")
}
