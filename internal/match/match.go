// Package match decides whether a candidate listing is the catalog product.
package match

import (
	"strings"

	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/normalize"
)

const DefaultThreshold = 0.9

type Validator struct {
	threshold float64
}

func NewValidator(threshold float64) *Validator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Validator{threshold: threshold}
}

func (v *Validator) Threshold() float64 {
	return v.threshold
}

// Validate scores text against the identity. The brand must appear in the
// normalised text; the score is the fraction of normalised code tokens that
// appear as substrings. An empty text falls back to the candidate title.
func (v *Validator) Validate(id models.Identity, c models.SearchCandidate, text string) models.MatchDecision {
	if strings.TrimSpace(text) == "" {
		text = c.RawTitle
	}
	haystack := normalize.Text(text)
	decision := models.MatchDecision{Candidate: c}

	if brand := normalize.Text(id.Brand); !strings.Contains(haystack, brand) {
		decision.Reason = "brand absent"
		return decision
	}

	tokens := normalize.Tokens(id.Code)
	if len(tokens) == 0 {
		decision.Accepted = true
		decision.Score = 1
		return decision
	}

	found := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			found++
		}
	}

	decision.Score = float64(found) / float64(len(tokens))
	decision.Accepted = decision.Score >= v.threshold
	if !decision.Accepted {
		decision.Reason = "code tokens below threshold"
	}
	return decision
}

// BrandPresent is the necessary condition every accepted decision satisfies.
func BrandPresent(brand, text string) bool {
	return strings.Contains(normalize.Text(text), normalize.Text(brand))
}
