package match

import (
	"testing"

	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	v := NewValidator(0.9)
	britania := models.Identity{Code: "BFR11PG", Brand: "BRITANIA"}

	tests := []struct {
		name     string
		id       models.Identity
		title    string
		accepted bool
		score    float64
	}{
		{
			name:     "exact product",
			id:       britania,
			title:    "Air Fryer Britânia 4,4L 1500W BFR11PG",
			accepted: true,
			score:    1,
		},
		{
			name:     "brand absent rejects regardless of code",
			id:       britania,
			title:    "Fritadeira Sem Óleo Philips Walita BFR11PG",
			accepted: false,
			score:    0,
		},
		{
			name:     "brand absent and no code",
			id:       britania,
			title:    "Fritadeira Sem Óleo Philips Walita",
			accepted: false,
			score:    0,
		},
		{
			name:     "partial code is below threshold",
			id:       models.Identity{Code: "RI 7800 PRETO", Brand: "PHILIPS WALITA"},
			title:    "Ferro Philips Walita RI 7800 Branco",
			accepted: false,
		},
		{
			name:     "multi token code found inside joined title token",
			id:       models.Identity{Code: "RI-7800/01", Brand: "Philips Walita"},
			title:    "Ferro a vapor PHILIPS WALITA RI7800 01",
			accepted: true,
			score:    1,
		},
		{
			name:     "degenerate code accepted once brand matches",
			id:       models.Identity{Code: "--", Brand: "ARNO"},
			title:    "Liquidificador Arno Power Mix",
			accepted: true,
			score:    1,
		},
		{
			name:     "ampersand brand",
			id:       models.Identity{Code: "KP100", Brand: "Black&Decker"},
			title:    "Processador BLACK&DECKER KP100",
			accepted: true,
			score:    1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := v.Validate(tt.id, models.SearchCandidate{RawTitle: tt.title}, "")
			assert.Equal(t, tt.accepted, d.Accepted)
			if tt.accepted || tt.score > 0 {
				assert.Equal(t, tt.score, d.Score)
			}
			if d.Accepted {
				assert.True(t, BrandPresent(tt.id.Brand, tt.title))
			}
		})
	}
}

func TestValidatePrefersExplicitText(t *testing.T) {
	v := NewValidator(0)
	c := models.SearchCandidate{RawTitle: "Air Fryer"}

	d := v.Validate(models.Identity{Code: "BFR11PG", Brand: "BRITANIA"}, c, "Air Fryer Britânia BFR11PG")
	assert.True(t, d.Accepted)
	assert.Equal(t, c, d.Candidate)
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewValidator(0).Threshold())
	assert.Equal(t, DefaultThreshold, NewValidator(1.5).Threshold())

	lenient := NewValidator(0.5)
	d := lenient.Validate(models.Identity{Code: "RI 7800", Brand: "WALITA"}, models.SearchCandidate{}, "Walita RI 9999")
	assert.True(t, d.Accepted)
	assert.Equal(t, 0.5, d.Score)
}

func TestAcceptedImpliesBrandPresent(t *testing.T) {
	v := NewValidator(0.9)
	titles := []string{
		"Air Fryer Britânia BFR11PG",
		"Air Fryer BFR11PG",
		"Britania",
		"BRITÂNIA bfr11pg 110v",
		"Philco BFR11PG",
	}
	id := models.Identity{Code: "BFR11PG", Brand: "Britânia"}
	for _, title := range titles {
		d := v.Validate(id, models.SearchCandidate{RawTitle: title}, "")
		if d.Accepted {
			assert.True(t, BrandPresent(id.Brand, title), title)
		}
	}
}
