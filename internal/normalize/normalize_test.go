package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"accents and case", "Air Fryer Britânia 4,4L 1500W BFR11PG", "AIR FRYER BRITANIA 4 4L 1500W BFR11PG"},
		{"ampersand", "Black&Decker", "BLACKEDECKER"},
		{"ampersand spaced", "Black & Decker", "BLACK E DECKER"},
		{"cedilla", "Pressão Ação", "PRESSAO ACAO"},
		{"punctuation collapse", "  Mondial -- NAF-03/i  ", "MONDIAL NAF 03 I"},
		{"underscore kept", "code_1", "CODE_1"},
		{"empty", "", ""},
		{"only symbols", "---", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestTextIsIdempotent(t *testing.T) {
	inputs := []string{
		"Air Fryer Britânia 4,4L 1500W BFR11PG",
		"Vendido e entregue por Casas Bahia",
		"Ferro à Vapor Philips Walita GC1905/21",
		"Liquidificador Arno Power Mix LQ11 550W",
		"ÇÃÕÉ & ñ ß ø",
		"   ",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
	}
}

func TestStripAccents(t *testing.T) {
	assert.Equal(t, "Britania Eletrodomesticos", StripAccents("Britânia Eletrodomésticos"))
	assert.Equal(t, "acao", StripAccents("ação"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"PH", "800", "PRETO"}, Tokens("ph-800 preto"))
	assert.Nil(t, Tokens("  - "))
}

func TestSquash(t *testing.T) {
	assert.Equal(t, "R$ 1.299,00", Squash("R$\n  1.299,00 "))
}
