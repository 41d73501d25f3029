package extract

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailHTML = `<html><head>
<meta property="og:title" content="Fritadeira Og Title">
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
 {"@type":"BreadcrumbList"},
 {"@type":"Product","name":"Fritadeira BFR11PG Britânia",
  "offers":[{"@type":"Offer","price":1299.9,"availability":"https://schema.org/InStock",
  "seller":{"name":"Magazine Luiza"}}]}]}</script>
</head><body>
<h1 data-testid="heading-product-title">  Fritadeira   Air Fryer BFR11PG </h1>
<p data-testid="price-value">Indisponível</p>
<div class="buybox"><p>Vendido e entregue por <strong>Magazine Luiza</strong></p></div>
<span class="a-price-whole">1.299,</span><span class="a-price-fraction">90</span>
<div id="descricao">Cesto antiaderente</div><div id="ficha-tecnica">Potência 1500W</div>
<section class="promo">Apenas R$ 1.199,00 no pix</section>
</body></html>`

func page() *fetch.Page {
	return &fetch.Page{URL: "https://www.magazineluiza.com.br/p/1", HTML: detailHTML}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"R$ 1.299,90", "R$ 1.299,90", true},
		{"R$1.299,90", "R$ 1.299,90", true},
		{"por R$ 89,90 à vista", "R$ 89,90", true},
		{"R$\u00a01.299,90", "R$ 1.299,90", true},
		{"R$ 1 299,90", "R$ 1.299,90", true},
		{"R$ 1.299", "R$ 1.299,00", true},
		{"1299.9", "R$ 1.299,90", true},
		{"89", "R$ 89,00", true},
		{"Indisponível", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := FormatPrice(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.Regexp(t, `^R\$ \d`, got)
			}
		})
	}
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 0,50", FormatBRL(0.5))
	assert.Equal(t, "R$ 1.234.567,89", FormatBRL(1234567.891))
	assert.Equal(t, "R$ 999,00", FormatBRL(999))
}

func TestExtractorCascade(t *testing.T) {
	e := NewExtractor(Config{
		Name: []Strategy{
			Text{Selector: `h1[data-testid="heading-product-title"]`},
			JSONLD{Path: []string{"name"}},
		},
		Price: []Strategy{
			Text{Selector: `p[data-testid="price-value"]`},
			JSONLD{Path: []string{"offers", "price"}},
		},
		Seller: []Strategy{
			Text{Selector: "p", Contains: "vendido e entregue por"},
		},
		Availability: []Strategy{JSONLD{Path: []string{"offers", "availability"}}},
		Description:  []Strategy{Text{Selector: "div#descricao, div#ficha-tecnica", All: true}},
	}, nil)

	d := e.Extract(page())
	assert.Equal(t, "Fritadeira Air Fryer BFR11PG", models.Deref(d.Name))
	// the implausible "Indisponível" text falls through to structured data
	assert.Equal(t, "R$ 1.299,90", models.Deref(d.Price))
	assert.Equal(t, "Vendido e entregue por Magazine Luiza", models.Deref(d.SellerLabel))
	assert.Equal(t, "InStock", models.Deref(d.Availability))
	assert.Equal(t, "Cesto antiaderente Potência 1500W", models.Deref(d.Description))
}

func TestExtractorMissingFieldsAreNil(t *testing.T) {
	e := NewExtractor(Config{
		Name:  []Strategy{Text{Selector: "h1.missing"}},
		Price: []Strategy{Text{Selector: "span.missing"}},
	}, nil)

	d := e.Extract(page())
	assert.Nil(t, d.Name)
	assert.Nil(t, d.Price)
	assert.Nil(t, d.SellerLabel)
	assert.Nil(t, d.Description)
}

func TestStrategies(t *testing.T) {
	e := NewExtractor(Config{
		Name:   []Strategy{Attr{Selector: `meta[property="og:title"]`, Name: "content"}},
		Price:  []Strategy{PriceParts{Whole: ".a-price-whole", Fraction: ".a-price-fraction"}},
		Seller: []Strategy{JSONLD{Path: []string{"offers", "seller", "name"}}},
	}, nil)
	d := e.Extract(page())
	assert.Equal(t, "Fritadeira Og Title", models.Deref(d.Name))
	assert.Equal(t, "R$ 1.299,90", models.Deref(d.Price))
	assert.Equal(t, "Magazine Luiza", models.Deref(d.SellerLabel))

	re := NewExtractor(Config{
		Price: []Strategy{Regex{Selector: "section.promo", Pattern: CurrencyPattern}},
	}, nil)
	assert.Equal(t, "R$ 1.199,00", models.Deref(re.Extract(page()).Price))

	bad := NewExtractor(Config{
		Name: []Strategy{Regex{Pattern: regexp.MustCompile(`nomatch\d+`)}},
	}, nil)
	assert.Nil(t, bad.Extract(page()).Name)
}

type stubFetcher struct {
	page *fetch.Page
	err  error
}

func (s stubFetcher) Fetch(_ context.Context, _ string) (*fetch.Page, error) {
	return s.page, s.err
}

func TestLoad(t *testing.T) {
	e := NewExtractor(Config{Name: []Strategy{JSONLD{Path: []string{"name"}}}}, nil)

	d, err := e.Load(context.Background(), stubFetcher{page: page()}, "https://x")
	require.NoError(t, err)
	assert.Equal(t, "Fritadeira BFR11PG Britânia", models.Deref(d.Name))

	_, err = e.Load(context.Background(), stubFetcher{err: fetch.ErrBlocked}, "https://x")
	assert.True(t, errors.Is(err, fetch.ErrBlocked))
}
