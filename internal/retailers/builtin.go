package retailers

import (
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/extract"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/query"
	"github.com/maltedev/retail-price-sweeper/internal/search"
	"github.com/maltedev/retail-price-sweeper/internal/seller"
)

var (
	jsonLDName   = extract.JSONLD{Path: []string{"name"}}
	jsonLDPrice  = extract.JSONLD{Path: []string{"offers", "price"}}
	jsonLDLow    = extract.JSONLD{Path: []string{"offers", "lowPrice"}}
	jsonLDSeller = extract.JSONLD{Path: []string{"offers", "seller", "name"}}
	jsonLDStock  = extract.JSONLD{Path: []string{"offers", "availability"}}
	bodyPrice    = extract.Regex{Pattern: extract.CurrencyPattern}
	ogTitle      = extract.Attr{Selector: `meta[property="og:title"]`, Name: "content"}
)

func delay(min, max time.Duration) Delay {
	return Delay{Min: min, Max: max}
}

// Builtin returns the registry of supported retailers in spreadsheet column
// order.
func Builtin() *Registry {
	return NewRegistry([]Retailer{
		amazon(),
		carrefour(),
		casaEVideo(),
		eFacil(),
		gazin(),
		leBiscuit(),
		mercadoLivre(),
		magalu(),
		casasBahia(),
	})
}

func amazon() Retailer {
	return Retailer{
		Key:    "amazon",
		Name:   "Amazon",
		Column: "Amazon",
		Search: query.Template{
			URL:   "https://www.amazon.com.br/s?k={term}&rh=p_6%3AA1ZZFT5FULY4LN",
			Style: query.StyleQuery,
		},
		Mode: fetch.ModeBrowser,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: `div[data-component-type="s-search-result"]`, Link: `div[data-cy='image-container'] a.a-link-normal`, Title: "h2", Sponsored: ".puis-sponsored-label-text"},
				{Card: "div[data-cy='image-container'] a.a-link-normal", SponsoredHref: "/sspa/"},
			},
			NoResultsText: []string{"Nenhum resultado para"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{extract.Text{Selector: "#productTitle"}, jsonLDName, ogTitle},
			Price: []extract.Strategy{
				extract.PriceParts{Whole: "span.a-price span.a-price-whole", Fraction: "span.a-price span.a-price-fraction"},
				extract.Text{Selector: "span.a-price span.a-offscreen"},
				jsonLDPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: "#sellerProfileTriggerId"},
				extract.Text{Selector: "#merchant-info"},
				extract.Text{Selector: "span", Contains: "Amazon.com.br"},
			},
			Availability: []extract.Strategy{extract.Text{Selector: "#availability"}},
		},
		Seller: seller.Profile{Name: "Amazon.com.br", Aliases: []string{"Amazon Servicos de Varejo"}},
		Delay:  delay(2*time.Second, 5*time.Second),
	}
}

func carrefour() Retailer {
	return Retailer{
		Key:    "carrefour",
		Name:   "Carrefour",
		Column: "Carrefour",
		Search: query.Template{
			URL:   "https://www.carrefour.com.br/busca/{term}",
			Style: query.StylePath,
		},
		Mode: fetch.ModeBrowser,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: "section.vtex-product-summary-2-x-container", Link: "a.vtex-product-summary-2-x-clearLink", Title: "article[aria-label]", Sponsored: "[data-sponsored]"},
				{Card: "a.vtex-product-summary-2-x-clearLink"},
			},
			NoResults:     []string{".vtex-search-result-3-x-searchNotFoundInfo"},
			NoResultsText: []string{"Nenhum resultado encontrado"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{
				extract.Text{Selector: "h1.vtex-store-components-3-x-productNameContainer"},
				extract.Text{Selector: "h1"},
				jsonLDName,
			},
			Price: []extract.Strategy{
				extract.Text{Selector: ".vtex-product-price-1-x-spotPriceValue"},
				extract.Text{Selector: ".vtex-product-price-1-x-sellingPriceValue"},
				jsonLDPrice,
				jsonLDLow,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: ".vtex-seller-selector-0-x-sellerName"},
				extract.Text{Selector: "span", Contains: "Vendido e entregue por"},
				jsonLDSeller,
			},
			Availability: []extract.Strategy{jsonLDStock},
		},
		Seller: seller.Profile{Name: "Carrefour", Aliases: []string{"Carrefour Brasil"}},
		Delay:  delay(2*time.Second, 5*time.Second),
	}
}

func casaEVideo() Retailer {
	return Retailer{
		Key:    "casaevideo",
		Name:   "Casa e Vídeo",
		Column: "Casa e Vídeo",
		Search: query.Template{
			URL:   "https://www.casaevideo.com.br/search?q={term}",
			Style: query.StyleQuery,
		},
		Mode: fetch.ModeHTTP,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: "a[id^='product-card']"},
				{Card: "a[data-testid='product-card']"},
				{Card: "a[href^='/produto/']"},
				{Card: "a[href^='/p/']"},
			},
			NoResultsText: []string{"Não encontramos nenhum resultado"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{extract.Text{Selector: "h1"}, jsonLDName},
			Price: []extract.Strategy{
				extract.Text{Selector: `span.h5-bold, span.md\:h4-bold`, Contains: "R$"},
				jsonLDPrice,
				bodyPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: "p", Contains: "Vendido"},
				extract.Text{Selector: "span", Contains: "Vendido"},
				jsonLDSeller,
			},
			Availability: []extract.Strategy{jsonLDStock},
		},
		Seller: seller.Profile{Name: "Casa e Video", Aliases: []string{"CasaeVideo"}},
		Delay:  delay(2*time.Second, 4*time.Second),
	}
}

func eFacil() Retailer {
	return Retailer{
		Key:    "efacil",
		Name:   "eFácil",
		Column: "eFácil",
		Search: query.Template{
			URL:   "https://www.efacil.com.br/loja/busca/?searchTerm={term}",
			Style: query.StyleQuery,
		},
		Mode: fetch.ModeBrowser,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: "a[id^='btn_skuP']"},
			},
			NoResultsText: []string{"Não encontramos resultados"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{extract.Text{Selector: "h1"}, jsonLDName},
			Price: []extract.Strategy{
				extract.Text{Selector: "div[data-testid='spot-price'] span", Contains: "R$"},
				jsonLDPrice,
				bodyPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: "span", Contains: "Vendido e entregue por"},
				jsonLDSeller,
			},
			Availability: []extract.Strategy{jsonLDStock},
		},
		Seller: seller.Profile{Name: "eFácil", Aliases: []string{"efacil.com.br"}},
		Delay:  delay(2*time.Second, 5*time.Second),
	}
}

func gazin() Retailer {
	return Retailer{
		Key:    "gazin",
		Name:   "Gazin",
		Column: "Gazin",
		Search: query.Template{
			URL:          "https://www.gazin.com.br/busca/{term}",
			Style:        query.StylePath,
			StripAccents: true,
		},
		Mode: fetch.ModeBrowser,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: "a:has(.chakra-stack)", Title: "span.chakra-text"},
			},
			NoResultsText: []string{"Nenhum produto encontrado"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{extract.Text{Selector: "h1"}, jsonLDName},
			Price: []extract.Strategy{
				extract.Text{Selector: "p.chakra-text", Contains: "R$"},
				jsonLDPrice,
				bodyPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: "p.chakra-text.css-1ktt7uz"},
				extract.Text{Selector: "p", Contains: "Vendido por"},
				jsonLDSeller,
			},
			Availability: []extract.Strategy{jsonLDStock},
			Description: []extract.Strategy{
				extract.Text{Selector: "div#descricao, div#ficha-tecnica", All: true},
			},
		},
		Seller:           seller.Profile{Name: "Gazin"},
		Delay:            delay(3*time.Second, 7*time.Second),
		DescriptionCheck: true,
	}
}

func leBiscuit() Retailer {
	return Retailer{
		Key:    "lebiscuit",
		Name:   "Le Biscuit",
		Column: "Le Biscuit",
		Search: query.Template{
			URL:   "https://www.lebiscuit.com.br/search?q={term}",
			Style: query.StyleQuery,
		},
		Mode: fetch.ModeBrowser,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: "a[id^='product-card-']"},
			},
			NoResultsText: []string{"Não encontramos nenhum resultado"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{extract.Text{Selector: "h1"}, jsonLDName},
			Price: []extract.Strategy{
				extract.Text{Selector: `span.h5-bold, span.md\:h4-bold`, Contains: "R$"},
				jsonLDPrice,
				bodyPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: "p:contains('Vendido e entregue por') strong"},
				jsonLDSeller,
			},
			Availability: []extract.Strategy{jsonLDStock},
		},
		Seller: seller.Profile{Name: "Le Biscuit", Aliases: []string{"LeBiscuit"}},
		Delay:  delay(2*time.Second, 5*time.Second),
	}
}

func mercadoLivre() Retailer {
	return Retailer{
		Key:    "mercadolivre",
		Name:   "Mercado Livre",
		Column: "Mercado Livre",
		Search: query.Template{
			URL:   "https://lista.mercadolivre.com.br/{term}",
			Style: query.StyleDashed,
		},
		Mode: fetch.ModeHTTP,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: "li.ui-search-layout__item", Link: "a", Title: "h3, .poly-component__title", Sponsored: ".poly-component__ads-promotions"},
			},
			NoResultsText: []string{"Não há anúncios que correspondam à sua busca"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{extract.Text{Selector: "h1.ui-pdp-title"}, jsonLDName},
			Price: []extract.Strategy{
				extract.Attr{Selector: "meta[itemprop='price']", Name: "content"},
				jsonLDPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: ".ui-pdp-seller__label-text-with-icon"},
				extract.Text{Selector: ".ui-pdp-seller__link-trigger"},
			},
			Availability: []extract.Strategy{jsonLDStock},
		},
		Seller: seller.Profile{Name: "Mercado Livre", Aliases: []string{"MercadoLivre"}},
		Delay:  delay(2*time.Second, 5*time.Second),
	}
}

func magalu() Retailer {
	return Retailer{
		Key:    "magalu",
		Name:   "Magazine Luiza",
		Column: "Magalu",
		Search: query.Template{
			URL:   "https://www.magazineluiza.com.br/busca/{term}/?seller_id=magazineluiza",
			Style: query.StylePath,
		},
		Mode: fetch.ModeBrowser,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: `li a[data-testid="product-card-container"]`, Title: `h2[data-testid="product-title"]`},
			},
			NoResultsText: []string{"não encontrou resultado"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{
				extract.Text{Selector: `h1[data-testid="heading-product-title"]`},
				jsonLDName,
			},
			Price: []extract.Strategy{
				extract.Text{Selector: `p[data-testid="price-value"]`},
				jsonLDPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: `div[href="/lojista/"]`},
				extract.Text{Selector: `p[data-testid="label"]`},
				jsonLDSeller,
			},
			Availability: []extract.Strategy{jsonLDStock},
		},
		Seller: seller.Profile{Name: "Magazine Luiza", Aliases: []string{"Magalu", "MagazineLuiza"}},
		Delay:  delay(2*time.Second, 5*time.Second),
		SkipWords: []string{
			"BOTAO", "COPO", "CONJUNTO LAMINA", "BANDEJA DE ASSAR", "3 BOTÕES LIGA",
			"DISPLAY DO PAINEL", "AGULHA ORIGINAL", "RESERVATÓRIO ÁGUA", "FILTRO EXPRESSO",
		},
	}
}

func casasBahia() Retailer {
	return Retailer{
		Key:    "casasbahia",
		Name:   "Casas Bahia",
		Column: "Casas Bahia",
		Search: query.Template{
			URL:   "https://www.casasbahia.com.br/busca?q={term}",
			Style: query.StyleQuery,
		},
		Mode: fetch.ModeBrowser,
		Results: search.Config{
			Strategies: []search.Strategy{
				{Card: `div[data-testid="product-card"]`, Link: `a[data-testid="product-card-link-overlay"]`, Title: "h3", Sponsored: `[data-testid="sponsored-tag"]`},
				{Card: `a[data-testid="product-link"]`},
			},
			NoResultsText: []string{"Não encontramos nenhum resultado"},
		},
		Detail: extract.Config{
			Name: []extract.Strategy{extract.Text{Selector: `h1[data-testid="product-name"]`}, jsonLDName},
			Price: []extract.Strategy{
				extract.Text{Selector: `[data-testid="product-price-value"] span`},
				jsonLDPrice,
			},
			Seller: []extract.Strategy{
				extract.Text{Selector: "span", Contains: "Vendido e entregue por"},
				jsonLDSeller,
			},
			Availability: []extract.Strategy{jsonLDStock},
		},
		Seller: seller.Profile{Name: "Casas Bahia"},
		Delay:  delay(3*time.Second, 6*time.Second),
	}
}
