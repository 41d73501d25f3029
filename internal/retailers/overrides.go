package retailers

import (
	"fmt"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/extract"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/search"
	"github.com/spf13/viper"
)

// Override adjusts a builtin retailer without a rebuild. Selector lists are
// tried before the builtin ones.
type Override struct {
	SearchURL       string            `mapstructure:"search_url"`
	Mode            string            `mapstructure:"mode"`
	DelayMin        time.Duration     `mapstructure:"delay_min"`
	DelayMax        time.Duration     `mapstructure:"delay_max"`
	SellerAliases   []string          `mapstructure:"seller_aliases"`
	SkipWords       []string          `mapstructure:"skip_words"`
	Cards           []search.Strategy `mapstructure:"cards"`
	NameSelectors   []string          `mapstructure:"name_selectors"`
	PriceSelectors  []string          `mapstructure:"price_selectors"`
	SellerSelectors []string          `mapstructure:"seller_selectors"`
}

type overrideFile struct {
	Retailers map[string]Override `mapstructure:"retailers"`
}

// LoadOverrides reads a YAML or JSON file with a top-level "retailers" map.
func LoadOverrides(path string) (map[string]Override, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading retailer overrides: %w", err)
	}

	var f overrideFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("unable to decode retailer overrides: %w", err)
	}
	return f.Retailers, nil
}

// Apply merges overrides into the registry.
func (r *Registry) Apply(overrides map[string]Override) error {
	for key, o := range overrides {
		ret, ok := r.byKey[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRetailer, key)
		}

		if o.SearchURL != "" {
			ret.Search.URL = o.SearchURL
		}
		switch fetch.Mode(o.Mode) {
		case "":
		case fetch.ModeHTTP, fetch.ModeBrowser:
			ret.Mode = fetch.Mode(o.Mode)
		default:
			return fmt.Errorf("retailer %s: invalid mode %q", key, o.Mode)
		}
		if o.DelayMin > 0 {
			ret.Delay.Min = o.DelayMin
		}
		if o.DelayMax > 0 {
			ret.Delay.Max = o.DelayMax
		}
		if ret.Delay.Max < ret.Delay.Min {
			return fmt.Errorf("retailer %s: delay_min cannot be greater than delay_max", key)
		}

		ret.Seller.Aliases = append(ret.Seller.Aliases, o.SellerAliases...)
		ret.SkipWords = append(ret.SkipWords, o.SkipWords...)
		ret.Results.Strategies = append(append([]search.Strategy(nil), o.Cards...), ret.Results.Strategies...)
		ret.Detail.Name = prepend(o.NameSelectors, ret.Detail.Name)
		ret.Detail.Price = prepend(o.PriceSelectors, ret.Detail.Price)
		ret.Detail.Seller = prepend(o.SellerSelectors, ret.Detail.Seller)
	}
	return nil
}

func prepend(selectors []string, strategies []extract.Strategy) []extract.Strategy {
	if len(selectors) == 0 {
		return strategies
	}
	out := make([]extract.Strategy, 0, len(selectors)+len(strategies))
	for _, sel := range selectors {
		out = append(out, extract.Text{Selector: sel})
	}
	return append(out, strategies...)
}
