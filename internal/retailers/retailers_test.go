package retailers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/extract"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinColumnOrder(t *testing.T) {
	assert.Equal(t, []string{
		"amazon", "carrefour", "casaevideo", "efacil", "gazin",
		"lebiscuit", "mercadolivre", "magalu", "casasbahia",
	}, Builtin().Keys())
}

func TestBuiltinRetailersAreComplete(t *testing.T) {
	for _, r := range Builtin().All() {
		r := r
		t.Run(r.Key, func(t *testing.T) {
			assert.NotEmpty(t, r.Name)
			assert.NotEmpty(t, r.Column)
			assert.Contains(t, r.Search.URL, "{term}")
			assert.Contains(t, []fetch.Mode{fetch.ModeHTTP, fetch.ModeBrowser}, r.Mode)
			assert.NotEmpty(t, r.Results.Strategies)
			assert.NotEmpty(t, r.Detail.Name)
			assert.NotEmpty(t, r.Detail.Price)
			assert.NotEmpty(t, r.Seller.Name)
			assert.LessOrEqual(t, r.Delay.Min, r.Delay.Max)
		})
	}
}

func TestGazinNeedsAccentsStrippedAndDescriptionCheck(t *testing.T) {
	g, err := Builtin().Get("gazin")
	require.NoError(t, err)
	assert.True(t, g.Search.StripAccents)
	assert.True(t, g.DescriptionCheck)
	assert.NotEmpty(t, g.Detail.Description)
}

func TestResolve(t *testing.T) {
	reg := Builtin()

	all, err := reg.Resolve(nil)
	require.NoError(t, err)
	assert.Len(t, all, 9)

	some, err := reg.Resolve([]string{"Magalu", "gazin", "magalu"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "magalu", some[0].Key)
	assert.Equal(t, "gazin", some[1].Key)

	_, err = reg.Resolve([]string{"walmart"})
	assert.ErrorIs(t, err, ErrUnknownRetailer)
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := Builtin()
	m, _ := reg.Get("magalu")
	m.Search.URL = "changed"

	again, _ := reg.Get("magalu")
	assert.NotEqual(t, "changed", again.Search.URL)
}

func TestLoadAndApplyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retailers.yaml")
	content := `
retailers:
  magalu:
    search_url: "https://staging.magazineluiza.com.br/busca/{term}/"
    mode: http
    delay_min: 1s
    delay_max: 2s
    seller_aliases: ["Magazine Você"]
    price_selectors: ["span.new-price"]
    cards:
      - card: "div.new-card a"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	require.Contains(t, overrides, "magalu")

	reg := Builtin()
	require.NoError(t, reg.Apply(overrides))

	m, err := reg.Get("magalu")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.magazineluiza.com.br/busca/{term}/", m.Search.URL)
	assert.Equal(t, fetch.ModeHTTP, m.Mode)
	assert.Equal(t, Delay{Min: time.Second, Max: 2 * time.Second}, m.Delay)
	assert.Contains(t, m.Seller.Aliases, "Magazine Você")
	assert.Equal(t, "div.new-card a", m.Results.Strategies[0].Card)
	assert.Equal(t, extract.Text{Selector: "span.new-price"}, m.Detail.Price[0])
}

func TestApplyRejectsBadOverrides(t *testing.T) {
	reg := Builtin()
	assert.ErrorIs(t, reg.Apply(map[string]Override{"walmart": {}}), ErrUnknownRetailer)
	assert.Error(t, reg.Apply(map[string]Override{"gazin": {Mode: "carrier-pigeon"}}))
	assert.Error(t, reg.Apply(map[string]Override{"gazin": {DelayMin: time.Minute}}))
}

func TestLoadOverridesMissingFile(t *testing.T) {
	_, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
