package aggregate

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid(key, price string) models.ProductResult {
	link := "https://shop.test/" + key
	return models.NewProductResult(key, "gazin", models.StatusFoundValid, nil, &price, &link, true)
}

func marketplace(key, price string) models.ProductResult {
	link := "https://shop.test/" + key
	return models.NewProductResult(key, "gazin", models.StatusFoundValid, nil, &price, &link, false)
}

func TestCollectorLastWriteWins(t *testing.T) {
	c := NewCollector("gazin")
	c.Add(models.NotFound("B", "gazin"))
	c.Add(valid("A", "R$ 10,00"))
	c.Add(valid("B", "R$ 20,00"))

	results := c.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "B", results[0].SearchTerm)
	assert.Equal(t, models.StatusFoundValid, results[0].Status)
	assert.Equal(t, 2, c.Counts()[models.StatusFoundValid])
}

func TestReduceWithholdsMarketplacePrice(t *testing.T) {
	c := NewCollector("gazin")
	c.Add(valid("A", "R$ 10,00"))
	c.Add(marketplace("B", "R$ 20,00"))
	c.Add(models.FetchError("C", "gazin", errors.New("timeout")))

	m := c.Reduce()
	a, _ := m.Get("A")
	assert.Equal(t, "R$ 10,00", models.Deref(a.Preco))
	assert.True(t, a.Vendido)

	b, _ := m.Get("B")
	assert.Nil(t, b.Preco)
	assert.False(t, b.Vendido)
	assert.NotNil(t, b.Link)

	cc, _ := m.Get("C")
	assert.Nil(t, cc.Preco)
	assert.Nil(t, cc.Link)
}

func TestReducedMapKeepsOrder(t *testing.T) {
	m := NewReducedMap()
	p := "R$ 1,00"
	m.Set("Z", Reduced{Preco: &p, Vendido: true})
	m.Set("A", Reduced{})
	m.Set("Z", Reduced{Vendido: false})

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"Z":{"preco":null,"vendido":false,"link":null},"A":{"preco":null,"vendido":false,"link":null}}`, string(data))

	var back ReducedMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"Z", "A"}, back.Keys())
}

func TestWriteJSONSingleDocument(t *testing.T) {
	c := NewCollector("magalu")
	c.Add(valid("BFR11PG BRITANIA", "R$ 399,90"))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, c.Reduce()))

	dec := json.NewDecoder(&buf)
	var out map[string]Reduced
	require.NoError(t, dec.Decode(&out))
	assert.Equal(t, "R$ 399,90", models.Deref(out["BFR11PG BRITANIA"].Preco))
	assert.False(t, dec.More())
}

func TestWriteJSONToFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out-*.json")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, WriteJSON(f, map[string]int{"a": 1}))
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestStoreSaveAndLoad(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	c := NewCollector("gazin")
	c.Add(valid("A", "R$ 10,00"))
	require.NoError(t, s.Save(c))
	assert.FileExists(t, s.Path("gazin"))
	assert.NoFileExists(t, s.Path("gazin")+".tmp")

	loaded, err := s.Load("gazin")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "A", loaded[0].SearchTerm)

	_, err = s.Load("magalu")
	assert.True(t, os.IsNotExist(err))
}

func TestTable(t *testing.T) {
	gazin := NewCollector("gazin")
	gazin.Add(valid("A", "R$ 10,00"))
	gazin.Add(marketplace("B", "R$ 20,00"))

	rows := Table([]string{"A", "B", "C"}, []Column{
		{Title: "Gazin", Reduced: gazin.Reduce()},
		{Title: "Magalu", Reduced: nil},
	}, 90*time.Minute+5*time.Second)

	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Produto", "Gazin", "Magalu"}, rows[0])
	assert.Equal(t, []string{"A", "R$ 10,00", Unavailable}, rows[1])
	assert.Equal(t, []string{"B", Unavailable, Unavailable}, rows[2])
	assert.Equal(t, []string{"C", Unavailable, Unavailable}, rows[3])
	assert.Equal(t, []string{TotalTimeRow, "01:30:05"}, rows[4])
}
