// Package aggregate collects the results of a retailer sweep and serialises
// them for the spreadsheet step.
package aggregate

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/maltedev/retail-price-sweeper/internal/models"
)

// Reduced is the per-product entry the spreadsheet step consumes.
type Reduced struct {
	Preco   *string `json:"preco"`
	Vendido bool    `json:"vendido"`
	Link    *string `json:"link"`
}

// ReducedMap keeps first-insertion order when marshalled.
type ReducedMap struct {
	keys   []string
	values map[string]Reduced
}

func NewReducedMap() *ReducedMap {
	return &ReducedMap{values: make(map[string]Reduced)}
}

func (m *ReducedMap) Set(key string, r Reduced) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = r
}

func (m *ReducedMap) Get(key string) (Reduced, bool) {
	r, ok := m.values[key]
	return r, ok
}

func (m *ReducedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *ReducedMap) Len() int {
	return len(m.keys)
}

func (m *ReducedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *ReducedMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	m.keys = nil
	m.values = make(map[string]Reduced)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var r Reduced
		if err := dec.Decode(&r); err != nil {
			return err
		}
		m.Set(key, r)
	}
	_, err := dec.Token()
	return err
}

// Collector holds one result per product for one retailer. A later result
// for the same key replaces the earlier one.
type Collector struct {
	mu       sync.Mutex
	retailer string
	keys     []string
	results  map[string]models.ProductResult
}

func NewCollector(retailer string) *Collector {
	return &Collector{
		retailer: retailer,
		results:  make(map[string]models.ProductResult),
	}
}

func (c *Collector) Retailer() string {
	return c.retailer
}

func (c *Collector) Add(r models.ProductResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.results[r.SearchTerm]; !ok {
		c.keys = append(c.keys, r.SearchTerm)
	}
	c.results[r.SearchTerm] = r
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func (c *Collector) Results() []models.ProductResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.ProductResult, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.results[k])
	}
	return out
}

// Counts tallies results by status.
func (c *Collector) Counts() map[models.Status]int {
	counts := make(map[models.Status]int)
	for _, r := range c.Results() {
		counts[r.Status]++
	}
	return counts
}

func (c *Collector) Reduce() *ReducedMap {
	m := NewReducedMap()
	for _, r := range c.Results() {
		m.Set(r.SearchTerm, Reduce(r))
	}
	return m
}

func Reduce(r models.ProductResult) Reduced {
	red := Reduced{Vendido: r.SellerMatchesRetailer, Link: r.Link}
	if r.SellerMatchesRetailer {
		red.Preco = r.Price
	}
	return red
}

type syncer interface {
	Sync() error
}

// WriteJSON encodes v as one JSON document through a buffered writer and
// flushes it. When w is a file (os.Stdout included) it is synced as well.
func WriteJSON(w io.Writer, v any) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if s, ok := w.(syncer); ok {
		// pipes and terminals reject fsync
		_ = s.Sync()
	}
	return nil
}
