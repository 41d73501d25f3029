package aggregate

import (
	"fmt"
	"time"
)

const (
	Unavailable   = "Indisponível"
	ProductHeader = "Produto"
	TotalTimeRow  = "Tempo total"
)

// Column binds a spreadsheet column to a retailer's reduced map.
type Column struct {
	Title   string
	Reduced *ReducedMap
}

// Table lays out one row per product key and one column per retailer. The
// last row holds the total elapsed time.
func Table(keys []string, columns []Column, elapsed time.Duration) [][]string {
	header := make([]string, 0, len(columns)+1)
	header = append(header, ProductHeader)
	for _, c := range columns {
		header = append(header, c.Title)
	}

	rows := [][]string{header}
	for _, key := range keys {
		row := make([]string, 0, len(columns)+1)
		row = append(row, key)
		for _, c := range columns {
			row = append(row, Cell(c.Reduced, key))
		}
		rows = append(rows, row)
	}

	rows = append(rows, []string{TotalTimeRow, FormatElapsed(elapsed)})
	return rows
}

// Cell is the price when the retailer sold the product, Unavailable otherwise.
func Cell(m *ReducedMap, key string) string {
	if m == nil {
		return Unavailable
	}
	r, ok := m.Get(key)
	if !ok || !r.Vendido || r.Preco == nil || *r.Preco == "" {
		return Unavailable
	}
	return *r.Preco
}

func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
