package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/normalize"
)

var (
	ErrCatalogUnreadable = errors.New("catalog unreadable")
	ErrEmptyCatalog      = errors.New("catalog has no usable entries")
)

var (
	codeFields  = []string{"produto", "codigo", "id"}
	brandFields = []string{"marca", "brand"}
	descFields  = []string{"descricao", "description"}
)

// Load reads a catalog document. Both {"produtos": [...]} and a bare array
// are accepted. Entries without code and brand are skipped.
func Load(path string, logger *slog.Logger) ([]models.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnreadable, err)
	}
	return Parse(data, logger)
}

func Parse(data []byte, logger *slog.Logger) ([]models.CatalogEntry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	items, err := decodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnreadable, err)
	}

	entries := make([]models.CatalogEntry, 0, len(items))
	for i, item := range items {
		entry := models.CatalogEntry{
			Code:        firstField(item, codeFields),
			Brand:       firstField(item, brandFields),
			Description: firstField(item, descFields),
		}
		if entry.Code == "" && entry.Brand == "" {
			logger.Warn("catalog entry without code and brand, skipping",
				"index", i,
				"description", entry.Description)
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	return entries, nil
}

func decodeItems(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if data[0] == '[' {
		var items []map[string]any
		if err := dec.Decode(&items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var doc struct {
		Produtos []map[string]any `json:"produtos"`
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Produtos == nil {
		return nil, errors.New(`missing "produtos" array`)
	}
	return doc.Produtos, nil
}

func firstField(item map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			return s
		}
	}
	return ""
}

// Select keeps the entries whose code is listed. An empty list keeps all.
func Select(entries []models.CatalogEntry, codes []string) []models.CatalogEntry {
	if len(codes) == 0 {
		return entries
	}
	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[normalize.Text(c)] = struct{}{}
	}

	var out []models.CatalogEntry
	for _, e := range entries {
		if _, ok := wanted[normalize.Text(e.Code)]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Excluded reports whether the entry's code contains any of the words.
func Excluded(entry models.CatalogEntry, words []string) bool {
	code := normalize.Text(entry.Code)
	if code == "" {
		return false
	}
	for _, w := range words {
		nw := normalize.Text(w)
		if nw != "" && strings.Contains(code, nw) {
			return true
		}
	}
	return false
}
