package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/maltedev/retail-price-sweeper/internal/models"
)

// LoadCustomTerms reads the {code: term} override map. A missing file yields
// an empty map.
func LoadCustomTerms(path string) (map[string]string, error) {
	terms := make(map[string]string)
	if path == "" {
		return terms, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return terms, nil
	}
	if err != nil {
		return terms, fmt.Errorf("failed to read custom terms: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return terms, fmt.Errorf("failed to parse custom terms: %w", err)
	}

	for code, v := range raw {
		term := strings.TrimSpace(fmt.Sprint(v))
		if v == nil || term == "" {
			continue
		}
		terms[strings.TrimSpace(code)] = term
	}
	return terms, nil
}

// ApplyCustomTerms returns a copy of entries with CustomSearchTerm set from
// the override map.
func ApplyCustomTerms(entries []models.CatalogEntry, terms map[string]string) []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(entries))
	for i, e := range entries {
		if t, ok := terms[strings.TrimSpace(e.Code)]; ok {
			e.CustomSearchTerm = t
		}
		out[i] = e
	}
	return out
}
