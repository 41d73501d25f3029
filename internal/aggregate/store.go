package aggregate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maltedev/retail-price-sweeper/internal/models"
)

// Store writes per-retailer result files into one directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path(retailer string) string {
	return filepath.Join(s.dir, "resultados_"+retailer+".json")
}

// Save replaces the retailer's file atomically.
func (s *Store) Save(c *Collector) error {
	data, err := json.MarshalIndent(c.Results(), "", "  ")
	if err != nil {
		return err
	}

	target := s.Path(c.Retailer())
	tmpFile := target + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return os.Rename(tmpFile, target)
}

func (s *Store) Load(retailer string) ([]models.ProductResult, error) {
	data, err := os.ReadFile(s.Path(retailer))
	if err != nil {
		return nil, err
	}

	var results []models.ProductResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode results for %s: %w", retailer, err)
	}
	return results, nil
}
