// Package app assembles the catalog, the retailer registry and the sweep
// runner shared by both binaries.
package app

import (
	"fmt"
	"log/slog"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/catalog"
	"github.com/maltedev/retail-price-sweeper/internal/config"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/pipeline"
	"github.com/maltedev/retail-price-sweeper/internal/retailers"
	"github.com/maltedev/retail-price-sweeper/internal/sessions"
)

type Env struct {
	Catalog  []models.CatalogEntry
	Registry *retailers.Registry
	Runner   *pipeline.Runner
}

func Bootstrap(cfg *config.Config, logger *slog.Logger) (*Env, error) {
	entries, err := LoadCatalog(cfg.Paths, logger)
	if err != nil {
		return nil, err
	}

	registry, err := LoadRegistry(cfg.Paths.Retailers)
	if err != nil {
		return nil, err
	}

	store, err := aggregate.NewStore(cfg.Paths.Results)
	if err != nil {
		return nil, err
	}

	opts := sessions.FromConfig(cfg)
	factory := func(mode fetch.Mode) (fetch.SessionFactory, error) {
		return sessions.Factory(mode, opts, logger)
	}

	return &Env{
		Catalog:  entries,
		Registry: registry,
		Runner:   pipeline.NewRunner(pipeline.SettingsFromConfig(cfg.Scraper), factory, store, logger),
	}, nil
}

// LoadCatalog reads the catalog and applies the custom search terms.
func LoadCatalog(paths config.PathsConfig, logger *slog.Logger) ([]models.CatalogEntry, error) {
	entries, err := catalog.Load(paths.Catalog, logger)
	if err != nil {
		return nil, err
	}

	terms, err := catalog.LoadCustomTerms(paths.CustomTerms)
	if err != nil {
		return nil, err
	}
	if len(terms) > 0 {
		logger.Info("custom search terms loaded", "count", len(terms))
	}
	return catalog.ApplyCustomTerms(entries, terms), nil
}

// LoadRegistry returns the builtin retailers with the override file applied.
func LoadRegistry(overridesPath string) (*retailers.Registry, error) {
	registry := retailers.Builtin()
	if overridesPath == "" {
		return registry, nil
	}

	overrides, err := retailers.LoadOverrides(overridesPath)
	if err != nil {
		return nil, err
	}
	if err := registry.Apply(overrides); err != nil {
		return nil, fmt.Errorf("invalid retailer overrides: %w", err)
	}
	return registry, nil
}
