package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/antiblock"
	"github.com/maltedev/retail-price-sweeper/internal/config"
	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/ratelimit"
	"github.com/maltedev/retail-price-sweeper/internal/retailers"
	"github.com/maltedev/retail-price-sweeper/internal/retry"
)

type Settings struct {
	Threshold       float64
	RestartAfter    int
	RestartDelayMin time.Duration
	RestartDelayMax time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	Identities      []fetch.Identity
}

func SettingsFromConfig(cfg config.ScraperConfig) Settings {
	return Settings{
		Threshold:       cfg.MatchThreshold,
		RestartAfter:    cfg.RestartAfter,
		RestartDelayMin: cfg.RestartDelayMin,
		RestartDelayMax: cfg.RestartDelayMax,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		Identities:      cfg.Identities(),
	}
}

// ErrSessionStart means the first browsing session of a sweep could not be
// opened, so no product was attempted.
var ErrSessionStart = errors.New("failed to start session")

// FactoryFunc yields the session constructor for a retailer's fetch mode.
type FactoryFunc func(mode fetch.Mode) (fetch.SessionFactory, error)

// Runner sweeps whole retailers, one at a time, each with its own session.
type Runner struct {
	settings Settings
	factory  FactoryFunc
	store    *aggregate.Store
	logger   *slog.Logger
}

// NewRunner wires a runner. A nil store skips writing result files.
func NewRunner(settings Settings, factory FactoryFunc, store *aggregate.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		settings: settings,
		factory:  factory,
		store:    store,
		logger:   logger,
	}
}

func (r *Runner) Sweep(ctx context.Context, ret retailers.Retailer, entries []models.CatalogEntry, onResult func(models.ProductResult)) (*aggregate.Collector, error) {
	factory, err := r.factory(ret.Mode)
	if err != nil {
		return nil, fmt.Errorf("retailer %s: %w", ret.Key, err)
	}

	ctrl := antiblock.New(factory, antiblock.Options{
		RestartAfter:    r.settings.RestartAfter,
		RestartDelayMin: r.settings.RestartDelayMin,
		RestartDelayMax: r.settings.RestartDelayMax,
		Cooler:          ratelimit.NewAdaptive(ret.Delay.Min, ret.Delay.Max),
		Identities:      r.settings.Identities,
	}, r.logger.With("retailer", ret.Key))

	if err := ctrl.Start(ctx); err != nil {
		if closeErr := ctrl.Close(); closeErr != nil {
			r.logger.Warn("failed to close controller", "retailer", ret.Key, "error", closeErr)
		}
		return nil, fmt.Errorf("retailer %s: %w: %w", ret.Key, ErrSessionStart, err)
	}

	sw := New(ret, ctrl, Options{
		Threshold: r.settings.Threshold,
		Retry: retry.Policy{
			MaxAttempts: r.settings.MaxRetries,
			Backoff:     retry.Linear(r.settings.RetryDelay),
		},
		OnResult: onResult,
	}, r.logger)

	collector, runErr := sw.Run(ctx, entries)

	if r.store != nil {
		if err := r.store.Save(collector); err != nil {
			r.logger.Error("failed to save results", "retailer", ret.Key, "error", err)
		}
	}
	return collector, runErr
}
