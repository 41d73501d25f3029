// Package antiblock owns the browsing session of a retailer sweep and recycles
// it when the retailer appears to be blocking the sweep.
package antiblock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/ratelimit"
)

type State string

const (
	StateActive     State = "ACTIVE"
	StateCooling    State = "COOLING"
	StateRestarting State = "RESTARTING"
)

const DefaultRestartAfter = 5

var ErrClosed = errors.New("controller closed")

type Options struct {
	// RestartAfter is the number of consecutive products without a valid
	// match that forces a fresh session.
	RestartAfter    int
	RestartDelayMin time.Duration
	RestartDelayMax time.Duration
	// Cooler spaces consecutive products. Nil disables cooling.
	Cooler     *ratelimit.Adaptive
	Identities []fetch.Identity
}

type Controller struct {
	mu       sync.Mutex
	factory  fetch.SessionFactory
	opts     Options
	session  fetch.Session
	next     int
	failures int
	restarts int
	state    State
	closed   bool
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

func New(factory fetch.SessionFactory, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RestartAfter <= 0 {
		opts.RestartAfter = DefaultRestartAfter
	}
	if len(opts.Identities) == 0 {
		opts.Identities = []fetch.Identity{{}}
	}
	return &Controller{
		factory: factory,
		opts:    opts,
		state:   StateActive,
		sleep:   ratelimit.Sleep,
		logger:  logger.With("component", "antiblock"),
	}
}

// Start opens the first session. Fetch calls it lazily when needed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open(ctx)
}

func (c *Controller) open(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.session != nil {
		return nil
	}

	id := c.opts.Identities[c.next%len(c.opts.Identities)]
	c.next++

	s, err := c.factory(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	c.session = s
	c.logger.Debug("session opened", "user_agent", id.UserAgent, "viewport_width", id.ViewportWidth)
	return nil
}

// Fetch satisfies fetch.Fetcher using the current session.
func (c *Controller) Fetch(ctx context.Context, url string) (*fetch.Page, error) {
	c.mu.Lock()
	if err := c.open(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	s := c.session
	c.mu.Unlock()

	return s.Fetch(ctx, url)
}

// Settle records the outcome of one product. A failure streak reaching the
// threshold restarts the session before the next product; otherwise the
// controller cools down for the retailer's delay.
func (c *Controller) Settle(ctx context.Context, status models.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if status.IsFailure() {
		c.failures++
		if c.opts.Cooler != nil {
			c.opts.Cooler.RecordError()
		}
	} else {
		c.failures = 0
		if c.opts.Cooler != nil {
			c.opts.Cooler.RecordSuccess()
		}
	}

	if c.failures >= c.opts.RestartAfter {
		return c.restart(ctx)
	}

	if c.opts.Cooler == nil {
		return nil
	}
	c.state = StateCooling
	defer func() { c.state = StateActive }()
	return c.opts.Cooler.Pause(ctx)
}

func (c *Controller) restart(ctx context.Context) error {
	c.state = StateRestarting
	c.logger.Warn("restarting session after consecutive failures",
		"failures", c.failures,
		"restarts", c.restarts)

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.logger.Warn("failed to close session", "error", err)
		}
		c.session = nil
	}

	c.failures = 0
	c.restarts++
	if c.opts.Cooler != nil {
		c.opts.Cooler.Reset()
	}

	if err := c.sleep(ctx, ratelimit.Between(c.opts.RestartDelayMin, c.opts.RestartDelayMax)); err != nil {
		c.state = StateActive
		return err
	}

	err := c.open(ctx)
	c.state = StateActive
	return err
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

func (c *Controller) Restarts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restarts
}

func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}
