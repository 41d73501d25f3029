// Package jobs queues sweep runs and executes them one at a time.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/catalog"
	"github.com/maltedev/retail-price-sweeper/internal/database"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/queue"
	"github.com/maltedev/retail-price-sweeper/internal/retailers"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunFinished = errors.New("run already finished")
	ErrNoProducts  = errors.New("no catalog entries selected")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request selects retailers and, optionally, products by code.
type Request struct {
	Retailers []string `json:"retailers"`
	Products  []string `json:"products"`
}

type Run struct {
	ID          uuid.UUID  `json:"id"`
	Retailers   []string   `json:"retailers"`
	Products    []string   `json:"products,omitempty"`
	Status      Status     `json:"status"`
	Current     string     `json:"current_retailer,omitempty"`
	Checked     int        `json:"checked"`
	Total       int        `json:"total"`
	ExportPath  string     `json:"export_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Sweeper runs one retailer over a list of entries.
type Sweeper interface {
	Sweep(ctx context.Context, ret retailers.Retailer, entries []models.CatalogEntry, onResult func(models.ProductResult)) (*aggregate.Collector, error)
}

type RunStore interface {
	CreateRun(ctx context.Context, run database.RunRecord) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, terminal bool, runErr error) error
}

type Publisher interface {
	PublishSweepCompleted(ctx context.Context, runID uuid.UUID, c *aggregate.Collector) error
}

// Config wires a Manager. Store, Publisher and ExportDir are optional.
type Config struct {
	Registry  *retailers.Registry
	Catalog   []models.CatalogEntry
	Sweeper   Sweeper
	Queue     queue.Queue
	Store     RunStore
	Publisher Publisher
	ExportDir string
}

type runState struct {
	run        Run
	retailers  []retailers.Retailer
	entries    []models.CatalogEntry
	collectors []*aggregate.Collector
	cancel     context.CancelFunc
}

type Manager struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	runs map[uuid.UUID]*runState
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "job_manager"),
		now:    time.Now,
		runs:   make(map[uuid.UUID]*runState),
	}
}

// Submit validates the request and queues a run.
func (m *Manager) Submit(ctx context.Context, req Request) (*Run, error) {
	rets, err := m.cfg.Registry.Resolve(req.Retailers)
	if err != nil {
		return nil, err
	}

	entries := catalog.Select(m.cfg.Catalog, req.Products)
	if len(entries) == 0 {
		return nil, ErrNoProducts
	}

	keys := make([]string, len(rets))
	for i, r := range rets {
		keys[i] = r.Key
	}

	state := &runState{
		run: Run{
			ID:        uuid.New(),
			Retailers: keys,
			Products:  req.Products,
			Status:    StatusQueued,
			Total:     len(entries) * len(rets),
			CreatedAt: m.now(),
		},
		retailers: rets,
		entries:   entries,
	}

	if m.cfg.Store != nil {
		record := database.RunRecord{
			ID:        state.run.ID,
			Status:    string(StatusQueued),
			Retailers: keys,
			Products:  req.Products,
			CreatedAt: state.run.CreatedAt,
		}
		if err := m.cfg.Store.CreateRun(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	m.mu.Lock()
	m.runs[state.run.ID] = state
	m.mu.Unlock()

	if err := m.cfg.Queue.Push(&queue.Task{RunID: state.run.ID.String(), CreatedAt: state.run.CreatedAt}); err != nil {
		m.mu.Lock()
		delete(m.runs, state.run.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue run: %w", err)
	}

	m.logger.Info("run queued", "id", state.run.ID, "retailers", keys, "products", len(entries))

	run := state.run
	return &run, nil
}

func (m *Manager) Get(id uuid.UUID) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	run := state.run
	return &run, nil
}

// List returns runs newest first.
func (m *Manager) List() []Run {
	m.mu.Lock()
	runs := make([]Run, 0, len(m.runs))
	for _, s := range m.runs {
		runs = append(runs, s.run)
	}
	m.mu.Unlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

// Cancel drops a queued run or cancels the context of a running one. A
// running run stops before its next product.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*Run, error) {
	m.mu.Lock()
	state, ok := m.runs[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrRunNotFound
	}

	switch {
	case state.run.Status.Terminal():
		m.mu.Unlock()
		return nil, ErrRunFinished
	case state.run.Status == StatusQueued:
		m.cfg.Queue.Remove(id.String())
		m.finishLocked(state, StatusCancelled, nil)
		run := state.run
		m.mu.Unlock()
		m.persistStatus(ctx, id, StatusCancelled, nil)
		m.logger.Info("queued run cancelled", "id", id)
		return &run, nil
	default:
		if state.cancel != nil {
			state.cancel()
		}
		run := state.run
		m.mu.Unlock()
		m.logger.Info("run cancellation requested", "id", id)
		return &run, nil
	}
}

// Results returns each finished retailer's reduced map, keyed by retailer.
func (m *Manager) Results(id uuid.UUID) (map[string]*aggregate.ReducedMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	out := make(map[string]*aggregate.ReducedMap, len(state.collectors))
	for _, c := range state.collectors {
		out[c.Retailer()] = c.Reduce()
	}
	return out, nil
}

func (m *Manager) finishLocked(state *runState, status Status, runErr error) {
	now := m.now()
	state.run.Status = status
	state.run.Current = ""
	state.run.CompletedAt = &now
	if runErr != nil {
		state.run.Error = runErr.Error()
	}
	state.cancel = nil
}

func (m *Manager) persistStatus(ctx context.Context, id uuid.UUID, status Status, runErr error) {
	if m.cfg.Store == nil {
		return
	}
	if err := m.cfg.Store.UpdateRunStatus(ctx, id, string(status), status.Terminal(), runErr); err != nil {
		m.logger.Error("failed to persist run status", "id", id, "status", status, "error", err)
	}
}
