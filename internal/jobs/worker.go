package jobs

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/export"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/pipeline"
	"github.com/maltedev/retail-price-sweeper/internal/queue"
)

// StartWorker executes queued runs one at a time until ctx is done or the
// queue is closed.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.cfg.Queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				m.logger.Info("job worker stopping")
				return
			}
			m.logger.Error("failed to pop run", "error", err)
			continue
		}

		id, err := uuid.Parse(task.RunID)
		if err != nil {
			m.logger.Error("invalid run id in queue", "run_id", task.RunID, "error", err)
			continue
		}
		m.processRun(ctx, id)
	}
}

func (m *Manager) processRun(parent context.Context, id uuid.UUID) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	m.mu.Lock()
	state, ok := m.runs[id]
	if !ok || state.run.Status != StatusQueued {
		m.mu.Unlock()
		return
	}
	started := m.now()
	state.run.Status = StatusRunning
	state.run.StartedAt = &started
	state.cancel = cancel
	rets, entries := state.retailers, state.entries
	m.mu.Unlock()

	m.persistStatus(parent, id, StatusRunning, nil)
	m.logger.Info("processing run", "id", id, "retailers", len(rets), "products", len(entries))

	var failures []error
	cancelled := false

	for _, ret := range rets {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		m.mu.Lock()
		state.run.Current = ret.Key
		m.mu.Unlock()

		collector, err := m.cfg.Sweeper.Sweep(ctx, ret, entries, func(models.ProductResult) {
			m.mu.Lock()
			state.run.Checked++
			m.mu.Unlock()
		})

		if collector != nil {
			m.mu.Lock()
			state.collectors = append(state.collectors, collector)
			m.mu.Unlock()
		}

		if err != nil {
			if pipeline.IsCancellation(err) {
				cancelled = true
				break
			}
			m.logger.Error("retailer sweep failed", "id", id, "retailer", ret.Key, "error", err)
			failures = append(failures, err)
			continue
		}

		if m.cfg.Publisher != nil {
			if err := m.cfg.Publisher.PublishSweepCompleted(parent, id, collector); err != nil {
				m.logger.Error("failed to publish sweep", "id", id, "retailer", ret.Key, "error", err)
			}
		}
	}

	m.export(state)

	status, runErr := StatusCompleted, errors.Join(failures...)
	switch {
	case cancelled:
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}

	m.mu.Lock()
	m.finishLocked(state, status, runErr)
	m.mu.Unlock()

	m.persistStatus(parent, id, status, runErr)
	m.logger.Info("run finished", "id", id, "status", status)
}

// export writes the spreadsheet for whatever the run collected.
func (m *Manager) export(state *runState) {
	if m.cfg.ExportDir == "" {
		return
	}

	m.mu.Lock()
	collectors := append([]*aggregate.Collector(nil), state.collectors...)
	started := m.now()
	if state.run.StartedAt != nil {
		started = *state.run.StartedAt
	}
	m.mu.Unlock()

	if len(collectors) == 0 {
		return
	}

	byKey := make(map[string]*aggregate.Collector, len(collectors))
	for _, c := range collectors {
		byKey[c.Retailer()] = c
	}

	columns := make([]aggregate.Column, 0, len(state.retailers))
	for _, r := range state.retailers {
		col := aggregate.Column{Title: r.Column}
		if c, ok := byKey[r.Key]; ok {
			col.Reduced = c.Reduce()
		}
		columns = append(columns, col)
	}

	keys := make([]string, len(state.entries))
	for i, e := range state.entries {
		keys[i] = e.Key()
	}

	now := m.now()
	path, err := export.WriteXLSX(m.cfg.ExportDir, aggregate.Table(keys, columns, now.Sub(started)), now)
	if err != nil {
		m.logger.Error("failed to export spreadsheet", "id", state.run.ID, "error", err)
		return
	}

	m.mu.Lock()
	state.run.ExportPath = path
	m.mu.Unlock()
	m.logger.Info("spreadsheet exported", "id", state.run.ID, "path", path)
}
