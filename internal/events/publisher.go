// Package events records finished retailer sweeps and announces them through
// the transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/database"
	"github.com/maltedev/retail-price-sweeper/internal/models"
)

type EventType string

const (
	EventTypeSweepCompleted EventType = "SWEEP_COMPLETED"

	AggregateTypeRetailerSweep = "retailer_sweep"
	Source                     = "sweeper"
)

type SweepCompletedPayload struct {
	EventID   string                `json:"event_id"`
	EventType string                `json:"event_type"`
	Timestamp time.Time             `json:"timestamp"`
	RunID     string                `json:"run_id"`
	Retailer  string                `json:"retailer"`
	Total     int                   `json:"total"`
	Counts    map[models.Status]int `json:"counts"`
	Prices    *aggregate.ReducedMap `json:"prices"`
	Source    string                `json:"source"`
}

// NewSweepCompleted summarises a collector into an event payload.
func NewSweepCompleted(runID uuid.UUID, c *aggregate.Collector, now time.Time) *SweepCompletedPayload {
	return &SweepCompletedPayload{
		EventID:   uuid.New().String(),
		EventType: string(EventTypeSweepCompleted),
		Timestamp: now,
		RunID:     runID.String(),
		Retailer:  c.Retailer(),
		Total:     c.Len(),
		Counts:    c.Counts(),
		Prices:    c.Reduce(),
		Source:    Source,
	}
}

// AggregateID identifies one retailer within one run.
func AggregateID(runID uuid.UUID, retailer string) string {
	return database.SweepAggregateID(runID, retailer)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type resultWriter interface {
	InsertResultsTx(ctx context.Context, tx pgx.Tx, runID uuid.UUID, results []models.ProductResult) error
}

type outboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher writes a retailer's results and its SWEEP_COMPLETED event in one
// transaction.
type Publisher struct {
	db      txRunner
	results resultWriter
	outbox  outboxWriter
	stream  string
	logger  *slog.Logger
	now     func() time.Time
}

func NewPublisher(db *database.DB, stream string, logger *slog.Logger) *Publisher {
	return newPublisher(db, database.NewResultRepository(db), database.NewOutboxRepository(db), stream, logger)
}

func newPublisher(db txRunner, results resultWriter, outbox outboxWriter, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultTargetStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		db:      db,
		results: results,
		outbox:  outbox,
		stream:  stream,
		logger:  logger.With("component", "event_publisher"),
		now:     time.Now,
	}
}

func (p *Publisher) PublishSweepCompleted(ctx context.Context, runID uuid.UUID, c *aggregate.Collector) error {
	payload := NewSweepCompleted(runID, c, p.now())

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &database.OutboxEvent{
		AggregateType: AggregateTypeRetailerSweep,
		AggregateID:   AggregateID(runID, c.Retailer()),
		EventType:     string(EventTypeSweepCompleted),
		Payload:       data,
		TargetStream:  p.stream,
	}

	err = p.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := p.results.InsertResultsTx(ctx, tx, runID, c.Results()); err != nil {
			return err
		}
		if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"run_id", payload.RunID,
		"retailer", payload.Retailer,
		"outbox_id", event.ID,
	)

	return nil
}
