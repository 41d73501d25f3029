package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relaySource = "retail-price-sweeper"

type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	Counts(ctx context.Context) (OutboxCounts, error)
}

// SweepAggregateID identifies one retailer within one run: "<run>:<retailer>".
func SweepAggregateID(runID uuid.UUID, retailer string) string {
	return runID.String() + ":" + retailer
}

// ParseSweepAggregateID splits an id built by SweepAggregateID. Ids of any
// other shape come back whole as the run.
func ParseSweepAggregateID(id string) (run, retailer string) {
	run, retailer, _ = strings.Cut(id, ":")
	return run, retailer
}

// StreamMessage is the JSON document stored under the "data" field of every
// stream entry.
type StreamMessage struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	RunID      string          `json:"run_id"`
	Retailer   string          `json:"retailer,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Attempt    int             `json:"attempt"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
}

func NewStreamMessage(event *OutboxEvent) (StreamMessage, error) {
	if !json.Valid(event.Payload) {
		return StreamMessage{}, fmt.Errorf("invalid payload for event %s", event.ID)
	}
	run, retailer := ParseSweepAggregateID(event.AggregateID)
	return StreamMessage{
		EventID:    event.ID.String(),
		EventType:  event.EventType,
		RunID:      run,
		Retailer:   retailer,
		OccurredAt: event.CreatedAt.UTC(),
		Attempt:    event.RetryCount + 1,
		Source:     relaySource,
		Payload:    event.Payload,
	}, nil
}

// Relay moves committed sweep events from the outbox to their Redis streams.
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen trims each stream to roughly this many entries. Zero keeps
	// everything.
	StreamMaxLen int64
}

func NewRelay(outbox OutboxRepo, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		redis:     redisClient,
		outbox:    outbox,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		maxLen:    config.StreamMaxLen,
	}
}

// Start drains the outbox every poll interval until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize,
		"stream_max_len", r.maxLen)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("failed to relay sweep events", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain keeps reading batches while they come back full, so a backlog left
// by a long Redis outage clears without waiting one interval per batch.
func (r *Relay) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		n, err := r.processBatch(ctx)
		if err != nil {
			return err
		}
		if n < r.batchSize {
			return nil
		}
	}
	return ctx.Err()
}

// processBatch relays one batch and returns how many events it read. Failed
// events are scheduled for retry and never stop the batch.
func (r *Relay) processBatch(ctx context.Context) (int, error) {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	publish, superseded := latestPerSweep(events)
	for _, event := range superseded {
		if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
			r.logger.Error("failed to retire superseded event", "event_id", event.ID, "error", err)
			continue
		}
		r.logger.Info("superseded sweep event retired",
			"event_id", event.ID,
			"aggregate_id", event.AggregateID)
	}

	relayed := 0
	for _, event := range publish {
		if err := r.processEvent(ctx, event); err != nil {
			r.logger.Error("failed to relay sweep event",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID,
				"error", err)
			continue
		}
		relayed++
	}

	r.logger.Debug("batch relayed",
		"read", len(events),
		"relayed", relayed,
		"superseded", len(superseded))
	return len(events), nil
}

// latestPerSweep keeps the newest event per aggregate and event type. A
// retailer re-swept within the same run only needs its final result on the
// stream. Order of the kept events is preserved.
func latestPerSweep(events []*OutboxEvent) (publish, superseded []*OutboxEvent) {
	newest := make(map[string]*OutboxEvent, len(events))
	for _, event := range events {
		key := event.AggregateID + "|" + event.EventType
		if cur, ok := newest[key]; !ok || !event.CreatedAt.Before(cur.CreatedAt) {
			newest[key] = event
		}
	}

	for _, event := range events {
		if newest[event.AggregateID+"|"+event.EventType] == event {
			publish = append(publish, event)
		} else {
			superseded = append(superseded, event)
		}
	}
	return publish, superseded
}

func (r *Relay) processEvent(ctx context.Context, event *OutboxEvent) error {
	id, err := r.publish(ctx, event)
	if err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to schedule retry", "event_id", event.ID, "error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("event %s published as %s but not marked processed: %w", event.ID, id, err)
	}

	run, retailer := ParseSweepAggregateID(event.AggregateID)
	r.logger.Info("sweep event relayed",
		"event_id", event.ID,
		"event_type", event.EventType,
		"run_id", run,
		"retailer", retailer,
		"stream", event.TargetStream,
		"entry_id", id)
	return nil
}

// publish appends the event to its stream and returns the entry id. Flat
// fields let consumers filter without decoding "data".
func (r *Relay) publish(ctx context.Context, event *OutboxEvent) (string, error) {
	msg, err := NewStreamMessage(event)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode stream message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: map[string]interface{}{
			"data":       string(data),
			"event_id":   msg.EventID,
			"event_type": msg.EventType,
			"run_id":     msg.RunID,
			"retailer":   msg.Retailer,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.redis.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis: %w", err)
	}
	return id, nil
}

func (r *Relay) Counts(ctx context.Context) (OutboxCounts, error) {
	return r.outbox.Counts(ctx)
}
