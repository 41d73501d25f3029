package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/retail-price-sweeper/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

// RunRecord is the persisted header of one sweep run.
type RunRecord struct {
	ID          uuid.UUID
	Status      string
	Retailers   []string
	Products    []string
	Error       *string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type ResultRepository struct {
	db *DB
}

func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) CreateRun(ctx context.Context, run RunRecord) error {
	if run.Products == nil {
		run.Products = []string{}
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO sweep_run (id, status, retailers, products, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Status, run.Retailers, run.Products, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRunStatus stamps started_at on the first transition to running and
// completed_at on any terminal status.
func (r *ResultRepository) UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, terminal bool, runErr error) error {
	var msg *string
	if runErr != nil {
		s := runErr.Error()
		msg = &s
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE sweep_run
		SET status = $1,
			error = $2,
			started_at = COALESCE(started_at, now()),
			completed_at = CASE WHEN $3 THEN now() ELSE completed_at END
		WHERE id = $4`,
		status, msg, terminal, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (r *ResultRepository) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	run := &RunRecord{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, status, retailers, products, error, created_at, started_at, completed_at
		FROM sweep_run WHERE id = $1`, id).Scan(
		&run.ID, &run.Status, &run.Retailers, &run.Products,
		&run.Error, &run.CreatedAt, &run.StartedAt, &run.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// InsertResultsTx upserts one retailer's results inside the caller's
// transaction. A rerun of the same product overwrites the earlier row.
func (r *ResultRepository) InsertResultsTx(ctx context.Context, tx pgx.Tx, runID uuid.UUID, results []models.ProductResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, res := range results {
		res := res
		var errMsg *string
		if res.Error != "" {
			errMsg = &res.Error
		}
		batch.Queue(`
			INSERT INTO sweep_result (
				run_id, retailer, search_term, name, price, seller_matches,
				link, status, score, error, checked_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (run_id, retailer, search_term) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				seller_matches = EXCLUDED.seller_matches,
				link = EXCLUDED.link,
				status = EXCLUDED.status,
				score = EXCLUDED.score,
				error = EXCLUDED.error,
				checked_at = EXCLUDED.checked_at`,
			runID, res.Retailer, res.SearchTerm, res.Name, res.Price, res.SellerMatchesRetailer,
			res.Link, string(res.Status), res.Score, errMsg, res.CheckedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close result batch: %w", err)
	}
	return nil
}

// ListResults returns a run's results ordered by retailer, then by the
// order they were checked in.
func (r *ResultRepository) ListResults(ctx context.Context, runID uuid.UUID) ([]models.ProductResult, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT retailer, search_term, name, price, seller_matches,
			link, status, score, error, checked_at
		FROM sweep_result
		WHERE run_id = $1
		ORDER BY retailer, checked_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []models.ProductResult
	for rows.Next() {
		var (
			res    models.ProductResult
			status string
			errMsg *string
		)
		if err := rows.Scan(
			&res.Retailer, &res.SearchTerm, &res.Name, &res.Price, &res.SellerMatchesRetailer,
			&res.Link, &status, &res.Score, &errMsg, &res.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Status = models.Status(status)
		if errMsg != nil {
			res.Error = *errMsg
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}
