package postgres

import (
	"context"
	"fmt"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// RunRepository records job executions for performance tracking.
type RunRepository struct {
	pool *Pool
}

// NewRunRepository creates a new PostgreSQL run repository.
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// Record stores one job run sample.
func (r *RunRepository) Record(ctx context.Context, sample *database.RunSample) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO job_runs (job_id, kind, backend, duration_ms, items, success, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sample.JobID, sample.Kind, sample.Backend, sample.DurationMs,
		sample.Items, sample.Success, sample.Error)
	if err != nil {
		return fmt.Errorf("record job run: %w", err)
	}
	return nil
}

// RecentByKind returns the newest samples for a job kind, newest first.
func (r *RunRepository) RecentByKind(ctx context.Context, kind database.JobKind, limit int) ([]database.RunSample, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, kind, backend, duration_ms, items, success, error, created_at
		FROM job_runs
		WHERE kind = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var samples []database.RunSample
	for rows.Next() {
		var s database.RunSample
		err := rows.Scan(&s.ID, &s.JobID, &s.Kind, &s.Backend, &s.DurationMs,
			&s.Items, &s.Success, &s.Error, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run samples: %w", err)
	}
	return samples, nil
}
