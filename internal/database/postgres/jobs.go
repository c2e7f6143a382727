package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jsvoboda/photo-curator/internal/database"
)

// JobRepository provides the durable job table and the lease protocol.
// Claim, Heartbeat and Complete are single conditional UPDATEs keyed on the
// current status (and worker id), so races between workers always resolve
// to exactly one winner without a read-then-write window.
type JobRepository struct {
	pool *Pool
}

// NewJobRepository creates a new PostgreSQL job repository.
func NewJobRepository(pool *Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, kind, status, backend, project, payload, worker_id,
	lease_expires_at, last_heartbeat_at, progress, error, cancel_requested,
	created_at, updated_at`

// Enqueue inserts a queued job. Cluster jobs are exclusive per project: the
// insert only happens if no other cluster job for the project is queued or
// running, which closes the race between two concurrent enqueues.
func (r *JobRepository) Enqueue(
	ctx context.Context, kind database.JobKind, backend database.JobBackend, project string, payload []byte,
) (string, error) {
	id := uuid.New().String()
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	if kind == database.KindCluster {
		result, err := r.pool.Exec(ctx, `
			INSERT INTO jobs (id, kind, status, backend, project, payload)
			SELECT $1, $2, 'queued', $3, $4, $5
			WHERE NOT EXISTS (
				SELECT 1 FROM jobs
				WHERE kind = $2 AND project = $4 AND status IN ('queued', 'running')
			)
		`, id, kind, backend, project, payload)
		if err != nil {
			return "", fmt.Errorf("enqueue cluster job: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("enqueue cluster job rows affected: %w", err)
		}
		if affected == 0 {
			return "", database.ErrClusterJobActive
		}
		return id, nil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (id, kind, status, backend, project, payload)
		VALUES ($1, $2, 'queued', $3, $4, $5)
	`, id, kind, backend, project, payload)
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// NextQueued returns the oldest queued job (FIFO), or nil if none.
func (r *JobRepository) NextQueued(ctx context.Context) (*database.Job, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE status = 'queued'
		ORDER BY created_at, id
		LIMIT 1
	`, jobColumns))

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// Claim atomically transitions queued->running for this worker. The WHERE
// clause on status makes it a compare-and-set: at most one concurrent
// caller sees an affected row.
func (r *JobRepository) Claim(ctx context.Context, jobID, workerID string, leaseSeconds int) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'running',
		    worker_id = $2,
		    lease_expires_at = NOW() + make_interval(secs => $3),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
	`, jobID, workerID, leaseSeconds)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", jobID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job %s rows affected: %w", jobID, err)
	}
	return affected == 1, nil
}

// Heartbeat extends the lease and records progress, but only while this
// worker still owns the running job. The returned state tells the handler
// whether it lost the lease and whether a cancel was requested.
func (r *JobRepository) Heartbeat(
	ctx context.Context, jobID, workerID string, progress float64, leaseSeconds int,
) (database.HeartbeatState, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET progress = $3,
		    lease_expires_at = NOW() + make_interval(secs => $4),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'running' AND worker_id = $2
		RETURNING cancel_requested
	`, jobID, workerID, progress, leaseSeconds)

	var cancelRequested bool
	err := row.Scan(&cancelRequested)
	if err == sql.ErrNoRows {
		// Lease lost: recovery or another state change took the job away.
		return database.HeartbeatState{Owned: false}, nil
	}
	if err != nil {
		return database.HeartbeatState{}, fmt.Errorf("heartbeat job %s: %w", jobID, err)
	}
	return database.HeartbeatState{Owned: true, CancelRequested: cancelRequested}, nil
}

// Complete transitions running->done or running->failed and clears the
// lease. The status guard makes a second call a no-op.
func (r *JobRepository) Complete(ctx context.Context, jobID string, success bool, errMsg string) error {
	status := database.JobDone
	progress := 1.0
	var errVal sql.NullString
	if !success {
		status = database.JobFailed
		if errMsg == "cancelled" {
			status = database.JobCancelled
		}
		errVal = sql.NullString{String: errMsg, Valid: errMsg != ""}
		progress = -1 // sentinel: keep current progress
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2,
		    error = $3,
		    progress = CASE WHEN $4 >= 0 THEN $4 ELSE progress END,
		    worker_id = NULL,
		    lease_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, jobID, status, errVal, progress)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

// RequestCancel sets the cooperative cancellation flag. Running handlers
// observe it at their next heartbeat; queued jobs are cancelled directly.
func (r *JobRepository) RequestCancel(ctx context.Context, jobID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET cancel_requested = TRUE,
		    status = CASE WHEN status = 'queued' THEN 'cancelled' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'running')
	`, jobID)
	if err != nil {
		return fmt.Errorf("request cancel for job %s: %w", jobID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request cancel rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// RecoverZombies marks running jobs with expired leases as failed. This is
// the sole crash-detection mechanism; it never re-runs a job.
func (r *JobRepository) RecoverZombies(ctx context.Context, now time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    error = 'crash recovery: worker lease expired',
		    worker_id = NULL,
		    lease_expires_at = NULL,
		    updated_at = NOW()
		WHERE status = 'running' AND lease_expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("recover zombie jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recover zombie jobs rows affected: %w", err)
	}
	return int(affected), nil
}

// Get returns a job by id, or nil if it does not exist.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*database.Job, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", jobColumns), jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// List returns the most recent jobs, newest first. An empty project lists
// all projects.
func (r *JobRepository) List(ctx context.Context, project string, limit int) ([]database.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf("SELECT %s FROM jobs", jobColumns)
	args := []any{}
	if project != "" {
		query += " WHERE project = $1"
		args = append(args, project)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []database.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// DeleteTerminalBefore deletes terminal jobs older than the cutoff.
func (r *JobRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('done', 'failed', 'cancelled') AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old jobs rows affected: %w", err)
	}
	return int(affected), nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*database.Job, error) {
	var job database.Job
	var workerID sql.NullString
	var errMsg sql.NullString
	var leaseExpires, lastHeartbeat sql.NullTime

	err := row.Scan(
		&job.ID, &job.Kind, &job.Status, &job.Backend, &job.Project, &job.Payload,
		&workerID, &leaseExpires, &lastHeartbeat, &job.Progress, &errMsg,
		&job.CancelRequested, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.WorkerID = workerID.String
	job.Error = errMsg.String
	if leaseExpires.Valid {
		job.LeaseExpiresAt = &leaseExpires.Time
	}
	if lastHeartbeat.Valid {
		job.LastHeartbeatAt = &lastHeartbeat.Time
	}
	return &job, nil
}
