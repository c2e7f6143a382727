package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// ErrCancelled aborts a handler after a cooperative cancel request.
var ErrCancelled = errors.New("cancelled")

// ErrLeaseLost aborts a handler whose lease was reclaimed. The job no
// longer belongs to this worker and must not be completed by it.
var ErrLeaseLost = errors.New("lease lost")

// Handler executes jobs of one kind.
type Handler interface {
	Run(ctx context.Context, rc *RunContext) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, rc *RunContext) error

func (f HandlerFunc) Run(ctx context.Context, rc *RunContext) error {
	return f(ctx, rc)
}

// RunContext is handed to a handler for one claimed job. Handlers call
// Heartbeat at their suspension points: it renews the lease, reports
// progress and surfaces cancellation.
type RunContext struct {
	Job *database.Job

	store        database.JobStore
	events       *Broadcaster
	workerID     string
	leaseSeconds int
	interval     time.Duration
	lastBeat     time.Time
	items        int
}

// AddItems counts work items the handler has processed. The count ends up
// in the run sample recorded for the job.
func (rc *RunContext) AddItems(n int) {
	rc.items += n
}

// Heartbeat renews the lease and reports progress. Returns ErrCancelled
// when a cancel was requested and ErrLeaseLost when another process took
// the job over; transient store errors are logged and swallowed, the
// handler keeps its current lease and retries at the next interval.
func (rc *RunContext) Heartbeat(ctx context.Context, progress float64) error {
	rc.lastBeat = time.Now()

	state, err := rc.store.Heartbeat(ctx, rc.Job.ID, rc.workerID, progress, rc.leaseSeconds)
	if err != nil {
		log.Printf("warning: heartbeat for job %s failed: %v", rc.Job.ID, err)
		return nil
	}
	if !state.Owned {
		return ErrLeaseLost
	}
	if state.CancelRequested {
		return ErrCancelled
	}

	rc.events.Send(Event{
		Type:     EventJob,
		JobID:    rc.Job.ID,
		Project:  rc.Job.Project,
		Status:   string(database.JobRunning),
		Progress: progress,
	})
	return nil
}

// MaybeHeartbeat heartbeats only when the heartbeat interval has elapsed
// since the last one. Item loops call this per item so progress reporting
// is time-bound, not item-bound.
func (rc *RunContext) MaybeHeartbeat(ctx context.Context, progress float64) error {
	if time.Since(rc.lastBeat) < rc.interval {
		return nil
	}
	return rc.Heartbeat(ctx, progress)
}

// Events exposes the broadcaster so handlers can publish domain
// notifications (cluster or suggestion changes).
func (rc *RunContext) Events() *Broadcaster {
	return rc.events
}
