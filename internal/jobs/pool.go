package jobs

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jsvoboda/photo-curator/internal/config"
	"github.com/jsvoboda/photo-curator/internal/database"
	"github.com/jsvoboda/photo-curator/internal/perf"
)

// Janitor housekeeping runs at startup and then once a day.
const janitorInterval = 24 * time.Hour

// Pool runs claimed jobs on a bounded set of slots. Jobs are claimed in
// creation order; completion order is unconstrained. The claim is a single
// conditional update in the store, so concurrent pools and slots race
// safely.
type Pool struct {
	store    database.JobStore
	tags     database.TagStore
	tracker  *perf.Tracker
	events   *Broadcaster
	cfg      config.WorkerConfig
	handlers map[database.JobKind]Handler
	workerID string
	wg       sync.WaitGroup
}

// NewPool creates a worker pool. Each pool instance gets a unique worker
// id; slot numbers are appended per claim so lease ownership is traceable
// to one goroutine.
func NewPool(store database.JobStore, tags database.TagStore, tracker *perf.Tracker, events *Broadcaster, cfg config.WorkerConfig) *Pool {
	return &Pool{
		store:    store,
		tags:     tags,
		tracker:  tracker,
		events:   events,
		cfg:      cfg,
		handlers: make(map[database.JobKind]Handler),
		workerID: uuid.NewString(),
	}
}

// Register installs the handler for a job kind.
func (p *Pool) Register(kind database.JobKind, h Handler) {
	p.handlers[kind] = h
}

// Start recovers zombie jobs, then launches the slot loops and the
// janitor. It returns immediately; use Wait to block until ctx ends.
func (p *Pool) Start(ctx context.Context) error {
	recovered, err := p.store.RecoverZombies(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("crash recovery: %w", err)
	}
	if recovered > 0 {
		log.Printf("crash recovery: marked %d orphaned jobs as failed", recovered)
	}

	for slot := 0; slot < p.cfg.Slots; slot++ {
		p.wg.Add(1)
		go func(slot int) {
			defer p.wg.Done()
			p.slotLoop(ctx, fmt.Sprintf("%s-%d", p.workerID, slot))
		}(slot)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.janitorLoop(ctx)
	}()
	return nil
}

// Wait blocks until all slots and the janitor have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// slotLoop polls for the oldest queued job and tries to claim it. Failed
// claims mean another slot won the race; the loop just polls again.
func (p *Pool) slotLoop(ctx context.Context, workerID string) {
	poll := time.Duration(p.cfg.PollMillis) * time.Millisecond

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.store.NextQueued(ctx)
		if err != nil {
			log.Printf("worker %s: queue poll failed: %v", workerID, err)
			p.sleep(ctx, poll)
			continue
		}
		if job == nil {
			p.sleep(ctx, poll)
			continue
		}

		claimed, err := p.store.Claim(ctx, job.ID, workerID, p.cfg.LeaseSeconds)
		if err != nil {
			log.Printf("worker %s: claim of job %s failed: %v", workerID, job.ID, err)
			p.sleep(ctx, poll)
			continue
		}
		if !claimed {
			continue
		}

		p.runJob(ctx, workerID, job)
	}
}

// runJob dispatches one claimed job to its handler and records the
// terminal outcome. Handler errors and panics are local to the job and
// never crash the pool.
func (p *Pool) runJob(ctx context.Context, workerID string, job *database.Job) {
	started := time.Now()

	rc := &RunContext{
		Job:          job,
		store:        p.store,
		events:       p.events,
		workerID:     workerID,
		leaseSeconds: p.cfg.LeaseSeconds,
		interval:     time.Duration(p.cfg.HeartbeatSeconds) * time.Second,
		lastBeat:     started,
	}

	err := p.dispatch(ctx, rc)

	switch err {
	case nil:
		if cerr := p.store.Complete(ctx, job.ID, true, ""); cerr != nil {
			log.Printf("worker %s: completing job %s failed: %v", workerID, job.ID, cerr)
		}
	case ErrLeaseLost:
		// The job belongs to someone else now; recording a terminal state
		// here would race the new owner.
		log.Printf("worker %s: abandoned job %s after lease loss", workerID, job.ID)
	default:
		msg := err.Error()
		if cerr := p.store.Complete(ctx, job.ID, false, msg); cerr != nil {
			log.Printf("worker %s: failing job %s failed: %v", workerID, job.ID, cerr)
		}
	}

	if err != ErrLeaseLost {
		p.tracker.Observe(ctx, job, started, rc.items, err)
	}

	status := database.JobDone
	switch err {
	case nil:
	case ErrCancelled:
		status = database.JobCancelled
	case ErrLeaseLost:
		return
	default:
		status = database.JobFailed
	}
	event := Event{Type: EventJob, JobID: job.ID, Project: job.Project, Status: string(status), Progress: 1}
	if err != nil {
		event.Message = err.Error()
	}
	p.events.Send(event)
}

func (p *Pool) dispatch(ctx context.Context, rc *RunContext) (err error) {
	handler, ok := p.handlers[rc.Job.Kind]
	if !ok {
		return fmt.Errorf("no handler registered for kind %q", rc.Job.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in %s handler for job %s: %v\n%s", rc.Job.Kind, rc.Job.ID, r, debug.Stack())
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler.Run(ctx, rc)
}

// janitorLoop sweeps expired tag suppressions and deletes terminal jobs
// past retention, at startup and then daily.
func (p *Pool) janitorLoop(ctx context.Context) {
	p.janitorSweep(ctx)

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.janitorSweep(ctx)
		}
	}
}

func (p *Pool) janitorSweep(ctx context.Context) {
	now := time.Now()

	if p.tags != nil {
		swept, err := p.tags.SweepExpired(ctx, now)
		if err != nil {
			log.Printf("janitor: sweeping tag decisions failed: %v", err)
		} else if swept > 0 {
			log.Printf("janitor: swept %d expired tag decisions", swept)
		}
	}

	cutoff := now.AddDate(0, 0, -p.cfg.RetentionDays)
	deleted, err := p.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		log.Printf("janitor: job retention cleanup failed: %v", err)
	} else if deleted > 0 {
		log.Printf("janitor: deleted %d jobs past retention", deleted)
	}
}

// sleep waits for the poll interval with jitter so idle slots do not
// stampede the store in lockstep.
func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	jittered := d + time.Duration(rand.Int63n(int64(d)/2+1))
	select {
	case <-ctx.Done():
	case <-time.After(jittered):
	}
}
