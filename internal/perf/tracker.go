package perf

import (
	"context"
	"log"
	"time"

	"github.com/jsvoboda/photo-curator/internal/database"
)

// A recent window slower than the prior one by this factor counts as a
// duration regression.
const regressionFactor = 1.5

// Failure rate increase that counts as a reliability regression.
const failureRateDelta = 0.2

// Tracker records job executions and derives trend signals from them.
// It observes the pipeline; nothing depends on it.
type Tracker struct {
	runs database.RunStore
}

// NewTracker creates a performance tracker.
func NewTracker(runs database.RunStore) *Tracker {
	return &Tracker{runs: runs}
}

// Observe records one finished job run. Best effort: a failed write is
// logged and swallowed, tracking must never fail a job.
func (t *Tracker) Observe(ctx context.Context, job *database.Job, started time.Time, items int, jobErr error) {
	sample := &database.RunSample{
		JobID:      job.ID,
		Kind:       job.Kind,
		Backend:    job.Backend,
		DurationMs: time.Since(started).Milliseconds(),
		Items:      items,
		Success:    jobErr == nil,
	}
	if jobErr != nil {
		sample.Error = jobErr.Error()
	}
	if err := t.runs.Record(ctx, sample); err != nil {
		log.Printf("warning: failed to record run sample for job %s: %v", job.ID, err)
	}
}

// Trend compares the most recent runs of a kind against the preceding
// window of equal size.
type Trend struct {
	Kind              database.JobKind
	Window            int
	RecentAvgMs       float64
	PriorAvgMs        float64
	RecentFailureRate float64
	PriorFailureRate  float64
	// Regression is set when the recent window is markedly slower or
	// failing markedly more often than the prior one.
	Regression bool
	// Conclusive is false while fewer than two full windows exist.
	Conclusive bool
}

// Trend derives the regression signal for a job kind over the given
// window size (samples per window, default 10).
func (t *Tracker) Trend(ctx context.Context, kind database.JobKind, window int) (*Trend, error) {
	if window <= 0 {
		window = 10
	}

	samples, err := t.runs.RecentByKind(ctx, kind, 2*window)
	if err != nil {
		return nil, err
	}

	trend := &Trend{Kind: kind, Window: window}
	if len(samples) < 2*window {
		return trend, nil
	}

	recent := samples[:window]
	prior := samples[window : 2*window]

	trend.RecentAvgMs, trend.RecentFailureRate = summarize(recent)
	trend.PriorAvgMs, trend.PriorFailureRate = summarize(prior)
	trend.Conclusive = true
	trend.Regression = trend.RecentAvgMs > trend.PriorAvgMs*regressionFactor ||
		trend.RecentFailureRate > trend.PriorFailureRate+failureRateDelta
	return trend, nil
}

func summarize(samples []database.RunSample) (avgMs, failureRate float64) {
	var totalMs int64
	failures := 0
	for i := range samples {
		totalMs += samples[i].DurationMs
		if !samples[i].Success {
			failures++
		}
	}
	n := float64(len(samples))
	return float64(totalMs) / n, float64(failures) / n
}
