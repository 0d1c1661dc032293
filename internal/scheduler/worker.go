// Package scheduler runs durable, deadline-based jobs.  Jobs live in the
// database, so a restart never loses one; the worker polls for due jobs,
// leases them, runs the handler and either completes or reschedules them.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// JobStore is the durable queue behind the worker.  *repository.Store
// implements it on the hold_jobs table.
type JobStore interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.HoldJob, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, next time.Time, reason string) error
}

// Handler runs one job.  Returning an error schedules another attempt.
type Handler func(ctx context.Context, job model.HoldJob) error

// Config tunes the polling loop.
type Config struct {
	Interval    time.Duration // pause between polls when nothing was due
	Batch       int           // jobs claimed per poll
	Lease       time.Duration // how long a claim hides a job from other workers
	BaseBackoff time.Duration // first retry delay
	MaxBackoff  time.Duration // retry delay cap
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Batch <= 0 {
		c.Batch = 50
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	return c
}

// Worker drains due jobs.  Several workers may share one store; leases keep
// them from running the same job concurrently, and delivery is at least
// once, so handlers must be idempotent.
type Worker struct {
	name   string
	jobs   JobStore
	handle Handler
	cfg    Config

	Now func() time.Time
}

// NewWorker builds a worker.  name prefixes its log lines.
func NewWorker(name string, jobs JobStore, handle Handler, cfg Config) *Worker {
	return &Worker{name: name, jobs: jobs, handle: handle, cfg: cfg.withDefaults(), Now: time.Now}
}

// Run polls until ctx is cancelled.  Store errors are logged and retried
// on the next tick; Run itself only returns when ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("%s: started (interval=%s batch=%d lease=%s)", w.name, w.cfg.Interval, w.cfg.Batch, w.cfg.Lease)
	for {
		n, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("%s: poll failed: %v", w.name, err)
		}
		// A full batch means more work is probably waiting.
		wait := w.cfg.Interval
		if err == nil && n >= w.cfg.Batch {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			log.Printf("%s: stopped", w.name)
			return nil
		case <-t.C:
		}
	}
}

// RunOnce claims one batch of due jobs and runs them in order.  It returns
// how many jobs were claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.jobs.ClaimDue(ctx, w.Now(), w.cfg.Lease, w.cfg.Batch)
	if err != nil {
		return 0, err
	}
	for _, j := range jobs {
		if ctx.Err() != nil {
			// Unrun claims become visible again once their lease lapses.
			return len(jobs), ctx.Err()
		}
		w.runJob(ctx, j)
	}
	return len(jobs), nil
}

func (w *Worker) runJob(ctx context.Context, j model.HoldJob) {
	err := w.safeHandle(ctx, j)
	if err == nil {
		if cerr := w.jobs.Complete(ctx, j.ID); cerr != nil {
			// The lease lapses and the job runs again; handlers are idempotent.
			log.Printf("%s: complete job %s: %v", w.name, j.ID, cerr)
		}
		return
	}
	next := w.Now().Add(Backoff(j.Attempts, w.cfg.BaseBackoff, w.cfg.MaxBackoff))
	log.Printf("%s: job %s (booking %d) attempt %d failed: %v; retry at %s",
		w.name, j.ID, j.BookingID, j.Attempts, err, next.UTC().Format(time.RFC3339))
	if rerr := w.jobs.Retry(ctx, j.ID, next, err.Error()); rerr != nil && !errors.Is(rerr, repository.ErrJobNotFound) {
		log.Printf("%s: reschedule job %s: %v", w.name, j.ID, rerr)
	}
}

func (w *Worker) safeHandle(ctx context.Context, j model.HoldJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("panic in job handler")
			log.Printf("%s: job %s panicked: %v", w.name, j.ID, r)
		}
	}()
	return w.handle(ctx, j)
}

// Backoff returns base·2^(attempts-1), capped at max.
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
