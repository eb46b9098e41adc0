// Package outbox runs the side effects of a placed order as persisted jobs
// so failures can be retried instead of only logged.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

// Handler performs one side effect for an order.
type Handler func(ctx context.Context, order *models.Order) error

const (
	baseBackoff = time.Minute
	maxBackoff  = time.Hour
	dueBatch    = 50

	// DefaultJobTimeout bounds one handler run; it sits above the adapters'
	// own HTTP and SMTP timeouts.
	DefaultJobTimeout = 45 * time.Second
	// DefaultLease is how long a pending job may go untouched before the
	// retrier treats it as abandoned.
	DefaultLease  = 5 * time.Minute
	recordTimeout = 10 * time.Second
)

type Dispatcher struct {
	jobs        store.Outbox
	orders      store.Orders
	maxAttempts int
	jobTimeout  time.Duration
	lease       time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	handlers map[models.JobKind]Handler
}

func NewDispatcher(jobs store.Outbox, orders store.Orders, maxAttempts int) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Dispatcher{
		jobs:        jobs,
		orders:      orders,
		maxAttempts: maxAttempts,
		jobTimeout:  DefaultJobTimeout,
		lease:       DefaultLease,
		now:         time.Now,
		handlers:    make(map[models.JobKind]Handler),
	}
}

func (d *Dispatcher) Register(kind models.JobKind, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = handler
}

func (d *Dispatcher) handler(kind models.JobKind) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[kind]
	return h, ok
}

// Enqueue records one job per kind and runs them right away, in order.
// Failures stay on the job for the retrier; they never reach the caller.
// Cancelling ctx does not cut the jobs short.
func (d *Dispatcher) Enqueue(ctx context.Context, order *models.Order, kinds ...models.JobKind) {
	ctx = context.WithoutCancel(ctx)
	for _, kind := range kinds {
		now := d.now()
		job := &models.OutboxJob{
			Order:         order.ID,
			OrderID:       order.OrderID,
			Kind:          kind,
			Status:        models.JobPending,
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := d.record(ctx, func(ctx context.Context) error { return d.jobs.Insert(ctx, job) }); err != nil {
			// Without a job row the effect still runs once, it just can't be retried.
			log.Println("[OUTBOX] [ERROR] failed to record job:", order.OrderID, kind, err)
		}
		d.run(ctx, job, order)
	}
}

// RetryDue re-runs failed jobs whose backoff has elapsed, and pending jobs
// whose lease ran out, and returns how many were attempted.
func (d *Dispatcher) RetryDue(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.jobs.Due(ctx, now, now.Add(-d.lease), d.maxAttempts, dueBatch)
	if err != nil {
		return 0, err
	}

	for i := range due {
		job := &due[i]
		order, err := d.orders.FindByID(ctx, job.Order)
		if errors.Is(err, store.ErrNotFound) {
			log.Println("[OUTBOX] [WARN] order gone, abandoning job:", job.OrderID, job.Kind)
			d.markFailed(ctx, job, d.maxAttempts, err)
			continue
		}
		if err != nil {
			return i, err
		}
		d.run(ctx, job, order)
	}
	return len(due), nil
}

func (d *Dispatcher) run(ctx context.Context, job *models.OutboxJob, order *models.Order) {
	handler, ok := d.handler(job.Kind)
	if !ok {
		d.markFailed(ctx, job, d.maxAttempts, fmt.Errorf("no handler registered for %s", job.Kind))
		return
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.jobTimeout)
	err := safeRun(runCtx, handler, order)
	cancel()
	if err != nil {
		log.Println("[OUTBOX] [ERROR] job failed:", job.OrderID, job.Kind, err)
		d.markFailed(ctx, job, job.Attempts+1, err)
		return
	}

	if job.ID.IsZero() {
		return
	}
	if err := d.record(ctx, func(ctx context.Context) error { return d.jobs.MarkDone(ctx, job.ID) }); err != nil {
		log.Println("[OUTBOX] [ERROR] failed to mark job done:", job.OrderID, job.Kind, err)
	}
}

func (d *Dispatcher) markFailed(ctx context.Context, job *models.OutboxJob, attempts int, cause error) {
	if job.ID.IsZero() {
		return
	}
	next := d.now().Add(Backoff(attempts))
	err := d.record(ctx, func(ctx context.Context) error {
		return d.jobs.MarkFailed(ctx, job.ID, attempts, cause.Error(), next)
	})
	if err != nil {
		log.Println("[OUTBOX] [ERROR] failed to record job failure:", job.OrderID, job.Kind, err)
	}
}

// record writes job state on a context of its own, so an expired caller
// context never loses an outcome.
func (d *Dispatcher) record(ctx context.Context, write func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return write(ctx)
}

func safeRun(ctx context.Context, handler Handler, order *models.Order) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, order)
}

// Backoff doubles from one minute per failed attempt, capped at an hour.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
