// Package worker runs evaluation triggers off the queue. Workers only
// move triggers; per-user serialization is owned by the evaluator so
// synchronous (HTTP) and asynchronous (queued) runs share one lock.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vitalislabs/vitalis/internal/adapters/mq/queue"
	"github.com/vitalislabs/vitalis/pkg/logger"
	"github.com/vitalislabs/vitalis/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 4
	workerShutdownTimeout = 5 * time.Second
)

// Evaluator runs one user's full evaluation pipeline for a trigger.
type Evaluator interface {
	Evaluate(ctx context.Context, t queue.Trigger) error
}

// Dequeuer defines how workers receive triggers.
type Dequeuer interface {
	Dequeue(ctx context.Context) <-chan queue.Trigger
}

// Worker consumes triggers and hands them to the evaluator.
type Worker struct {
	queue     Dequeuer
	evaluator Evaluator
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Dequeuer, ev Evaluator, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		evaluator: ev,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	triggers := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-triggers:
			if !ok {
				return
			}
			start := time.Now()
			err := w.evaluator.Evaluate(ctx, t)
			metrics.RecordEvaluationLatency(time.Since(start).Seconds())
			if err != nil {
				metrics.RecordEvaluationFailure()
				w.logger.Error(ctx, "evaluation failed",
					logger.String("trigger_id", t.TriggerID),
					logger.String("user_id", t.UserID),
					logger.String("kind", string(t.Kind)),
					logger.Error(err),
				)
				continue
			}
			metrics.RecordEvaluation()
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker
	logger  logger.Logger
}

// NewPool creates a worker pool.
func NewPool(workerCount int, q Dequeuer, ev Evaluator) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(q, ev, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop shuts down all workers, bounded by the shutdown timeout.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.String("worker", w.name))
		}
	}
}
