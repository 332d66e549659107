package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vitalislabs/vitalis/internal/adapters/mq/queue"
	"github.com/vitalislabs/vitalis/internal/domain/model"
	"github.com/vitalislabs/vitalis/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.FormatText); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
	os.Exit(m.Run())
}

// countingEvaluator records processed triggers and can fail on demand.
type countingEvaluator struct {
	mu   sync.Mutex
	seen []string
	fail bool
}

func (e *countingEvaluator) Evaluate(_ context.Context, t queue.Trigger) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, t.TriggerID)
	if e.fail {
		return errors.New("evaluation broke")
	}
	return nil
}

func (e *countingEvaluator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seen)
}

func trigger(id string) queue.Trigger {
	return queue.Trigger{TriggerID: id, UserID: "user-1", Kind: model.TriggerWearableSync}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_ProcessesTriggers(t *testing.T) {
	q := queue.NewInMemoryQueue()
	defer q.Close()
	ev := &countingEvaluator{}
	w := NewWorker(q, ev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	q.Enqueue(ctx, trigger("t1"))
	q.Enqueue(ctx, trigger("t2"))
	waitFor(t, func() bool { return ev.count() == 2 })

	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestWorker_ContinuesAfterFailure(t *testing.T) {
	q := queue.NewInMemoryQueue()
	defer q.Close()
	ev := &countingEvaluator{fail: true}
	w := NewWorker(q, ev, WithName("flaky"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	q.Enqueue(ctx, trigger("t1"))
	q.Enqueue(ctx, trigger("t2"))
	waitFor(t, func() bool { return ev.count() == 2 })

	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestPool_StartStop(t *testing.T) {
	q := queue.NewInMemoryQueue()
	defer q.Close()
	ev := &countingEvaluator{}
	p := NewPool(3, q, ev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	for i := 0; i < 10; i++ {
		q.Enqueue(ctx, trigger("t"))
	}
	waitFor(t, func() bool { return ev.count() == 10 })

	p.Stop()
}
