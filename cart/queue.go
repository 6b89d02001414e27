package cart

import (
	"context"
	"sync"
)

// tracker counts outstanding operations and lets callers wait for the
// count to drain. Operations only leave the tracker by settling; there is
// no external cancellation.
type tracker struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

func newTracker() *tracker {
	return &tracker{}
}

func (t *tracker) add() {
	t.mu.Lock()
	t.pending++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	t.pending--
	if t.pending == 0 && t.idle != nil {
		close(t.idle)
		t.idle = nil
	}
	t.mu.Unlock()
}

// Idle reports whether nothing is outstanding.
func (t *tracker) Idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending == 0
}

// Wait blocks until the tracker drains or the context ends.
func (t *tracker) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		if t.pending == 0 {
			t.mu.Unlock()
			return nil
		}
		if t.idle == nil {
			t.idle = make(chan struct{})
		}
		ch := t.idle
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// taskQueue serializes tasks in strict submission order: at most one task
// runs at a time and tasks start in the order they were enqueued, so the
// server observes cart mutations in submission order.
type taskQueue struct {
	mu   sync.Mutex
	tail chan struct{}
	trk  *tracker
}

func newTaskQueue() *taskQueue {
	return &taskQueue{trk: newTracker()}
}

// Do enqueues fn behind any queued work and runs it once its turn comes.
// A context that ends while queued skips fn but still releases the slot to
// successors.
func (q *taskQueue) Do(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.trk.add()
	q.mu.Unlock()

	defer func() {
		close(done)
		q.trk.done()
	}()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// Keep FIFO intact: wait for our turn even when giving up, so a
			// successor never overtakes a predecessor.
			<-prev
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Idle reports whether no task is queued or running.
func (q *taskQueue) Idle() bool {
	return q.trk.Idle()
}

// Wait blocks until the queue drains or the context ends.
func (q *taskQueue) Wait(ctx context.Context) error {
	return q.trk.Wait(ctx)
}
