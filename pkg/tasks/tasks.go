// Package tasks defines background tasks and the queue abstraction used to run them.
//
// Delivery is best-effort and at-most-once per quote: queues may drop a task when
// full or shutting down, and the handler claims each quote before dispatching.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"orbitx-go/pkg/log"
)

// ErrQueueClosed is returned by Enqueue after the queue has been shut down.
var ErrQueueClosed = errors.New("task queue closed")

// ErrQueueFull is returned when a local queue has no room for another task.
var ErrQueueFull = errors.New("task queue full")

// NotificationTask asks the notifier to tell the team about a newly created quote.
type NotificationTask struct {
	QuoteID        string    `json:"quote_id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Queue accepts tasks for background processing. Enqueue never waits for the task to run.
type Queue interface {
	Enqueue(ctx context.Context, task NotificationTask) error
	Close() error
}

// Handler processes a single task.
type Handler interface {
	Process(ctx context.Context, task NotificationTask) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task NotificationTask) error

func (f HandlerFunc) Process(ctx context.Context, task NotificationTask) error { return f(ctx, task) }

// LocalQueue runs tasks on in-process worker goroutines. Used when no broker is configured.
// Pending tasks are discarded on Close.
type LocalQueue struct {
	handler Handler
	tasks   chan NotificationTask
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLocalQueue starts workers goroutines that feed tasks to handler.
func NewLocalQueue(handler Handler, workers, capacity int, timeout time.Duration) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &LocalQueue{
		handler: handler,
		tasks:   make(chan NotificationTask, capacity),
		timeout: timeout,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
	return q
}

func (q *LocalQueue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			q.run(ctx, task)
		}
	}
}

func (q *LocalQueue) run(ctx context.Context, task NotificationTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("notification task panicked: quote=%s, panic=%v", task.QuoteID, r)
		}
	}()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	if err := q.handler.Process(ctx, task); err != nil {
		log.Errorf("notification task failed: quote=%s, err=%v", task.QuoteID, err)
	}
}

// Enqueue hands the task to a worker without blocking.
func (q *LocalQueue) Enqueue(_ context.Context, task NotificationTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the workers, cancelling any task in flight, and waits for them to exit.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	if n := len(q.tasks); n > 0 {
		log.Warnf("discarding %d pending notification tasks on shutdown", n)
	}
	return nil
}
