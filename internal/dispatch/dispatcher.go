// Package dispatch fans chat updates out to a bounded pool of workers.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

var (
	ErrQueueFull = errors.New("update queue full")
	ErrStopped   = errors.New("dispatcher stopped")
)

// Handler processes one update.
type Handler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, update tgbotapi.Update) error

func (f HandlerFunc) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	return f(ctx, update)
}

type task struct {
	id     string
	ctx    context.Context
	update tgbotapi.Update
}

// Dispatcher queues updates and processes them on a fixed number of workers.
type Dispatcher struct {
	handler Handler
	workers int
	queue   chan task
	logger  *slog.Logger

	startOnce sync.Once
	mu        sync.RWMutex
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a dispatcher. Non-positive sizes fall back to the defaults.
func New(log *slog.Logger, handler Handler, workers, queueSize int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		handler: handler,
		workers: workers,
		queue:   make(chan task, queueSize),
		logger:  log.With(slog.String("component", "dispatch")),
	}
}

// Start launches the workers once. Later calls are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		d.mu.Lock()
		d.cancel = cancel
		d.mu.Unlock()
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run(workerCtx)
		}
		d.logger.Info("dispatcher started", slog.Int("workers", d.workers), slog.Int("queue_size", cap(d.queue)))
	})
}

// Submit enqueues an update without blocking. The update is processed with a
// context detached from ctx's cancellation.
func (d *Dispatcher) Submit(ctx context.Context, update tgbotapi.Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t := task{id: uuid.NewString(), ctx: context.WithoutCancel(ctx), update: update}
	select {
	case d.queue <- t:
		return nil
	default:
		d.logger.Warn("update dropped", slog.Int("update_id", update.UpdateID), slog.Any("error", ErrQueueFull))
		return ErrQueueFull
	}
}

// Pending returns the number of queued updates.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stop rejects new updates and waits for queued ones to finish or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for t := range d.queue {
		if ctx.Err() != nil {
			continue
		}
		d.process(t)
	}
}

func (d *Dispatcher) process(t task) {
	log := d.logger.With(slog.String("task_id", t.id), slog.Int("update_id", t.update.UpdateID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("update handler panicked", slog.Any("panic", r))
		}
	}()
	if err := d.handler.HandleUpdate(t.ctx, t.update); err != nil {
		log.Error("update processing failed", slog.Any("error", err))
	}
}
