// Package sideeffects runs best-effort work (audit writes, notifications)
// after a primary mutation has committed. Failures are logged and counted,
// never returned to the caller.
package sideeffects

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/metrics"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultTaskTimeout = 10 * time.Second
)

// ErrQueueFull is recorded when a task is dropped because the queue is saturated.
var ErrQueueFull = errors.New("side effect queue full")

// ErrClosed is recorded when a task arrives after Close.
var ErrClosed = errors.New("side effect dispatcher closed")

// Task is one unit of best-effort work.
type Task struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Params configure the dispatcher.
type Params struct {
	Logger      *logger.Logger
	Metrics     *metrics.SideEffectMetrics
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

type queuedTask struct {
	ctx  context.Context
	task Task
}

// Dispatcher is a bounded queue drained by a fixed worker pool.
type Dispatcher struct {
	logg    *logger.Logger
	metrics *metrics.SideEffectMetrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queuedTask
	wg     sync.WaitGroup
}

// NewDispatcher starts the worker pool.
func NewDispatcher(params Params) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := params.TaskTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}

	d := &Dispatcher{
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
		queue:   make(chan queuedTask, size),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d, nil
}

// Dispatch enqueues task without blocking. The task runs on a context that
// keeps ctx's values (log fields) but not its cancellation. It reports
// whether the task was accepted.
func (d *Dispatcher) Dispatch(ctx context.Context, task Task) bool {
	if task.Run == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	detached := context.WithoutCancel(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.recordFailure(detached, task.Kind, ErrClosed)
		return false
	}
	select {
	case d.queue <- queuedTask{ctx: detached, task: task}:
		return true
	default:
		d.metrics.IncDropped(task.Kind)
		d.recordFailure(detached, task.Kind, ErrQueueFull)
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain side effects: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for item := range d.queue {
		d.run(item)
	}
}

func (d *Dispatcher) run(item queuedTask) {
	ctx, cancel := context.WithTimeout(item.ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, item.task.Run)
	d.metrics.ObserveDuration(item.task.Kind, time.Since(start))
	if err != nil {
		d.recordFailure(ctx, item.task.Kind, err)
		return
	}
	d.metrics.IncSuccess(item.task.Kind)
}

func (d *Dispatcher) recordFailure(ctx context.Context, kind string, err error) {
	d.metrics.IncFailure(kind)
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event": "sideeffect.failed",
		"kind":  kind,
	})
	d.logg.Error(logCtx, "sideeffect.failed", err)
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("side effect panic: %v", r)
		}
	}()
	return fn(ctx)
}
