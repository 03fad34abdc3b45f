package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultJobTimeout bounds the wall-clock time of one task.
const DefaultJobTimeout = 30 * time.Minute

// Task is one unit of background work.
type Task struct {
	// Key identifies the job. At most one task per key is in flight.
	Key string
	// Run does the work under a context that expires at the job time limit.
	Run func(ctx context.Context) error
	// Fail, when set, receives the error of a task that returned an error,
	// panicked or timed out.
	Fail func(err error)
}

// JobExecutor runs tasks off the request path.
type JobExecutor interface {
	// Submit queues task and returns without waiting for it.
	Submit(task Task) error
	// Running reports whether a task with key is queued or running.
	Running(key string) bool
	// Close stops accepting tasks and waits for in-flight ones.
	Close() error
}

// PoolExecutor is a JobExecutor on an ants worker pool.
type PoolExecutor struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
	wg       sync.WaitGroup
}

var _ JobExecutor = (*PoolExecutor)(nil)

// ExecutorOption configures a PoolExecutor.
type ExecutorOption func(*PoolExecutor) error

// WithPoolSize sets the number of concurrent workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) ExecutorOption {
	return func(e *PoolExecutor) error {
		if size < 1 {
			size = 1
		}
		if e.pool != nil {
			e.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool = pool
		return nil
	}
}

// WithJobTimeout sets the per-task time limit.
func WithJobTimeout(d time.Duration) ExecutorOption {
	return func(e *PoolExecutor) error {
		if d <= 0 {
			return fmt.Errorf("job timeout must be positive, got %s", d)
		}
		e.timeout = d
		return nil
	}
}

// WithExecutorLogger sets a custom logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *PoolExecutor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewPoolExecutor creates an executor with its worker pool.
func NewPoolExecutor(opts ...ExecutorOption) (*PoolExecutor, error) {
	size := runtime.NumCPU() / 2
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	e := &PoolExecutor{
		pool:     pool,
		timeout:  DefaultJobTimeout,
		logger:   slog.Default(),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.pool.Release()
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "executor")
	return e, nil
}

// Submit marks task.Key in flight and hands the task to the pool. When every
// worker is busy the task waits in its own goroutine, so Submit never blocks.
func (e *PoolExecutor) Submit(task Task) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	if _, ok := e.inflight[task.Key]; ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskInFlight, task.Key)
	}
	e.inflight[task.Key] = struct{}{}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		if err := e.pool.Submit(func() { e.run(task) }); err != nil {
			e.logger.Error("pool rejected task", "key", task.Key, "error", err)
			e.finish(task, err)
		}
	}()
	return nil
}

// Running reports whether key is queued or running.
func (e *PoolExecutor) Running(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[key]
	return ok
}

// Close stops accepting tasks, waits for in-flight ones and releases the pool.
func (e *PoolExecutor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	e.pool.Release()
	return nil
}

func (e *PoolExecutor) run(task Task) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	err := e.safeRun(ctx, task)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w (%s): %w", ErrJobTimeout, e.timeout, err)
	}
	if err != nil {
		e.logger.Warn("task failed", "key", task.Key, "elapsed", time.Since(start), "error", err)
	} else {
		e.logger.Debug("task finished", "key", task.Key, "elapsed", time.Since(start))
	}
	e.finish(task, err)
}

func (e *PoolExecutor) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task panicked", "key", task.Key, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task.Run(ctx)
}

// finish reports a failure, then releases the key.
func (e *PoolExecutor) finish(task Task, err error) {
	defer e.wg.Done()
	if err != nil && task.Fail != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("failure handler panicked", "key", task.Key, "panic", r)
				}
			}()
			task.Fail(err)
		}()
	}

	e.mu.Lock()
	delete(e.inflight, task.Key)
	e.mu.Unlock()
}
