package ingestion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, opts ...ExecutorOption) *PoolExecutor {
	t.Helper()
	e, err := NewPoolExecutor(append([]ExecutorOption{WithPoolSize(2)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// failRecorder collects Fail callbacks.
type failRecorder struct {
	mu   sync.Mutex
	errs []error
	done chan struct{}
}

func newFailRecorder() *failRecorder {
	return &failRecorder{done: make(chan struct{}, 16)}
}

func (r *failRecorder) Fail(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *failRecorder) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[len(r.errs)-1]
}

func TestPoolExecutor_RunsTask(t *testing.T) {
	e := newTestExecutor(t)
	done := make(chan struct{})

	require.NoError(t, e.Submit(Task{
		Key: "a",
		Run: func(ctx context.Context) error {
			close(done)
			return nil
		},
		Fail: func(err error) { t.Errorf("unexpected failure: %v", err) },
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
	assert.Eventually(t, func() bool { return !e.Running("a") }, 5*time.Second, 5*time.Millisecond)
}

func TestPoolExecutor_RejectsDuplicateKey(t *testing.T) {
	e := newTestExecutor(t)
	release := make(chan struct{})
	var runs atomic.Int32

	task := Task{
		Key: "job-1",
		Run: func(ctx context.Context) error {
			runs.Add(1)
			<-release
			return nil
		},
	}
	require.NoError(t, e.Submit(task))
	assert.True(t, e.Running("job-1"))

	err := e.Submit(task)
	assert.ErrorIs(t, err, ErrTaskInFlight)

	close(release)
	require.Eventually(t, func() bool { return !e.Running("job-1") }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	// the key is free again once the first task finished
	require.NoError(t, e.Submit(Task{Key: "job-1", Run: func(ctx context.Context) error { return nil }}))
}

func TestPoolExecutor_ReportsError(t *testing.T) {
	e := newTestExecutor(t)
	rec := newFailRecorder()
	boom := errors.New("boom")

	require.NoError(t, e.Submit(Task{
		Key:  "err",
		Run:  func(ctx context.Context) error { return boom },
		Fail: rec.Fail,
	}))
	assert.ErrorIs(t, rec.wait(t), boom)
}

func TestPoolExecutor_Timeout(t *testing.T) {
	e := newTestExecutor(t, WithJobTimeout(20*time.Millisecond))
	rec := newFailRecorder()

	require.NoError(t, e.Submit(Task{
		Key: "slow",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		Fail: rec.Fail,
	}))

	err := rec.wait(t)
	assert.ErrorIs(t, err, ErrJobTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolExecutor_RecoversPanic(t *testing.T) {
	e := newTestExecutor(t)
	rec := newFailRecorder()

	require.NoError(t, e.Submit(Task{
		Key:  "panic",
		Run:  func(ctx context.Context) error { panic("kaboom") },
		Fail: rec.Fail,
	}))

	err := rec.wait(t)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Eventually(t, func() bool { return !e.Running("panic") }, 5*time.Second, 5*time.Millisecond)
}

func TestPoolExecutor_CloseWaitsForTasks(t *testing.T) {
	e, err := NewPoolExecutor(WithPoolSize(1))
	require.NoError(t, err)

	var finished atomic.Int32
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, e.Submit(Task{
			Key: key,
			Run: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				finished.Add(1)
				return nil
			},
		}))
	}

	require.NoError(t, e.Close())
	assert.Equal(t, int32(3), finished.Load())
	assert.ErrorIs(t, e.Submit(Task{Key: "late", Run: func(ctx context.Context) error { return nil }}), ErrExecutorClosed)
	assert.NoError(t, e.Close())
}

func TestPoolExecutor_Options(t *testing.T) {
	_, err := NewPoolExecutor(WithJobTimeout(0))
	assert.Error(t, err)

	e, err := NewPoolExecutor(WithPoolSize(0), WithExecutorLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, e.pool.Cap())
	require.NoError(t, e.Close())
}
