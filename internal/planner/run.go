package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/weaver/internal/filelock"
)

// RunContext carries the state of one planning run: its id, the global
// planning lock, the graph cache and cancellation. One is built per run.
type RunContext struct {
	RunID string
	Cache *GraphCache

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lock     *filelock.FileLock
	held     bool
	paused   bool
	finished bool
}

// NewRunContext derives a cancellable context for a run.
func NewRunContext(parent context.Context, lockPath string, cache *GraphCache) *RunContext {
	ctx, cancel := context.WithCancel(parent)
	return &RunContext{
		RunID:  uuid.NewString(),
		Cache:  cache,
		ctx:    ctx,
		cancel: cancel,
		lock:   filelock.NewFileLock(lockPath),
	}
}

// Context returns the run's context.
func (r *RunContext) Context() context.Context {
	return r.ctx
}

// Acquire takes the global planning lock, waiting at most timeout.
// filelock.ErrLockTimeout is returned when another run holds it.
func (r *RunContext) Acquire(timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held {
		return nil
	}
	if err := r.lock.LockWithTimeout(r.ctx, timeout, 25*time.Millisecond); err != nil {
		return err
	}
	r.held = true
	return nil
}

// PauseMaintenance pauses m for the rest of the run.
func (r *RunContext) PauseMaintenance(m Maintenance) error {
	if err := m.Pause(r.ctx); err != nil {
		return fmt.Errorf("pause maintenance: %w", err)
	}
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	return nil
}

// Close resumes maintenance if it was paused, releases the lock and cancels
// the run context. Safe to call more than once.
func (r *RunContext) Close(m Maintenance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return nil
	}
	r.finished = true

	var errs []error
	if r.paused && m != nil {
		// resume even when the run itself was cancelled
		if err := m.Resume(context.WithoutCancel(r.ctx)); err != nil {
			errs = append(errs, fmt.Errorf("resume maintenance: %w", err))
		}
		r.paused = false
	}
	if r.held {
		if err := r.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release planning lock: %w", err))
		}
		r.held = false
	}
	r.cancel()
	return errors.Join(errs...)
}
