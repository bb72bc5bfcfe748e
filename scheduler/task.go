package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// State is the lifecycle state of a Task. A task only ever moves from Running to Cancelled.
type State int32

const (
	// Running tasks fire on every tick.
	Running State = iota
	// Cancelled tasks never fire again.
	Cancelled
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "cancelled"
}

// A Task is one recurring action armed on a Scheduler. Tasks are single use; once cancelled a task
// cannot be scheduled again.
type Task struct {
	ID       uuid.UUID
	Interval time.Duration

	state     atomic.Int32
	scheduled atomic.Bool
	inFlight  atomic.Bool

	stopOnce   sync.Once
	stop       chan struct{}
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// NewTask returns a running task that will fire every interval once scheduled.
func NewTask(interval time.Duration) (*Task, error) {
	if interval <= 0 {
		return nil, errors.Errorf("task interval must be positive, got %s", interval)
	}
	return &Task{
		ID:       uuid.New(),
		Interval: interval,
		stop:     make(chan struct{}),
	}, nil
}

// State returns the task's current state.
func (t *Task) State() State {
	return State(t.state.Load())
}

// Running reports whether the task has not been cancelled.
func (t *Task) Running() bool {
	return t.State() == Running
}

// cancel flips the task to Cancelled, returning false if it already was.
func (t *Task) cancel() bool {
	if !t.state.CompareAndSwap(int32(Running), int32(Cancelled)) {
		return false
	}
	t.stopOnce.Do(func() { close(t.stop) })
	t.mu.Lock()
	cancel := t.cancelFunc
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

func (t *Task) setCancelFunc(cancel context.CancelFunc) {
	t.mu.Lock()
	t.cancelFunc = cancel
	t.mu.Unlock()
	// a Cancel racing with Schedule may have missed the func
	if !t.Running() {
		cancel()
	}
}
