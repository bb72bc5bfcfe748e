// Package scheduler runs recurring and one-off work against a clock, and delivers the results of
// that work one at a time, in order, on a single delivery loop.
//
// Work (typically hardware reads) runs on background workers so that a slow read never holds up
// the delivery of another sensor's results. Completions are handed to Post, and every posted
// function runs on the one delivery goroutine, so callbacks never run concurrently with each other.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/utils"
)

// ErrClosed is returned when work is submitted to a closed scheduler.
var ErrClosed = errors.New("scheduler is closed")

// Scheduler arms tasks on a clock and owns the delivery loop.
type Scheduler struct {
	clk     clock.Clock
	logger  logging.Logger
	workers utils.StoppableWorkers

	mu    sync.Mutex
	tasks map[uuid.UUID]*Task

	queueMu  sync.Mutex
	queue    []func()
	notify   chan struct{}
	loopStop chan struct{}
	loopDone chan struct{}
	closed   atomic.Bool

	skipped atomic.Int64
}

// New returns a scheduler driven by clk with its delivery loop running.
func New(clk clock.Clock, logger logging.Logger) *Scheduler {
	s := &Scheduler{
		clk:      clk,
		logger:   logger,
		workers:  utils.NewStoppableWorkers(),
		tasks:    map[uuid.UUID]*Task{},
		notify:   make(chan struct{}, 1),
		loopStop: make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	goutils.PanicCapturingGo(s.deliveryLoop)
	return s
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clk.Now()
}

// Clock returns the clock the scheduler runs on.
func (s *Scheduler) Clock() clock.Clock {
	return s.clk
}

// Schedule arms task so that action runs every task.Interval, the first time one full interval
// from now. A tick that arrives while the previous action is still running is skipped. The
// context passed to action is cancelled when the task is cancelled.
func (s *Scheduler) Schedule(task *Task, action func(ctx context.Context)) error {
	if !task.Running() {
		return errors.Errorf("task %s is cancelled", task.ID)
	}
	if !task.scheduled.CompareAndSwap(false, true) {
		return errors.Errorf("task %s is already scheduled", task.ID)
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	// first fire is one full interval after Schedule
	ticker := s.clk.Ticker(task.Interval)
	started := s.workers.AddWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		taskCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		task.setCancelFunc(cancel)

		for {
			select {
			case <-taskCtx.Done():
				return
			case <-task.stop:
				return
			case <-ticker.C:
			}
			if !task.Running() {
				return
			}
			if !task.inFlight.CompareAndSwap(false, true) {
				s.skipped.Inc()
				s.logger.Debugw("skipping tick, previous run still in flight", "task", task.ID)
				continue
			}
			if !s.workers.AddWorkers(func(context.Context) {
				defer task.inFlight.Store(false)
				action(taskCtx)
			}) {
				return
			}
		}
	})
	if !started {
		ticker.Stop()
		s.forget(task)
		task.cancel()
		return ErrClosed
	}
	return nil
}

// Cancel stops task. It is idempotent and safe to call from within the task's own action or from
// a delivered callback. An action already running is not interrupted beyond its context being
// cancelled.
func (s *Scheduler) Cancel(task *Task) {
	if task == nil {
		return
	}
	if task.cancel() {
		s.logger.Debugw("task cancelled", "task", task.ID)
	}
	s.forget(task)
}

func (s *Scheduler) forget(task *Task) {
	s.mu.Lock()
	delete(s.tasks, task.ID)
	s.mu.Unlock()
}

// Tasks returns the number of armed tasks.
func (s *Scheduler) Tasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Skipped returns how many ticks were dropped because the previous run was still in flight.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Go runs f once on a background worker.
func (s *Scheduler) Go(f func(ctx context.Context)) error {
	if !s.workers.AddWorkers(f) {
		return ErrClosed
	}
	return nil
}

// Post queues f on the delivery loop. Posted functions run one at a time in the order they were
// posted. Post never blocks; it returns false if the scheduler is closed and f was dropped.
func (s *Scheduler) Post(f func()) bool {
	s.queueMu.Lock()
	if s.closed.Load() {
		s.queueMu.Unlock()
		return false
	}
	s.queue = append(s.queue, f)
	s.queueMu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) deliveryLoop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.loopStop:
			return
		case <-s.notify:
		}
		for {
			s.queueMu.Lock()
			if len(s.queue) == 0 {
				s.queueMu.Unlock()
				break
			}
			f := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.queueMu.Unlock()

			select {
			case <-s.loopStop:
				return
			default:
			}
			s.deliver(f)
		}
	}
}

func (s *Scheduler) deliver(f func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("panic in delivered callback", "panic", fmt.Sprint(r))
		}
	}()
	f()
}

// Close cancels every task, cancels the context of running work and waits for it, then stops the
// delivery loop. Anything still queued is dropped. Close must not be called from a delivered
// callback.
func (s *Scheduler) Close() error {
	s.queueMu.Lock()
	alreadyClosed := s.closed.Swap(true)
	s.queue = nil
	s.queueMu.Unlock()
	if alreadyClosed {
		return nil
	}

	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	for _, t := range tasks {
		s.Cancel(t)
	}

	s.workers.Stop()
	close(s.loopStop)
	<-s.loopDone
	return nil
}
