package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/scheduler"
)

// A Handle is one configured sensor. It can be read once with Fetch, or polled with
// FetchInterval; at most one poll is active at a time.
type Handle struct {
	conf    Config
	label   string
	binding *binding
	sched   *scheduler.Scheduler
	logger  logging.Logger

	mu     sync.Mutex
	task   *scheduler.Task
	closed bool

	// deliverMu is held by the delivery loop from the cancellation check of a poll outcome until
	// its callback returns. delivering is set while that callback runs.
	deliverMu  sync.Mutex
	delivering atomic.Bool
}

// NewHandle validates conf and builds the sensor's driver. No I/O is performed.
func NewHandle(b board.Board, sched *scheduler.Scheduler, conf Config, logger logging.Logger) (*Handle, error) {
	model, err := conf.Validate()
	if err != nil {
		return nil, err
	}
	label := conf.LabelOrType()
	logger = logger.Sublogger(label)

	deps := Dependencies{Board: b, Clock: sched.Clock(), Logger: logger}
	var res board.Resource
	switch model.Bus {
	case board.GPIOResource:
		deps.Pin = *conf.Pin
		res = board.GPIOLine(deps.Pin)
	case board.I2CResource:
		deps.Address = byte(*conf.Address)
		res = board.I2CBus(b.I2CBusNumber())
	}

	driver, err := model.Constructor(deps)
	if err != nil {
		if IsConfigError(err) {
			return nil, err
		}
		return nil, NewConfigError("type", "cannot build %s driver: %v", model.Name, err)
	}

	return &Handle{
		conf:  conf,
		label: label,
		binding: &binding{
			board:    b,
			resource: res,
			model:    model,
			driver:   driver,
			label:    label,
			clk:      sched.Clock(),
			logger:   logger,
		},
		sched:  sched,
		logger: logger,
	}, nil
}

// Label returns the handle's label, which defaults to its type.
func (h *Handle) Label() string {
	return h.label
}

// Type returns the sensor type.
func (h *Handle) Type() string {
	return h.conf.Type
}

// Config returns the configuration the handle was built from.
func (h *Handle) Config() Config {
	return h.conf
}

// Model returns the sensor's model.
func (h *Handle) Model() Model {
	return h.binding.model
}

// Polling reports whether an interval fetch is active.
func (h *Handle) Polling() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task != nil && h.task.Running()
}

// Fetch reads the sensor once and delivers the outcome to cb asynchronously. It does not affect
// an active poll.
func (h *Handle) Fetch(cb Callback) error {
	if cb == nil {
		return NewConfigError("callback", "a callback is required to read results from the sensor")
	}
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}

	err := h.sched.Go(func(ctx context.Context) {
		outcome := h.binding.read(ctx)
		h.sched.Post(func() { cb(outcome) })
	})
	return errors.Wrapf(err, "cannot fetch %s", h.label)
}

// FetchInterval polls the sensor every interval, the first read one full interval from now, and
// delivers every outcome, faults included, to cb. An active poll is cancelled first. The interval
// must be at least the model's minimum spacing between reads.
func (h *Handle) FetchInterval(cb Callback, interval time.Duration) error {
	if cb == nil {
		return NewConfigError("callback", "a callback is required to read results from the sensor")
	}
	if interval <= 0 {
		return NewConfigError("interval", "a repeatable reading needs a positive interval, got %s", interval)
	}
	if floor := h.binding.model.MinSpacing; interval < floor {
		return NewConfigError("interval", "%s cannot be read more often than every %s, got %s",
			h.conf.Type, floor, interval)
	}

	err := h.replacePoll(cb, interval)
	h.awaitDelivery()
	return err
}

func (h *Handle) replacePoll(cb Callback, interval time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.clearLocked()

	task, err := scheduler.NewTask(interval)
	if err != nil {
		return NewConfigError("interval", "%v", err)
	}
	if err := h.sched.Schedule(task, func(ctx context.Context) {
		outcome := h.binding.read(ctx)
		h.sched.Post(func() { h.deliver(task, cb, outcome) })
	}); err != nil {
		return errors.Wrapf(err, "cannot poll %s", h.label)
	}
	h.task = task
	h.logger.Debugw("polling started", "interval", interval, "task", task.ID)
	return nil
}

// deliver runs on the delivery loop.
func (h *Handle) deliver(task *scheduler.Task, cb Callback, outcome Outcome) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	// cancellation may have happened while the read was in flight
	if !task.Running() {
		h.logger.Debugw("dropping outcome of cancelled poll", "task", task.ID)
		return
	}
	h.delivering.Store(true)
	defer h.delivering.Store(false)
	cb(outcome)
}

// awaitDelivery waits out a poll delivery that passed its cancellation check but whose callback
// has not started yet. Called from inside a callback, that callback is the delivery and there is
// nothing to wait for.
func (h *Handle) awaitDelivery() {
	if h.delivering.Load() {
		return
	}
	h.deliverMu.Lock()
	//nolint:staticcheck
	h.deliverMu.Unlock()
}

// FetchClear cancels the active poll, if any. Once it returns, no callback of that poll starts,
// even for a read that was already in flight.
func (h *Handle) FetchClear() {
	h.mu.Lock()
	h.clearLocked()
	h.mu.Unlock()
	h.awaitDelivery()
}

func (h *Handle) clearLocked() {
	if h.task == nil {
		return
	}
	h.sched.Cancel(h.task)
	h.logger.Debugw("polling stopped", "task", h.task.ID)
	h.task = nil
}

// Close cancels any active poll and releases the driver. Later calls return ErrClosed.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.clearLocked()
	h.closed = true
	h.mu.Unlock()

	h.awaitDelivery()
	return h.binding.driver.Close(ctx)
}
