// Package fake implements a fake board whose pins and I2C devices are scripted in memory, for tests
// and for running the sensor host without hardware attached.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
)

var _ = board.Board(&Board{})

// Board is a fake board that counts every hardware access made through it.
type Board struct {
	*board.ResourceLocks

	mu        sync.Mutex
	GPIOPins  map[int]*GPIOPin
	Bus       *I2C
	busNumber int
	logger    logging.Logger

	accesses atomic.Int64
	closed   atomic.Bool
}

// NewBoard returns a new fake board with an empty I2C bus numbered busNumber.
func NewBoard(busNumber int, logger logging.Logger) *Board {
	return NewBoardWithClock(clock.New(), busNumber, logger)
}

// NewBoardWithClock is NewBoard with read spacing measured on clk.
func NewBoardWithClock(clk clock.Clock, busNumber int, logger logging.Logger) *Board {
	b := &Board{
		ResourceLocks: board.NewResourceLocks(clk),
		GPIOPins:      map[int]*GPIOPin{},
		busNumber:     busNumber,
		logger:        logger,
	}
	b.Bus = &I2C{board: b, devices: map[byte]*I2CDevice{}}
	return b
}

// GPIOPinByNumber returns the pin, creating it low on first lookup.
func (b *Board) GPIOPinByNumber(pin int) (board.GPIOPin, error) {
	return b.Pin(pin)
}

// Pin is GPIOPinByNumber returning the concrete fake so tests can script it.
func (b *Board) Pin(pin int) (*GPIOPin, error) {
	if pin < 0 || pin > board.MaxGPIOPin {
		return nil, errors.Wrapf(board.ErrNoDevice, "gpio line %d", pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[pin]
	if !ok {
		p = &GPIOPin{board: b, number: pin}
		b.GPIOPins[pin] = p
	}
	return p, nil
}

// I2C returns the fake bus.
func (b *Board) I2C() (board.I2C, error) {
	return b.Bus, nil
}

// I2CBusNumber returns the number given to NewBoard.
func (b *Board) I2CBusNumber() int {
	return b.busNumber
}

// Accesses returns how many pin or bus transactions have been made.
func (b *Board) Accesses() int64 {
	return b.accesses.Load()
}

// Close marks the board closed; later transactions fail.
func (b *Board) Close(ctx context.Context) error {
	b.closed.Store(true)
	return nil
}

func (b *Board) touch() error {
	b.accesses.Inc()
	if b.closed.Load() {
		return errors.Wrap(board.ErrBusUnavailable, "fake board is closed")
	}
	return nil
}

// GPIOPin is a fake pin. Pulses queued with QueuePulses are handed out by ReadPulses.
type GPIOPin struct {
	board  *Board
	number int

	mu     sync.Mutex
	high   bool
	pulses []time.Duration
	// Err, when set, is returned by every operation on the pin.
	Err error
}

// Set sets the pin high or low.
func (p *GPIOPin) Set(ctx context.Context, high bool) error {
	if err := p.board.touch(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.high = high
	return nil
}

// Get returns the pin level.
func (p *GPIOPin) Get(ctx context.Context) (bool, error) {
	if err := p.board.touch(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return false, p.Err
	}
	return p.high, nil
}

// QueuePulses appends high pulse widths for ReadPulses to return.
func (p *GPIOPin) QueuePulses(pulses ...time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pulses = append(p.pulses, pulses...)
}

// ReadPulses pops n queued pulses. Running out of pulses behaves like a silent line.
func (p *GPIOPin) ReadPulses(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error) {
	if err := p.board.touch(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.pulses) < n {
		p.pulses = nil
		return nil, errors.Wrapf(board.ErrEdgeTimeout, "gpio line %d", p.number)
	}
	out := make([]time.Duration, n)
	copy(out, p.pulses[:n])
	p.pulses = p.pulses[n:]
	return out, nil
}
