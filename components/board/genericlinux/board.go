//go:build linux

// Package genericlinux implements a Linux board on top of periph.io, using the kernel's GPIO and
// i2c-dev drivers. Nothing is opened until a sensor actually reads.
package genericlinux

import (
	"context"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
)

var _ = board.Board(&Board{})

// Board is a Linux single-board computer.
type Board struct {
	*board.ResourceLocks

	mu     sync.Mutex
	pins   map[int]*gpioPin
	bus    *i2cBus
	logger logging.Logger
}

// NewBoard loads the host drivers and returns a board whose sensor bus is the one named in conf.
func NewBoard(ctx context.Context, conf board.Config, logger logging.Logger) (*Board, error) {
	busNumber, err := conf.I2CBusNumber()
	if err != nil {
		return nil, err
	}
	state, err := host.Init()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize host drivers")
	}
	for _, failure := range state.Failed {
		logger.Debugw("host driver failed to load", "driver", failure.D.String(), "error", failure.Err)
	}
	return newBoard(busNumber, logger), nil
}

func newBoard(busNumber int, logger logging.Logger) *Board {
	return &Board{
		ResourceLocks: board.NewResourceLocks(clock.New()),
		pins:          map[int]*gpioPin{},
		bus:           &i2cBus{number: busNumber, logger: logger},
		logger:        logger,
	}
}

// GPIOPinByNumber returns the BCM numbered GPIO line. The line is resolved on first use.
func (b *Board) GPIOPinByNumber(pin int) (board.GPIOPin, error) {
	if pin < 0 || pin > board.MaxGPIOPin {
		return nil, errors.Wrapf(board.ErrNoDevice, "gpio line %d", pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[pin]
	if !ok {
		p = &gpioPin{number: pin, logger: b.logger}
		b.pins[pin] = p
	}
	return p, nil
}

// I2C returns the sensor bus.
func (b *Board) I2C() (board.I2C, error) {
	return b.bus, nil
}

// I2CBusNumber returns the configured bus number.
func (b *Board) I2CBusNumber() int {
	return b.bus.number
}

// Close releases the pins and closes the bus.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, p := range b.pins {
		err = multierr.Combine(err, p.release())
	}
	return multierr.Combine(err, b.bus.close())
}

func lineByNumber(number int) (*gpioLine, error) {
	line := gpioreg.ByName(strconv.Itoa(number))
	if line == nil {
		return nil, errors.Wrapf(board.ErrNoDevice, "gpio line %d is not registered", number)
	}
	return &gpioLine{line}, nil
}
