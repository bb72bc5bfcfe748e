//go:build linux

package genericlinux

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
)

type gpioLine struct {
	gpio.PinIO
}

type gpioPin struct {
	number int
	logger logging.Logger

	mu   sync.Mutex
	line *gpioLine
}

// open resolves the line. Must be called with the mutex held.
func (pin *gpioPin) open() error {
	if pin.line != nil {
		return nil
	}
	line, err := lineByNumber(pin.number)
	if err != nil {
		return err
	}
	pin.line = line
	return nil
}

func (pin *gpioPin) Set(ctx context.Context, high bool) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if err := pin.open(); err != nil {
		return err
	}
	if err := pin.line.Out(gpio.Level(high)); err != nil {
		return errors.Wrapf(err, "failed to drive gpio line %d", pin.number)
	}
	return nil
}

func (pin *gpioPin) Get(ctx context.Context) (bool, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if err := pin.open(); err != nil {
		return false, err
	}
	if err := pin.line.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return false, errors.Wrapf(err, "failed to read gpio line %d", pin.number)
	}
	return bool(pin.line.Read()), nil
}

func (pin *gpioPin) ReadPulses(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if err := pin.open(); err != nil {
		return nil, err
	}
	if err := pin.line.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, errors.Wrapf(err, "failed to watch gpio line %d", pin.number)
	}
	defer func() {
		if err := pin.line.In(gpio.PullUp, gpio.NoEdge); err != nil {
			pin.logger.Debugw("failed to stop edge detection", "pin", pin.number, "error", err)
		}
	}()

	pulses := make([]time.Duration, 0, n)
	for len(pulses) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := pin.waitFor(gpio.High, timeout); err != nil {
			return nil, errors.Wrapf(err, "pulse %d of %d", len(pulses)+1, n)
		}
		start := time.Now()
		if err := pin.waitFor(gpio.Low, timeout); err != nil {
			return nil, errors.Wrapf(err, "pulse %d of %d", len(pulses)+1, n)
		}
		pulses = append(pulses, time.Since(start))
	}
	return pulses, nil
}

// waitFor blocks until the line is at level. Must be called with the mutex held.
func (pin *gpioPin) waitFor(level gpio.Level, timeout time.Duration) error {
	for pin.line.Read() != level {
		if !pin.line.WaitForEdge(timeout) {
			return errors.Wrapf(board.ErrEdgeTimeout, "gpio line %d", pin.number)
		}
	}
	return nil
}

func (pin *gpioPin) release() error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	if pin.line == nil {
		return nil
	}
	err := pin.line.Halt()
	pin.line = nil
	return err
}
