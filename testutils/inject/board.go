// Package inject provides implementations of the board and sensor interfaces whose methods can be
// swapped out per test.
package inject

import (
	"context"
	"time"

	"github.com/Vuzi/raspi-sensors/components/board"
)

// Board is an injected board.
type Board struct {
	board.Board
	GPIOPinByNumberFunc func(pin int) (board.GPIOPin, error)
	I2CFunc             func() (board.I2C, error)
	I2CBusNumberFunc    func() int
	AcquireFunc         func(ctx context.Context, res board.Resource, spacing time.Duration) (func(), error)
	CloseFunc           func(ctx context.Context) error
}

// GPIOPinByNumber calls the injected GPIOPinByNumber or the real version.
func (b *Board) GPIOPinByNumber(pin int) (board.GPIOPin, error) {
	if b.GPIOPinByNumberFunc == nil {
		return b.Board.GPIOPinByNumber(pin)
	}
	return b.GPIOPinByNumberFunc(pin)
}

// I2C calls the injected I2C or the real version.
func (b *Board) I2C() (board.I2C, error) {
	if b.I2CFunc == nil {
		return b.Board.I2C()
	}
	return b.I2CFunc()
}

// I2CBusNumber calls the injected I2CBusNumber or the real version.
func (b *Board) I2CBusNumber() int {
	if b.I2CBusNumberFunc == nil {
		return b.Board.I2CBusNumber()
	}
	return b.I2CBusNumberFunc()
}

// Acquire calls the injected Acquire or the real version.
func (b *Board) Acquire(ctx context.Context, res board.Resource, spacing time.Duration) (func(), error) {
	if b.AcquireFunc == nil {
		return b.Board.Acquire(ctx, res, spacing)
	}
	return b.AcquireFunc(ctx, res, spacing)
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}
