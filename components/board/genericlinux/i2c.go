//go:build linux

package genericlinux

import (
	"context"
	"strconv"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
)

// i2cBus opens /dev/i2c-N the first time a handle is requested and keeps it open until the board
// is closed.
type i2cBus struct {
	number int
	logger logging.Logger

	mu     sync.Mutex
	closer i2c.BusCloser
}

func (bus *i2cBus) OpenHandle(addr byte) (board.I2CHandle, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.closer == nil {
		closer, err := i2creg.Open(strconv.Itoa(bus.number))
		if err != nil {
			return nil, errors.Wrapf(board.ErrBusUnavailable, "i2c bus %d: %v", bus.number, err)
		}
		bus.closer = closer
	}
	return &i2cHandle{dev: &i2c.Dev{Bus: bus.closer, Addr: uint16(addr)}, bus: bus.number}, nil
}

func (bus *i2cBus) close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.closer == nil {
		return nil
	}
	err := bus.closer.Close()
	bus.closer = nil
	return err
}

type i2cHandle struct {
	dev *i2c.Dev
	bus int
}

func (h *i2cHandle) tx(w, r []byte) error {
	if err := h.dev.Tx(w, r); err != nil {
		// the kernel reports an unacknowledged address as ENXIO or EREMOTEIO
		if errors.Is(err, syscall.ENXIO) || errors.Is(err, syscall.EREMOTEIO) {
			return errors.Wrapf(board.ErrNoDevice, "i2c address 0x%02x on bus %d", h.dev.Addr, h.bus)
		}
		return errors.Wrapf(board.ErrTransfer, "i2c address 0x%02x on bus %d: %v", h.dev.Addr, h.bus, err)
	}
	return nil
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	return h.tx(tx, nil)
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	buf := make([]byte, count)
	if err := h.tx(nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (h *i2cHandle) ReadByteData(ctx context.Context, register byte) (byte, error) {
	buf := make([]byte, 1)
	if err := h.tx([]byte{register}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (h *i2cHandle) WriteByteData(ctx context.Context, register, data byte) error {
	return h.tx([]byte{register, data}, nil)
}

func (h *i2cHandle) ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
	buf := make([]byte, numBytes)
	if err := h.tx([]byte{register}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close is a no-op; the bus stays open for the next reader.
func (h *i2cHandle) Close() error {
	return nil
}
