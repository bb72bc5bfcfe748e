package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/Vuzi/raspi-sensors/components/board"
)

// I2C is a fake bus holding register-mapped devices.
type I2C struct {
	board *Board

	mu      sync.Mutex
	devices map[byte]*I2CDevice
}

// AddDevice attaches a device at addr and returns it for scripting.
func (bus *I2C) AddDevice(addr byte) *I2CDevice {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	dev := &I2CDevice{Registers: map[byte]byte{}}
	bus.devices[addr] = dev
	return dev
}

// RemoveDevice detaches the device at addr.
func (bus *I2C) RemoveDevice(addr byte) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.devices, addr)
}

// OpenHandle returns a handle to addr. Like a real bus, opening never fails; transactions to an
// address nobody answers do.
func (bus *I2C) OpenHandle(addr byte) (board.I2CHandle, error) {
	return &i2cHandle{bus: bus, addr: addr}, nil
}

func (bus *I2C) device(addr byte) (*I2CDevice, error) {
	if err := bus.board.touch(); err != nil {
		return nil, err
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	dev, ok := bus.devices[addr]
	if !ok {
		return nil, errors.Wrapf(board.ErrNoDevice, "i2c address 0x%02x", addr)
	}
	return dev, nil
}

// I2CDevice is a fake device made of byte registers. Multi-byte reads walk consecutive registers.
type I2CDevice struct {
	mu        sync.Mutex
	Registers map[byte]byte
	pointer   byte
	// OnWrite, when set, is called with the device locked after each register write so a test
	// can emulate conversions triggered by control registers.
	OnWrite func(dev *I2CDevice, register, data byte)
	// Err, when set, fails every transaction.
	Err error
}

// Set sets a register value.
func (dev *I2CDevice) Set(register, value byte) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.Registers[register] = value
}

// SetWord sets a big endian word across register and register+1.
func (dev *I2CDevice) SetWord(register byte, value uint16) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.Registers[register] = byte(value >> 8)
	dev.Registers[register+1] = byte(value)
}

// Get returns a register value.
func (dev *I2CDevice) Get(register byte) byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.Registers[register]
}

func (dev *I2CDevice) write(register, data byte) {
	dev.Registers[register] = data
	if dev.OnWrite != nil {
		dev.OnWrite(dev, register, data)
	}
}

func (dev *I2CDevice) read(register byte, count int) []byte {
	out := make([]byte, count)
	for i := range out {
		out[i] = dev.Registers[register+byte(i)]
	}
	return out
}

type i2cHandle struct {
	bus    *I2C
	addr   byte
	closed bool
}

func (h *i2cHandle) do(f func(dev *I2CDevice)) error {
	if h.closed {
		return errors.New("i2c handle already closed")
	}
	dev, err := h.bus.device(h.addr)
	if err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.Err != nil {
		return dev.Err
	}
	f(dev)
	return nil
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	if len(tx) == 0 {
		return nil
	}
	return h.do(func(dev *I2CDevice) {
		dev.pointer = tx[0]
		for i, b := range tx[1:] {
			dev.write(tx[0]+byte(i), b)
		}
	})
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	var out []byte
	err := h.do(func(dev *I2CDevice) {
		out = dev.read(dev.pointer, count)
	})
	return out, err
}

func (h *i2cHandle) ReadByteData(ctx context.Context, register byte) (byte, error) {
	var out byte
	err := h.do(func(dev *I2CDevice) {
		out = dev.read(register, 1)[0]
	})
	return out, err
}

func (h *i2cHandle) WriteByteData(ctx context.Context, register, data byte) error {
	return h.do(func(dev *I2CDevice) {
		dev.write(register, data)
	})
}

func (h *i2cHandle) ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
	var out []byte
	err := h.do(func(dev *I2CDevice) {
		out = dev.read(register, int(numBytes))
	})
	return out, err
}

func (h *i2cHandle) Close() error {
	h.closed = true
	return nil
}
