// Package board defines the interfaces that typically live on a single-board computer, the GPIO
// pins and I2C buses that sensors hang off of, and the per-resource serialization every sensor
// read goes through.
package board

import (
	"context"
	"fmt"
	"time"
)

// MaxGPIOPin is the highest GPIO line number accepted on the supported boards (BCM2835 family
// exposes lines 0 through 53).
const MaxGPIOPin = 53

// A Board represents a physical general purpose board that contains GPIO pins and I2C buses.
//
// Looking up a pin or a bus must not touch the hardware; implementations resolve lines lazily so
// that constructing sensors stays I/O free.
type Board interface {
	// GPIOPinByNumber returns the GPIO pin with the given line number.
	GPIOPinByNumber(pin int) (GPIOPin, error)

	// I2C returns the board's sensor I2C bus.
	I2C() (I2C, error)

	// I2CBusNumber is the number of the bus returned by I2C.
	I2CBusNumber() int

	// Acquire blocks until the caller holds the given resource exclusively, and until at least
	// spacing has elapsed since the previous holder acquired it. The returned release func
	// must be called exactly once.
	Acquire(ctx context.Context, res Resource, spacing time.Duration) (func(), error)

	// Close releases every bus and pin held by the board.
	Close(ctx context.Context) error
}

// ResourceKind is the kind of physical resource a sensor sits on.
type ResourceKind int

const (
	// GPIOResource is a single GPIO line.
	GPIOResource ResourceKind = iota
	// I2CResource is a whole I2C bus; every device on it shares the lock.
	I2CResource
)

func (kind ResourceKind) String() string {
	switch kind {
	case GPIOResource:
		return "gpio"
	case I2CResource:
		return "i2c"
	default:
		return fmt.Sprintf("resource(%d)", int(kind))
	}
}

// A Resource identifies one physical bus or pin.
type Resource struct {
	Kind   ResourceKind
	Number int
}

// GPIOLine returns the resource for a GPIO line.
func GPIOLine(pin int) Resource {
	return Resource{Kind: GPIOResource, Number: pin}
}

// I2CBus returns the resource for an I2C bus.
func I2CBus(bus int) Resource {
	return Resource{Kind: I2CResource, Number: bus}
}

func (res Resource) String() string {
	return fmt.Sprintf("%s%d", res.Kind, res.Number)
}
