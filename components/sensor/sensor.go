// Package sensor defines sensor handles: configured devices that can be read once or polled on an
// interval, delivering every reading or fault to a callback.
//
// Each supported chip registers a Model describing the bus it sits on, how often it may be read,
// and how to build its Driver. Handles own the scheduling; drivers only know how to talk to the
// hardware.
package sensor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
)

// Channel names shared by the drivers.
const (
	ChannelTemperature = "temperature_celsius"
	ChannelHumidity    = "humidity_pct_rh"
	ChannelLight       = "lux"
	ChannelPressure    = "pressure_pa"
	ChannelDetection   = "detection"
)

// A Driver talks to one physical device. Read performs a complete transaction and returns one
// value per channel. It is never called concurrently with another read on the same resource.
type Driver interface {
	Read(ctx context.Context) (map[string]float64, error)
	Close(ctx context.Context) error
}

// A Channel describes one value a model produces.
type Channel struct {
	Name        string
	Kind        string
	Unit        string
	UnitDisplay string
}

// Channels of the supported chips.
var (
	TemperatureChannel = Channel{ChannelTemperature, "Temperature", "Degree Celsius", "°C"}
	HumidityChannel    = Channel{ChannelHumidity, "Humidity", "Percent", "%"}
	LightChannel       = Channel{ChannelLight, "Light", "Lux", "Lux"}
	PressureChannel    = Channel{ChannelPressure, "Pressure", "Pascal", "Pa"}
	DetectionChannel   = Channel{ChannelDetection, "Detection", "Boolean", "Boolean"}
)

// Dependencies is what a driver constructor gets to build a driver. Exactly one of Pin and Address
// is meaningful, depending on the model's bus.
type Dependencies struct {
	Board   board.Board
	Pin     int
	Address byte
	Clock   clock.Clock
	Logger  logging.Logger
}

// A Constructor builds a driver. It must not perform any I/O.
type Constructor func(deps Dependencies) (Driver, error)

// A Model is a registered sensor type.
type Model struct {
	Name string
	Bus  board.ResourceKind
	// MinSpacing is the shortest time the chip needs between two reads. It is also the
	// smallest polling interval accepted for the model.
	MinSpacing  time.Duration
	Channels    []Channel
	Constructor Constructor
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Model{}
)

// RegisterModel registers a sensor model. It panics if the model is incomplete or already
// registered.
func RegisterModel(model Model) {
	if model.Name == "" || model.Constructor == nil {
		panic(errors.Errorf("cannot register incomplete sensor model %+v", model))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[model.Name]; ok {
		panic(errors.Errorf("sensor model %q already registered", model.Name))
	}
	registry[model.Name] = model
}

// LookupModel returns the registered model with the given name.
func LookupModel(name string) (Model, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	model, ok := registry[name]
	return model, ok
}

// RegisteredModels returns the names of every registered model, sorted.
func RegisteredModels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
