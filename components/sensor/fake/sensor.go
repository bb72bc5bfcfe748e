// Package fake implements a fake Sensor.
package fake

import (
	"context"
	"sync"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/logging"
)

// Model is the registered model name.
const Model = "fake"

func init() {
	sensor.RegisterModel(sensor.Model{
		Name:        Model,
		Bus:         board.GPIOResource,
		Channels:    []sensor.Channel{sensor.TemperatureChannel, sensor.HumidityChannel},
		Constructor: newSensor,
	})
}

func newSensor(deps sensor.Dependencies) (sensor.Driver, error) {
	pin, err := deps.Board.GPIOPinByNumber(deps.Pin)
	if err != nil {
		return nil, sensor.NewConfigError("pin", "%v", err)
	}
	return &Sensor{pin: pin, logger: deps.Logger}, nil
}

// Sensor is a fake temperature and humidity sensor. Each read touches its pin and returns values
// that step through a fixed cycle.
type Sensor struct {
	mu     sync.Mutex
	pin    board.GPIOPin
	logger logging.Logger
	reads  int
}

// Read returns the next values of the cycle.
func (s *Sensor) Read(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.pin.Get(ctx); err != nil {
		return nil, err
	}
	step := float64(s.reads % 10)
	s.reads++
	return map[string]float64{
		sensor.ChannelTemperature: 20 + step/2,
		sensor.ChannelHumidity:    40 + step,
	}, nil
}

// Close does nothing.
func (s *Sensor) Close(ctx context.Context) error {
	return nil
}
