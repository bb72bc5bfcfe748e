// Package pir implements passive infrared motion detectors, which hold their output line high
// while they see motion.
package pir

import (
	"context"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/logging"
)

// Model is the registered model name.
const Model = "PIR"

func init() {
	sensor.RegisterModel(sensor.Model{
		Name:        Model,
		Bus:         board.GPIOResource,
		Channels:    []sensor.Channel{sensor.DetectionChannel},
		Constructor: newPIR,
	})
}

type pir struct {
	pin    board.GPIOPin
	logger logging.Logger
}

func newPIR(deps sensor.Dependencies) (sensor.Driver, error) {
	pin, err := deps.Board.GPIOPinByNumber(deps.Pin)
	if err != nil {
		return nil, sensor.NewConfigError("pin", "%v", err)
	}
	return &pir{pin: pin, logger: deps.Logger}, nil
}

// Read returns 1 while motion is detected, 0 otherwise.
func (p *pir) Read(ctx context.Context) (map[string]float64, error) {
	high, err := p.pin.Get(ctx)
	if err != nil {
		return nil, err
	}
	detection := 0.
	if high {
		detection = 1
	}
	return map[string]float64{sensor.ChannelDetection: detection}, nil
}

func (p *pir) Close(ctx context.Context) error {
	return nil
}
