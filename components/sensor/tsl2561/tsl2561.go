// Package tsl2561 implements the TSL2561 luminosity sensor, read over I2C with 1x gain and the
// 13.7ms integration time.
package tsl2561

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"go.uber.org/multierr"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/logging"
)

// Model is the registered model name.
const Model = "TSL2561"

// Registers, with the command bit set.
const (
	regControl   = 0x80
	regTiming    = 0x81
	regInterrupt = 0x86
	regData0Low  = 0x8C
	regData0High = 0x8D
	regData1Low  = 0x8E
	regData1High = 0x8F

	powerOn    = 0x03
	timing13ms = 0x00 // 1x gain, 13.7ms integration

	integrationTime = 14 * time.Millisecond
	// channel counts saturate at this value with a 13.7ms integration
	maxCount13ms = 5047
)

func init() {
	sensor.RegisterModel(sensor.Model{
		Name:        Model,
		Bus:         board.I2CResource,
		MinSpacing:  integrationTime,
		Channels:    []sensor.Channel{sensor.LightChannel},
		Constructor: newTSL2561,
	})
}

type tsl2561 struct {
	board  board.Board
	addr   byte
	logger logging.Logger
}

func newTSL2561(deps sensor.Dependencies) (sensor.Driver, error) {
	return &tsl2561{board: deps.Board, addr: deps.Address, logger: deps.Logger}, nil
}

// Read powers the sensor up, waits one integration period and converts both channels to lux.
func (s *tsl2561) Read(ctx context.Context) (_ map[string]float64, err error) {
	bus, err := s.board.I2C()
	if err != nil {
		return nil, err
	}
	handle, err := bus.OpenHandle(s.addr)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, handle.Close())
	}()

	if err := handle.WriteByteData(ctx, regControl, powerOn); err != nil {
		return nil, err
	}
	control, err := handle.ReadByteData(ctx, regControl)
	if err != nil {
		return nil, err
	}
	if control&powerOn != powerOn {
		return nil, errors.Wrapf(sensor.ErrNotPresent, "device at 0x%02x did not power up (control=0x%02x)", s.addr, control)
	}
	if err := handle.WriteByteData(ctx, regTiming, timing13ms); err != nil {
		return nil, err
	}
	if err := handle.WriteByteData(ctx, regInterrupt, 0x00); err != nil {
		return nil, err
	}
	if !goutils.SelectContextOrWait(ctx, integrationTime) {
		return nil, ctx.Err()
	}

	ch0, err := readChannel(ctx, handle, regData0Low, regData0High)
	if err != nil {
		return nil, err
	}
	ch1, err := readChannel(ctx, handle, regData1Low, regData1High)
	if err != nil {
		return nil, err
	}
	if ch0 >= maxCount13ms || ch1 >= maxCount13ms {
		return nil, errors.Wrapf(sensor.ErrInvalidValue, "sensor saturated (ch0=%d ch1=%d)", ch0, ch1)
	}
	return map[string]float64{sensor.ChannelLight: float64(computeLux(ch0, ch1))}, nil
}

func readChannel(ctx context.Context, handle board.I2CHandle, lowReg, highReg byte) (uint32, error) {
	low, err := handle.ReadByteData(ctx, lowReg)
	if err != nil {
		return 0, err
	}
	high, err := handle.ReadByteData(ctx, highReg)
	if err != nil {
		return 0, err
	}
	return uint32(high)<<8 | uint32(low), nil
}

func (s *tsl2561) Close(ctx context.Context) error {
	return nil
}
