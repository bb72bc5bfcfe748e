// Package bmp180 implements the Bosch BMP180 barometric pressure and temperature sensor over I2C.
// Compensation follows the integer algorithm of the BMP180 datasheet.
package bmp180

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/logging"
)

// Model is the registered model name.
const Model = "BMP180"

const (
	regCalibration = 0xAA
	regChipID      = 0xD0
	regControl     = 0xF4
	regData        = 0xF6

	chipID             = 0x55
	cmdTemperature     = 0x2E
	cmdPressure        = 0x34
	calibrationLength  = 22
	temperatureConvert = 4500 * time.Microsecond

	// oversampling setting; 0 is the datasheet's ultra low power mode
	oversampling = 0
)

func init() {
	sensor.RegisterModel(sensor.Model{
		Name:        Model,
		Bus:         board.I2CResource,
		MinSpacing:  temperatureConvert + pressureConvert(),
		Channels:    []sensor.Channel{sensor.TemperatureChannel, sensor.PressureChannel},
		Constructor: newBMP180,
	})
}

func pressureConvert() time.Duration {
	return time.Duration(2+(3<<oversampling)) * time.Millisecond
}

// calibration holds the factory coefficients stored in the sensor's EEPROM.
type calibration struct {
	ac1, ac2, ac3 int16
	ac4, ac5, ac6 uint16
	b1, b2        int16
	mb, mc, md    int16
}

type bmp180 struct {
	board  board.Board
	addr   byte
	logger logging.Logger

	mu          sync.Mutex
	calibration *calibration
}

func newBMP180(deps sensor.Dependencies) (sensor.Driver, error) {
	return &bmp180{board: deps.Board, addr: deps.Address, logger: deps.Logger}, nil
}

// Read triggers a temperature then a pressure conversion and compensates both. The calibration
// EEPROM is read on the first successful read and kept.
func (s *bmp180) Read(ctx context.Context) (_ map[string]float64, err error) {
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

	cal, err := s.loadCalibration(ctx, handle)
	if err != nil {
		return nil, err
	}

	ut, err := s.readUncompensatedTemperature(ctx, handle)
	if err != nil {
		return nil, err
	}
	up, err := s.readUncompensatedPressure(ctx, handle)
	if err != nil {
		return nil, err
	}
	temperature, pressure, err := cal.compensate(ut, up, oversampling)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		sensor.ChannelTemperature: temperature,
		sensor.ChannelPressure:    float64(pressure),
	}, nil
}

func (s *bmp180) loadCalibration(ctx context.Context, handle board.I2CHandle) (*calibration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calibration != nil {
		return s.calibration, nil
	}

	id, err := handle.ReadByteData(ctx, regChipID)
	if err != nil {
		return nil, err
	}
	if id != chipID {
		return nil, errors.Wrapf(sensor.ErrNotPresent, "device at 0x%02x has chip id 0x%02x, not a BMP180", s.addr, id)
	}

	buf, err := handle.ReadBlockData(ctx, regCalibration, calibrationLength)
	if err != nil {
		return nil, err
	}
	if len(buf) != calibrationLength {
		return nil, errors.Wrapf(sensor.ErrBus, "calibration read returned %d bytes", len(buf))
	}
	words := make([]uint16, calibrationLength/2)
	for i := range words {
		words[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
		// an erased or unreadable EEPROM word
		if words[i] == 0x0000 || words[i] == 0xFFFF {
			return nil, errors.Wrapf(sensor.ErrInvalidValue, "calibration word %d is 0x%04x", i, words[i])
		}
	}
	s.calibration = &calibration{
		ac1: int16(words[0]), ac2: int16(words[1]), ac3: int16(words[2]),
		ac4: words[3], ac5: words[4], ac6: words[5],
		b1: int16(words[6]), b2: int16(words[7]),
		mb: int16(words[8]), mc: int16(words[9]), md: int16(words[10]),
	}
	s.logger.Debugw("calibration loaded", "address", s.addr)
	return s.calibration, nil
}

func (s *bmp180) readUncompensatedTemperature(ctx context.Context, handle board.I2CHandle) (int32, error) {
	if err := handle.WriteByteData(ctx, regControl, cmdTemperature); err != nil {
		return 0, err
	}
	if !goutils.SelectContextOrWait(ctx, temperatureConvert) {
		return 0, ctx.Err()
	}
	reg := board.I2CRegister{Handle: handle, Register: regData}
	ut, err := reg.ReadWordData(ctx)
	if err != nil {
		return 0, err
	}
	return int32(ut), nil
}

func (s *bmp180) readUncompensatedPressure(ctx context.Context, handle board.I2CHandle) (int32, error) {
	if err := handle.WriteByteData(ctx, regControl, cmdPressure+(oversampling<<6)); err != nil {
		return 0, err
	}
	if !goutils.SelectContextOrWait(ctx, pressureConvert()) {
		return 0, ctx.Err()
	}
	buf, err := handle.ReadBlockData(ctx, regData, 3)
	if err != nil {
		return 0, err
	}
	if len(buf) != 3 {
		return 0, errors.Wrapf(sensor.ErrBus, "pressure read returned %d bytes", len(buf))
	}
	raw := int32(buf[0])<<16 | int32(buf[1])<<8 | int32(buf[2])
	return raw >> (8 - oversampling), nil
}

func (s *bmp180) Close(ctx context.Context) error {
	return nil
}

// compensate returns the temperature in degrees celsius and the pressure in pascal. Raw values
// that would divide by zero are ErrInvalidValue.
func (c *calibration) compensate(ut, up int32, oss uint) (float64, int32, error) {
	x1 := (ut - int32(c.ac6)) * int32(c.ac5) >> 15
	if x1+int32(c.md) == 0 {
		return 0, 0, errors.Wrapf(sensor.ErrInvalidValue, "uncompensated temperature %d", ut)
	}
	x2 := (int32(c.mc) << 11) / (x1 + int32(c.md))
	b5 := x1 + x2
	temperature := float64((b5+8)>>4) / 10

	b6 := b5 - 4000
	x1 = (int32(c.b2) * (b6 * b6 >> 12)) >> 11
	x2 = int32(c.ac2) * b6 >> 11
	x3 := x1 + x2
	b3 := ((int32(c.ac1)*4+x3)<<oss + 2) / 4
	x1 = int32(c.ac3) * b6 >> 13
	x2 = (int32(c.b1) * (b6 * b6 >> 12)) >> 16
	x3 = (x1 + x2 + 2) >> 2
	b4 := uint32(c.ac4) * uint32(x3+32768) >> 15
	if b4 == 0 {
		return 0, 0, errors.Wrapf(sensor.ErrInvalidValue, "pressure coefficient is zero at uncompensated temperature %d", ut)
	}
	b7 := (uint32(up) - uint32(b3)) * (50000 >> oss)

	var p int32
	if b7 < 0x80000000 {
		p = int32((b7 << 1) / b4)
	} else {
		p = int32((b7 / b4) << 1)
	}
	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	p += (x1 + x2 + 3791) >> 4
	return temperature, p, nil
}
