// Package dht implements the DHT11 and DHT22 single-wire humidity and temperature sensors.
//
// The host pulls the line low to wake the sensor, then the sensor answers with a preamble pulse
// followed by 40 bits, each encoded as the width of a high pulse: about 26µs for a 0 and 70µs for
// a 1. The frame is humidity (2 bytes), temperature (2 bytes) and a checksum byte.
package dht

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/utils"
)

// Model names.
const (
	DHT11 = "DHT11"
	DHT22 = "DHT22"
)

const (
	startLow     = 18 * time.Millisecond
	startHigh    = 40 * time.Microsecond
	edgeTimeout  = time.Millisecond
	bitThreshold = 48 * time.Microsecond
	frameBits    = 40

	defaultAttempts   = 10
	defaultRetryDelay = time.Second
)

func init() {
	sensor.RegisterModel(sensor.Model{
		Name:        DHT11,
		Bus:         board.GPIOResource,
		MinSpacing:  time.Second,
		Channels:    []sensor.Channel{sensor.HumidityChannel, sensor.TemperatureChannel},
		Constructor: func(deps sensor.Dependencies) (sensor.Driver, error) { return newDHT(deps, decodeDHT11) },
	})
	sensor.RegisterModel(sensor.Model{
		Name:        DHT22,
		Bus:         board.GPIOResource,
		MinSpacing:  2 * time.Second,
		Channels:    []sensor.Channel{sensor.HumidityChannel, sensor.TemperatureChannel},
		Constructor: func(deps sensor.Dependencies) (sensor.Driver, error) { return newDHT(deps, decodeDHT22) },
	})
}

type frame [5]byte

// decoder turns a checksummed frame into relative humidity and degrees celsius.
type decoder func(f frame) (humidity, temperature float64)

type dht struct {
	pin        board.PulseReader
	pinNumber  int
	decode     decoder
	attempts   int
	retryDelay time.Duration
	logger     logging.Logger
}

func newDHT(deps sensor.Dependencies, decode decoder) (sensor.Driver, error) {
	pin, err := deps.Board.GPIOPinByNumber(deps.Pin)
	if err != nil {
		return nil, sensor.NewConfigError("pin", "%v", err)
	}
	reader, err := utils.AssertType[board.PulseReader](pin)
	if err != nil {
		return nil, sensor.NewConfigError("pin", "%v", err)
	}
	return &dht{
		pin:        reader,
		pinNumber:  deps.Pin,
		decode:     decode,
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
		logger:     deps.Logger,
	}, nil
}

// Read wakes the sensor and decodes a frame. Sensors regularly miss a frame, so failed frames are
// retried a few times, one retry delay apart.
func (d *dht) Read(ctx context.Context) (map[string]float64, error) {
	var (
		f       frame
		attempt int
	)
	op := func() error {
		attempt++
		var err error
		f, err = d.readFrame(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, board.ErrNoDevice) {
			return backoff.Permanent(err)
		}
		d.logger.Debugw("bad frame", "pin", d.pinNumber, "attempt", attempt, "error", err)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retryDelay), uint64(d.attempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, errors.Wrapf(err, "no valid frame after %d attempts", attempt)
	}

	humidity, temperature := d.decode(f)
	return map[string]float64{
		sensor.ChannelHumidity:    humidity,
		sensor.ChannelTemperature: temperature,
	}, nil
}

func (d *dht) readFrame(ctx context.Context) (frame, error) {
	var f frame
	if err := d.pin.Set(ctx, false); err != nil {
		return f, err
	}
	if !goutils.SelectContextOrWait(ctx, startLow) {
		return f, ctx.Err()
	}
	if err := d.pin.Set(ctx, true); err != nil {
		return f, err
	}
	if !goutils.SelectContextOrWait(ctx, startHigh) {
		return f, ctx.Err()
	}

	// the first pulse is the sensor's response preamble
	pulses, err := d.pin.ReadPulses(ctx, frameBits+1, edgeTimeout)
	if err != nil {
		if errors.Is(err, board.ErrEdgeTimeout) {
			return f, errors.Wrapf(sensor.ErrTimeout, "%v", err)
		}
		return f, err
	}
	for i, width := range pulses[1:] {
		f[i/8] <<= 1
		if width > bitThreshold {
			f[i/8] |= 1
		}
	}

	if sum := f[0] + f[1] + f[2] + f[3]; sum != f[4] {
		return f, errors.Wrapf(sensor.ErrChecksum, "frame % x sums to 0x%02x", f[:4], sum)
	}
	if f == (frame{}) {
		return f, errors.Wrap(sensor.ErrInvalidValue, "empty frame")
	}
	humidity, _ := d.decode(f)
	if humidity > 100 {
		return f, errors.Wrapf(sensor.ErrInvalidValue, "humidity %.1f%% out of range", humidity)
	}
	return f, nil
}

func (d *dht) Close(ctx context.Context) error {
	return nil
}

// decodeDHT11 reads whole percent and whole degrees; the DHT11 cannot measure below zero.
func decodeDHT11(f frame) (float64, float64) {
	return float64(f[0]), float64(f[2] & 0x7F)
}

// decodeDHT22 reads tenths of a percent and tenths of a degree, with the sign in the top bit.
func decodeDHT22(f frame) (float64, float64) {
	humidity := float64(uint16(f[0])<<8|uint16(f[1])) / 10
	temperature := float64(uint16(f[2]&0x7F)<<8|uint16(f[3])) / 10
	if f[2]&0x80 != 0 {
		temperature = -temperature
	}
	return humidity, temperature
}
