package dht

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/board/fake"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/scheduler"
	"github.com/Vuzi/raspi-sensors/testutils/inject"
)

// pulsesFor encodes a frame the way the sensor sends it.
func pulsesFor(f frame) []time.Duration {
	pulses := []time.Duration{80 * time.Microsecond}
	for _, b := range f {
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<bit) != 0 {
				pulses = append(pulses, 70*time.Microsecond)
			} else {
				pulses = append(pulses, 26*time.Microsecond)
			}
		}
	}
	return pulses
}

func withChecksum(b0, b1, b2, b3 byte) frame {
	return frame{b0, b1, b2, b3, b0 + b1 + b2 + b3}
}

func newTestDriver(t *testing.T, model string, pin int) (*dht, *fake.GPIOPin, *fake.Board) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	b := fake.NewBoard(1, logger)
	m, ok := sensor.LookupModel(model)
	test.That(t, ok, test.ShouldBeTrue)
	driver, err := m.Constructor(sensor.Dependencies{Board: b, Pin: pin, Clock: clock.New(), Logger: logger})
	test.That(t, err, test.ShouldBeNil)
	d := driver.(*dht)
	d.retryDelay = time.Millisecond
	p, err := b.Pin(pin)
	test.That(t, err, test.ShouldBeNil)
	return d, p, b
}

func TestDecode(t *testing.T) {
	h, temp := decodeDHT22(withChecksum(0x02, 0x8C, 0x01, 0x5F))
	test.That(t, h, test.ShouldAlmostEqual, 65.2)
	test.That(t, temp, test.ShouldAlmostEqual, 35.1)

	h, temp = decodeDHT22(withChecksum(0x02, 0x8C, 0x80, 0x65))
	test.That(t, h, test.ShouldAlmostEqual, 65.2)
	test.That(t, temp, test.ShouldAlmostEqual, -10.1)

	h, temp = decodeDHT11(withChecksum(45, 0, 23, 0))
	test.That(t, h, test.ShouldEqual, 45.0)
	test.That(t, temp, test.ShouldEqual, 23.0)
}

func TestConstructionDoesNoIO(t *testing.T) {
	_, _, b := newTestDriver(t, DHT22, 7)
	test.That(t, b.Accesses(), test.ShouldEqual, int64(0))
}

func TestConstructionNeedsPulseReader(t *testing.T) {
	b := &inject.Board{}
	b.GPIOPinByNumberFunc = func(pin int) (board.GPIOPin, error) {
		return &inject.GPIOPin{}, nil
	}
	m, _ := sensor.LookupModel(DHT22)
	_, err := m.Constructor(sensor.Dependencies{Board: b, Pin: 7, Logger: logging.NewTestLogger(t)})
	test.That(t, sensor.IsConfigError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "board.PulseReader")

	b.GPIOPinByNumberFunc = func(pin int) (board.GPIOPin, error) {
		return nil, errors.Wrap(board.ErrNoDevice, "gpio line 7")
	}
	_, err = m.Constructor(sensor.Dependencies{Board: b, Pin: 7, Logger: logging.NewTestLogger(t)})
	test.That(t, sensor.IsConfigError(err), test.ShouldBeTrue)
}

func TestReadEdgeTimeout(t *testing.T) {
	var sets, reads int
	pin := &inject.PulseReader{
		GPIOPin: inject.GPIOPin{SetFunc: func(ctx context.Context, high bool) error {
			sets++
			return nil
		}},
		ReadPulsesFunc: func(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error) {
			reads++
			test.That(t, n, test.ShouldEqual, frameBits+1)
			test.That(t, timeout, test.ShouldEqual, edgeTimeout)
			return nil, errors.Wrap(board.ErrEdgeTimeout, "gpio line 7")
		},
	}
	b := &inject.Board{}
	b.GPIOPinByNumberFunc = func(p int) (board.GPIOPin, error) {
		return pin, nil
	}
	m, _ := sensor.LookupModel(DHT11)
	driver, err := m.Constructor(sensor.Dependencies{Board: b, Pin: 7, Logger: logging.NewTestLogger(t)})
	test.That(t, err, test.ShouldBeNil)
	d := driver.(*dht)
	d.attempts = 2
	d.retryDelay = time.Millisecond

	_, err = d.Read(context.Background())
	test.That(t, errors.Is(err, sensor.ErrTimeout), test.ShouldBeTrue)
	test.That(t, sensor.Classify(err), test.ShouldEqual, sensor.FaultTransient)
	test.That(t, reads, test.ShouldEqual, 2)
	// start signal is low then high on every attempt
	test.That(t, sets, test.ShouldEqual, 4)
}

func TestRead(t *testing.T) {
	d, pin, _ := newTestDriver(t, DHT22, 7)
	pin.QueuePulses(pulsesFor(withChecksum(0x02, 0x8C, 0x80, 0x65))...)

	values, err := d.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values[sensor.ChannelHumidity], test.ShouldAlmostEqual, 65.2)
	test.That(t, values[sensor.ChannelTemperature], test.ShouldAlmostEqual, -10.1)

	// the line is released high after the start signal
	high, err := pin.Get(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)
}

func TestReadRetriesBadFrames(t *testing.T) {
	d, pin, _ := newTestDriver(t, DHT11, 4)
	bad := withChecksum(45, 0, 23, 0)
	bad[4]++
	pin.QueuePulses(pulsesFor(bad)...)
	pin.QueuePulses(pulsesFor(withChecksum(45, 0, 23, 0))...)

	values, err := d.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values[sensor.ChannelHumidity], test.ShouldEqual, 45.0)
	test.That(t, values[sensor.ChannelTemperature], test.ShouldEqual, 23.0)
}

func TestReadGivesUp(t *testing.T) {
	d, pin, _ := newTestDriver(t, DHT22, 7)
	d.attempts = 3

	_, err := d.Read(context.Background())
	test.That(t, errors.Is(err, sensor.ErrTimeout), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "after 3 attempts")
	test.That(t, sensor.Classify(err), test.ShouldEqual, sensor.FaultTransient)

	bad := withChecksum(0x02, 0x8C, 0x01, 0x5F)
	bad[4] = 0
	for i := 0; i < 3; i++ {
		pin.QueuePulses(pulsesFor(bad)...)
	}
	_, err = d.Read(context.Background())
	test.That(t, errors.Is(err, sensor.ErrChecksum), test.ShouldBeTrue)

	// humidity above 100% is rejected even with a good checksum
	for i := 0; i < 3; i++ {
		pin.QueuePulses(pulsesFor(withChecksum(0x04, 0x00, 0x00, 0xC8))...)
	}
	_, err = d.Read(context.Background())
	test.That(t, errors.Is(err, sensor.ErrInvalidValue), test.ShouldBeTrue)
}

func TestReadStopsOnPermanentError(t *testing.T) {
	d, pin, _ := newTestDriver(t, DHT22, 7)
	pin.Err = errors.Wrap(board.ErrNoDevice, "gpio line 7")

	start := time.Now()
	d.retryDelay = time.Second
	_, err := d.Read(context.Background())
	test.That(t, errors.Is(err, board.ErrNoDevice), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "after 1 attempts")
	test.That(t, time.Since(start), test.ShouldBeLessThan, time.Second)
}

func TestReadCancelled(t *testing.T) {
	d, _, _ := newTestDriver(t, DHT22, 7)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Read(ctx)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPolledThroughHandle(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.NewMock()
	b := fake.NewBoardWithClock(clk, 1, logger)
	sched := scheduler.New(clk, logger)
	defer func() { test.That(t, sched.Close(), test.ShouldBeNil) }()

	conf, err := sensor.ConfigFromAttributes(map[string]interface{}{"type": DHT22, "pin": 7, "label": "greenhouse"})
	test.That(t, err, test.ShouldBeNil)
	h, err := sensor.NewHandle(b, sched, conf, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Accesses(), test.ShouldEqual, int64(0))

	// faster than the sensor allows
	test.That(t, sensor.IsConfigError(h.FetchInterval(func(sensor.Outcome) {}, time.Second)), test.ShouldBeTrue)

	pin, err := b.Pin(7)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 5; i++ {
		pin.QueuePulses(pulsesFor(withChecksum(0x02, 0x8C, 0x01, byte(0x50+i)))...)
	}

	outcomes := make(chan sensor.Outcome, 10)
	test.That(t, h.FetchInterval(func(o sensor.Outcome) { outcomes <- o }, 4*time.Second), test.ShouldBeNil)
	for i := 0; i < 5; i++ {
		clk.Add(4 * time.Second)
		testutils.WaitForAssertion(t, func(tb testing.TB) {
			tb.Helper()
			test.That(tb, len(outcomes), test.ShouldEqual, i+1)
		})
	}
	h.FetchClear()

	var last time.Time
	for i := 0; i < 5; i++ {
		o := <-outcomes
		test.That(t, o.OK(), test.ShouldBeTrue)
		test.That(t, o.Reading.Label, test.ShouldEqual, "greenhouse")
		test.That(t, o.Reading.Values[sensor.ChannelTemperature], test.ShouldAlmostEqual, float64(0x150+i)/10)
		test.That(t, o.Reading.Timestamp.After(last), test.ShouldBeTrue)
		last = o.Reading.Timestamp
	}
	test.That(t, h.Close(context.Background()), test.ShouldBeNil)
}
