package host

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/Vuzi/raspi-sensors/components/board/fake"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	// for sensor models.
	_ "github.com/Vuzi/raspi-sensors/components/sensor/register"
	"github.com/Vuzi/raspi-sensors/config"
	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/metrics"
	"github.com/Vuzi/raspi-sensors/scheduler"
)

const hostConfig = `
board: {kind: fake}
sensors:
  - {type: fake, pin: 4, label: greenhouse, interval: 2s}
  - {type: PIR, pin: 5, interval: 2s}
  - {type: TSL2561, address: 0x39, label: lux, interval: 2s}
`

func TestHost(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	clk := clock.NewMock()
	b := fake.NewBoardWithClock(clk, 1, logger)
	sched := scheduler.New(clk, logger)
	defer func() {
		test.That(t, sched.Close(), test.ShouldBeNil)
	}()

	conf, err := config.FromReader("somepath", strings.NewReader(hostConfig))
	test.That(t, err, test.ShouldBeNil)
	m := metrics.New()
	m.RegisterScheduler(sched)

	h, err := New(b, sched, conf, m, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Accesses(), test.ShouldEqual, int64(0))
	test.That(t, h.Start(), test.ShouldBeNil)

	statuses := h.Status()
	test.That(t, statuses, test.ShouldHaveLength, 3)
	test.That(t, statuses[0].Label, test.ShouldEqual, "PIR")
	test.That(t, statuses[1].Label, test.ShouldEqual, "greenhouse")
	test.That(t, statuses[2].Label, test.ShouldEqual, "lux")
	for _, s := range statuses {
		test.That(t, s.Polling, test.ShouldBeTrue)
		test.That(t, s.Interval, test.ShouldEqual, 2*time.Second)
		test.That(t, s.LastOutcome, test.ShouldBeNil)
	}
	test.That(t, sched.Tasks(), test.ShouldEqual, 3)

	clk.Add(2 * time.Second)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		for _, s := range h.Status() {
			test.That(tb, s.LastOutcome, test.ShouldNotBeNil)
		}
	})

	statuses = h.Status()
	test.That(t, statuses[0].LastOutcome.OK(), test.ShouldBeTrue)
	test.That(t, statuses[0].LastOutcome.Reading.Values[sensor.ChannelDetection], test.ShouldEqual, 0.0)
	test.That(t, statuses[1].LastOutcome.OK(), test.ShouldBeTrue)
	test.That(t, statuses[1].LastOutcome.Reading.Values[sensor.ChannelTemperature], test.ShouldEqual, 20.0)
	test.That(t, statuses[1].LastOutcome.Reading.Timestamp.Equal(clk.Now()), test.ShouldBeTrue)
	test.That(t, statuses[2].LastOutcome.OK(), test.ShouldBeFalse)
	test.That(t, statuses[2].LastOutcome.Fault.Permanent(), test.ShouldBeTrue)

	readsCount, err := testutil.GatherAndCount(m.Gatherer(), "raspi_sensors_reads_total")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readsCount, test.ShouldEqual, 2)
	faultsCount, err := testutil.GatherAndCount(m.Gatherer(), "raspi_sensors_faults_total")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, faultsCount, test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("sensor fault").Len(), test.ShouldEqual, 1)

	h.LogStatus()
	test.That(t, logs.FilterMessage("status").Len(), test.ShouldEqual, 3)
	test.That(t, logs.FilterMessage("scheduler").Len(), test.ShouldEqual, 1)

	outcomes, err := h.ReadAll(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outcomes, test.ShouldHaveLength, 3)
	test.That(t, logs.FilterMessage("sensor fault").Len(), test.ShouldEqual, 2)

	summary := h.Status()[1].Summary[sensor.ChannelTemperature]
	test.That(t, summary.Count, test.ShouldEqual, 2)
	test.That(t, summary.Min, test.ShouldEqual, 20.0)
	test.That(t, summary.Max, test.ShouldEqual, 20.5)
	test.That(t, summary.Mean, test.ShouldEqual, 20.25)
	test.That(t, h.Status()[2].Summary, test.ShouldBeNil)

	test.That(t, h.Close(context.Background()), test.ShouldBeNil)
	for _, s := range h.Status() {
		test.That(t, s.Polling, test.ShouldBeFalse)
	}
	test.That(t, sched.Tasks(), test.ShouldEqual, 0)
	test.That(t, errors.Is(h.Close(context.Background()), sensor.ErrClosed), test.ShouldBeTrue)
	outcomes, err = h.ReadAll(context.Background())
	test.That(t, outcomes, test.ShouldBeEmpty)
	test.That(t, errors.Is(err, sensor.ErrClosed), test.ShouldBeTrue)
}

func TestNewRejectsBadSensor(t *testing.T) {
	logger := logging.NewTestLogger(t)
	clk := clock.NewMock()
	sched := scheduler.New(clk, logger)
	defer func() {
		test.That(t, sched.Close(), test.ShouldBeNil)
	}()

	conf := &config.Config{Sensors: []config.Sensor{
		{Attributes: map[string]interface{}{"type": "PIR", "pin": 4}},
		{Attributes: map[string]interface{}{"type": "TSL2561", "pin": 0x39}},
	}}
	h, err := New(fake.NewBoardWithClock(clk, 1, logger), sched, conf, nil, logger)
	test.That(t, h, test.ShouldBeNil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "sensors.1")
	test.That(t, sensor.IsConfigError(err), test.ShouldBeTrue)
}
