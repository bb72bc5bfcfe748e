package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/Vuzi/raspi-sensors/components/sensor"
	// for sensor models.
	_ "github.com/Vuzi/raspi-sensors/components/sensor/register"
)

func TestPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	printOutcomes(&buf, []sensor.Outcome{
		{Reading: sensor.Reading{
			Label:     "greenhouse",
			Type:      "DHT22",
			Timestamp: time.Now(),
			Values:    map[string]float64{sensor.ChannelTemperature: 21.5, sensor.ChannelHumidity: 40},
		}},
		{Fault: sensor.NewFault("lux", sensor.ErrNotPresent)},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// borders, header, two channel rows and one fault row
	test.That(t, lines, test.ShouldHaveLength, 7)
	test.That(t, lines[1], test.ShouldContainSubstring, "SENSOR")
	test.That(t, lines[3], test.ShouldContainSubstring, "humidity_pct_rh")
	test.That(t, lines[3], test.ShouldContainSubstring, "%")
	test.That(t, lines[4], test.ShouldContainSubstring, "21.5")
	test.That(t, lines[4], test.ShouldContainSubstring, "°C")
	test.That(t, lines[5], test.ShouldContainSubstring, "permanent fault")
	test.That(t, lines[5], test.ShouldContainSubstring, "sensor not present")
}
