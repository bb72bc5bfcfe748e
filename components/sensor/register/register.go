// Package register registers all sensor models.
package register

import (
	// for sensors.
	_ "github.com/Vuzi/raspi-sensors/components/sensor/bmp180"
	_ "github.com/Vuzi/raspi-sensors/components/sensor/dht"
	_ "github.com/Vuzi/raspi-sensors/components/sensor/fake"
	_ "github.com/Vuzi/raspi-sensors/components/sensor/pir"
	_ "github.com/Vuzi/raspi-sensors/components/sensor/tsl2561"
)
