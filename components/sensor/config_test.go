package sensor

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/Vuzi/raspi-sensors/components/board"
)

func TestConfigFromAttributes(t *testing.T) {
	conf, err := ConfigFromAttributes(map[string]interface{}{"type": "DHT22", "pin": 7, "label": "garden"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Type, test.ShouldEqual, "DHT22")
	test.That(t, *conf.Pin, test.ShouldEqual, 7)
	test.That(t, conf.Address, test.ShouldBeNil)
	test.That(t, conf.LabelOrType(), test.ShouldEqual, "garden")

	conf, err = ConfigFromAttributes(map[string]interface{}{"type": "TSL2561", "address": 0x39})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *conf.Address, test.ShouldEqual, 0x39)
	test.That(t, conf.LabelOrType(), test.ShouldEqual, "TSL2561")

	_, err = ConfigFromAttributes(map[string]interface{}{"type": "DHT22", "pin": "seven"})
	test.That(t, IsConfigError(err), test.ShouldBeTrue)

	// numbers decoded from JSON arrive as floats
	conf, err = ConfigFromAttributes(map[string]interface{}{"type": "DHT22", "pin": 7.0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *conf.Pin, test.ShouldEqual, 7)

	for _, attrs := range []map[string]interface{}{
		{"type": "DHT22", "pin": 7.9},
		{"type": "TSL2561", "address": float32(57.5)},
		{"type": "TSL2561", "address": math.NaN()},
	} {
		_, err = ConfigFromAttributes(attrs)
		test.That(t, IsConfigError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "is not an integer")
	}

	_, err = ConfigFromAttributes(map[string]interface{}{"type": "DHT22", "pin": 7, "speed": 3})
	var cerr *ConfigError
	test.That(t, errors.As(err, &cerr), test.ShouldBeTrue)
	test.That(t, cerr.Field, test.ShouldEqual, "attributes")
	test.That(t, cerr.Error(), test.ShouldContainSubstring, "speed")
}

func TestConfigValidate(t *testing.T) {
	model, err := Config{Type: stubGPIO, Pin: intPtr(board.MaxGPIOPin)}.Validate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Name, test.ShouldEqual, stubGPIO)
	test.That(t, model.Bus, test.ShouldEqual, board.GPIOResource)

	_, err = Config{Type: stubI2C, Address: intPtr(MinI2CAddress)}.Validate()
	test.That(t, err, test.ShouldBeNil)
	_, err = Config{Type: stubI2C, Address: intPtr(MaxI2CAddress)}.Validate()
	test.That(t, err, test.ShouldBeNil)

	_, err = Config{Type: stubI2C, Address: intPtr(0x39), Pin: intPtr(7)}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "takes an address, not a pin")
}

func TestRegistry(t *testing.T) {
	model, ok := LookupModel(stubI2C)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, model.Channels, test.ShouldResemble, []Channel{LightChannel})

	_, ok = LookupModel("nope")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, RegisteredModels(), test.ShouldContain, stubSlowGPIO)

	test.That(t, func() { RegisterModel(Model{Name: stubGPIO, Constructor: newStubDriver}) }, test.ShouldPanic)
	test.That(t, func() { RegisterModel(Model{Name: "incomplete"}) }, test.ShouldPanic)
}
