package board

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Board kinds understood by the host configuration.
const (
	KindLinux = "linux"
	KindFake  = "fake"
)

// DefaultI2CBus is the I2C bus wired to the header pins on Raspberry Pi boards.
const DefaultI2CBus = "1"

// Config describes which board the sensors are attached to.
type Config struct {
	Kind   string `yaml:"kind" json:"kind"`
	I2CBus string `yaml:"i2c_bus,omitempty" json:"i2c_bus,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	switch config.Kind {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "kind")
	case KindLinux, KindFake:
	default:
		return errors.Errorf("%s: unknown board kind %q", path, config.Kind)
	}
	if _, err := config.I2CBusNumber(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s.i2c_bus", path))
	}
	return nil
}

// I2CBusNumber parses the configured bus, falling back to DefaultI2CBus.
func (config *Config) I2CBusNumber() (int, error) {
	bus := config.I2CBus
	if bus == "" {
		bus = DefaultI2CBus
	}
	n, err := strconv.Atoi(bus)
	if err != nil || n < 0 {
		return 0, errors.Errorf("malformed I2C bus number: %q", bus)
	}
	return n, nil
}
