// Package config defines the structures to configure the sensor host.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/sensor"
)

// DefaultInterval is the poll interval of sensors that do not set one.
const DefaultInterval = 10 * time.Second

// DefaultStatusInterval is how often the host logs a status summary and flushes metrics.
const DefaultStatusInterval = time.Minute

// A Config describes the board and the sensors attached to it.
type Config struct {
	ConfigFilePath string `yaml:"-"`

	Board          board.Config `yaml:"board"`
	Sensors        []Sensor     `yaml:"sensors"`
	StatusInterval string       `yaml:"status_interval,omitempty"`
	MetricsFile    string       `yaml:"metrics_file,omitempty"`
}

// Sensor is one configured sensor: its attributes (type, pin or address, label) and its poll
// interval.
type Sensor struct {
	Interval   string                 `yaml:"interval,omitempty"`
	Attributes map[string]interface{} `yaml:",inline"`
}

// Ensure ensures all parts of the config are valid.
func (c *Config) Ensure() error {
	if err := c.Board.Validate("board"); err != nil {
		return err
	}
	if _, err := c.StatusPeriod(); err != nil {
		return errors.Wrap(err, "status_interval")
	}

	labels := map[string]int{}
	for idx, s := range c.Sensors {
		path := fmt.Sprintf("sensors.%d", idx)
		conf, err := s.Validate(path)
		if err != nil {
			return err
		}
		label := conf.LabelOrType()
		if prev, ok := labels[label]; ok {
			return errors.Errorf("%s: label %q is already used by sensors.%d", path, label, prev)
		}
		labels[label] = idx
	}
	return nil
}

// StatusPeriod returns the parsed status interval, defaulting to DefaultStatusInterval.
func (c *Config) StatusPeriod() (time.Duration, error) {
	return parseInterval(c.StatusInterval, DefaultStatusInterval)
}

// Validate checks the sensor's attributes and interval and returns its sensor config.
func (s *Sensor) Validate(path string) (sensor.Config, error) {
	if len(s.Attributes) == 0 {
		return sensor.Config{}, utils.NewConfigValidationFieldRequiredError(path, "type")
	}
	conf, err := s.SensorConfig()
	if err != nil {
		return sensor.Config{}, errors.Wrap(err, path)
	}
	model, err := conf.Validate()
	if err != nil {
		return sensor.Config{}, errors.Wrap(err, path)
	}
	interval, err := s.PollInterval()
	if err != nil {
		return sensor.Config{}, errors.Wrapf(err, "%s.interval", path)
	}
	if interval < model.MinSpacing {
		return sensor.Config{}, errors.Errorf("%s.interval: %s is below the %s minimum of %s",
			path, interval, model.Name, model.MinSpacing)
	}
	return conf, nil
}

// SensorConfig converts the attributes into a sensor config.
func (s *Sensor) SensorConfig() (sensor.Config, error) {
	return sensor.ConfigFromAttributes(s.Attributes)
}

// PollInterval returns the parsed interval, defaulting to DefaultInterval.
func (s *Sensor) PollInterval() (time.Duration, error) {
	return parseInterval(s.Interval, DefaultInterval)
}

func parseInterval(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.Errorf("interval must be positive, got %s", d)
	}
	return d, nil
}
