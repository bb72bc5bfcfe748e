package sensor

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/Vuzi/raspi-sensors/components/board"
)

// I2C addresses outside this range are reserved by the bus specification.
const (
	MinI2CAddress = 0x03
	MaxI2CAddress = 0x77
)

// ErrClosed is returned by operations on a closed handle.
var ErrClosed = errors.New("sensor handle is closed")

// A ConfigError reports an invalid sensor configuration or call argument. It is always returned
// synchronously and never delivered to a callback.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid sensor config: %s: %s", e.Field, e.Reason)
}

// NewConfigError returns a ConfigError for field.
func NewConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}

// Config is the configuration of one sensor. Pin is used by GPIO models, Address by I2C models.
type Config struct {
	Type    string `json:"type"`
	Pin     *int   `json:"pin,omitempty"`
	Address *int   `json:"address,omitempty"`
	Label   string `json:"label,omitempty"`
}

// ConfigFromAttributes converts an attribute map such as {"type": "DHT22", "pin": 7} into a
// Config. Unknown attributes and pins or addresses that are not whole numbers are rejected.
func ConfigFromAttributes(attributes map[string]interface{}) (Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &conf,
		ErrorUnused: true,
		DecodeHook:  integralFloatHook,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return Config{}, NewConfigError("attributes", "%s", strings.TrimSpace(err.Error()))
	}
	return conf, nil
}

// integralFloatHook rejects floats with a fractional part bound for an integer field; mapstructure
// would otherwise truncate 7.9 to 7.
func integralFloatHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() == reflect.Ptr {
		to = to.Elem()
	}
	if to.Kind() != reflect.Int {
		return data, nil
	}
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return data, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, errors.Errorf("%v is not an integer", f)
	}
	return data, nil
}

// Validate checks the type and addressing of the config and returns the model it refers to.
func (conf Config) Validate() (Model, error) {
	if conf.Type == "" {
		return Model{}, NewConfigError("type", "a type is required")
	}
	model, ok := LookupModel(conf.Type)
	if !ok {
		return Model{}, NewConfigError("type", "%q is not a valid sensor type", conf.Type)
	}

	switch model.Bus {
	case board.GPIOResource:
		if conf.Address != nil {
			return Model{}, NewConfigError("address", "%s is a GPIO sensor and takes a pin, not an address", conf.Type)
		}
		if conf.Pin == nil {
			return Model{}, NewConfigError("pin", "a valid pin is required for GPIO sensor %s", conf.Type)
		}
		if *conf.Pin < 0 || *conf.Pin > board.MaxGPIOPin {
			return Model{}, NewConfigError("pin", "%d is out of range [0, %d]", *conf.Pin, board.MaxGPIOPin)
		}
	case board.I2CResource:
		if conf.Pin != nil {
			return Model{}, NewConfigError("pin", "%s is an I2C sensor and takes an address, not a pin", conf.Type)
		}
		if conf.Address == nil {
			return Model{}, NewConfigError("address", "a valid address is required for I2C sensor %s", conf.Type)
		}
		if *conf.Address < MinI2CAddress || *conf.Address > MaxI2CAddress {
			return Model{}, NewConfigError("address", "0x%02x is out of range [0x%02x, 0x%02x]",
				*conf.Address, MinI2CAddress, MaxI2CAddress)
		}
	default:
		return Model{}, NewConfigError("type", "model %s has unknown bus %s", conf.Type, model.Bus)
	}
	return model, nil
}

// LabelOrType returns the label, defaulting to the type name.
func (conf Config) LabelOrType() string {
	if conf.Label != "" {
		return conf.Label
	}
	return conf.Type
}
