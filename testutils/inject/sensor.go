package inject

import (
	"context"

	"github.com/Vuzi/raspi-sensors/components/sensor"
)

// Driver is an injected sensor driver.
type Driver struct {
	sensor.Driver
	ReadFunc  func(ctx context.Context) (map[string]float64, error)
	CloseFunc func(ctx context.Context) error
}

// Read calls the injected Read or the real version.
func (d *Driver) Read(ctx context.Context) (map[string]float64, error) {
	if d.ReadFunc == nil {
		return d.Driver.Read(ctx)
	}
	return d.ReadFunc(ctx)
}

// Close calls the injected Close or the real version.
func (d *Driver) Close(ctx context.Context) error {
	if d.CloseFunc == nil {
		if d.Driver == nil {
			return nil
		}
		return d.Driver.Close(ctx)
	}
	return d.CloseFunc(ctx)
}
