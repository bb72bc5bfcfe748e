package inject

import (
	"context"
	"time"

	"github.com/Vuzi/raspi-sensors/components/board"
)

// GPIOPin is an injected GPIOPin.
type GPIOPin struct {
	board.GPIOPin
	SetFunc func(ctx context.Context, high bool) error
	GetFunc func(ctx context.Context) (bool, error)
}

// Set calls the injected Set or the real version.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	if gp.SetFunc == nil {
		return gp.GPIOPin.Set(ctx, high)
	}
	return gp.SetFunc(ctx, high)
}

// Get calls the injected Get or the real version.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	if gp.GetFunc == nil {
		return gp.GPIOPin.Get(ctx)
	}
	return gp.GetFunc(ctx)
}

// PulseReader is an injected PulseReader.
type PulseReader struct {
	GPIOPin
	ReadPulsesFunc func(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error)
}

// ReadPulses calls the injected ReadPulses. There is no real version to fall back on.
func (pr *PulseReader) ReadPulses(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error) {
	return pr.ReadPulsesFunc(ctx, n, timeout)
}
