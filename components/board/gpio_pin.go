package board

import (
	"context"
	"time"
)

// A GPIOPin represents an individual GPIO pin on a board.
type GPIOPin interface {
	// Set drives the pin as an output, either low or high.
	Set(ctx context.Context, high bool) error

	// Get switches the pin to input and reads its high/low state.
	Get(ctx context.Context) (bool, error)
}

// A PulseReader is a GPIOPin that can time level changes, as needed by single-wire protocols
// where the sensor encodes bits as the width of high pulses.
type PulseReader interface {
	GPIOPin

	// ReadPulses releases the line to input with a pull-up and returns the width of the next n
	// high periods. Waiting longer than timeout for any single edge is an error wrapping
	// ErrEdgeTimeout.
	ReadPulses(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error)
}
