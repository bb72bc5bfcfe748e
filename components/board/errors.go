package board

import "github.com/pkg/errors"

var (
	// ErrEdgeTimeout is returned when a pin does not change level in time.
	ErrEdgeTimeout = errors.New("timed out waiting for gpio edge")

	// ErrNoDevice is returned when nothing acknowledges an I2C address or a GPIO line does not
	// exist on the board.
	ErrNoDevice = errors.New("no such device")

	// ErrBusUnavailable is returned when an I2C bus cannot be opened.
	ErrBusUnavailable = errors.New("bus unavailable")

	// ErrTransfer is returned when an I2C transaction fails part way.
	ErrTransfer = errors.New("bus transfer failed")
)
