//go:build !linux

// Package genericlinux implements a Linux board on top of periph.io. On other platforms only the
// constructor exists, and it always fails.
package genericlinux

import (
	"context"
	"runtime"

	"github.com/pkg/errors"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
)

// NewBoard always fails: GPIO and i2c-dev access need Linux.
func NewBoard(ctx context.Context, conf board.Config, logger logging.Logger) (board.Board, error) {
	return nil, errors.Errorf("linux boards are not supported on %s", runtime.GOOS)
}
