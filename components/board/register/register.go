// Package register builds the board named by a board config.
package register

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/board/fake"
	"github.com/Vuzi/raspi-sensors/components/board/genericlinux"
	"github.com/Vuzi/raspi-sensors/logging"
)

// NewBoard returns the board of the configured kind.
func NewBoard(ctx context.Context, conf board.Config, logger logging.Logger) (board.Board, error) {
	if err := conf.Validate("board"); err != nil {
		return nil, err
	}
	switch conf.Kind {
	case board.KindLinux:
		b, err := genericlinux.NewBoard(ctx, conf, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case board.KindFake:
		busNumber, err := conf.I2CBusNumber()
		if err != nil {
			return nil, err
		}
		return fake.NewBoard(busNumber, logger), nil
	default:
		return nil, errors.Errorf("unknown board kind %q", conf.Kind)
	}
}
