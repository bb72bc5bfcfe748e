package sensor

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/utils"
)

// binding ties a driver to the physical resource it sits on. Every read, whether one-shot or
// polled, from this or any other handle on the same resource, goes through the board's lock for
// that resource.
type binding struct {
	board    board.Board
	resource board.Resource
	model    Model
	driver   Driver
	label    string
	clk      clock.Clock
	logger   logging.Logger
}

func (b *binding) read(ctx context.Context) Outcome {
	release, err := b.board.Acquire(ctx, b.resource, b.model.MinSpacing)
	if err != nil {
		return b.fault(err)
	}
	defer release()

	stop := utils.SlowLogger(ctx, b.clk, "sensor read is taking a while", "sensor", b.label, b.logger)
	defer stop()

	values, err := b.driverRead(ctx)
	if err != nil {
		return b.fault(err)
	}
	if len(values) == 0 {
		return b.fault(errors.Wrap(ErrInvalidValue, "driver returned no values"))
	}
	return Outcome{Reading: Reading{
		Label:     b.label,
		Type:      b.model.Name,
		Timestamp: b.clk.Now(),
		Values:    values,
	}}
}

// driverRead turns a panic inside the driver into an error, so the read still has an outcome.
func (b *binding) driverRead(ctx context.Context) (values map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("sensor driver panicked", "panic", r)
			values, err = nil, errors.Wrapf(ErrDriverPanic, "%v", r)
		}
	}()
	return b.driver.Read(ctx)
}

func (b *binding) fault(err error) Outcome {
	f := NewFault(b.label, err)
	b.logger.Debugw("read failed", "kind", f.Kind.String(), "error", err)
	return Outcome{Fault: f}
}
