package sensor

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/Vuzi/raspi-sensors/components/board"
)

// Errors drivers wrap to say what went wrong on the wire.
var (
	ErrTimeout    = errors.New("sensor did not respond in time")
	ErrChecksum   = errors.New("checksum mismatch")
	ErrBus        = errors.New("bus error")
	ErrNotPresent = errors.New("sensor not present")
	// ErrInvalidValue is returned when a device answers with a value outside its datasheet range.
	ErrInvalidValue = errors.New("invalid value read from sensor")
	// ErrDriverPanic is the cause of a fault whose driver panicked during the read.
	ErrDriverPanic = errors.New("sensor driver panicked")
)

// A Reading is the result of one successful read.
type Reading struct {
	Label     string
	Type      string
	Timestamp time.Time
	Values    map[string]float64
}

// Channels returns the reading's channel names, sorted.
func (r Reading) Channels() []string {
	names := lo.Keys(r.Values)
	sort.Strings(names)
	return names
}

// Fields returns the reading as alternating key/value pairs for structured logging.
func (r Reading) Fields() []interface{} {
	return lo.FlatMap(r.Channels(), func(name string, _ int) []interface{} {
		return []interface{}{name, r.Values[name]}
	})
}

// FaultKind says whether a fault is worth retrying.
type FaultKind int

const (
	// FaultTransient faults (timeouts, checksum mismatches, bus noise) may clear on the next read.
	FaultTransient FaultKind = iota
	// FaultPermanent faults mean the device is absent or unreachable.
	FaultPermanent
	// FaultConfig faults mean the sensor is misconfigured.
	FaultConfig
)

func (k FaultKind) String() string {
	switch k {
	case FaultTransient:
		return "transient"
	case FaultPermanent:
		return "permanent"
	case FaultConfig:
		return "config"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// A Fault is a failed read.
type Fault struct {
	Kind  FaultKind
	Label string
	Cause error
}

// NewFault labels err with the sensor it came from and classifies it.
func NewFault(label string, err error) *Fault {
	return &Fault{Kind: Classify(err), Label: label, Cause: err}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault reading %s: %v", f.Kind, f.Label, f.Cause)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// Transient reports whether polling may reasonably continue.
func (f *Fault) Transient() bool {
	return f.Kind == FaultTransient
}

// Permanent reports whether the device appears to be absent.
func (f *Fault) Permanent() bool {
	return f.Kind == FaultPermanent
}

// Classify maps a driver or board error onto a FaultKind. Unknown errors are transient.
func Classify(err error) FaultKind {
	switch {
	case IsConfigError(err):
		return FaultConfig
	case errors.Is(err, ErrNotPresent),
		errors.Is(err, board.ErrNoDevice),
		errors.Is(err, board.ErrBusUnavailable):
		return FaultPermanent
	default:
		return FaultTransient
	}
}

// An Outcome is what a callback receives: a Reading when Fault is nil, otherwise a Fault.
type Outcome struct {
	Reading Reading
	Fault   *Fault
}

// OK reports whether the outcome carries a reading.
func (o Outcome) OK() bool {
	return o.Fault == nil
}

// A Callback receives every outcome of a fetch.
type Callback func(Outcome)
