// Package host runs a configured set of sensors: it builds their handles, polls them and records
// every outcome in the log and the metrics.
package host

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/Vuzi/raspi-sensors/components/board"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/config"
	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/metrics"
	"github.com/Vuzi/raspi-sensors/scheduler"
	"github.com/Vuzi/raspi-sensors/utils"
)

// A Host owns the handles of every configured sensor.
type Host struct {
	sched   *scheduler.Scheduler
	metrics *metrics.Metrics
	logger  logging.Logger

	sensors []*polledSensor

	mu        sync.Mutex
	last      map[string]sensor.Outcome
	histories map[string]history
}

type polledSensor struct {
	handle   *sensor.Handle
	interval time.Duration
}

// Status is the latest known state of one sensor.
type Status struct {
	Label    string
	Type     string
	Polling  bool
	Interval time.Duration
	// LastOutcome is nil until the first delivery.
	LastOutcome *sensor.Outcome
	// Summary covers the recent successful reads, by channel.
	Summary map[string]ChannelSummary
}

// New builds a handle for every sensor of conf. No sensor is read until Start.
func New(
	b board.Board,
	sched *scheduler.Scheduler,
	conf *config.Config,
	m *metrics.Metrics,
	logger logging.Logger,
) (*Host, error) {
	h := &Host{
		sched:     sched,
		metrics:   m,
		logger:    logger,
		last:      map[string]sensor.Outcome{},
		histories: map[string]history{},
	}
	guard := utils.NewGuard(func() {
		if err := h.Close(context.Background()); err != nil {
			logger.Errorw("error closing sensors", "error", err)
		}
	})
	defer guard.OnFail()

	for idx, s := range conf.Sensors {
		sensorConf, err := s.SensorConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "sensors.%d", idx)
		}
		interval, err := s.PollInterval()
		if err != nil {
			return nil, errors.Wrapf(err, "sensors.%d.interval", idx)
		}
		handle, err := sensor.NewHandle(b, sched, sensorConf, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "sensors.%d", idx)
		}
		h.sensors = append(h.sensors, &polledSensor{handle: handle, interval: interval})
	}
	guard.Success()
	return h, nil
}

// Start begins polling every sensor at its configured interval.
func (h *Host) Start() error {
	for _, s := range h.sensors {
		if err := s.handle.FetchInterval(h.deliver, s.interval); err != nil {
			return err
		}
		h.logger.Infow("polling sensor",
			"sensor", s.handle.Label(), "type", s.handle.Type(), "interval", s.interval)
	}
	return nil
}

// ReadAll reads every sensor once, independently of polling, and returns the outcomes in
// delivery order once all have arrived.
func (h *Host) ReadAll(ctx context.Context) ([]sensor.Outcome, error) {
	results := make(chan sensor.Outcome, len(h.sensors))
	var errs error
	pending := 0
	for _, s := range h.sensors {
		err := s.handle.Fetch(func(o sensor.Outcome) {
			h.deliver(o)
			results <- o
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		pending++
	}

	outcomes := make([]sensor.Outcome, 0, pending)
	for ; pending > 0; pending-- {
		select {
		case o := <-results:
			outcomes = append(outcomes, o)
		case <-ctx.Done():
			return outcomes, multierr.Append(errs, ctx.Err())
		}
	}
	return outcomes, errs
}

func (h *Host) deliver(o sensor.Outcome) {
	h.metrics.Observe(o)
	if o.OK() {
		h.logger.Infow("reading", append([]interface{}{"sensor", o.Reading.Label}, o.Reading.Fields()...)...)
		h.mu.Lock()
		h.last[o.Reading.Label] = o
		hist, ok := h.histories[o.Reading.Label]
		if !ok {
			hist = history{}
			h.histories[o.Reading.Label] = hist
		}
		hist.add(o.Reading.Values)
		h.mu.Unlock()
		return
	}
	if o.Fault.Permanent() {
		h.logger.Errorw("sensor fault", "sensor", o.Fault.Label, "kind", o.Fault.Kind, "error", o.Fault.Cause)
	} else {
		h.logger.Warnw("sensor fault", "sensor", o.Fault.Label, "kind", o.Fault.Kind, "error", o.Fault.Cause)
	}
	h.mu.Lock()
	h.last[o.Fault.Label] = o
	h.mu.Unlock()
}

// Status returns the state of every sensor, sorted by label.
func (h *Host) Status() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	statuses := lo.Map(h.sensors, func(s *polledSensor, _ int) Status {
		status := Status{
			Label:    s.handle.Label(),
			Type:     s.handle.Type(),
			Polling:  s.handle.Polling(),
			Interval: s.interval,
		}
		if o, ok := h.last[status.Label]; ok {
			status.LastOutcome = &o
		}
		if hist, ok := h.histories[status.Label]; ok {
			status.Summary = hist.summary()
		}
		return status
	})
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Label < statuses[j].Label
	})
	return statuses
}

// LogStatus logs a one line summary per sensor.
func (h *Host) LogStatus() {
	for _, s := range h.Status() {
		fields := []interface{}{"sensor", s.Label, "type", s.Type, "polling", s.Polling}
		switch {
		case s.LastOutcome == nil:
			fields = append(fields, "last", "none")
		case s.LastOutcome.OK():
			fields = append(fields, "last", s.LastOutcome.Reading.Timestamp)
			fields = append(fields, s.LastOutcome.Reading.Fields()...)
		default:
			fields = append(fields, "fault", s.LastOutcome.Fault.Error())
		}
		channels := lo.Keys(s.Summary)
		sort.Strings(channels)
		for _, channel := range channels {
			summary := s.Summary[channel]
			fields = append(fields, channel+"_mean", summary.Mean, channel+"_min", summary.Min, channel+"_max", summary.Max)
		}
		h.logger.Infow("status", fields...)
	}
	h.logger.Infow("scheduler", "tasks", h.sched.Tasks(), "skipped_ticks", h.sched.Skipped())
}

// Close stops polling and closes every handle.
func (h *Host) Close(ctx context.Context) error {
	var errs error
	for _, s := range h.sensors {
		errs = multierr.Append(errs, s.handle.Close(ctx))
	}
	return errs
}
