// Package metrics counts sensor reads and faults and keeps the last value of every channel, for
// export through a node exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vuzi/raspi-sensors/components/sensor"
	"github.com/Vuzi/raspi-sensors/scheduler"
)

const namespace = "raspi_sensors"

// Metrics holds the sensor collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	reads         *prometheus.CounterVec
	faults        *prometheus.CounterVec
	values        *prometheus.GaugeVec
	lastTimestamp *prometheus.GaugeVec
}

// New returns Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Total count of successful sensor reads by sensor label and type.",
		}, []string{"sensor", "type"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Total count of failed sensor reads by sensor label and fault kind.",
		}, []string{"sensor", "kind"}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "value",
			Help:      "Last value read on each sensor channel.",
		}, []string{"sensor", "channel"}),
		lastTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_read_timestamp_seconds",
			Help:      "Unix time of the last successful read of each sensor.",
		}, []string{"sensor"}),
	}
	m.registry.MustRegister(m.reads, m.faults, m.values, m.lastTimestamp)
	return m
}

// RegisterScheduler exports the scheduler's active task count and skipped ticks.
func (m *Metrics) RegisterScheduler(sched *scheduler.Scheduler) {
	if m == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_tasks",
			Help:      "Number of active poll tasks.",
		}, func() float64 { return float64(sched.Tasks()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_ticks_total",
			Help:      "Total count of poll ticks skipped because the previous read was still running.",
		}, func() float64 { return float64(sched.Skipped()) }),
	)
}

// Observe records one outcome.
func (m *Metrics) Observe(o sensor.Outcome) {
	if m == nil {
		return
	}
	if !o.OK() {
		m.faults.WithLabelValues(o.Fault.Label, o.Fault.Kind.String()).Inc()
		return
	}
	r := o.Reading
	m.reads.WithLabelValues(r.Label, r.Type).Inc()
	for channel, value := range r.Values {
		m.values.WithLabelValues(r.Label, channel).Set(value)
	}
	m.lastTimestamp.WithLabelValues(r.Label).Set(float64(r.Timestamp.UnixNano()) / 1e9)
}

// Gatherer returns the registry holding the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteToTextfile writes the current metrics to filename in the text exposition format. The file
// is replaced atomically.
func (m *Metrics) WriteToTextfile(filename string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(filename, m.registry)
}
