package host

import (
	"github.com/montanaflynn/stats"
)

// historyLength is how many values per channel a status summary covers.
const historyLength = 60

// ChannelSummary describes the recent values of one channel.
type ChannelSummary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
}

// history keeps the last historyLength values of each channel of one sensor.
type history map[string][]float64

func (hist history) add(values map[string]float64) {
	for channel, v := range values {
		vals := append(hist[channel], v)
		if len(vals) > historyLength {
			vals = vals[len(vals)-historyLength:]
		}
		hist[channel] = vals
	}
}

func (hist history) summary() map[string]ChannelSummary {
	out := make(map[string]ChannelSummary, len(hist))
	for channel, vals := range hist {
		data := stats.Float64Data(vals)
		// data is never empty, the only error stats returns here
		minimum, _ := data.Min()
		maximum, _ := data.Max()
		mean, _ := data.Mean()
		median, _ := data.Median()
		out[channel] = ChannelSummary{
			Count:  len(vals),
			Min:    minimum,
			Max:    maximum,
			Mean:   mean,
			Median: median,
		}
	}
	return out
}
