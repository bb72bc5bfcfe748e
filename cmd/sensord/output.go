package main

import (
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/Vuzi/raspi-sensors/components/sensor"
)

// printOutcomes renders one row per channel of every reading, and one row per fault.
func printOutcomes(w io.Writer, outcomes []sensor.Outcome) {
	sorted := append([]sensor.Outcome(nil), outcomes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return outcomeLabel(sorted[i]) < outcomeLabel(sorted[j])
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Sensor", "Type", "Channel", "Value", "Unit"})
	for _, o := range sorted {
		if !o.OK() {
			t.AppendRow(table.Row{o.Fault.Label, "", o.Fault.Kind.String() + " fault", o.Fault.Cause.Error(), ""})
			continue
		}
		model, _ := sensor.LookupModel(o.Reading.Type)
		for _, name := range o.Reading.Channels() {
			unit := ""
			if channel, ok := lo.Find(model.Channels, func(c sensor.Channel) bool { return c.Name == name }); ok {
				unit = channel.UnitDisplay
			}
			value := strconv.FormatFloat(o.Reading.Values[name], 'f', -1, 64)
			t.AppendRow(table.Row{o.Reading.Label, o.Reading.Type, name, value, unit})
		}
	}
	t.Render()
}

func outcomeLabel(o sensor.Outcome) string {
	if o.OK() {
		return o.Reading.Label
	}
	return o.Fault.Label
}
