package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"shelfy/internal/entities"
	"shelfy/internal/vitesy"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func header(columns ...string) table.Row {
	row := make(table.Row, len(columns))
	for i, column := range columns {
		row[i] = text.FgHiCyan.Sprint(column)
	}
	return row
}

// renderDevices prints one row per device
func renderDevices(w io.Writer, devices []vitesy.Device, registry *entities.Registry) {
	if len(devices) == 0 {
		fmt.Fprintf(w, "%s\n", text.FgYellow.Sprint("No devices found"))
		return
	}

	t := newTable(w)
	t.AppendHeader(header("ID", "NAME", "MODEL", "FIRMWARE", "CONNECTED", "ENTITIES"))
	for _, device := range devices {
		t.AppendRow(table.Row{
			device.ID,
			"Vitesy " + entities.DisplayType(device.Type),
			optional(device.Model),
			optional(device.FirmwareVersion),
			formatConnected(device.Connected),
			len(registry.ListByDevice(device.ID)),
		})
	}
	t.Render()
}

// renderStates prints the entities of every device with their values
func renderStates(w io.Writer, registry *entities.Registry, devices []vitesy.Device, now time.Time) {
	t := newTable(w)
	t.AppendHeader(header("ENTITY", "KIND", "NAME", "VALUE"))
	for _, entity := range registry.List() {
		state := entities.Resolve(entity, devices, now)
		name := string(entity.Action)
		if entity.Sensor != nil {
			name = entity.Sensor.Name
		}
		t.AppendRow(table.Row{
			entity.UniqueID,
			string(entity.Kind),
			name,
			formatValue(state.Value, entity.Sensor),
		})
	}
	t.Render()
}

// renderKeyValues prints a two column table
func renderKeyValues(w io.Writer, rows [][2]string) {
	t := newTable(w)
	t.AppendHeader(header("KEY", "VALUE"))
	for _, row := range rows {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(row[0]), row[1]})
	}
	t.Render()
}

func formatValue(value any, desc *entities.SensorDescription) string {
	var s string
	switch v := value.(type) {
	case nil:
		return text.FgHiBlack.Sprint("-")
	case time.Time:
		return v.Format(time.RFC3339)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	if desc != nil && desc.Unit != "" {
		s += " " + desc.Unit
	}
	return s
}

func formatConnected(connected *bool) string {
	switch {
	case connected == nil:
		return text.FgHiBlack.Sprint("unknown")
	case *connected:
		return text.FgGreen.Sprint("yes")
	default:
		return text.FgRed.Sprint("no")
	}
}

func optional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
