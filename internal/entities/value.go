package entities

import (
	"math"
	"sort"
	"strings"
	"time"

	"shelfy/internal/vitesy"
)

const daysSuffix = "days"

// programRefFallbacks lists the catalogue ids tried for ambiguous refs
var programRefFallbacks = map[string][]string{
	"boost-s0": {"boost-s0", "performance-s0"},
	"eco-s0":   {"eco-s0"},
	"shelf-s0": {"shelf-s0"},
}

// Value returns the native value of a sensor key for device. The second
// result is false when the device carries no value for the key.
func Value(device vitesy.Device, key string, now time.Time) (any, bool) {
	switch key {
	case "battery":
		if device.Battery == nil || device.Battery.Level == nil {
			return nil, false
		}
		return *device.Battery.Level, true
	case "charging":
		if device.Battery == nil || device.Battery.Charging == nil {
			return nil, false
		}
		return *device.Battery.Charging, true
	case "program":
		return programField(device, func(p *vitesy.Program) any { return deref(p.Name) })
	case "programdescription":
		return programField(device, func(p *vitesy.Program) any { return deref(p.Description) })
	case "programicon":
		return programField(device, func(p *vitesy.Program) any { return deref(p.Icon) })
	case "programfan":
		return programField(device, func(p *vitesy.Program) any {
			if p.Metadata == nil {
				return nil
			}
			return p.Metadata.Fan
		})
	case "programpower":
		return programField(device, func(p *vitesy.Program) any {
			if p.Metadata == nil {
				return nil
			}
			return p.Metadata.Power
		})
	}

	if value, ok := flatAttribute(device, key); ok {
		return value, value != nil
	}

	if len(device.Measurements) > 0 {
		latest := device.Measurements[0]
		switch key {
		case "score":
			if latest.Score != nil {
				return int(math.RoundToEven(*latest.Score * 100)), true
			}
		case "timestamp":
			if latest.Timestamp != nil {
				t, ok := vitesy.ParseTime(*latest.Timestamp)
				if !ok {
					return nil, false
				}
				return t, true
			}
		}
	}

	for _, measurement := range device.Measurements {
		for _, sensor := range measurement.SensorsData {
			if sensor.ID == key {
				if sensor.Value.Avg == nil {
					return nil, false
				}
				return *sensor.Value.Avg, true
			}
		}
	}

	if item, ok := device.Maintenance[key]; ok {
		due, ok := item.Due()
		if !ok {
			return nil, false
		}
		return due, true
	}

	if task, found := strings.CutSuffix(key, daysSuffix); found {
		if item, ok := device.Maintenance[task]; ok {
			due, ok := item.Due()
			if !ok {
				return nil, false
			}
			return DaysUntil(due, now), true
		}
	}

	return nil, false
}

// DaysUntil returns the whole days from now to due, rounded down. A due
// date one hour in the past gives -1.
func DaysUntil(due, now time.Time) int {
	return int(math.Floor(due.Sub(now).Hours() / 24))
}

// flatAttribute returns a top-level device member. The program is not flat.
func flatAttribute(device vitesy.Device, key string) (any, bool) {
	switch key {
	case "id":
		return device.ID, true
	case "type":
		if device.Type == "" {
			return nil, false
		}
		return device.Type, true
	case "apikey":
		return present(device.APIKey)
	case "model":
		return present(device.Model)
	case "firmware_version":
		return present(device.FirmwareVersion)
	case "wifi_SSID":
		return present(device.WifiSSID)
	case "connected":
		if device.Connected == nil {
			return nil, false
		}
		return *device.Connected, true
	case "battery":
		if device.Battery == nil {
			return nil, false
		}
		return deref(device.Battery.Level), true
	}
	return nil, false
}

// programField reads a field of the running program, either inlined in the
// device or looked up in its program catalogue by ref.
func programField(device vitesy.Device, field func(*vitesy.Program) any) (any, bool) {
	if device.Program == nil {
		return nil, false
	}

	program := device.Program.Data
	if program == nil {
		program = lookupProgram(device)
	}
	if program == nil {
		return nil, false
	}

	value := field(program)
	return value, value != nil
}

func lookupProgram(device vitesy.Device) *vitesy.Program {
	if device.Program.Ref == nil || *device.Program.Ref == "" {
		return nil
	}
	ref := *device.Program.Ref

	candidates, ok := programRefFallbacks[ref]
	if !ok {
		candidates = []string{ref}
	}

	for i := range device.Programs {
		for _, id := range candidates {
			if device.Programs[i].ID == id {
				return &device.Programs[i]
			}
		}
	}
	return nil
}

func present(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

// deref returns the string or an untyped nil
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func sortedKeys(m vitesy.Maintenance) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
