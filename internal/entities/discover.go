package entities

import (
	"shelfy/internal/vitesy"
)

// programExtras are derived from the running program
var programExtras = []string{"programdescription", "programicon", "programfan", "programpower"}

// Discover returns the sensors of every device followed by two reset buttons
// per device. Entities with an already seen unique id are dropped.
func Discover(devices []vitesy.Device) []Entity {
	seen := make(map[string]bool)
	var result []Entity

	add := func(e Entity) {
		if seen[e.UniqueID] {
			return
		}
		seen[e.UniqueID] = true
		result = append(result, e)
	}

	for _, device := range devices {
		for _, e := range discoverSensors(device) {
			add(e)
		}
	}
	for _, device := range devices {
		deviceType := DisplayType(device.Type)
		add(newButton(device.ID, deviceType, ActionFilterWashed))
		add(newButton(device.ID, deviceType, ActionFridgeWashed))
	}

	return result
}

// discoverSensors finds the sensors a single device can feed
func discoverSensors(device vitesy.Device) []Entity {
	deviceType := DisplayType(device.Type)
	catalog := CatalogFor(deviceType)

	var result []Entity
	add := func(key string) {
		if desc, ok := catalog.Get(key); ok {
			result = append(result, newSensor(device.ID, deviceType, desc))
		}
	}

	// Flat attributes, battery members and the program with its derived keys
	for _, key := range catalog.Keys() {
		switch {
		case key == "program":
			if device.Program != nil {
				add(key)
				for _, extra := range programExtras {
					add(extra)
				}
			}
		case hasFlatAttribute(device, key):
			add(key)
		case hasBatteryMember(device, key):
			add(key)
		}
	}

	// Top-level keys of the latest measurement
	if len(device.Measurements) > 0 {
		latest := device.Measurements[0]
		if latest.Score != nil {
			add("score")
		}
		if latest.Timestamp != nil {
			add("timestamp")
		}
	}

	// Probes of every measurement
	for _, measurement := range device.Measurements {
		for _, sensor := range measurement.SensorsData {
			add(sensor.ID)
		}
	}

	// Maintenance dates and the days remaining
	for _, key := range sortedKeys(device.Maintenance) {
		if catalog.Has(key) {
			add(key)
			add(key + daysSuffix)
		}
	}

	return result
}

// hasFlatAttribute reports whether key is a top-level member of the device
func hasFlatAttribute(device vitesy.Device, key string) bool {
	_, ok := flatAttribute(device, key)
	return ok
}

func hasBatteryMember(device vitesy.Device, key string) bool {
	if device.Battery == nil {
		return false
	}
	switch key {
	case "level":
		return device.Battery.Level != nil
	case "charging":
		return device.Battery.Charging != nil
	}
	return false
}
