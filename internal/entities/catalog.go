package entities

import "strings"

// Device classes understood by the entity consumers
const (
	ClassTimestamp   = "timestamp"
	ClassBattery     = "battery"
	ClassTemperature = "temperature"
	ClassHumidity    = "humidity"
	ClassVOCParts    = "volatile_organic_compounds_parts"
	ClassCO2         = "carbon_dioxide"
	ClassPM25        = "pm25"
)

// Units of measurement
const (
	UnitPercent                 = "%"
	UnitCelsius                 = "°C"
	UnitSeconds                 = "s"
	UnitPPM                     = "ppm"
	UnitMicrogramsPerCubicMeter = "µg/m³"
)

// SensorDescription describes how one device attribute is exposed
type SensorDescription struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Catalog is an ordered set of sensor descriptions. Discovery walks it in
// order, so the order decides the order of the discovered entities.
type Catalog struct {
	keys  []string
	byKey map[string]SensorDescription
}

// newCatalog merges descriptions in order. A later description with an
// existing key replaces the earlier one but keeps its position.
func newCatalog(groups ...[]SensorDescription) *Catalog {
	c := &Catalog{byKey: make(map[string]SensorDescription)}
	for _, group := range groups {
		for _, desc := range group {
			if _, exists := c.byKey[desc.Key]; !exists {
				c.keys = append(c.keys, desc.Key)
			}
			c.byKey[desc.Key] = desc
		}
	}
	return c
}

// Keys returns the sensor keys in catalogue order
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	return keys
}

// Get returns the description of key
func (c *Catalog) Get(key string) (SensorDescription, bool) {
	desc, ok := c.byKey[key]
	return desc, ok
}

// Has reports whether key is part of the catalogue
func (c *Catalog) Has(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

var sharedSensors = []SensorDescription{
	{Key: "id", Name: "Mac Address", Icon: "mdi:lan-connect"},
	{Key: "apikey", Name: "API Key", Icon: "mdi:key-variant"},
	{Key: "type", Name: "Type", Icon: "mdi:devices"},
	{Key: "model", Name: "Model", Icon: "mdi:chip"},
	{Key: "firmware_version", Name: "Firmware Version", Icon: "mdi:update"},
	{Key: "wifi_SSID", Name: "WiFi SSID", Icon: "mdi:wifi"},
	{Key: "connected", Name: "Connected", Icon: "mdi:connection"},
	{Key: "score", Name: "Air Quality Score", Unit: UnitPercent, Icon: "mdi:air-filter"},
	{Key: "timestamp", Name: "Last Update", DeviceClass: ClassTimestamp},
	{Key: "program", Name: "Program", Icon: "mdi:play-circle"},
	{Key: "programdescription", Name: "Program Description", Icon: "mdi:text-box-outline"},
	{Key: "programicon", Name: "Program Icon", Icon: "mdi:image-outline"},
}

var shelfySensors = []SensorDescription{
	{Key: "battery", Name: "Battery Level", Unit: UnitPercent, DeviceClass: ClassBattery},
	{Key: "charging", Name: "Charging", Icon: "mdi:battery-charging"},
	{Key: "TMP01-SY", Name: "Fridge Temperature", Unit: UnitCelsius, DeviceClass: ClassTemperature},
	{Key: "DOC-SY", Name: "Door Opening Times", Icon: "mdi:door-open"},
	{Key: "DOT-SY", Name: "Door Opening Seconds", Unit: UnitSeconds, Icon: "mdi:timer"},
	{Key: "timestamp", Name: "Last Update", DeviceClass: ClassTimestamp},
	{Key: "programfan", Name: "Program Fan", Icon: "mdi:fan"},
	{Key: "programpower", Name: "Program Power", Icon: "mdi:lightning-bolt"},
	{Key: "filter", Name: "Next Filter Cleaning Date", DeviceClass: ClassTimestamp, Icon: "mdi:calendar-clock"},
	{Key: "fridge", Name: "Next Fridge Cleaning Date", DeviceClass: ClassTimestamp, Icon: "mdi:calendar-clock"},
	{Key: "filterdays", Name: "Remaining Filter Cleaning Days", Icon: "mdi:calendar-minus"},
	{Key: "fridgedays", Name: "Remaining Fridge Cleaning Days", Icon: "mdi:calendar-minus"},
}

var natedeSensors = []SensorDescription{
	{Key: "TD01TP-N2", Name: "Temperature", Unit: UnitCelsius, DeviceClass: ClassTemperature},
	{Key: "SN01HU-N2", Name: "Humidity", Unit: UnitPercent, DeviceClass: ClassHumidity},
	{Key: "SN02VD-N2", Name: "VOC", Unit: UnitPPM, DeviceClass: ClassVOCParts},
	{Key: "SN02C2-N2", Name: "CO2", Unit: UnitPPM, DeviceClass: ClassCO2},
	{Key: "SY01DS-N2", Name: "PM2.5", Unit: UnitMicrogramsPerCubicMeter, DeviceClass: ClassPM25},
}

var (
	// ShelfyCatalog covers the Shelfy fridge organizer
	ShelfyCatalog = newCatalog(sharedSensors, shelfySensors)

	// NatedeCatalog covers the Natede air purifier
	NatedeCatalog = newCatalog(sharedSensors, natedeSensors)
)

// CatalogFor picks the catalogue of a device type
func CatalogFor(deviceType string) *Catalog {
	if strings.Contains(strings.ToUpper(deviceType), "NATEDE") {
		return NatedeCatalog
	}
	return ShelfyCatalog
}
