package entities

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	Manufacturer = "Vitesy"

	// unknownType stands in for devices reported without a type
	unknownType = "Unknown"
)

// Kind distinguishes read-only sensors from pressable buttons
type Kind string

const (
	KindSensor Kind = "sensor"
	KindButton Kind = "button"
)

// ButtonAction is the maintenance task a button resets
type ButtonAction string

const (
	ActionFilterWashed ButtonAction = "filter_washed"
	ActionFridgeWashed ButtonAction = "fridge_washed"
)

// Entity is one exposed sensor or button of a device
type Entity struct {
	UniqueID       string             `json:"unique_id"`
	Kind           Kind               `json:"kind"`
	Key            string             `json:"key"`
	DeviceID       string             `json:"device_id"`
	DeviceType     string             `json:"device_type"`
	TranslationKey string             `json:"translation_key"`
	Sensor         *SensorDescription `json:"sensor,omitempty"`
	Action         ButtonAction       `json:"action,omitempty"`
}

// DeviceInfo groups the entities of one physical device
type DeviceInfo struct {
	Identifier   string `json:"identifier"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Name         string `json:"name"`
}

// Device returns the device the entity belongs to
func (e Entity) Device() DeviceInfo {
	return DeviceInfo{
		Identifier:   compactID(e.DeviceID),
		Manufacturer: Manufacturer,
		Model:        e.DeviceType,
		Name:         "Vitesy " + titleCase(e.DeviceType),
	}
}

func newSensor(deviceID, deviceType string, desc SensorDescription) Entity {
	d := desc
	return Entity{
		UniqueID:       uniqueID(deviceType, deviceID, desc.Key),
		Kind:           KindSensor,
		Key:            desc.Key,
		DeviceID:       deviceID,
		DeviceType:     deviceType,
		TranslationKey: strings.ToLower(strings.ReplaceAll(desc.Key, "_", "-")),
		Sensor:         &d,
	}
}

func newButton(deviceID, deviceType string, action ButtonAction) Entity {
	return Entity{
		UniqueID:       uniqueID(deviceType, deviceID, string(action)),
		Kind:           KindButton,
		Key:            string(action),
		DeviceID:       deviceID,
		DeviceType:     deviceType,
		TranslationKey: string(action),
		Action:         action,
	}
}

// uniqueID is vitesy_<type>_<mac without colons>_<key>
func uniqueID(deviceType, deviceID, key string) string {
	return fmt.Sprintf("vitesy_%s_%s_%s", strings.ToLower(deviceType), compactID(deviceID), key)
}

func compactID(deviceID string) string {
	return strings.ReplaceAll(deviceID, ":", "")
}

// DisplayType turns the vendor type into its display form: first letter
// upper case, the rest lower case ("SHELFY" becomes "Shelfy").
func DisplayType(vendorType string) string {
	if vendorType == "" {
		return unknownType
	}
	runes := []rune(strings.ToLower(vendorType))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
