package vitesy

import (
	"encoding/json"
	"strings"
	"time"
)

// Device is one appliance as returned by GET /devices?expand=all.
// Optional members are pointers so a missing field is distinguishable
// from a zero value.
type Device struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Model           *string        `json:"model,omitempty"`
	FirmwareVersion *string        `json:"firmware_version,omitempty"`
	WifiSSID        *string        `json:"wifi_SSID,omitempty"`
	Connected       *bool          `json:"connected,omitempty"`
	Battery         *Battery       `json:"battery,omitempty"`
	Program         *DeviceProgram `json:"program,omitempty"`
	Measurements    []Measurement  `json:"measurements,omitempty"`
	Maintenance     Maintenance    `json:"maintenance,omitempty"`
	Programs        []Program      `json:"programs,omitempty"`

	// APIKey is not sent by the vendor; the poller copies the account key here
	APIKey *string `json:"apikey,omitempty"`
}

// Battery is the Shelfy battery block
type Battery struct {
	Level    *float64 `json:"level,omitempty"`
	Charging *bool    `json:"charging,omitempty"`
}

// DeviceProgram is the program the device is running. Data is inlined by
// some firmware; otherwise Ref points into the device's programs list.
type DeviceProgram struct {
	Ref  *string  `json:"ref,omitempty"`
	Data *Program `json:"data,omitempty"`
}

// Program is one entry of the program catalogue
type Program struct {
	ID          string           `json:"id"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Icon        *string          `json:"icon,omitempty"`
	Metadata    *ProgramMetadata `json:"metadata,omitempty"`
}

// ProgramMetadata carries the air purifier fan and power levels.
// The vendor sends them as numbers or strings depending on the program.
type ProgramMetadata struct {
	Fan   any `json:"fan,omitempty"`
	Power any `json:"power,omitempty"`
}

// Measurement is one reading; the first element of a list is the latest
type Measurement struct {
	ID          *string      `json:"id,omitempty"`
	Score       *float64     `json:"score,omitempty"`
	Timestamp   *string      `json:"timestamp,omitempty"`
	SensorsData []SensorData `json:"sensors_data,omitempty"`
}

// SensorData is a single probe inside a measurement
type SensorData struct {
	ID    string      `json:"id"`
	Value SensorValue `json:"value"`
}

// SensorValue holds the aggregated probe value
type SensorValue struct {
	Avg *float64 `json:"avg,omitempty"`
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Maintenance maps a maintenance task ("filter", "fridge") to its schedule
type Maintenance map[string]MaintenanceItem

// MaintenanceItem is a scheduled maintenance task
type MaintenanceItem struct {
	DueDate *string `json:"due_date,omitempty"`
}

// Due parses the due date. The vendor uses RFC 3339 with a Z suffix.
func (m MaintenanceItem) Due() (time.Time, bool) {
	if m.DueDate == nil {
		return time.Time{}, false
	}
	return ParseTime(*m.DueDate)
}

// ParseTime parses a vendor timestamp
func ParseTime(value string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ResetResult is the answer to a maintenance reset. Data holds the decoded
// JSON body; when the body is not JSON, StatusCode and Text are set instead.
type ResetResult struct {
	Data       any    `json:"data,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Text       string `json:"text,omitempty"`
}

// apiKeyResponse is the body of GET and POST /users/me/api-key
type apiKeyResponse struct {
	APIKey *string          `json:"apiKey"`
	Error  *json.RawMessage `json:"error"`
}

// key returns the api key, empty when the vendor sent null
func (r apiKeyResponse) key() string {
	if r.APIKey == nil {
		return ""
	}
	return *r.APIKey
}

// errorMessage returns error.message when the error is an object
func (r apiKeyResponse) errorMessage() string {
	if r.Error == nil {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(*r.Error, &obj); err != nil {
		return ""
	}
	return obj.Message
}
